package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/services/catalog/internal/domain"
	"github.com/utafrali/storefront/services/catalog/internal/repository"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func sampleProduct(id, name string) *domain.Product {
	p := domain.NewProduct(id, "admin-1", domain.ProductFields{
		Name:           name,
		Images:         []string{"/images/" + id + ".png"},
		Brand:          "Acme",
		Category:       "Electronics",
		Description:    "desc",
		Price:          decimal.RequireFromString("19.99"),
		CountInStock:   3,
		Specifications: map[string]string{"RAM": "8GB"},
	}, now)
	p.Version = 1
	return p
}

func bsonDoc(t *testing.T, p *domain.Product) bson.D {
	t.Helper()
	d, err := toDoc(p)
	require.NoError(t, err)
	raw, err := bson.Marshal(d)
	require.NoError(t, err)
	var out bson.D
	require.NoError(t, bson.Unmarshal(raw, &out))
	return out
}

func newRepo(mt *mtest.T) *ProductRepository {
	return &ProductRepository{coll: mt.Coll}
}

func ns(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestDocRoundTrip(t *testing.T) {
	p := sampleProduct("p1", "Phone")
	require.NoError(t, p.AddReview(domain.Review{ID: "r1", User: "u1", Name: "Ann", Rating: 4, CreatedAt: now}, now))

	d, err := toDoc(p)
	require.NoError(t, err)
	got, err := d.toDomain()
	require.NoError(t, err)

	assert.True(t, got.Price.Equal(p.Price))
	assert.Equal(t, p.Reviews, got.Reviews)
	assert.Equal(t, p.Specifications, got.Specifications)
	assert.Equal(t, 4.0, got.Rating)
}

func TestKeywordFilter_QuotesRegex(t *testing.T) {
	assert.Empty(t, keywordFilter(""))
	f := keywordFilter("c++ (pro)")
	assert.Equal(t, bson.M{"$regex": `c\+\+ \(pro\)`, "$options": "i"}, f["name"])
}

func TestProductRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("list returns page and total", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(13)}}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch,
				bsonDoc(t, sampleProduct("p1", "Phone")),
				bsonDoc(t, sampleProduct("p2", "Phone Case")),
			),
		)

		products, total, err := repo.List(context.Background(), repository.ProductFilter{Keyword: "phone", Limit: 12})
		require.NoError(mt, err)
		assert.Equal(mt, 13, total)
		require.Len(mt, products, 2)
		assert.Equal(mt, "Phone Case", products[1].Name)
		assert.True(mt, products[0].Price.Equal(decimal.RequireFromString("19.99")))
	})

	mt.Run("list beyond last page is empty", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(13)}}),
		)

		products, total, err := repo.List(context.Background(), repository.ProductFilter{Offset: 24, Limit: 12})
		require.NoError(mt, err)
		assert.Equal(mt, 13, total)
		assert.Empty(mt, products)
	})

	mt.Run("list with negative offset is empty", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(13)}}),
		)

		products, total, err := repo.List(context.Background(), repository.ProductFilter{Offset: -24, Limit: 12})
		require.NoError(mt, err)
		assert.Equal(mt, 13, total)
		assert.Empty(mt, products)
	})

	mt.Run("get not found", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		_, err := repo.GetByID(context.Background(), "missing")
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})

	mt.Run("create duplicate id", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}))

		err := repo.Create(context.Background(), sampleProduct("p1", "Phone"))
		assert.ErrorIs(mt, err, apperrors.ErrAlreadyExists)
	})

	mt.Run("create many", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(2)}))

		err := repo.CreateMany(context.Background(), []*domain.Product{sampleProduct("p1", "A"), sampleProduct("p2", "B")})
		require.NoError(mt, err)
	})

	mt.Run("mutate swaps version", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bsonDoc(t, sampleProduct("p1", "Phone"))),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}, bson.E{Key: "nModified", Value: int32(1)}),
		)

		got, err := repo.Mutate(context.Background(), "p1", func(p *domain.Product) error {
			return p.AddReview(domain.Review{ID: "r1", User: "u1", Rating: 5}, now)
		})
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), got.Version)
		assert.Equal(mt, 1, got.NumReviews)
	})

	mt.Run("mutate retries lost race", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bsonDoc(t, sampleProduct("p1", "Phone"))),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bsonDoc(t, sampleProduct("p1", "Phone"))),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}),
		)

		calls := 0
		_, err := repo.Mutate(context.Background(), "p1", func(p *domain.Product) error {
			calls++
			return nil
		})
		require.NoError(mt, err)
		assert.Equal(mt, 2, calls)
	})

	mt.Run("mutate gives up after bounded attempts", func(mt *mtest.T) {
		repo := newRepo(mt)
		for i := 0; i < maxMutateAttempts; i++ {
			mt.AddMockResponses(
				mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bsonDoc(t, sampleProduct("p1", "Phone"))),
				mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}),
			)
		}

		_, err := repo.Mutate(context.Background(), "p1", func(*domain.Product) error { return nil })
		assert.ErrorIs(mt, err, apperrors.ErrConflict)
	})

	mt.Run("mutate duplicate review does not write", func(mt *mtest.T) {
		repo := newRepo(mt)
		p := sampleProduct("p1", "Phone")
		require.NoError(mt, p.AddReview(domain.Review{ID: "r1", User: "u1", Rating: 5}, now))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bsonDoc(t, p)))

		_, err := repo.Mutate(context.Background(), "p1", func(p *domain.Product) error {
			return p.AddReview(domain.Review{ID: "r2", User: "u1", Rating: 1}, now)
		})
		assert.ErrorIs(mt, err, domain.ErrAlreadyReviewed)
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}))

		err := repo.Delete(context.Background(), "missing")
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})

	mt.Run("stats", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: nil},
			{Key: "totalProducts", Value: int32(10)},
			{Key: "totalReviews", Value: int32(4)},
			{Key: "ratingSum", Value: 18.0},
			{Key: "outOfStock", Value: int32(2)},
		}))

		s, err := repo.Stats(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, 10, s.TotalProducts)
		assert.InDelta(mt, 4.5, s.AverageRating, 1e-9)
		assert.Equal(mt, 2, s.OutOfStock)
	})
}
