// Package mongo stores catalog products as MongoDB documents with embedded
// reviews. Writes to an existing product compare-and-swap on a version field.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/services/catalog/internal/domain"
	"github.com/utafrali/storefront/services/catalog/internal/repository"
)

// CollectionName is the products collection.
const CollectionName = "products"

// maxMutateAttempts bounds compare-and-swap retries under contention.
const maxMutateAttempts = 5

type reviewDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Rating    int       `bson:"rating"`
	Comment   string    `bson:"comment"`
	User      string    `bson:"user"`
	CreatedAt time.Time `bson:"createdAt"`
}

type productDoc struct {
	ID             string               `bson:"_id"`
	User           string               `bson:"user,omitempty"`
	Name           string               `bson:"name"`
	Images         []string             `bson:"images"`
	Brand          string               `bson:"brand"`
	Category       string               `bson:"category"`
	Description    string               `bson:"description"`
	Price          primitive.Decimal128 `bson:"price"`
	CountInStock   int                  `bson:"countInStock"`
	Specifications map[string]string    `bson:"specifications"`
	Features       []string             `bson:"features"`
	Rating         float64              `bson:"rating"`
	NumReviews     int                  `bson:"numReviews"`
	Reviews        []reviewDoc          `bson:"reviews"`
	Version        int64                `bson:"version"`
	CreatedAt      time.Time            `bson:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"`
}

func toDoc(p *domain.Product) (productDoc, error) {
	price, err := primitive.ParseDecimal128(p.Price.String())
	if err != nil {
		return productDoc{}, fmt.Errorf("encode price %s: %w", p.Price, err)
	}
	d := productDoc{
		ID:             p.ID,
		User:           p.User,
		Name:           p.Name,
		Images:         p.Images,
		Brand:          p.Brand,
		Category:       p.Category,
		Description:    p.Description,
		Price:          price,
		CountInStock:   p.CountInStock,
		Specifications: p.Specifications,
		Features:       p.Features,
		Rating:         p.Rating,
		NumReviews:     p.NumReviews,
		Reviews:        make([]reviewDoc, 0, len(p.Reviews)),
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	for _, r := range p.Reviews {
		d.Reviews = append(d.Reviews, reviewDoc(r))
	}
	return d, nil
}

func (d productDoc) toDomain() (*domain.Product, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return nil, fmt.Errorf("decode price of %s: %w", d.ID, err)
	}
	p := &domain.Product{
		ID:             d.ID,
		User:           d.User,
		Name:           d.Name,
		Images:         d.Images,
		Brand:          d.Brand,
		Category:       d.Category,
		Description:    d.Description,
		Price:          price,
		CountInStock:   d.CountInStock,
		Specifications: d.Specifications,
		Features:       d.Features,
		Rating:         d.Rating,
		NumReviews:     d.NumReviews,
		Reviews:        make([]domain.Review, 0, len(d.Reviews)),
		Version:        d.Version,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	for _, r := range d.Reviews {
		p.Reviews = append(p.Reviews, domain.Review(r))
	}
	p.Normalize()
	return p, nil
}

// ProductRepository implements repository.ProductRepository on MongoDB.
type ProductRepository struct {
	coll *mongo.Collection
}

// NewProductRepository returns a repository over db's products collection.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(CollectionName)}
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

// EnsureIndexes creates the listing index. It is idempotent.
func (r *ProductRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create products index: %w", err)
	}
	return nil
}

func keywordFilter(keyword string) bson.M {
	if keyword == "" {
		return bson.M{}
	}
	return bson.M{"name": bson.M{"$regex": regexp.QuoteMeta(keyword), "$options": "i"}}
}

// List returns one page of products whose name contains filter.Keyword.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (_ []domain.Product, _ int, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "ListProducts", "products.find")
	defer func() { end(err) }()

	q := keywordFilter(filter.Keyword)
	total, err := r.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	products := []domain.Product{}
	if total == 0 || filter.Offset < 0 || int64(filter.Offset) >= total {
		return products, int(total), nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(filter.Offset)).
		SetLimit(int64(filter.Limit))
	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find products: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var d productDoc
		if err := cur.Decode(&d); err != nil {
			return nil, 0, fmt.Errorf("decode product: %w", err)
		}
		p, err := d.toDomain()
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	if err := cur.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}
	return products, int(total), nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "GetProduct", "products.findOne")
	defer func() { end(err) }()

	return r.findOne(ctx, id)
}

func (r *ProductRepository) findOne(ctx context.Context, id string) (*domain.Product, error) {
	var d productDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	return d.toDomain()
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "CreateProduct", "products.insertOne")
	defer func() { end(err) }()

	p.Normalize()
	if p.Version == 0 {
		p.Version = 1
	}
	d, err := toDoc(p)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("product", "id", p.ID)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// CreateMany inserts in order. Documents before a failing one stay inserted.
func (r *ProductRepository) CreateMany(ctx context.Context, products []*domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "InsertProducts", "products.insertMany")
	defer func() { end(err) }()

	docs := make([]any, 0, len(products))
	for _, p := range products {
		p.Normalize()
		if p.Version == 0 {
			p.Version = 1
		}
		d, err := toDoc(p)
		if err != nil {
			return err
		}
		docs = append(docs, d)
	}

	if _, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Conflict("bulk insert contains an existing product id")
		}
		return fmt.Errorf("insert products: %w", err)
	}
	return nil
}

// Mutate reads the product, applies fn and replaces the document only if
// its version is unchanged, retrying on a lost race.
func (r *ProductRepository) Mutate(ctx context.Context, id string, fn repository.MutateFunc) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "MutateProduct", "products.replaceOne")
	defer func() { end(err) }()

	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		p, err := r.findOne(ctx, id)
		if err != nil {
			return nil, err
		}
		expected := p.Version
		if err := fn(p); err != nil {
			return nil, err
		}
		p.Normalize()
		p.Version = expected + 1

		d, err := toDoc(p)
		if err != nil {
			return nil, err
		}
		res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": id, "version": expected}, d)
		if err != nil {
			return nil, fmt.Errorf("replace product: %w", err)
		}
		if res.MatchedCount == 1 {
			return p, nil
		}
	}
	return nil, apperrors.Conflict("product was modified concurrently, please retry")
}

func (r *ProductRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "DeleteProduct", "products.deleteOne")
	defer func() { end(err) }()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

type statsDoc struct {
	TotalProducts int     `bson:"totalProducts"`
	TotalReviews  int     `bson:"totalReviews"`
	RatingSum     float64 `bson:"ratingSum"`
	OutOfStock    int     `bson:"outOfStock"`
}

func (r *ProductRepository) Stats(ctx context.Context) (_ *domain.Stats, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "ProductStats", "products.aggregate")
	defer func() { end(err) }()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "totalProducts", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "totalReviews", Value: bson.D{{Key: "$sum", Value: "$numReviews"}}},
			{Key: "ratingSum", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$multiply", Value: bson.A{"$rating", "$numReviews"}}}}}},
			{Key: "outOfStock", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$countInStock", 0}}}, 1, 0,
			}}}}}},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}
	defer cur.Close(ctx)

	s := &domain.Stats{}
	if cur.Next(ctx) {
		var d statsDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
		s.TotalProducts, s.TotalReviews, s.OutOfStock = d.TotalProducts, d.TotalReviews, d.OutOfStock
		if d.TotalReviews > 0 {
			s.AverageRating = d.RatingSum / float64(d.TotalReviews)
		}
	}
	return s, cur.Err()
}
