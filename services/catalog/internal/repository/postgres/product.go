package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/services/catalog/internal/domain"
	"github.com/utafrali/storefront/services/catalog/internal/repository"
)

// Products are stored as JSONB documents with reviews embedded. The name,
// version and timestamps are mirrored into columns for filtering and order.
const (
	countProductsQuery = `SELECT count(*) FROM products WHERE ($1 = '' OR name ILIKE $2 ESCAPE '\')`

	listProductsQuery = `
		SELECT doc, version FROM products
		WHERE ($1 = '' OR name ILIKE $2 ESCAPE '\')
		ORDER BY created_at ASC, id ASC
		LIMIT $3 OFFSET $4`

	getProductQuery = `SELECT doc, version FROM products WHERE id = $1`

	lockProductQuery = `SELECT doc, version FROM products WHERE id = $1 FOR UPDATE`

	insertProductQuery = `
		INSERT INTO products (id, name, doc, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	updateProductQuery = `
		UPDATE products SET name = $1, doc = $2, version = $3, updated_at = $4
		WHERE id = $5`

	deleteProductQuery = `DELETE FROM products WHERE id = $1`

	statsQuery = `
		SELECT count(*),
		       COALESCE(sum((doc->>'numReviews')::int), 0),
		       COALESCE(sum((doc->>'rating')::float8 * (doc->>'numReviews')::int), 0),
		       count(*) FILTER (WHERE (doc->>'countInStock')::int = 0)
		FROM products`
)

var productColumns = []string{"id", "name", "doc", "version", "created_at", "updated_at"}

// ProductRepository implements repository.ProductRepository on PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

// likePattern escapes LIKE metacharacters so keyword matches literally.
func likePattern(keyword string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(keyword) + "%"
}

// List returns one page of products whose name contains filter.Keyword.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (_ []domain.Product, _ int, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "ListProducts", listProductsQuery)
	defer func() { end(err) }()

	pattern := likePattern(filter.Keyword)

	var total int
	if err := r.db.QueryRow(ctx, countProductsQuery, filter.Keyword, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	products := []domain.Product{}
	if total == 0 || filter.Offset < 0 || filter.Offset >= total {
		return products, total, nil
	}

	rows, err := r.db.Query(ctx, listProductsQuery, filter.Keyword, pattern, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			doc     []byte
			version int64
		)
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		p, err := decodeProduct(doc, version)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, total, nil
}

// GetByID retrieves a product with its reviews.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "GetProduct", getProductQuery)
	defer func() { end(err) }()

	return scanProduct(r.db.QueryRow(ctx, getProductQuery, id), id)
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "CreateProduct", insertProductQuery)
	defer func() { end(err) }()

	p.Normalize()
	if p.Version == 0 {
		p.Version = 1
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}

	if _, err := r.db.Exec(ctx, insertProductQuery, p.ID, p.Name, doc, p.Version, p.CreatedAt, p.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "id", p.ID)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// CreateMany inserts all products with COPY. Postgres aborts the whole copy
// on any failing row.
func (r *ProductRepository) CreateMany(ctx context.Context, products []*domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "CopyProducts", "COPY products")
	defer func() { end(err) }()

	rows := make([][]any, 0, len(products))
	for _, p := range products {
		p.Normalize()
		if p.Version == 0 {
			p.Version = 1
		}
		doc, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal product %s: %w", p.ID, err)
		}
		rows = append(rows, []any{p.ID, p.Name, doc, p.Version, p.CreatedAt, p.UpdatedAt})
	}

	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"products"}, productColumns, pgx.CopyFromRows(rows))
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("bulk insert contains an existing product id")
		}
		return fmt.Errorf("copy products: %w", err)
	}
	if int(n) != len(products) {
		return fmt.Errorf("copy products: inserted %d of %d rows", n, len(products))
	}
	return nil
}

// Mutate locks the row, applies fn and writes the document back in the
// same transaction.
func (r *ProductRepository) Mutate(ctx context.Context, id string, fn repository.MutateFunc) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "MutateProduct", lockProductQuery)
	defer func() { end(err) }()

	var out *domain.Product
	err = database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		p, err := scanProduct(tx.QueryRow(ctx, lockProductQuery, id), id)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}

		p.Normalize()
		p.Version++
		doc, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal product: %w", err)
		}
		if _, err := tx.Exec(ctx, updateProductQuery, p.Name, doc, p.Version, p.UpdatedAt, id); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a product by id.
func (r *ProductRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "DeleteProduct", deleteProductQuery)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, deleteProductQuery, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// Stats aggregates the catalog in one pass over the documents.
func (r *ProductRepository) Stats(ctx context.Context) (_ *domain.Stats, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "ProductStats", statsQuery)
	defer func() { end(err) }()

	var (
		s         domain.Stats
		ratingSum float64
	)
	if err := r.db.QueryRow(ctx, statsQuery).Scan(&s.TotalProducts, &s.TotalReviews, &ratingSum, &s.OutOfStock); err != nil {
		return nil, fmt.Errorf("product stats: %w", err)
	}
	if s.TotalReviews > 0 {
		s.AverageRating = ratingSum / float64(s.TotalReviews)
	}
	return &s, nil
}

func scanProduct(row pgx.Row, id string) (*domain.Product, error) {
	var (
		doc     []byte
		version int64
	)
	if err := row.Scan(&doc, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return decodeProduct(doc, version)
}

func decodeProduct(doc []byte, version int64) (*domain.Product, error) {
	var p domain.Product
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	p.Version = version
	p.Normalize()
	return &p, nil
}

// isUniqueViolation checks for SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "23505")
}
