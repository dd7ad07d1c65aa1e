package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cornjacket/catalog-ingest/internal/services/ingestion"
	"github.com/cornjacket/catalog-ingest/internal/services/products"
	"github.com/cornjacket/catalog-ingest/internal/shared/domain/catalog"
)

const productColumns = `id, sku, name, COALESCE(description, ''), price, is_active, created_at, updated_at`

// CatalogRepo implements ingestion.CatalogStore and products.Store using PostgreSQL.
type CatalogRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewCatalogRepo creates a new CatalogRepo.
func NewCatalogRepo(pool *pgxpool.Pool, logger *slog.Logger) *CatalogRepo {
	return &CatalogRepo{
		pool:   pool,
		logger: logger.With("repository", "products"),
	}
}

// InBatch runs fn in one transaction, committed only when fn succeeds.
func (r *CatalogRepo) InBatch(ctx context.Context, fn func(tx ingestion.CatalogTx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&catalogTx{tx: tx})
	})
}

type catalogTx struct {
	tx pgx.Tx
}

func (c *catalogTx) ExistingSKUs(ctx context.Context, skus []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(skus))
	if len(skus) == 0 {
		return existing, nil
	}

	rows, err := c.tx.Query(ctx, `SELECT sku FROM products WHERE sku = ANY($1)`, skus)
	if err != nil {
		return nil, fmt.Errorf("failed to look up skus: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			return nil, fmt.Errorf("failed to scan sku: %w", err)
		}
		existing[sku] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating skus: %w", err)
	}
	return existing, nil
}

func (c *catalogTx) InsertItems(ctx context.Context, records []catalog.Record, at time.Time) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	skus := make([]string, len(records))
	names := make([]string, len(records))
	descriptions := make([]string, len(records))
	prices := make([]pgtype.Numeric, len(records))
	for i, rec := range records {
		skus[i] = rec.SKU
		names[i] = rec.Name
		descriptions[i] = rec.Description
		prices[i] = rec.Price
	}

	result, err := c.tx.Exec(ctx, `
		INSERT INTO products (sku, name, description, price, is_active, created_at, updated_at)
		SELECT t.sku, t.name, NULLIF(t.description, ''), COALESCE(t.price, 0), TRUE, $5::timestamptz, $5::timestamptz
		FROM unnest($1::text[], $2::text[], $3::text[], $4::numeric[]) AS t(sku, name, description, price)
		ON CONFLICT (sku) DO NOTHING`,
		skus, names, descriptions, prices, at,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert products: %w", err)
	}
	return result.RowsAffected(), nil
}

func (c *catalogTx) UpdateItems(ctx context.Context, updates []catalog.ItemUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	skus := make([]string, len(updates))
	names := make([]string, len(updates))
	descriptions := make([]string, len(updates))
	prices := make([]pgtype.Numeric, len(updates))
	times := make([]time.Time, len(updates))
	for i, u := range updates {
		skus[i] = u.SKU
		names[i] = u.Name
		descriptions[i] = u.Description
		prices[i] = u.Price
		times[i] = u.UpdatedAt
	}

	result, err := c.tx.Exec(ctx, `
		UPDATE products AS p
		SET name = u.name,
		    description = NULLIF(u.description, ''),
		    price = COALESCE(u.price, 0),
		    updated_at = u.updated_at
		FROM unnest($1::text[], $2::text[], $3::text[], $4::numeric[], $5::timestamptz[])
		     AS u(sku, name, description, price, updated_at)
		WHERE p.sku = u.sku`,
		skus, names, descriptions, prices, times,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update products: %w", err)
	}
	return result.RowsAffected(), nil
}

// Create inserts a product and fills in its id.
func (r *CatalogRepo) Create(ctx context.Context, item *catalog.Item) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (sku, name, description, price, is_active, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), COALESCE($4::numeric, 0), $5, $6, $7)
		RETURNING id`,
		item.SKU, item.Name, item.Description, item.Price, item.IsActive, item.CreatedAt, item.UpdatedAt,
	).Scan(&item.ID)
	if isUniqueViolation(err) {
		return catalog.ErrDuplicateSKU
	}
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// Get retrieves a product by id.
func (r *CatalogRepo) Get(ctx context.Context, id int64) (*catalog.Item, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

// Update writes the mutable fields of item.
func (r *CatalogRepo) Update(ctx context.Context, item *catalog.Item) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE products
		SET name = $2, description = NULLIF($3, ''), price = COALESCE($4::numeric, 0), is_active = $5, updated_at = $6
		WHERE id = $1`,
		item.ID, item.Name, item.Description, item.Price, item.IsActive, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if result.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// Delete removes a product and returns the deleted row.
func (r *CatalogRepo) Delete(ctx context.Context, id int64) (*catalog.Item, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `DELETE FROM products WHERE id = $1 RETURNING `+productColumns, id))
}

// List returns one page of products newest first and the total match count.
// Search is a case-insensitive substring match over sku, name and description.
func (r *CatalogRepo) List(ctx context.Context, f products.ListFilter) ([]catalog.Item, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Search != "" {
		args = append(args, "%"+likeEscaper.Replace(f.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(sku ILIKE $%d OR name ILIKE $%d OR description ILIKE $%d)", n, n, n))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}
	return items, total, nil
}

// DeleteAll removes every product.
func (r *CatalogRepo) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM products`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete products: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *CatalogRepo) scanOne(row pgx.Row) (*catalog.Item, error) {
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	return item, err
}

func scanItem(row pgx.Row) (*catalog.Item, error) {
	var item catalog.Item
	err := row.Scan(
		&item.ID,
		&item.SKU,
		&item.Name,
		&item.Description,
		&item.Price,
		&item.IsActive,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	return &item, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

var (
	_ ingestion.CatalogStore = (*CatalogRepo)(nil)
	_ products.Store         = (*CatalogRepo)(nil)
)
