package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agroquote/quoter/internal/canon"
	"agroquote/quoter/internal/domain"
)

// ErrProductNotFound is returned when no product matches exactly.
var ErrProductNotFound = errors.New("product not found")

// ProductRepository is the display reference for products. Lookups are
// exact: by SKU, or by name ignoring case and accents. It never prices.
type ProductRepository interface {
	FindBySKU(ctx context.Context, sku string) (*domain.Product, error)
	FindByName(ctx context.Context, name string) (*domain.Product, error)
	ReplaceProducts(ctx context.Context, products []domain.Product) error
}

// NameKey folds a product name for the exact-name lookup.
func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(canon.StripAccents(name)), " "))
}

// ProductsFromRecords derives the display reference from feed records.
func ProductsFromRecords(records []domain.PriceRecord) []domain.Product {
	products := make([]domain.Product, 0, len(records))
	for _, r := range records {
		products = append(products, domain.Product{
			SKU:          strings.TrimSpace(r.SKU),
			Name:         r.Product,
			Presentation: r.Presentation,
		})
	}
	return products
}

type productRepository struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) ProductRepository {
	return &productRepository{
		db: db,
	}
}

// EnsureSchema creates the products table when it does not exist.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	query := `
	CREATE TABLE IF NOT EXISTS products (
		sku          TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		name_key     TEXT NOT NULL,
		presentation TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS products_name_key_idx ON products (name_key)`
	if _, err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create products table: %w", err)
	}
	return nil
}

func (r *productRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	query := `SELECT sku, name, presentation FROM products WHERE sku = $1`
	return r.queryOne(ctx, query, strings.TrimSpace(sku))
}

func (r *productRepository) FindByName(ctx context.Context, name string) (*domain.Product, error) {
	query := `SELECT sku, name, presentation FROM products WHERE name_key = $1 ORDER BY sku LIMIT 1`
	return r.queryOne(ctx, query, NameKey(name))
}

func (r *productRepository) queryOne(ctx context.Context, query string, arg string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRow(ctx, query, arg).Scan(&p.SKU, &p.Name, &p.Presentation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return &p, nil
}

// ReplaceProducts overwrites the whole reference in one transaction.
func (r *productRepository) ReplaceProducts(ctx context.Context, products []domain.Product) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("failed to clear products: %w", err)
	}

	rows := make([][]any, 0, len(products))
	seen := make(map[string]bool, len(products))
	for _, p := range products {
		if p.SKU == "" || seen[p.SKU] {
			continue
		}
		seen[p.SKU] = true
		rows = append(rows, []any{p.SKU, p.Name, NameKey(p.Name), p.Presentation})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"products"},
		[]string{"sku", "name", "name_key", "presentation"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to save products: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit products: %w", err)
	}
	return nil
}

// MemoryProductRepository keeps the reference in process. It is used when
// the database is disabled.
type MemoryProductRepository struct {
	mu     sync.RWMutex
	bySKU  map[string]domain.Product
	byName map[string]domain.Product
}

func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		bySKU:  make(map[string]domain.Product),
		byName: make(map[string]domain.Product),
	}
}

func (r *MemoryProductRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.bySKU[strings.TrimSpace(sku)]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (r *MemoryProductRepository) FindByName(ctx context.Context, name string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byName[NameKey(name)]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (r *MemoryProductRepository) ReplaceProducts(ctx context.Context, products []domain.Product) error {
	sorted := append([]domain.Product(nil), products...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SKU < sorted[j].SKU })

	bySKU := make(map[string]domain.Product, len(sorted))
	byName := make(map[string]domain.Product, len(sorted))
	for _, p := range sorted {
		if p.SKU == "" {
			continue
		}
		if _, ok := bySKU[p.SKU]; !ok {
			bySKU[p.SKU] = p
		}
		key := NameKey(p.Name)
		if _, ok := byName[key]; !ok && key != "" {
			byName[key] = p
		}
	}

	r.mu.Lock()
	r.bySKU, r.byName = bySKU, byName
	r.mu.Unlock()
	return nil
}
