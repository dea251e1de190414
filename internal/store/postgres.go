package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/skincare-assistant/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Catalog on a Postgres table with text[] tag columns.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgres connects to Postgres and ensures the product table exists.
func NewPostgres(ctx context.Context, databaseURL, table string) (*PostgresStore, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, table: table}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		product_url TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		skin_concerns TEXT[] NOT NULL DEFAULT '{}',
		key_ingredients TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_name ON %[1]s(name);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_concerns ON %[1]s USING GIN (skin_concerns);
	`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// FindByName returns products whose name matches ILIKE %fragment%.
func (s *PostgresStore) FindByName(ctx context.Context, fragment string, exclude []string, limit int) ([]domain.Product, error) {
	return s.query(ctx, "name ILIKE $1", []any{likePattern(fragment)}, exclude, limit)
}

// SearchAnyToken returns products whose name or description matches any token.
func (s *PostgresStore) SearchAnyToken(ctx context.Context, tokens []string, exclude []string, limit int) ([]domain.Product, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	patterns := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		patterns = append(patterns, likePattern(tok))
	}
	return s.query(ctx, "(name ILIKE ANY($1) OR description ILIKE ANY($1))", []any{patterns}, exclude, limit)
}

// ListAll returns every product.
func (s *PostgresStore) ListAll(ctx context.Context) ([]domain.Product, error) {
	return s.query(ctx, "", nil, nil, 0)
}

// List returns up to limit products not in exclude.
func (s *PostgresStore) List(ctx context.Context, exclude []string, limit int) ([]domain.Product, error) {
	return s.query(ctx, "", nil, exclude, limit)
}

// ListByConcern returns products whose skin_concerns contain concern ("contained-by").
func (s *PostgresStore) ListByConcern(ctx context.Context, concern string, limit int) ([]domain.Product, error) {
	concern = strings.ToLower(strings.TrimSpace(concern))
	return s.query(ctx, "ARRAY[$1]::text[] <@ skin_concerns", []any{concern}, nil, limit)
}

// Count returns the number of products.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// UpsertProduct creates or updates a product row.
func (s *PostgresStore) UpsertProduct(ctx context.Context, p *domain.Product) error {
	query := fmt.Sprintf(`
	INSERT INTO %s (id, name, description, image_url, product_url, category,
		skin_concerns, key_ingredients)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		image_url = EXCLUDED.image_url,
		product_url = EXCLUDED.product_url,
		category = EXCLUDED.category,
		skin_concerns = EXCLUDED.skin_concerns,
		key_ingredients = EXCLUDED.key_ingredients,
		updated_at = now()`, s.table)

	if _, err := s.pool.Exec(ctx, query,
		p.ID, p.Name, p.Description, p.ImageURL, p.ProductURL, p.Category,
		normalizeTags(p.SkinConcerns), normalizeTags(p.KeyIngredients),
	); err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

func (s *PostgresStore) query(ctx context.Context, where string, args []any, exclude []string, limit int) ([]domain.Product, error) {
	var conds []string
	if where != "" {
		conds = append(conds, where)
	}
	if len(exclude) > 0 {
		args = append(args, exclude)
		conds = append(conds, fmt.Sprintf("id <> ALL($%d)", len(args)))
	}

	query := "SELECT " + productColumns + " FROM " + s.table
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name, id"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		var p domain.Product
		err := row.Scan(
			&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.ProductURL, &p.Category,
			&p.SkinConcerns, &p.KeyIngredients,
		)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan product rows: %w", err)
	}
	return products, nil
}
