package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/skincare-assistant/internal/domain"
	"github.com/ashureev/skincare-assistant/internal/shared"
	_ "modernc.org/sqlite"
)

const productColumns = `id, name, description, image_url, product_url, category, skin_concerns, key_ingredients`

// SQLiteStore implements Catalog using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLite creates a new SQLite-backed catalog.
func NewSQLite(dbPath, table string) (*SQLiteStore, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, table: table}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := fmt.Sprintf(`
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		product_url TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		skin_concerns TEXT NOT NULL DEFAULT '[]',
		key_ingredients TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_name ON %[1]s(name);
	`, s.table)
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// FindByName returns products whose name contains fragment, case-insensitively.
func (s *SQLiteStore) FindByName(ctx context.Context, fragment string, exclude []string, limit int) ([]domain.Product, error) {
	where := `LOWER(name) LIKE ? ESCAPE '\'`
	args := []interface{}{likePattern(fragment)}
	return s.query(ctx, where, args, exclude, limit)
}

// SearchAnyToken returns products whose name or description contains any token.
func (s *SQLiteStore) SearchAnyToken(ctx context.Context, tokens []string, exclude []string, limit int) ([]domain.Product, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	clauses := make([]string, 0, len(tokens))
	args := make([]interface{}, 0, len(tokens)*2)
	for _, tok := range tokens {
		clauses = append(clauses, `LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`)
		p := likePattern(tok)
		args = append(args, p, p)
	}
	return s.query(ctx, "("+strings.Join(clauses, " OR ")+")", args, exclude, limit)
}

// ListAll returns every product.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]domain.Product, error) {
	return s.query(ctx, "", nil, nil, 0)
}

// List returns up to limit products not in exclude.
func (s *SQLiteStore) List(ctx context.Context, exclude []string, limit int) ([]domain.Product, error) {
	return s.query(ctx, "", nil, exclude, limit)
}

// ListByConcern returns products whose skin concerns contain concern.
func (s *SQLiteStore) ListByConcern(ctx context.Context, concern string, limit int) ([]domain.Product, error) {
	where := `EXISTS (SELECT 1 FROM json_each(skin_concerns) WHERE json_each.value = ?)`
	args := []interface{}{strings.ToLower(strings.TrimSpace(concern))}
	return s.query(ctx, where, args, nil, limit)
}

// Count returns the number of products.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// UpsertProduct creates or updates a product row.
// Retries with exponential backoff on SQLITE_BUSY.
func (s *SQLiteStore) UpsertProduct(ctx context.Context, p *domain.Product) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.upsertOnce(ctx, p)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms
			slog.Debug("UpsertProduct hit SQLITE_BUSY, retrying",
				"product_id", p.ID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("upsert product %s after %d attempts: %w", p.ID, i+1, err)
	}

	return nil
}

func (s *SQLiteStore) upsertOnce(ctx context.Context, p *domain.Product) error {
	concerns, err := json.Marshal(normalizeTags(p.SkinConcerns))
	if err != nil {
		return fmt.Errorf("encode skin_concerns: %w", err)
	}
	ingredients, err := json.Marshal(normalizeTags(p.KeyIngredients))
	if err != nil {
		return fmt.Errorf("encode key_ingredients: %w", err)
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, name, description, image_url, product_url, category,
		skin_concerns, key_ingredients, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		image_url = excluded.image_url,
		product_url = excluded.product_url,
		category = excluded.category,
		skin_concerns = excluded.skin_concerns,
		key_ingredients = excluded.key_ingredients,
		updated_at = excluded.updated_at`, s.table)

	now := time.Now().Unix()
	if _, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.ImageURL, p.ProductURL, p.Category,
		string(concerns), string(ingredients), now, now,
	); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (s *SQLiteStore) query(ctx context.Context, where string, args []interface{}, exclude []string, limit int) ([]domain.Product, error) {
	var conds []string
	if where != "" {
		conds = append(conds, where)
	}
	if len(exclude) > 0 {
		conds = append(conds, "id NOT IN (?"+strings.Repeat(", ?", len(exclude)-1)+")")
		for _, id := range exclude {
			args = append(args, id)
		}
	}

	query := "SELECT " + productColumns + " FROM " + s.table
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close product rows", "error", closeErr)
		}
	}()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		var concerns, ingredients string
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.ProductURL, &p.Category,
			&concerns, &ingredients,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		if err := json.Unmarshal([]byte(concerns), &p.SkinConcerns); err != nil {
			return nil, fmt.Errorf("decode skin_concerns for %s: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(ingredients), &p.KeyIngredients); err != nil {
			return nil, fmt.Errorf("decode key_ingredients for %s: %w", p.ID, err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}
