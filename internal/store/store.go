// Package store provides the product table and its backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/skincare-assistant/internal/domain"
)

// ErrInvalidTable is returned when the configured table name is not a plain identifier.
var ErrInvalidTable = errors.New("invalid product table name")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Catalog defines the read and seed operations on the product table.
// Every listing is ordered by name, then id.
type Catalog interface {
	// FindByName returns products whose name contains fragment, case-insensitively.
	FindByName(ctx context.Context, fragment string, exclude []string, limit int) ([]domain.Product, error)

	// SearchAnyToken returns products whose name or description contains any of the tokens.
	SearchAnyToken(ctx context.Context, tokens []string, exclude []string, limit int) ([]domain.Product, error)

	// ListAll returns every product.
	ListAll(ctx context.Context) ([]domain.Product, error)

	// List returns up to limit products not in exclude.
	List(ctx context.Context, exclude []string, limit int) ([]domain.Product, error)

	// ListByConcern returns products whose skin concerns contain concern.
	ListByConcern(ctx context.Context, concern string, limit int) ([]domain.Product, error)

	// UpsertProduct creates or updates a product row.
	UpsertProduct(ctx context.Context, p *domain.Product) error

	// Count returns the number of products.
	Count(ctx context.Context) (int, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}

func validateTable(table string) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return nil
}

// likePattern builds a %fragment% pattern with LIKE metacharacters escaped by '\'.
func likePattern(fragment string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(fragment)) + "%"
}

// normalizeTags lower-cases, trims and de-duplicates tag values.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
