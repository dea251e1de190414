package store

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ashureev/skincare-assistant/internal/domain"
	"github.com/google/uuid"
)

//go:embed seed/products.json
var defaultCatalog []byte

// LoadSeed reads a JSON array of products and upserts each one.
// Products without an id get a generated one; products without a name are skipped.
func LoadSeed(ctx context.Context, c Catalog, r io.Reader) (int, error) {
	var products []domain.Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return 0, fmt.Errorf("decode seed: %w", err)
	}

	loaded := 0
	for i := range products {
		p := &products[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			slog.Warn("Skipping seed product without name", "index", i)
			continue
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if err := c.UpsertProduct(ctx, p); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

// SeedDefault loads the bundled catalog when the table is empty.
func SeedDefault(ctx context.Context, c Catalog) (int, error) {
	n, err := c.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	return LoadSeed(ctx, c, bytes.NewReader(defaultCatalog))
}
