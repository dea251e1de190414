package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/skincare-assistant/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "catalog.db"), "products")
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProducts(t *testing.T, s Catalog, products ...domain.Product) {
	t.Helper()
	for i := range products {
		if err := s.UpsertProduct(context.Background(), &products[i]); err != nil {
			t.Fatalf("UpsertProduct failed: %v", err)
		}
	}
}

func names(products []domain.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Name)
	}
	return out
}

func TestNewSQLiteRejectsBadTable(t *testing.T) {
	_, err := NewSQLite(filepath.Join(t.TempDir(), "x.db"), "products; DROP TABLE x")
	if !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("expected ErrInvalidTable, got %v", err)
	}
}

func TestFindByNameIsCaseInsensitiveSubstring(t *testing.T) {
	s := newTestStore(t)
	seedProducts(t, s,
		domain.Product{ID: "1", Name: "Niacinamide 10% + Zinc 1% Face Serum"},
		domain.Product{ID: "2", Name: "Vitamin C 10% Face Serum"},
	)
	ctx := context.Background()

	got, err := s.FindByName(ctx, "NIACINAMIDE", nil, 1)
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected niacinamide serum, got %v", names(got))
	}

	got, err = s.FindByName(ctx, "face serum", []string{"1"}, 5)
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("expected exclusion to drop id 1, got %v", names(got))
	}
}

func TestFindByNameEscapesWildcards(t *testing.T) {
	s := newTestStore(t)
	seedProducts(t, s,
		domain.Product{ID: "1", Name: "Retinol 0.3% Serum"},
		domain.Product{ID: "2", Name: "Retinol Cream"},
	)

	got, err := s.FindByName(context.Background(), "0.3%", nil, 0)
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected literal %% match only, got %v", names(got))
	}
}

func TestSearchAnyTokenMatchesNameOrDescription(t *testing.T) {
	s := newTestStore(t)
	seedProducts(t, s,
		domain.Product{ID: "1", Name: "Alpha Serum", Description: "fades dark spots"},
		domain.Product{ID: "2", Name: "Barrier Cream", Description: "calms redness"},
		domain.Product{ID: "3", Name: "Gentle Cleanser", Description: "daily wash"},
	)

	got, err := s.SearchAnyToken(context.Background(), []string{"spots", "cream"}, nil, 0)
	if err != nil {
		t.Fatalf("SearchAnyToken failed: %v", err)
	}
	if strings.Join(names(got), ",") != "Alpha Serum,Barrier Cream" {
		t.Fatalf("unexpected matches: %v", names(got))
	}

	got, err = s.SearchAnyToken(context.Background(), nil, nil, 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no matches for empty tokens, got %v, %v", names(got), err)
	}
}

func TestListByConcernAndTagsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedProducts(t, s,
		domain.Product{ID: "1", Name: "A", SkinConcerns: []string{"Acne", " oily skin ", "acne"}, KeyIngredients: []string{"Niacinamide"}},
		domain.Product{ID: "2", Name: "B", SkinConcerns: []string{"dryness"}},
	)

	got, err := s.ListByConcern(context.Background(), "ACNE", 10)
	if err != nil {
		t.Fatalf("ListByConcern failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected product 1, got %v", names(got))
	}
	if strings.Join(got[0].SkinConcerns, ",") != "acne,oily skin" {
		t.Errorf("expected normalized concerns, got %v", got[0].SkinConcerns)
	}
	if strings.Join(got[0].KeyIngredients, ",") != "niacinamide" {
		t.Errorf("expected normalized ingredients, got %v", got[0].KeyIngredients)
	}
}

func TestListHonorsExcludeAndLimit(t *testing.T) {
	s := newTestStore(t)
	seedProducts(t, s,
		domain.Product{ID: "c", Name: "Charlie"},
		domain.Product{ID: "a", Name: "Alpha"},
		domain.Product{ID: "b", Name: "Bravo"},
	)

	got, err := s.List(context.Background(), []string{"a"}, 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Bravo" {
		t.Fatalf("expected Bravo, got %v", names(got))
	}

	all, err := s.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if strings.Join(names(all), ",") != "Alpha,Bravo,Charlie" {
		t.Fatalf("expected name order, got %v", names(all))
	}
}

func TestUpsertProductUpdatesExistingRow(t *testing.T) {
	s := newTestStore(t)
	seedProducts(t, s, domain.Product{ID: "1", Name: "Old"})
	seedProducts(t, s, domain.Product{ID: "1", Name: "New", Description: "updated"})

	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one row, got %d", n)
	}
	all, _ := s.ListAll(context.Background())
	if all[0].Name != "New" || all[0].Description != "updated" {
		t.Fatalf("expected updated row, got %+v", all[0])
	}
}

func TestSeedDefaultOnlyWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loaded, err := SeedDefault(ctx, s)
	if err != nil {
		t.Fatalf("SeedDefault failed: %v", err)
	}
	if loaded == 0 {
		t.Fatal("expected bundled catalog to load")
	}

	again, err := SeedDefault(ctx, s)
	if err != nil {
		t.Fatalf("SeedDefault failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected no reload on non-empty table, got %d", again)
	}
}

func TestLoadSeedAssignsIDsAndSkipsNameless(t *testing.T) {
	s := newTestStore(t)
	seed := `[{"name": "Toner"}, {"name": "  "}, {"id": "x", "name": "Mask"}]`

	loaded, err := LoadSeed(context.Background(), s, strings.NewReader(seed))
	if err != nil {
		t.Fatalf("LoadSeed failed: %v", err)
	}
	if loaded != 2 {
		t.Fatalf("expected 2 products loaded, got %d", loaded)
	}
	all, _ := s.ListAll(context.Background())
	for _, p := range all {
		if p.ID == "" {
			t.Fatalf("expected generated id for %s", p.Name)
		}
	}
}
