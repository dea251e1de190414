package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ashureev/skincare-assistant/internal/domain"
)

// Keyword weights used by ScoredKeyword.
const (
	ConcernWeight     = 5
	IngredientWeight  = 3
	DescriptionWeight = 2
)

// ExactName looks up each bold candidate as a case-insensitive substring of product names.
type ExactName struct {
	Catalog Catalog
}

// Stage implements Matcher.
func (ExactName) Stage() Stage { return StageExactName }

// Match keeps the first hit per candidate and records the misses in st.Unmatched.
func (m ExactName) Match(ctx context.Context, st *State) error {
	var unmatched []string
	var errs []error
	for i, cand := range st.Candidates {
		if st.Full() {
			unmatched = append(unmatched, st.Candidates[i:]...)
			break
		}
		hits, err := m.Catalog.FindByName(ctx, cand, st.ChosenIDs(), 1)
		if err != nil {
			errs = append(errs, fmt.Errorf("find %q: %w", cand, err))
		}
		if len(hits) == 0 {
			unmatched = append(unmatched, cand)
			continue
		}
		st.Add(StageExactName, hits[0])
	}
	st.Unmatched = unmatched
	return errors.Join(errs...)
}

// TokenMatch searches name and description for any word of each unmatched candidate.
type TokenMatch struct {
	Catalog Catalog
}

// Stage implements Matcher.
func (TokenMatch) Stage() Stage { return StageTokenMatch }

// Match keeps the first hit per unmatched candidate.
func (m TokenMatch) Match(ctx context.Context, st *State) error {
	var errs []error
	for _, cand := range st.Unmatched {
		if st.Full() {
			break
		}
		tokens := nameTokens(cand)
		if len(tokens) == 0 {
			continue
		}
		hits, err := m.Catalog.SearchAnyToken(ctx, tokens, st.ChosenIDs(), 1)
		if err != nil {
			errs = append(errs, fmt.Errorf("search %v: %w", tokens, err))
			continue
		}
		if len(hits) > 0 {
			st.Add(StageTokenMatch, hits[0])
		}
	}
	return errors.Join(errs...)
}

// ScoredKeyword ranks every product by keyword hits from the user's text.
type ScoredKeyword struct {
	Catalog Catalog
}

// Stage implements Matcher.
func (ScoredKeyword) Stage() Stage { return StageScoredKeyword }

// Match adds the highest scoring products; ties keep table order.
func (m ScoredKeyword) Match(ctx context.Context, st *State) error {
	keywords := Keywords(st.UserText)
	if len(keywords) == 0 {
		return nil
	}

	all, err := m.Catalog.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}

	type scored struct {
		product domain.Product
		score   int
	}
	var ranked []scored
	for _, p := range all {
		if s := Score(p, keywords); s > 0 {
			ranked = append(ranked, scored{product: p, score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	for _, r := range ranked {
		if st.Full() {
			break
		}
		st.Add(StageScoredKeyword, r.product)
	}
	return nil
}

// Score sums the weighted keyword hits of a product: every skin concern containing a
// keyword counts ConcernWeight, every key ingredient IngredientWeight, and a
// description containing it DescriptionWeight.
func Score(p domain.Product, keywords []string) int {
	description := strings.ToLower(p.Description)
	total := 0
	for _, kw := range keywords {
		for _, c := range p.SkinConcerns {
			if strings.Contains(strings.ToLower(c), kw) {
				total += ConcernWeight
			}
		}
		for _, ing := range p.KeyIngredients {
			if strings.Contains(strings.ToLower(ing), kw) {
				total += IngredientWeight
			}
		}
		if strings.Contains(description, kw) {
			total += DescriptionWeight
		}
	}
	return total
}

// Fallback pads the result with arbitrary rows, marked as alternatives.
type Fallback struct {
	Catalog Catalog
}

// Stage implements Matcher.
func (Fallback) Stage() Stage { return StageFallback }

// Match fills the remaining slots from the table.
func (m Fallback) Match(ctx context.Context, st *State) error {
	rows, err := m.Catalog.List(ctx, st.ChosenIDs(), st.Remaining())
	if err != nil {
		return fmt.Errorf("list fallback products: %w", err)
	}
	for _, p := range rows {
		p.IsAlternative = true
		st.Add(StageFallback, p)
	}
	return nil
}
