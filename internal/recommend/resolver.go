// Package recommend picks product cards for an assistant reply.
//
// Selection is an ordered pipeline of matchers. Each matcher may add products to
// the shared State until it holds MaxProducts; later matchers never remove what an
// earlier one picked. Lookup failures are logged and the pipeline moves on, so
// Resolve always returns (possibly empty) results.
package recommend

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ashureev/skincare-assistant/internal/domain"
	"github.com/ashureev/skincare-assistant/internal/metrics"
)

// Stage tags a matcher strategy.
type Stage string

const (
	StageExactName     Stage = "exact_name"
	StageTokenMatch    Stage = "token_match"
	StageScoredKeyword Stage = "scored_keyword"
	StageFallback      Stage = "fallback"
)

// Catalog is the subset of the product table the resolver reads.
type Catalog interface {
	FindByName(ctx context.Context, fragment string, exclude []string, limit int) ([]domain.Product, error)
	SearchAnyToken(ctx context.Context, tokens []string, exclude []string, limit int) ([]domain.Product, error)
	ListAll(ctx context.Context) ([]domain.Product, error)
	List(ctx context.Context, exclude []string, limit int) ([]domain.Product, error)
}

// Matcher is one strategy of the pipeline.
type Matcher interface {
	Stage() Stage
	Match(ctx context.Context, st *State) error
}

// State is the per-call working set shared by the matchers.
type State struct {
	Reply    string
	UserText string
	// Candidates are the bold-marked names of the reply.
	Candidates []string
	// Unmatched are the candidates no name lookup has resolved yet.
	Unmatched []string

	limit  int
	chosen []domain.Product
	ids    map[string]bool
	picked map[Stage]int
}

func newState(reply, userText string, limit int) *State {
	candidates := ExtractBoldNames(reply)
	return &State{
		Reply:      reply,
		UserText:   userText,
		Candidates: candidates,
		Unmatched:  append([]string(nil), candidates...),
		limit:      limit,
		chosen:     make([]domain.Product, 0, limit),
		ids:        make(map[string]bool, limit),
		picked:     make(map[Stage]int),
	}
}

// Add appends p unless it is already chosen or the state is full.
func (s *State) Add(stage Stage, p domain.Product) bool {
	if s.Full() || s.ids[p.ID] {
		return false
	}
	s.ids[p.ID] = true
	s.chosen = append(s.chosen, p)
	s.picked[stage]++
	return true
}

// Full reports whether the limit has been reached.
func (s *State) Full() bool { return len(s.chosen) >= s.limit }

// Remaining returns how many more products may be added.
func (s *State) Remaining() int { return s.limit - len(s.chosen) }

// ChosenIDs returns the ids picked so far.
func (s *State) ChosenIDs() []string { return domain.ProductIDs(s.chosen) }

// Chosen returns the products picked so far, in order.
func (s *State) Chosen() []domain.Product { return s.chosen }

// Resolver runs matchers in order until enough products are collected.
type Resolver struct {
	matchers []Matcher
	limit    int
	logger   *slog.Logger
}

// NewResolver returns the standard ExactName → TokenMatch → ScoredKeyword → Fallback pipeline.
func NewResolver(c Catalog, logger *slog.Logger) *Resolver {
	return NewPipeline(domain.MaxProducts, logger,
		ExactName{Catalog: c},
		TokenMatch{Catalog: c},
		ScoredKeyword{Catalog: c},
		Fallback{Catalog: c},
	)
}

// NewPipeline builds a resolver from an explicit matcher list.
func NewPipeline(limit int, logger *slog.Logger, matchers ...Matcher) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = domain.MaxProducts
	}
	return &Resolver{matchers: matchers, limit: limit, logger: logger}
}

// Resolve returns at most limit distinct products for a reply and the user's text.
func (r *Resolver) Resolve(ctx context.Context, reply, userText string) []domain.Product {
	st := newState(reply, userText, r.limit)

	for _, m := range r.matchers {
		if st.Full() {
			break
		}
		if err := m.Match(ctx, st); err != nil {
			metrics.LookupErrors.WithLabelValues(string(m.Stage())).Inc()
			r.logger.Warn("Product lookup failed, continuing with next stage",
				"stage", m.Stage(),
				"error", err)
		}
	}

	stages := make([]string, 0, len(st.picked))
	for stage, n := range st.picked {
		metrics.RecommendedProducts.WithLabelValues(string(stage)).Add(float64(n))
		stages = append(stages, string(stage))
	}
	r.logger.Debug("Resolved recommendations",
		"candidates", len(st.Candidates),
		"products", len(st.chosen),
		"stages", strings.Join(stages, ","))

	return st.Chosen()
}
