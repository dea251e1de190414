// Package assistant answers chat turns: it calls the language model with the
// fixed system prompt and attaches product recommendations to the reply.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/skincare-assistant/internal/chat"
	"github.com/ashureev/skincare-assistant/internal/domain"
	"github.com/ashureev/skincare-assistant/internal/llm"
	"github.com/ashureev/skincare-assistant/internal/metrics"
)

const defaultMaxTokens = 400

// Recommender picks products for a reply.
type Recommender interface {
	Resolve(ctx context.Context, reply, userText string) []domain.Product
}

// Service answers one turn at a time. It keeps no per-turn state.
type Service struct {
	llm           llm.Client
	recommender   Recommender
	maxTokens     int
	maxImageBytes int64
	logger        *slog.Logger
}

// NewService creates an assistant service.
func NewService(client llm.Client, recommender Recommender, maxTokens int, maxImageBytes int64, logger *slog.Logger) *Service {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		llm:           client,
		recommender:   recommender,
		maxTokens:     maxTokens,
		maxImageBytes: maxImageBytes,
		logger:        logger,
	}
}

// Ask validates the turn, asks the model and resolves product recommendations.
// Validation errors are the chat package's sentinel errors; model failures wrap
// llm.ErrUpstream or llm.ErrMalformedResponse.
func (s *Service) Ask(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if err := chat.ValidateTurn(req, s.maxImageBytes); err != nil {
		return nil, err
	}

	userText := strings.TrimSpace(req.Message)
	if userText == "" {
		userText = DefaultImageQuestion
	}

	start := time.Now()
	reply, err := s.llm.Complete(ctx, llm.Request{
		System:    SystemPrompt,
		UserText:  userText,
		Image:     req.Image,
		MaxTokens: s.maxTokens,
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.LLMDuration.WithLabelValues(s.llm.Name(), outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("complete with %s: %w", s.llm.Name(), err)
	}

	products := s.recommender.Resolve(ctx, reply, req.Message)

	s.logger.Info("Assistant turn completed",
		"provider", s.llm.Name(),
		"has_image", req.Image != nil,
		"reply_length", len(reply),
		"products", len(products),
		"duration", time.Since(start))

	return &domain.ChatResponse{Response: reply, Products: products}, nil
}

var _ chat.Backend = (*Service)(nil)
