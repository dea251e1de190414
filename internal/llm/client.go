// Package llm talks to hosted chat-completion providers.
package llm

import (
	"context"
	"errors"

	"github.com/ashureev/skincare-assistant/internal/domain"
)

var (
	// ErrUpstream is returned when the provider answers with a non-success status.
	ErrUpstream = errors.New("llm upstream error")
	// ErrMalformedResponse is returned when the provider payload has no usable reply.
	ErrMalformedResponse = errors.New("llm response malformed")
)

// Client is the interface for chat-completion providers.
type Client interface {
	// Complete sends one system+user exchange and returns the assistant's text.
	Complete(ctx context.Context, req Request) (string, error)
	// Name identifies the provider in logs and metrics.
	Name() string
}

// Request is a single-turn completion request.
type Request struct {
	System    string
	UserText  string
	Image     *domain.Image
	MaxTokens int
}
