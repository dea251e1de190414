package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/skincare-assistant/internal/domain"
)

// Session drives one conversation: it validates turns, records them in the
// transcript and asks the backend for replies.
type Session struct {
	ID         string
	Transcript *Transcript

	backend       Backend
	maxImageBytes int64

	mu       sync.Mutex
	lastSeen time.Time
}

// NewSession creates a session with a fresh transcript.
func NewSession(id string, backend Backend, maxImageBytes int64) *Session {
	return &Session{
		ID:            id,
		Transcript:    NewTranscript(),
		backend:       backend,
		maxImageBytes: maxImageBytes,
		lastSeen:      time.Now(),
	}
}

// Send runs one turn. Validation errors are returned without touching the
// transcript. Once the user message is recorded, the transcript gains either
// the assistant reply or exactly one Apology, and the backend error is returned.
func (s *Session) Send(ctx context.Context, text string, img *domain.Image) (*domain.ChatResponse, error) {
	s.touch()

	req := domain.ChatRequest{Message: strings.TrimSpace(text), Image: img}
	if err := ValidateTurn(req, s.maxImageBytes); err != nil {
		return nil, err
	}

	imageURL := ""
	if img != nil {
		imageURL = img.DataURL()
	}
	s.Transcript.AppendUser(req.Message, imageURL)

	resp, err := s.backend.Ask(ctx, req)
	if err != nil {
		s.Transcript.AppendAssistant(Apology, nil)
		return nil, err
	}
	s.Transcript.AppendAssistant(resp.Response, resp.Products)
	return resp, nil
}

// Reset clears the transcript back to the greeting.
func (s *Session) Reset() {
	s.touch()
	s.Transcript.Reset()
}

// LastSeen returns the time of the last Send or Reset.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}
