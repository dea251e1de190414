package assistant

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ashureev/skincare-assistant/internal/chat"
	"github.com/ashureev/skincare-assistant/internal/domain"
	"github.com/ashureev/skincare-assistant/internal/llm"
	"github.com/ashureev/skincare-assistant/internal/recommend"
	"github.com/ashureev/skincare-assistant/internal/store"
)

type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	last  llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	return f.reply, f.err
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecommender struct {
	products []domain.Product
	gotReply string
	gotUser  string
}

func (f *fakeRecommender) Resolve(_ context.Context, reply, userText string) []domain.Product {
	f.gotReply = reply
	f.gotUser = userText
	return f.products
}

func TestServiceAskTextTurn(t *testing.T) {
	model := &fakeLLM{reply: "Try **Niacinamide**."}
	rec := &fakeRecommender{products: []domain.Product{{ID: "nia"}}}
	svc := NewService(model, rec, 0, 0, nil)

	resp, err := svc.Ask(context.Background(), domain.ChatRequest{Message: "oily skin"})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if resp.Response != "Try **Niacinamide**." || len(resp.Products) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
	if model.last.System != SystemPrompt || model.last.MaxTokens != 400 || model.last.UserText != "oily skin" {
		t.Errorf("unexpected llm request %+v", model.last)
	}
	if rec.gotReply != resp.Response || rec.gotUser != "oily skin" {
		t.Errorf("resolver got reply=%q user=%q", rec.gotReply, rec.gotUser)
	}
}

func TestServiceAskImageOnlyUsesDefaultQuestion(t *testing.T) {
	model := &fakeLLM{reply: "ok"}
	svc := NewService(model, &fakeRecommender{}, 400, 0, nil)

	img := &domain.Image{Data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}}
	if _, err := svc.Ask(context.Background(), domain.ChatRequest{Image: img}); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if model.last.UserText != DefaultImageQuestion {
		t.Errorf("expected default question, got %q", model.last.UserText)
	}
	if model.last.Image == nil || model.last.Image.MIMEType != "image/jpeg" {
		t.Errorf("expected sniffed jpeg image, got %+v", model.last.Image)
	}
}

func TestServiceAskValidatesBeforeCallingModel(t *testing.T) {
	model := &fakeLLM{reply: "ok"}
	svc := NewService(model, &fakeRecommender{}, 400, 4<<20, nil)

	_, err := svc.Ask(context.Background(), domain.ChatRequest{})
	if !errors.Is(err, chat.ErrEmptyTurn) {
		t.Fatalf("expected ErrEmptyTurn, got %v", err)
	}
	_, err = svc.Ask(context.Background(), domain.ChatRequest{
		Message: "look",
		Image:   &domain.Image{Data: make([]byte, 5<<20), MIMEType: "image/jpeg"},
	})
	if !errors.Is(err, chat.ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
	if model.callCount() != 0 {
		t.Fatalf("expected no model calls, got %d", model.callCount())
	}
}

func TestServiceAskWrapsModelErrors(t *testing.T) {
	rec := &fakeRecommender{}
	svc := NewService(&fakeLLM{err: llm.ErrMalformedResponse}, rec, 400, 0, nil)

	_, err := svc.Ask(context.Background(), domain.ChatRequest{Message: "hi"})
	if !errors.Is(err, llm.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if rec.gotReply != "" {
		t.Error("expected resolver not to run after a model failure")
	}
}

func TestServiceWithSeededCatalog(t *testing.T) {
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "catalog.db"), "products")
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer func() { _ = s.Close() }()
	if _, err := store.SeedDefault(context.Background(), s); err != nil {
		t.Fatalf("SeedDefault failed: %v", err)
	}

	model := &fakeLLM{reply: "For acne:\n1. **Salicylic + LHA 2% Cleanser**\n2. **Niacinamide 10% + Zinc 1% Face Serum**\nTip: be patient."}
	svc := NewService(model, recommend.NewResolver(s, nil), 400, 0, nil)

	resp, err := svc.Ask(context.Background(), domain.ChatRequest{Message: "I have acne and need a routine"})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if len(resp.Products) != 3 {
		t.Fatalf("expected three products, got %v", domain.ProductIDs(resp.Products))
	}
	if resp.Products[0].ID != "salicylic-lha-2" || resp.Products[1].ID != "niacinamide-10-zinc-1" {
		t.Errorf("expected bold names first, got %v", domain.ProductIDs(resp.Products))
	}
	if resp.Products[2].ID != "alpha-arbutin-2" {
		t.Errorf("expected acne-mark product from keyword scoring, got %v", domain.ProductIDs(resp.Products))
	}
}
