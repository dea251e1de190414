package llm

import (
	"errors"
	"testing"

	"github.com/ashureev/skincare-assistant/internal/domain"
	"google.golang.org/genai"
)

func TestBuildGeminiContentsInlinesImage(t *testing.T) {
	img := &domain.Image{Data: []byte{1, 2, 3}, MIMEType: "image/jpeg"}
	contents := buildGeminiContents(Request{UserText: "look", Image: img})

	if len(contents) != 1 {
		t.Fatalf("expected one content, got %d", len(contents))
	}
	parts := contents[0].Parts
	if len(parts) != 2 || parts[0].Text != "look" {
		t.Fatalf("unexpected parts: %+v", parts)
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MIMEType != "image/jpeg" {
		t.Fatalf("expected inline jpeg, got %+v", parts[1])
	}
}

func TestBuildGeminiConfig(t *testing.T) {
	cfg := buildGeminiConfig(Request{System: "persona", MaxTokens: 450})
	if cfg.MaxOutputTokens != 450 {
		t.Errorf("expected 450 max tokens, got %d", cfg.MaxOutputTokens)
	}
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "persona" {
		t.Errorf("expected system instruction, got %+v", cfg.SystemInstruction)
	}
}

func TestGeminiText(t *testing.T) {
	if _, err := geminiText(nil); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse for nil response, got %v", err)
	}
	if _, err := geminiText(&genai.GenerateContentResponse{}); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse without candidates, got %v", err)
	}

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "Use "}, {Text: "**SPF 50**"}}},
		}},
	}
	text, err := geminiText(resp)
	if err != nil {
		t.Fatalf("geminiText failed: %v", err)
	}
	if text != "Use **SPF 50**" {
		t.Errorf("unexpected text %q", text)
	}
}
