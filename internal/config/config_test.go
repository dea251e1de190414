package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.MaxImageBytes != 4<<20 {
		t.Errorf("expected 4MiB image limit, got %d", cfg.MaxImageBytes)
	}
	if cfg.LLM.Provider != ProviderOpenAI || cfg.LLM.OpenAIModel != "gpt-4o" {
		t.Errorf("unexpected LLM defaults: %+v", cfg.LLM)
	}
	if cfg.LLM.MaxTokens != 400 {
		t.Errorf("expected 400 max tokens, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.Catalog.Driver != DriverSQLite {
		t.Errorf("expected sqlite driver, got %s", cfg.Catalog.Driver)
	}
	if cfg.ConversationLog.MaxOpenFiles != 64 {
		t.Errorf("expected 64 open conversation log files, got %d", cfg.ConversationLog.MaxOpenFiles)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development mode without FRONTEND_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("GOOGLE_API_KEY", "g-test")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("LLM_MAX_TOKENS", "500")
	t.Setenv("FRONTEND_URL", "https://shop.example.com, https://www.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != ProviderGemini {
		t.Errorf("expected gemini provider, got %s", cfg.LLM.Provider)
	}
	if cfg.RateLimit.WindowDuration != 30*time.Second {
		t.Errorf("expected 30s window, got %s", cfg.RateLimit.WindowDuration)
	}
	if cfg.LLM.MaxTokens != 500 {
		t.Errorf("expected 500 max tokens, got %d", cfg.LLM.MaxTokens)
	}
	origins := cfg.AllowedOrigins()
	if len(origins) != 2 || origins[1] != "https://www.example.com" {
		t.Errorf("unexpected origins: %v", origins)
	}
}

func TestLoadRejectsMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected OPENAI_API_KEY error, got %v", err)
	}
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CATALOG_DRIVER", "postgres")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}
