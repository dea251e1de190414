// Minimalist Skincare Assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/skincare-assistant/internal/api"
	"github.com/ashureev/skincare-assistant/internal/assistant"
	"github.com/ashureev/skincare-assistant/internal/chat"
	"github.com/ashureev/skincare-assistant/internal/config"
	"github.com/ashureev/skincare-assistant/internal/identity"
	"github.com/ashureev/skincare-assistant/internal/llm"
	"github.com/ashureev/skincare-assistant/internal/metrics"
	"github.com/ashureev/skincare-assistant/internal/middleware"
	"github.com/ashureev/skincare-assistant/internal/recommend"
	"github.com/ashureev/skincare-assistant/internal/store"
	"github.com/ashureev/skincare-assistant/internal/ui"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(),
		"catalog_driver", cfg.Catalog.Driver, "llm_provider", cfg.LLM.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	catalog, err := store.Open(ctx, cfg.Catalog)
	if err != nil {
		slog.Error("Failed to initialize catalog", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := catalog.Close(); closeErr != nil {
			slog.Error("Failed to close catalog", "error", closeErr)
		}
	}()

	if err := catalog.Ping(ctx); err != nil {
		slog.Error("Catalog health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Catalog connected")

	if err := seedCatalog(ctx, catalog, cfg.Catalog); err != nil {
		slog.Error("Failed to seed catalog", "error", err)
		os.Exit(1)
	}

	model, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	slog.Info("LLM client initialized", "provider", model.Name())

	conversationLogger, err := assistant.NewConversationLogger(cfg.ConversationLog, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	rateLimiter := assistant.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer rateLimiter.Stop()

	// Initialize services.
	resolver := recommend.NewResolver(catalog, logger)
	service := assistant.NewService(model, resolver, cfg.LLM.MaxTokens, cfg.MaxImageBytes, logger)
	registry := chat.NewRegistry(service, cfg.MaxImageBytes)

	// Initialize handlers.
	catalogHandler := api.NewCatalogHandler(catalog)
	assistantHandler := assistant.NewHandler(service, rateLimiter, conversationLogger, assistant.Options{
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		AllowedOrigins:      cfg.AllowedOrigins(),
		IsDev:               cfg.IsDevelopment(),
	})
	uiHandler, err := ui.NewHandler(registry, conversationLogger, ui.Options{
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		MaxImageBytes:       cfg.MaxImageBytes,
		IsDev:               cfg.IsDevelopment(),
		RateLimiter:         rateLimiter,
	})
	if err != nil {
		slog.Error("Failed to initialize web UI", "error", err)
		os.Exit(1)
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	r.Handle("/metrics", metrics.Handler())
	catalogHandler.RegisterRoutes(r)

	// Routes with an anonymous identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.IsDevelopment()))
		assistantHandler.RegisterRoutes(r)
		uiHandler.RegisterRoutes(r)
	})

	// Create server.
	// Websocket chats stay open, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start session sweeper.
	registry.StartSweeper(ctx, cfg.SessionTTL)
	slog.Info("Session sweeper started", "session_ttl", cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return
	}

	slog.Info("Server stopped successfully")
}

// seedCatalog loads CATALOG_SEED_PATH when set, otherwise the bundled
// products when the table is empty and default seeding is on.
func seedCatalog(ctx context.Context, catalog store.Catalog, cfg config.CatalogConfig) error {
	if cfg.SeedPath != "" {
		f, err := os.Open(cfg.SeedPath)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		n, err := store.LoadSeed(ctx, catalog, f)
		if err != nil {
			return err
		}
		slog.Info("Catalog seeded from file", "path", cfg.SeedPath, "products", n)
		return nil
	}
	if !cfg.SeedDefault {
		return nil
	}
	n, err := store.SeedDefault(ctx, catalog)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("Catalog seeded with bundled products", "products", n)
	}
	return nil
}
