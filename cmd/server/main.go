package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gwi.com/traegpt/internal/api"
	"gwi.com/traegpt/internal/auth"
	"gwi.com/traegpt/internal/config"
	"gwi.com/traegpt/internal/core"
	"gwi.com/traegpt/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Setup logging
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	if cfg.LogLevel == "DEBUG" {
		slog.Debug("service starting in DEBUG mode")
	}

	ctx := context.Background()

	// Initialize database store (migrations run on open)
	backend, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer backend.Close()

	// Persistence adapters share the backend
	sessions := store.NewSessionStore(backend, cfg.StoreTimeout)
	preferences := store.NewPreferenceStore(backend, cfg.StoreTimeout)
	files := store.NewObjectStore(backend, cfg.PublicBaseURL, cfg.UploadTimeout)

	// Initialize LLM service
	llmService, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ChatTimeout)
	if err != nil {
		return err
	}
	defer llmService.Close()

	// Pick the chat completion provider
	together := core.NewTogetherClient(cfg.TogetherAPIKey, cfg.TogetherAPIURL, cfg.TogetherModel, cfg.ChatTimeout)
	var completer core.Completer = together
	if cfg.ChatProvider == config.ProviderGemini {
		completer = llmService
	}

	// Pick the web search provider
	var searcher core.Searcher = core.NewGoogleSearchClient(cfg.GoogleAPIKey, cfg.GoogleCSEID, cfg.SearchTimeout)
	if cfg.SearchProvider == config.SearchDuckDuckGo {
		searcher = core.NewDuckDuckGoClient(cfg.SearchTimeout)
	}

	// Initialize vision service; the "gemini" endpoint reuses the LLM service
	vision, err := core.NewVisionService(cfg.HuggingFaceAPIKey, cfg.HuggingFaceAPIURL, cfg.VisionEndpoints, cfg.VisionTimeout, llmService)
	if err != nil {
		return fmt.Errorf("initialize vision service: %w", err)
	}

	// Prompt token counting is optional
	tokens, err := core.NewTokenCounter(cfg.TokenEncoding)
	if err != nil {
		return fmt.Errorf("initialize token counter: %w", err)
	}

	// Initialize Chat service
	chatService := core.NewChatService(core.Deps{
		Completer:           completer,
		Searcher:            searcher,
		Uploader:            files,
		Analyzer:            vision,
		Sessions:            sessions,
		Preferences:         preferences,
		Tokens:              tokens,
		SearchResults:       cfg.SearchNumResults,
		SaveDebounce:        cfg.SaveDebounce,
		ResponseTimeDisplay: config.ResponseTimeDisplay,
		SendTimeout:         cfg.SendBudget(),
		IdleTimeout:         cfg.ConversationIdleTimeout,
	})
	defer chatService.Close()

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(api.Services{
		Chat:           chatService,
		Signer:         auth.NewSigner(cfg.JWTSecret, config.TokenLifetime),
		Completions:    together,
		Search:         searcher,
		Vision:         vision,
		Files:          files,
		Preferences:    preferences,
		SearchResults:  cfg.SearchNumResults,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout(), // outlasts the slowest chat turn
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", serverAddr, "chatProvider", cfg.ChatProvider, "searchProvider", cfg.SearchProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("listen on %s: %w", serverAddr, err)
	case <-quit:
	}
	slog.Info("shutting down server")

	// Give active connections time to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Pending autosaves are flushed by chatService.Close before the backend closes.
	slog.Info("server exiting gracefully")
	return nil
}
