package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"studymaster/internal/api"
	"studymaster/internal/config"
	"studymaster/internal/engine"
	"studymaster/internal/llm"
	"studymaster/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	st, err := newStore(cfg)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	ctx := context.Background()
	llmClient, err := llm.NewClient(ctx, cfg.GeminiAPIKey, cfg.Temperature)
	if err != nil {
		logger.Fatal("failed to initialize LLM client", zap.Error(err))
	}
	defer llmClient.Close()

	sessionTTL := time.Duration(cfg.SessionTTLMins) * time.Minute
	sessions := engine.NewSessions(sessionTTL, cfg.QuizQuestions)
	eng := engine.New(st, llmClient, cfg.RetrievalK, logger)

	apiHandler := api.NewAPIHandler(cfg, st, eng, sessions, llmClient, logger)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // generation (and streams) can take a while
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting server",
			zap.String("addr", serverAddr),
			zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}

func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		return store.NewSQLiteStore(cfg.DatabaseURL)
	case "memory":
		return store.NewMemoryStore(time.Duration(cfg.SessionTTLMins) * time.Minute), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func newLogger(level string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if strings.EqualFold(level, "debug") {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	return logger
}
