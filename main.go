package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"verity-ai-gateway/config"
	"verity-ai-gateway/internal/extract"
	"verity-ai-gateway/internal/images"
	"verity-ai-gateway/internal/pkg/logger"
	"verity-ai-gateway/internal/search"
	"verity-ai-gateway/internal/server"
	"verity-ai-gateway/internal/services"
)

func main() {
	cfg := config.LoadConfig()

	appLogger, err := logger.New(logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	llmService := services.NewLLMService(cfg.LLM, appLogger)
	extractor := extract.NewService(cfg.Extraction, appLogger)
	contextBuilder := services.NewContextBuilder(cfg.Extraction, extractor, appLogger)
	aggregator := search.NewAggregator(cfg.Search, appLogger)
	imageService := images.NewService(cfg.Images, appLogger)
	settingsService := services.NewSettingsService()

	var turnStore services.TurnStore
	store, err := services.NewConversationStore(cfg.RedisURL, appLogger)
	if err != nil {
		appLogger.WithError(err).Error("conversation store unavailable, persistence disabled")
		store = nil
	} else {
		turnStore = store
	}

	orchestrator := services.NewOrchestrator(cfg, llmService, aggregator, contextBuilder, imageService, turnStore, settingsService, appLogger)

	checkers := map[string]server.HealthChecker{
		"llm":        llmService,
		"extraction": extractor,
		"search":     aggregator,
	}
	if store != nil {
		checkers["redis"] = store
	}

	srv := server.New(cfg, orchestrator, checkers, appLogger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			appLogger.WithError(err).Error("server exited")
			os.Exit(1)
		}
	case sig := <-stop:
		appLogger.Info("shutdown signal received", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			appLogger.WithError(err).Error("graceful shutdown failed")
		}
		if store != nil {
			_ = store.Close()
		}
	}
}
