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

	"github.com/growexx/Americana-Audit-trail-chatbot/internal/api"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/auth"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/chat"
	chatpostgres "github.com/growexx/Americana-Audit-trail-chatbot/internal/chatstore/postgres"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/config"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/export"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/llm"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/metadata"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/observability"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/prompt"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/session"
	s3store "github.com/growexx/Americana-Audit-trail-chatbot/internal/storage/s3"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/warehouse"
	warehouseduckdb "github.com/growexx/Americana-Audit-trail-chatbot/internal/warehouse/duckdb"
	warehousepostgres "github.com/growexx/Americana-Audit-trail-chatbot/internal/warehouse/postgres"
)

func main() {
	cfg, err := config.LoadFromEnv("auditchat-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	chatDB, err := chatpostgres.Open(context.Background(), chatpostgres.DBConfig{
		DSN:             cfg.ChatStore.DSN,
		MaxOpenConns:    cfg.ChatStore.MaxOpenConns,
		MaxIdleConns:    cfg.ChatStore.MaxIdleConns,
		ConnMaxIdleTime: cfg.ChatStore.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ChatStore.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open chat store db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = chatDB.Close() }()
	chatRepo := chatpostgres.NewRepository(chatDB)

	executor, cleanup, err := buildWarehouseExecutor(cfg)
	if err != nil {
		logger.Error("failed to initialize warehouse executor", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	objectStore, err := s3store.New(context.Background(), s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		PublicBaseURL:    cfg.ObjectStore.PublicBaseURL,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	model, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize llm client", slog.Any("error", err))
		os.Exit(1)
	}

	prompts, err := prompt.NewBuilder(cfg.Chat.PromptRowLimit)
	if err != nil {
		logger.Error("failed to load prompt templates", slog.Any("error", err))
		os.Exit(1)
	}

	chatService := chat.NewService(
		chatRepo,
		executor,
		model,
		prompts,
		metadata.NewFileProvider(cfg.Metadata.Dir),
		export.NewExporter(objectStore),
		session.NewManager(),
		logger,
		chat.Config{ResponseRowLimit: cfg.Chat.ResponseRowLimit},
	)

	deps := api.Dependencies{
		Logger: logger,
		Chat:   chatService,
		Readiness: api.CombineReadinessChecks(
			chatRepo.HealthCheck,
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func buildWarehouseExecutor(cfg config.Config) (warehouse.Executor, func(), error) {
	switch cfg.Warehouse.Driver {
	case "duckdb":
		executor := warehouseduckdb.NewExecutor(cfg.Warehouse.Path, cfg.Warehouse.QueryTimeout)
		return executor, func() {}, nil
	default:
		executor, err := warehousepostgres.Open(context.Background(), warehousepostgres.Config{
			DSN:          cfg.Warehouse.DSN,
			QueryTimeout: cfg.Warehouse.QueryTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return executor, func() { _ = executor.Close() }, nil
	}
}
