package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"quizforge/internal/adapter"
	"quizforge/internal/adapter/llm"
	"quizforge/internal/cache"
	"quizforge/internal/config"
	"quizforge/internal/content"
	"quizforge/internal/cost"
	"quizforge/internal/domain"
	"quizforge/internal/handler"
	"quizforge/internal/logger"
	"quizforge/internal/middleware"
	"quizforge/internal/repository"
	"quizforge/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := pflag.StringP("config", "c", "", "config file or directory")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	topics, err := content.NewRepository(afero.NewOsFs(), appLogger).Load(cfg.Content.Root)
	if err != nil {
		appLogger.Fatal("Failed to load study content", zap.String("root", cfg.Content.Root), zap.Error(err))
	}
	appLogger.Info("Study content loaded", zap.Int("topics", len(topics)))

	client, err := llm.NewModelClient(cfg.Model, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create model client", zap.Error(err))
	}

	store, closeStore, err := newSessionStore(ctx, cfg)
	if err != nil {
		appLogger.Fatal("Failed to create session store", zap.Error(err))
	}
	defer closeStore()

	pricing := cost.PricingFromConfig(cfg.Pricing)
	generator := service.NewQuizGenerator(service.GeneratorOptions{
		ContextWindow:             cfg.Model.ContextWindow,
		Pricing:                   pricing,
		ResponseTokensPerQuestion: cfg.Pricing.ResponseTokensPerQuestion,
		Progress: func(p service.Progress) {
			appLogger.Debug("Generation progress",
				zap.Int("slot", p.Slot),
				zap.Int("requested", p.Requested),
				zap.Int("generated", p.Generated),
				zap.Int("dropped", p.Dropped))
		},
	}, appLogger)
	playService := service.NewPlayService(generator, topics, client, store, cfg.Model.RequestDelay(), pricing, appLogger)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
		BodyLimit:    1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(),
	})
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{AllowOrigins: "*", AllowMethods: "GET,POST,OPTIONS", AllowHeaders: "Origin,Content-Type,Accept", MaxAge: 300}))
	app.Use(recover.New())
	handler.RegisterRoutes(app, handler.NewQuizHandler(playService))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info("Starting server",
			zap.Int("port", cfg.Server.Port),
			zap.String("provider", cfg.Model.Provider),
			zap.String("model", cfg.Model.Name),
			zap.String("session_store", cfg.SessionStore.Backend))
		return app.Listen(":" + strconv.Itoa(cfg.Server.Port))
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Server stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	appLogger.Info("Server exited gracefully")
}

func newSessionStore(ctx context.Context, cfg *config.Config) (domain.SessionStore, func(), error) {
	switch cfg.SessionStore.Backend {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		logger.Get().Info("Successfully connected to Redis", zap.String("address", cfg.Redis.Address))
		return adapter.NewRedisSessionStore(client, cfg.SessionStore.TTL), func() { _ = client.Close() }, nil
	case "memory":
		return repository.NewMemorySessionStore(cfg.SessionStore.TTL), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session store backend: %s", cfg.SessionStore.Backend)
	}
}
