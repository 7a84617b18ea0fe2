package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/thisux/shortlink/config"
	appmodel "github.com/thisux/shortlink/internal/app/model"
	apprepository "github.com/thisux/shortlink/internal/app/repository"
	appserver "github.com/thisux/shortlink/internal/app/server"
	appservice "github.com/thisux/shortlink/internal/app/service"
	"github.com/thisux/shortlink/internal/infra/logger"
	infraNATS "github.com/thisux/shortlink/internal/infra/nats"
	infraPostgres "github.com/thisux/shortlink/internal/infra/postgres"
	infraPrometheus "github.com/thisux/shortlink/internal/infra/prometheus"
	infraRedis "github.com/thisux/shortlink/internal/infra/redis"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("base_url", cfg.App.BaseURL),
		zap.Int("port", cfg.App.Port),
		zap.String("env", cfg.App.Env),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("nats_host", cfg.NATS.Host),
	)

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be configured")
	}

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.Link{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully")

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	linkRepo := apprepository.NewLinkRepository(gormDB)
	clickRepo := apprepository.NewClickRepository(pool)

	generator, err := appservice.NewCodeGenerator(appservice.DefaultCodeLength)
	if err != nil {
		log.Fatal("Failed to build code generator", zap.Error(err))
	}

	filter := appservice.NewCodeFilter(0, 0)
	if err := filter.Seed(ctx, linkRepo); err != nil {
		log.Warn("Failed to seed code filter, continuing without it", zap.Error(err))
	}
	refresher := appservice.NewFilterRefresher(log, linkRepo, filter, 0)
	refresher.Start()
	defer refresher.Stop()

	cache := appservice.NewLinkCache(redisClient)
	publisher := appservice.NewClickPublisher(js)

	consumer := appservice.NewClickConsumer(js, log, redisClient)
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start click consumer", zap.Error(err))
	}

	linkService := appservice.NewLinkService(linkRepo, generator, filter, cache)
	redirectService := appservice.NewRedirectService(log, linkRepo, clickRepo, cache, publisher)
	analyticsService := appservice.NewAnalyticsService(linkRepo, clickRepo)

	server := appserver.New(appserver.Dependencies{
		Logger:       log,
		Redis:        redisClient,
		Links:        linkService,
		Redirects:    redirectService,
		Analytics:    analyticsService,
		BaseURL:      cfg.App.BaseURL,
		JWTSecret:    []byte(cfg.Auth.JWTSecret),
		ExposeErrors: !cfg.App.Production(),
	})

	if err := server.Listen(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
