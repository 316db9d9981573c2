package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/linkvault/linkvault/config"
	appcache "github.com/linkvault/linkvault/internal/app/cache"
	appmodel "github.com/linkvault/linkvault/internal/app/model"
	apprepository "github.com/linkvault/linkvault/internal/app/repository"
	appserver "github.com/linkvault/linkvault/internal/app/server"
	appservice "github.com/linkvault/linkvault/internal/app/service"
	"github.com/linkvault/linkvault/internal/app/risk"
	"github.com/linkvault/linkvault/internal/app/shortcode"
	"github.com/linkvault/linkvault/internal/infra/logger"
	infraNATS "github.com/linkvault/linkvault/internal/infra/nats"
	infraPostgres "github.com/linkvault/linkvault/internal/infra/postgres"
	infraPrometheus "github.com/linkvault/linkvault/internal/infra/prometheus"
	infraRedis "github.com/linkvault/linkvault/internal/infra/redis"
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
		zap.Int("short_code_length", cfg.App.ShortCodeLength),
		zap.Int("cache_ttl_seconds", cfg.App.CacheTTLSeconds),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.Link{}, &appmodel.ClickEvent{}); err != nil {
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
	log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

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
	statsRepo := apprepository.NewStatsRepository(pool)
	clickRepo := apprepository.NewClickEventRepository(gormDB)
	linkCache := appcache.NewLinkCache(redisClient)
	scorer := risk.NewScorer()
	generator := shortcode.NewGenerator(cfg.App.ShortCodeLength, nil)

	codeFilter := shortcode.NewFilter(0, 0)
	if codes, err := linkRepo.AllCodes(ctx); err != nil {
		log.Warn("Failed to seed code filter, continuing unseeded", zap.Error(err))
	} else {
		for _, code := range codes {
			codeFilter.Add(code)
		}
		log.Info("Seeded short code filter", zap.Int("codes", len(codes)))
	}

	linkService := appservice.NewLinkService(appservice.Deps{
		Logger:    log,
		Links:     linkRepo,
		Stats:     statsRepo,
		Cache:     linkCache,
		Scorer:    scorer,
		Generator: generator,
		Filter:    codeFilter,
		CacheTTL:  time.Duration(cfg.App.CacheTTLSeconds) * time.Second,
	})

	clickPublisher := appservice.NewClickPublisher(js)
	clickConsumer := appservice.NewClickConsumer(js, log, clickRepo)
	if err := clickConsumer.Start(); err != nil {
		log.Error("Failed to start click consumer", zap.Error(err))
	}

	recheck := appservice.NewRiskRecheck(log, linkRepo, scorer,
		time.Duration(cfg.App.RecheckIntervalMins)*time.Minute,
		24*time.Hour,
		cfg.App.RecheckBatchSize,
	)
	recheck.Start()
	defer recheck.Stop()

	srv := appserver.New(appserver.Dependencies{
		Logger:         log,
		Redis:          redisClient,
		LinkService:    linkService,
		ClickPublisher: clickPublisher,
		BaseURL:        cfg.App.BaseURL,
	})

	if err := srv.Listen(":8080"); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
