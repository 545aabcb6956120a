package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"andamento/internal/amqp"
	"andamento/internal/backend"
	"andamento/internal/cache"
	"andamento/internal/cli"
	"andamento/internal/config"
	"andamento/internal/core"
	apphttp "andamento/internal/http"
	applog "andamento/internal/log"
	"andamento/internal/report"
	"andamento/internal/services"
	"andamento/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", "error", err, "backend", cfg.DataBackend)
		}
	}()

	engine := report.NewEngine(report.WithLocation(backendCfg.Location))

	caches := cache.NewManager()
	defer caches.Stop()

	reportOpts, redisClient, err := reportCaches(ctx, cfg, caches)
	if err != nil {
		return err
	}
	checks := map[string]apphttp.ReadinessCheck{"source": res.Ready}
	if redisClient != nil {
		defer redisClient.Close()
		checks["cache"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	reportOpts = append(reportOpts, services.WithLogger(logger))
	reports := services.NewReportService(res.Source, engine, reportOpts...)

	// AMQP is optional: without it writes only invalidate this process
	var (
		amqpClient *amqp.Client
		publisher  services.ChangePublisher
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without change events", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPRoutingKey)
		}
	}
	transactions := services.NewTransactionService(res.Source, publisher, reports, engine.Location())

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Reports:  reports,
		Receipts: transactions,
		Checks:   checks,
		Logger:   logger,
		RateLimit: apphttp.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting andamento server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"cache", cfg.CacheBackend,
			"timezone", engine.Location().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if amqpClient != nil {
		invalidations := worker.NewInvalidationWorker(amqpClient, reports)
		g.Go(func() error {
			return invalidations.Run(gctx)
		})
	}

	return g.Wait()
}

// reportCaches builds the list and report caches for CACHE_BACKEND.
// In-memory caches are registered for periodic cleanup.
func reportCaches(ctx context.Context, cfg *config.Config, caches *cache.Manager) ([]services.ReportOption, *redis.Client, error) {
	if cfg.CacheBackend == "redis" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return []services.ReportOption{
			services.WithListCache(cache.NewRedisCache[[]core.Transaction](client, "andamento:lists:", cfg.CacheTTL)),
			services.WithReportCache(cache.NewRedisCache[report.Report](client, "andamento:reports:", cfg.CacheTTL)),
		}, client, nil
	}

	lists := cache.NewLRUCache[[]core.Transaction](cfg.CacheMaxEntries, cfg.CacheTTL)
	reports := cache.NewLRUCache[report.Report](cfg.CacheMaxEntries, cfg.CacheTTL)
	caches.Register(lists)
	caches.Register(reports)
	caches.StartCleanup(cfg.CacheTTL)

	return []services.ReportOption{
		services.WithListCache(lists),
		services.WithReportCache(reports),
	}, nil, nil
}
