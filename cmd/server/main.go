package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "time/tzdata"

	"slotbook/internal/api"
	"slotbook/internal/audit"
	"slotbook/internal/booking"
	"slotbook/internal/cache"
	"slotbook/internal/config"
	"slotbook/internal/db"
	"slotbook/internal/events"
	"slotbook/internal/metrics"
	"slotbook/internal/notify"
	"slotbook/internal/queue"
	"slotbook/internal/reconcile"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const catalogPollInterval = 30 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("SLOTBOOK_CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal().Msg("set auth.jwt_secret in config")
	}
	loc, err := cfg.BookingLocation()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Booking.Timezone).Msg("invalid booking timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	if err := config.WatchEvents(ctx, cfg.EventsConfigPath, catalogPollInterval,
		func(catalog *config.EventsConfig) {
			if err := database.SyncEventsFromConfig(ctx, catalog); err != nil {
				logger.Error().Err(err).Msg("sync event catalog")
				return
			}
			logger.Info().Str("catalog", catalog.String()).Msg("event catalog synced")
		},
		func(err error) { logger.Error().Err(err).Msg("reload event catalog") },
	); err != nil {
		logger.Fatal().Err(err).Str("path", cfg.EventsConfigPath).Msg("load event catalog")
	}

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, ranges will be read from the database")
		}
	}
	rangeCache := cache.New(rdb, cfg.CacheTTL(), cfg.LockTTL())

	bus := events.NewEventBus(&logger)
	bus.SubscribeAll(metrics.HandleEvent)

	if cfg.RabbitMQ.Enabled {
		publisher, err := queue.Dial(cfg.RabbitMQ.URL, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("rabbitmq disabled")
		} else {
			defer publisher.Close()
			bus.SubscribeAll(publisher.Handler())
		}
	}

	var tg *notify.Telegram
	if cfg.Telegram.BotToken != "" {
		tg, err = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.Managers, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifications disabled")
		} else {
			bus.SubscribeAll(events.Async(tg.HandleEvent, &logger))
		}
	}

	svc := booking.NewService(database, rangeCache, bus, booking.Rules{MaxAdvanceDays: cfg.BookingMaxAdvanceDays()}, &logger)

	reconciler := reconcile.New(database, cfg.ReconcileInterval(), loc, &logger)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	if cfg.Backup.Enabled {
		backups := db.NewBackupService(database, db.BackupConfig{
			Interval:  time.Duration(cfg.Backup.IntervalHours) * time.Hour,
			Dir:       cfg.Backup.Path,
			Retention: time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour,
		}, &logger)
		go backups.Start(ctx)
	}

	if tg != nil && cfg.Telegram.DigestEnabled {
		digest := notify.NewDigest(notify.DigestConfig{Location: loc, Hour: cfg.DigestHour()}, database, tg, &logger)
		go digest.Start(ctx)
		defer digest.Stop()
	}

	if cfg.Audit.Enabled {
		var reports audit.Notifier
		if tg != nil {
			reports = tg
		}
		auditor := audit.NewService(audit.Config{ExportDir: cfg.Audit.ExportDir, Location: loc}, database, audit.NewExcelWriter, reports, &logger)
		auditor.Start()
		defer auditor.Stop()
	}

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	var limitPerSecond float64
	if cfg.RateLimit.Enabled {
		limitPerSecond = cfg.RateLimitPerSecond()
	}
	server := api.NewHTTPServer(svc, api.Options{
		Port:          cfg.ServerPort(),
		JWTSecret:     cfg.Auth.JWTSecret,
		Location:      loc,
		RatePerSecond: limitPerSecond,
		RateBurst:     cfg.RateLimitBurst(),
		Ready: func(ctx context.Context) error {
			if err := database.PingContext(ctx); err != nil {
				return fmt.Errorf("db not ready: %w", err)
			}
			if rdb != nil {
				if err := rdb.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis not ready: %w", err)
				}
			}
			return nil
		},
	}, &logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	logger.Info().Int("port", cfg.ServerPort()).Str("timezone", loc.String()).Msg("slotbook started")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("slotbook stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Log.Format == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
