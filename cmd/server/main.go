package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/pubconquest/internal/config"
	"github.com/playperu/pubconquest/internal/database"
	"github.com/playperu/pubconquest/internal/handler/health"
	"github.com/playperu/pubconquest/internal/migrations"
	"github.com/playperu/pubconquest/internal/realtime"
	"github.com/playperu/pubconquest/internal/seed"
	"github.com/playperu/pubconquest/internal/server"
	"github.com/playperu/pubconquest/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(stdout, cfg)
	if cfg.DefaultAdminSecret() {
		logger.Warn("admin secret is the default; set ADMIN_SECRET_HASH")
	}

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	hub := realtime.NewHub(logger, uuid.NewString())
	st := store.New(db, hub)

	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := seed.Apply(ctx, st, f, logger); err != nil {
			return fmt.Errorf("applying seed: %w", err)
		}
	}

	checks := map[string]health.Checker{"sqlite": health.CheckFunc(st.Ping)}
	var (
		sinks  []realtime.Sink
		bridge *realtime.RedisBridge
	)

	// --- Redis ---
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis", "channel", cfg.RedisChannel)

		bridge = realtime.NewRedisBridge(rdb, cfg.RedisChannel, hub, logger)
		sinks = append(sinks, bridge)
		checks["redis"] = health.CheckFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	// --- Kafka ---
	if len(cfg.KafkaBrokers) > 0 {
		exporter := realtime.NewKafkaExporter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer exporter.Close()
		logger.Info("exporting changes to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)

		sinks = append(sinks, exporter)
		checks["kafka"] = health.CheckFunc(func(ctx context.Context) error {
			return pingKafka(ctx, cfg.KafkaBrokers[0])
		})
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, cfg.CORSAllowedOrigins, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
		server.Mount(r, server.Deps{
			Store:               st,
			Hub:                 hub,
			Logger:              logger,
			AdminSecretHash:     cfg.AdminSecretHash,
			SubmitRatePerMinute: cfg.SubmitRatePerMinute,
			HistoryLimit:        cfg.SnapshotHistoryLimit,
		})
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return hub.Run(gctx, sinks...)
	})

	if bridge != nil {
		g.Go(func() error {
			return bridge.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

// newLogger returns the JSON handler used in production, or tint's colored
// text handler when LOG_FORMAT=text.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogFormat == "text" {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

func pingKafka(ctx context.Context, broker string) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return err
	}
	return conn.Close()
}
