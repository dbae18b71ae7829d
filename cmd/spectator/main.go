// Command spectator renders a live board of a running game in the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/playperu/pubconquest/internal/realtime"
	"github.com/playperu/pubconquest/internal/spectator"
)

type config struct {
	APIURL       string        `env:"SPECTATOR_API_URL" envDefault:"http://localhost:8080"`
	Token        string        `env:"SPECTATOR_TOKEN,required"`
	Refetch      time.Duration `env:"SPECTATOR_REFETCH" envDefault:"30s"`
	Redraw       time.Duration `env:"SPECTATOR_REDRAW" envDefault:"1s"`
	HistoryLimit int           `env:"SNAPSHOT_HISTORY_LIMIT" envDefault:"50"`
	LogLevel     slog.Level    `env:"LOG_LEVEL" envDefault:"WARN"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout, stderr io.Writer) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := env.ParseAs[config]()
	if err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	// The board owns stdout; logs go to stderr.
	logger := slog.New(tint.NewHandler(stderr, &tint.Options{Level: cfg.LogLevel}))

	client := spectator.New(spectator.Options{
		BaseURL:      cfg.APIURL,
		Token:        cfg.Token,
		Refetch:      cfg.Refetch,
		Redraw:       cfg.Redraw,
		HistoryLimit: cfg.HistoryLimit,
		Window:       realtime.DefaultAnimationWindow,
	}, logger)

	return client.Run(ctx, func(rec *realtime.Reconciler) {
		if err := spectator.Render(stdout, rec, true); err != nil {
			logger.Error("rendering board", "error", err)
		}
	})
}
