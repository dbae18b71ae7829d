// Package spectator follows a running game from outside: it loads a
// snapshot, merges the live event stream into it and renders a board.
package spectator

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/pubconquest/internal/realtime"
)

type Options struct {
	BaseURL string
	Token   string
	// Refetch reloads the full snapshot on this interval in case the stream
	// silently missed changes.
	Refetch time.Duration
	// Redraw is how often the board is rendered.
	Redraw       time.Duration
	HistoryLimit int
	Window       time.Duration
	// RetryBase is the first reconnect delay after a failed connection. It
	// doubles up to ten seconds and starts over once a stream is healthy.
	RetryBase time.Duration
}

type Client struct {
	opts   Options
	http   *http.Client
	rec    *realtime.Reconciler
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Client {
	if opts.Refetch <= 0 {
		opts.Refetch = 30 * time.Second
	}
	if opts.Redraw <= 0 {
		opts.Redraw = time.Second
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 250 * time.Millisecond
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{
		opts:   opts,
		http:   &http.Client{},
		rec:    realtime.NewReconciler(opts.HistoryLimit, opts.Window),
		logger: logger,
	}
}

func (c *Client) Reconciler() *realtime.Reconciler { return c.rec }

// Run keeps the view current until ctx is done, calling draw on every redraw
// tick.
func (c *Client) Run(ctx context.Context, draw func(*realtime.Reconciler)) error {
	if err := c.Refresh(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for gctx.Err() == nil {
			b := retry.WithCappedDuration(10*time.Second, retry.NewExponential(c.opts.RetryBase))
			err := retry.Do(gctx, b, func(ctx context.Context) error {
				ready, err := c.stream(ctx)
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Warn("event stream ended, reconnecting", "error", err)
				if ready {
					// Healthy until now, so start the backoff over.
					return nil
				}
				return retry.RetryableError(err)
			})
			if err != nil && gctx.Err() == nil {
				return err
			}
			// Pause between healthy streams too, so a server that drops
			// every connection right away is not hammered.
			select {
			case <-gctx.Done():
			case <-time.After(c.opts.RetryBase):
			}
		}
		return nil
	})

	g.Go(func() error {
		refetch := time.NewTicker(c.opts.Refetch)
		defer refetch.Stop()
		redraw := time.NewTicker(c.opts.Redraw)
		defer redraw.Stop()

		draw(c.rec)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-refetch.C:
				if err := c.Refresh(gctx); err != nil {
					c.logger.Warn("refetching snapshot", "error", err)
				}
			case <-redraw.C:
				c.rec.Sweep()
				draw(c.rec)
			}
		}
	})

	return g.Wait()
}

// Refresh loads GET /api/state into the reconciler.
func (c *Client) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/api/state", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching state: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching state: unexpected status %s", resp.Status)
	}

	var snap realtime.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}
	return c.rec.ApplySnapshot(snap)
}

// Stream reads GET /api/events and applies every change until the stream
// ends or ctx is done. Once the server reports the subscription ready the
// snapshot is reloaded, covering changes made before the stream was open.
func (c *Client) Stream(ctx context.Context) error {
	_, err := c.stream(ctx)
	return err
}

// stream is Stream that also reports whether the subscription became ready.
func (c *Client) stream(ctx context.Context) (bool, error) {
	u := c.opts.BaseURL + "/api/events?token=" + url.QueryEscape(c.opts.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("opening event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("opening event stream: unexpected status %s", resp.Status)
	}

	var (
		ready bool
		name  string
	)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			name = ""
			continue
		}
		if ev, ok := strings.CutPrefix(line, "event: "); ok {
			name = ev
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if name == "ready" {
			ready = true
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("refetching snapshot", "error", err)
			}
			continue
		}
		var e realtime.Event
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			c.logger.Debug("skipping malformed event", "error", err)
			continue
		}
		if e.Type != realtime.EventChange || e.Change == nil {
			continue
		}
		if _, err := c.rec.Apply(*e.Change); err != nil {
			c.logger.Warn("applying change", "table", e.Change.Table, "id", e.Change.ID, "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return ready, err
	}
	return ready, errors.New("stream closed by server")
}
