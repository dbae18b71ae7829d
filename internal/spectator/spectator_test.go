package spectator_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/pubconquest/internal/conquest"
	"github.com/playperu/pubconquest/internal/realtime"
	"github.com/playperu/pubconquest/internal/server"
	"github.com/playperu/pubconquest/internal/spectator"
	"github.com/playperu/pubconquest/internal/store/storetest"
)

type game struct {
	url      string
	hub      *realtime.Hub
	resolver *conquest.Resolver
	red      conquest.Team
	crown    conquest.Location
	token    string
	playerID string
}

func startGame(t *testing.T) *game {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hub := realtime.NewHub(logger, "test")
	st := storetest.New(t, hub)
	r := chi.NewRouter()
	server.Mount(r, server.Deps{Store: st, Hub: hub, Logger: logger})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	red, err := st.CreateTeam(ctx, "Red", "#e11d48")
	require.NoError(t, err)
	crown, err := st.CreateLocation(ctx, "The Crown", nil, nil)
	require.NoError(t, err)
	_, err = st.SetGame(ctx, true)
	require.NoError(t, err)

	body, _ := json.Marshal(server.JoinRequest{TeamID: red.ID, Nickname: "watcher"})
	resp, err := http.Post(srv.URL+"/api/join", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var joined server.JoinResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&joined))

	return &game{
		url:      srv.URL,
		hub:      hub,
		resolver: conquest.NewResolver(st, hub, logger),
		red:      red,
		crown:    crown,
		token:    joined.Token,
		playerID: joined.Player.ID,
	}
}

func (g *game) capture(t *testing.T) {
	t.Helper()
	_, err := g.resolver.AttemptCapture(context.Background(), conquest.CaptureRequest{
		LocationID: g.crown.ID, TeamID: g.red.ID, PlayerID: g.playerID, Evidence: "x",
	})
	require.NoError(t, err)
}

func TestRefreshLoadsSnapshot(t *testing.T) {
	g := startGame(t)
	g.capture(t)

	c := spectator.New(spectator.Options{BaseURL: g.url + "/", Token: g.token}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, c.Refresh(context.Background()))

	scores, err := c.Reconciler().Scores()
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 1, scores[0].Score)

	// Snapshots never animate.
	assert.False(t, c.Reconciler().Animating(realtime.Key{Table: realtime.TableLocations, ID: g.crown.ID}))
}

func TestRefreshRejectsBadToken(t *testing.T) {
	g := startGame(t)

	c := spectator.New(spectator.Options{BaseURL: g.url, Token: "nope"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, c.Refresh(context.Background()), "401")
}

func TestStreamAppliesChanges(t *testing.T) {
	g := startGame(t)
	c := spectator.New(spectator.Options{BaseURL: g.url, Token: g.token}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, c.Refresh(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Stream(ctx) }()

	require.Eventually(t, func() bool { return g.hub.Subscribers() > 0 }, 2*time.Second, 10*time.Millisecond)
	g.capture(t)

	key := realtime.Key{Table: realtime.TableLocations, ID: g.crown.ID}
	require.Eventually(t, func() bool { return c.Reconciler().Animating(key) }, 2*time.Second, 10*time.Millisecond)

	var out strings.Builder
	require.NoError(t, spectator.Render(&out, c.Reconciler(), false))
	assert.Contains(t, out.String(), "The Crown")
	assert.Contains(t, out.String(), "Red")
	assert.Contains(t, out.String(), "*")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestStreamRefreshesWhenReady(t *testing.T) {
	g := startGame(t)
	c := spectator.New(spectator.Options{BaseURL: g.url, Token: g.token}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Made before the stream exists, so only the reload on ready can show it.
	g.capture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Stream(ctx) }()

	require.Eventually(t, func() bool {
		scores, err := c.Reconciler().Scores()
		return err == nil && len(scores) == 1 && scores[0].Score == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRunResetsBackoffAfterHealthyStream(t *testing.T) {
	var streams atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{}")
	})
	// Every stream is healthy but short lived.
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		streams.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: ready\ndata: {}\n\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := spectator.New(spectator.Options{
		BaseURL:   srv.URL,
		Token:     "t",
		RetryBase: 20 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Run(ctx, func(*realtime.Reconciler) {}))

	// A growing backoff would allow about five connections in this window.
	assert.GreaterOrEqual(t, streams.Load(), int32(10))
}
