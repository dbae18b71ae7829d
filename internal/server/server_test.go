package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/pubconquest/internal/conquest"
	"github.com/playperu/pubconquest/internal/realtime"
	"github.com/playperu/pubconquest/internal/store"
	"github.com/playperu/pubconquest/internal/store/storetest"
)

const testAdminSecret = "changeme"

type testEnv struct {
	router *chi.Mux
	store  *store.Store
	hub    *realtime.Hub

	red, blue     conquest.Team
	crown, anchor conquest.Location
}

// newTestEnv builds the full API over a fresh database with two teams, two
// locations and an active game. rate is the per-player submit limit.
func newTestEnv(t *testing.T, rate int) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminSecret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing secret: %v", err)
	}

	hub := realtime.NewHub(logger, "test")
	st := storetest.New(t, hub)

	env := &testEnv{router: chi.NewRouter(), store: st, hub: hub}
	Mount(env.router, Deps{
		Store:               st,
		Hub:                 hub,
		Logger:              logger,
		AdminSecretHash:     string(hash),
		SubmitRatePerMinute: rate,
	})

	if env.red, err = st.CreateTeam(ctx, "Red", "#e11d48"); err != nil {
		t.Fatalf("creating team: %v", err)
	}
	if env.blue, err = st.CreateTeam(ctx, "Blue", "#2563eb"); err != nil {
		t.Fatalf("creating team: %v", err)
	}
	if env.crown, err = st.CreateLocation(ctx, "The Crown", nil, nil); err != nil {
		t.Fatalf("creating location: %v", err)
	}
	if env.anchor, err = st.CreateLocation(ctx, "The Anchor", nil, nil); err != nil {
		t.Fatalf("creating location: %v", err)
	}
	if _, err := st.SetGame(ctx, true); err != nil {
		t.Fatalf("starting game: %v", err)
	}
	return env
}

// do sends a request with an optional JSON body and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	for _, o := range opts {
		o(req)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookies(cookies []*http.Cookie) func(*http.Request) {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func (e *testEnv) join(t *testing.T, team conquest.Team, nickname string) JoinResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/join", JoinRequest{TeamID: team.ID, Nickname: nickname})
	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp JoinResponse
	decode(t, w, &resp)
	return resp
}

func (e *testEnv) login(t *testing.T) []*http.Cookie {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/admin/login", AdminLoginRequest{Secret: testAdminSecret})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	return w.Result().Cookies()
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, w, &resp)
	return resp.Code
}
