package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/playperu/pubconquest/internal/conquest"
	"github.com/playperu/pubconquest/internal/realtime"
	"github.com/playperu/pubconquest/internal/store"
)

func TestJoinAndListTeams(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, http.MethodGet, "/api/teams", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var teams []conquest.Team
	decode(t, w, &teams)
	if len(teams) != 2 {
		t.Fatalf("expected 2 teams, got %d", len(teams))
	}

	alice := env.join(t, env.red, "Alice")
	if alice.Token == "" || alice.Player.TeamID != env.red.ID {
		t.Fatalf("unexpected join response: %+v", alice)
	}

	w = env.do(t, http.MethodPost, "/api/join", JoinRequest{TeamID: env.red.ID, Nickname: "alice"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate nickname: expected 409, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "name_taken" {
		t.Errorf("expected code name_taken, got %q", code)
	}

	w = env.do(t, http.MethodPost, "/api/join", JoinRequest{TeamID: "nope", Nickname: "carol"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown team: expected 404, got %d", w.Code)
	}
}

func TestStateRequiresToken(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, http.MethodGet, "/api/state", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/state", nil, bearer("bogus"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}

	alice := env.join(t, env.red, "alice")
	w = env.do(t, http.MethodGet, "/api/state", nil, bearer(alice.Token))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var state StateResponse
	decode(t, w, &state)
	if state.Me.ID != alice.Player.ID {
		t.Errorf("expected me = %s, got %s", alice.Player.ID, state.Me.ID)
	}
	if len(state.Locations) != 2 || !state.Game.Active {
		t.Errorf("unexpected snapshot: %d locations, active=%v", len(state.Locations), state.Game.Active)
	}
}

func TestCaptureFlow(t *testing.T) {
	env := newTestEnv(t, 0)
	alice := env.join(t, env.red, "alice")
	bob := env.join(t, env.blue, "bob")

	w := env.do(t, http.MethodPost, "/api/captures",
		CaptureRequest{LocationID: env.crown.ID, Evidence: "https://img/1.jpg"}, bearer(alice.Token))
	if w.Code != http.StatusOK {
		t.Fatalf("capture: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp CaptureResponse
	decode(t, w, &resp)
	if resp.Location.TeamID != env.red.ID || resp.Location.DrinkCount != 1 {
		t.Errorf("unexpected ownership %+v", resp.Location.Ownership)
	}
	if resp.Capture == nil || resp.Warning != "" {
		t.Errorf("expected a clean capture, got %+v", resp)
	}

	w = env.do(t, http.MethodPost, "/api/captures",
		CaptureRequest{LocationID: env.crown.ID, Evidence: "https://img/2.jpg"}, bearer(bob.Token))
	if w.Code != http.StatusOK {
		t.Fatalf("second capture: expected 200, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/scores", nil)
	var scores []conquest.TeamScore
	decode(t, w, &scores)
	if scores[0].Team.ID != env.blue.ID || scores[0].Score != 1 || scores[1].Score != 0 {
		t.Errorf("unexpected scores %+v", scores)
	}
}

func TestCaptureErrors(t *testing.T) {
	env := newTestEnv(t, 0)
	alice := env.join(t, env.red, "alice")
	ctx := context.Background()

	if _, err := env.store.LockLocation(ctx, env.anchor.ID, env.blue.ID); err != nil {
		t.Fatalf("locking: %v", err)
	}

	tests := []struct {
		name     string
		req      CaptureRequest
		wantCode int
		wantErr  string
	}{
		{"missing evidence", CaptureRequest{LocationID: env.crown.ID}, http.StatusBadRequest, "evidence_required"},
		{"unknown location", CaptureRequest{LocationID: "nope", Evidence: "x"}, http.StatusNotFound, "location_not_found"},
		{"locked location", CaptureRequest{LocationID: env.anchor.ID, Evidence: "x"}, http.StatusConflict, "location_locked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/captures", tt.req, bearer(alice.Token))
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if code := errorCode(t, w); code != tt.wantErr {
				t.Errorf("expected code %q, got %q", tt.wantErr, code)
			}
		})
	}

	if _, err := env.store.SetGame(ctx, false); err != nil {
		t.Fatalf("stopping game: %v", err)
	}
	w := env.do(t, http.MethodPost, "/api/captures",
		CaptureRequest{LocationID: env.crown.ID, Evidence: "x"}, bearer(alice.Token))
	if w.Code != http.StatusForbidden {
		t.Fatalf("inactive game: expected 403, got %d", w.Code)
	}
}

func TestChallengeSteps(t *testing.T) {
	env := newTestEnv(t, 0)
	alice := env.join(t, env.red, "alice")
	bob := env.join(t, env.blue, "bob")
	ch, err := env.store.CreateChallenge(context.Background(), store.NewChallenge{
		Kind: conquest.KindLocation, Title: "Yard of ale", LocationID: env.crown.ID,
	})
	if err != nil {
		t.Fatalf("creating challenge: %v", err)
	}
	path := "/api/challenges/" + ch.ID + "/steps"

	w := env.do(t, http.MethodPost, path, StepRequest{Step: conquest.StepResult, Passed: ptr(true)}, bearer(alice.Token))
	if w.Code != http.StatusConflict {
		t.Fatalf("result before entry: expected 409, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, path, StepRequest{Step: conquest.StepEntry, Evidence: "https://img/e.jpg"}, bearer(alice.Token))
	if w.Code != http.StatusOK {
		t.Fatalf("entry: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, path, StepRequest{Step: conquest.StepResult}, bearer(alice.Token))
	if code := errorCode(t, w); code != "outcome_required" {
		t.Fatalf("expected outcome_required, got %q", code)
	}

	w = env.do(t, http.MethodPost, path, StepRequest{Step: conquest.StepResult, Passed: ptr(true)}, bearer(alice.Token))
	if w.Code != http.StatusOK {
		t.Fatalf("result: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp StepResponse
	decode(t, w, &resp)
	if resp.State != conquest.StatePassed || resp.Location == nil || !resp.Location.Locked {
		t.Fatalf("expected passed and locked, got %+v", resp.StepOutcome)
	}

	w = env.do(t, http.MethodPost, path, StepRequest{Step: conquest.StepEntry, Evidence: "x"}, bearer(bob.Token))
	if code := errorCode(t, w); code != "already_completed" {
		t.Errorf("expected already_completed for the other team, got %q", code)
	}
}

func TestSubmitRateLimit(t *testing.T) {
	env := newTestEnv(t, 6)
	alice := env.join(t, env.red, "alice")

	w := env.do(t, http.MethodPost, "/api/captures",
		CaptureRequest{LocationID: env.crown.ID, Evidence: "x"}, bearer(alice.Token))
	if w.Code != http.StatusOK {
		t.Fatalf("first: expected 200, got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/captures",
		CaptureRequest{LocationID: env.crown.ID, Evidence: "x"}, bearer(alice.Token))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second: expected 429, got %d", w.Code)
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t, 0)
	alice := env.join(t, env.red, "alice")
	bob := env.join(t, env.blue, "bob")

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events?token="+bob.Token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content-type = %q", got)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if data, ok := strings.CutPrefix(lines.Text(), "data: "); ok {
				return data
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}
	next() // ready

	w := env.do(t, http.MethodPost, "/api/captures",
		CaptureRequest{LocationID: env.crown.ID, Evidence: "x"}, bearer(alice.Token))
	if w.Code != http.StatusOK {
		t.Fatalf("capture: expected 200, got %d", w.Code)
	}

	var sawLocation, sawNotice bool
	for !sawLocation || !sawNotice {
		var e realtime.Event
		if err := json.Unmarshal([]byte(next()), &e); err != nil {
			t.Fatalf("decoding event: %v", err)
		}
		switch {
		case e.Change != nil && e.Change.Table == realtime.TableLocations:
			sawLocation = true
		case e.Notification != nil && e.Notification.Kind == conquest.NoticeCapture:
			sawNotice = true
		}
	}
}

func TestWebSocketStream(t *testing.T) {
	env := newTestEnv(t, 0)
	alice := env.join(t, env.red, "alice")

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + srv.URL[len("http"):] + "/api/ws?token=" + alice.Token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	// The subscription is registered after the upgrade completes.
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := env.store.SetGame(ctx, false); err != nil {
		t.Fatalf("toggling game: %v", err)
	}

	var e realtime.Event
	if err := wsjson.Read(ctx, conn, &e); err != nil {
		t.Fatalf("read: %v", err)
	}
	if e.Change == nil || e.Change.Table != realtime.TableGame {
		t.Fatalf("expected a game change, got %+v", e)
	}

	conn.Close(websocket.StatusNormalClosure, "done")
}

func ptr[T any](v T) *T { return &v }
