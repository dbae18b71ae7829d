package server

import (
	"encoding/json"
	"net/http"
	"strings"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/pubconquest/internal/conquest"
	"github.com/playperu/pubconquest/internal/realtime"
)

// idParam documents the {id} path parameter.
type idParam struct {
	ID string `path:"id"`
}

// HealthResponse documents GET /healthz: one status per dependency.
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "PubConquest API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the PubConquest territory game.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/teams
	listTeams, _ := r.NewOperationContext(http.MethodGet, "/api/teams")
	listTeams.SetSummary("List teams")
	listTeams.SetDescription("Teams a new player can join.")
	listTeams.AddRespStructure([]conquest.Team{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listTeams)

	// POST /api/join
	postJoin, _ := r.NewOperationContext(http.MethodPost, "/api/join")
	postJoin.SetSummary("Join a team")
	postJoin.SetDescription("Registers a nickname on a team. Returns the session token used as Bearer token.")
	postJoin.AddReqStructure(JoinRequest{})
	postJoin.AddRespStructure(JoinResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postJoin)

	// GET /api/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/state")
	getState.SetSummary("Game snapshot")
	getState.SetDescription("Full game snapshot with recent history. Requires Bearer token.")
	getState.AddRespStructure(StateResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getState)

	// GET /api/scores
	getScores, _ := r.NewOperationContext(http.MethodGet, "/api/scores")
	getScores.SetSummary("Scoreboard")
	getScores.SetDescription("Teams ranked by controlled locations plus bonus awards.")
	getScores.AddRespStructure([]conquest.TeamScore{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getScores)

	// POST /api/captures
	postCapture, _ := r.NewOperationContext(http.MethodPost, "/api/captures")
	postCapture.SetSummary("Capture a location")
	postCapture.SetDescription("Claims a location for the player's team. A 200 with a warning means ownership changed but the capture record was not written. Requires Bearer token.")
	postCapture.AddReqStructure(CaptureRequest{})
	postCapture.AddRespStructure(CaptureResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postCapture.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postCapture.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postCapture.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postCapture.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postCapture.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusTooManyRequests))
	_ = r.AddOperation(postCapture)

	// POST /api/challenges/{id}/steps
	postStep, _ := r.NewOperationContext(http.MethodPost, "/api/challenges/{id}/steps")
	postStep.SetSummary("Submit a challenge step")
	postStep.SetDescription("Pays the entry or reports the result of a location challenge, or claims a global challenge. Requires Bearer token.")
	postStep.AddReqStructure(idParam{})
	postStep.AddReqStructure(StepRequest{})
	postStep.AddRespStructure(StepResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postStep.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postStep.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postStep.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postStep.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postStep.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusTooManyRequests))
	_ = r.AddOperation(postStep)

	// GET /api/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of store changes and notifications. Pass token as query parameter.")
	getEvents.AddRespStructure(realtime.Event{}, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/api/ws")
	getWS.SetSummary("WebSocket event stream")
	getWS.SetDescription("Same events as /api/events, one JSON message per event. Pass token as query parameter.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	// POST /api/admin/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/admin/login")
	postLogin.SetSummary("Admin login")
	postLogin.SetDescription("Authenticate with the shared admin secret. Sets admin_session cookie.")
	postLogin.AddReqStructure(AdminLoginRequest{})
	postLogin.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/admin/logout
	postLogout, _ := r.NewOperationContext(http.MethodPost, "/api/admin/logout")
	postLogout.SetSummary("Admin logout")
	postLogout.SetDescription("Clears admin session and cookie.")
	postLogout.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postLogout)

	// GET /api/admin/me
	getMe, _ := r.NewOperationContext(http.MethodGet, "/api/admin/me")
	getMe.SetSummary("Current admin")
	getMe.SetDescription("Reports whether the admin_session cookie is valid.")
	getMe.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getMe.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getMe)

	// GET /api/admin/state
	getAdminState, _ := r.NewOperationContext(http.MethodGet, "/api/admin/state")
	getAdminState.SetSummary("Admin snapshot")
	getAdminState.SetDescription("Game snapshot including the recent audit trail. Requires admin_session cookie.")
	getAdminState.AddRespStructure(realtime.Snapshot{}, openapi.WithHTTPStatus(http.StatusOK))
	getAdminState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getAdminState)

	// GET /api/admin/audit
	getAudit, _ := r.NewOperationContext(http.MethodGet, "/api/admin/audit")
	getAudit.SetSummary("Audit trail")
	getAudit.SetDescription("Most recent admin corrections, newest first. Optional ?limit=. Requires admin_session cookie.")
	getAudit.AddRespStructure([]conquest.AuditEntry{}, openapi.WithHTTPStatus(http.StatusOK))
	getAudit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getAudit)

	// POST /api/admin/teams, /locations, /challenges
	setup := []struct {
		path    string
		summary string
		req     any
		resp    any
	}{
		{"/api/admin/teams", "Create team", CreateTeamRequest{}, conquest.Team{}},
		{"/api/admin/locations", "Create location", CreateLocationRequest{}, conquest.Location{}},
		{"/api/admin/challenges", "Create challenge", CreateChallengeRequest{}, conquest.Challenge{}},
	}
	for _, s := range setup {
		op, _ := r.NewOperationContext(http.MethodPost, s.path)
		op.SetSummary(s.summary)
		op.SetDescription("Requires admin_session cookie.")
		op.AddReqStructure(s.req)
		op.AddRespStructure(s.resp, openapi.WithHTTPStatus(http.StatusCreated))
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
		_ = r.AddOperation(op)
	}

	// Corrections all answer with a CorrectionResponse.
	corrections := []struct {
		method  string
		path    string
		summary string
		req     any
	}{
		{http.MethodPut, "/api/admin/game", "Toggle the game", SetGameRequest{}},
		{http.MethodDelete, "/api/admin/captures/{id}", "Undo a capture (?locationId= required)", nil},
		{http.MethodPost, "/api/admin/locations/{id}/reset", "Reset a location to nobody at zero drinks", nil},
		{http.MethodPost, "/api/admin/locations/{id}/replay", "Rebuild ownership from capture history", nil},
		{http.MethodPost, "/api/admin/locations/{id}/lock", "Lock or unlock a location", ToggleLockRequest{}},
		{http.MethodPut, "/api/admin/locations/{id}/owner", "Change a location's owner", ChangeOwnerRequest{}},
		{http.MethodPut, "/api/admin/locations/{id}/drinks", "Set a location's drink count", SetDrinksRequest{}},
		{http.MethodDelete, "/api/admin/challenges/{id}", "Delete a challenge and its history", nil},
		{http.MethodPost, "/api/admin/challenges/{id}/reset", "Reset a challenge's completion and progress", nil},
		{http.MethodDelete, "/api/admin/bonuses/{id}", "Revoke a bonus award", nil},
		{http.MethodPut, "/api/admin/players/{id}/team", "Move a player to another team", ReassignPlayerRequest{}},
		{http.MethodDelete, "/api/admin/players/{id}", "Delete a player", nil},
	}
	for _, c := range corrections {
		op, _ := r.NewOperationContext(c.method, c.path)
		op.SetSummary(c.summary)
		op.SetDescription("Appends one audit entry. auditWarning is set when the change applied but the audit entry was not written. Requires admin_session cookie.")
		if strings.Contains(c.path, "{id}") {
			op.AddReqStructure(idParam{})
		}
		if c.req != nil {
			op.AddReqStructure(c.req)
		}
		op.AddRespStructure(CorrectionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
		_ = r.AddOperation(op)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
