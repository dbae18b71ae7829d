package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/playperu/pubconquest/internal/conquest"
	"github.com/playperu/pubconquest/internal/store"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

type errorMapping struct {
	status int
	code   string
}

var domainErrors = []struct {
	err error
	errorMapping
}{
	{conquest.ErrGameInactive, errorMapping{http.StatusForbidden, "game_inactive"}},
	{conquest.ErrPlayerNotOnTeam, errorMapping{http.StatusForbidden, "player_not_on_team"}},
	{conquest.ErrEvidenceRequired, errorMapping{http.StatusBadRequest, "evidence_required"}},
	{conquest.ErrOutcomeRequired, errorMapping{http.StatusBadRequest, "outcome_required"}},
	{conquest.ErrInvalidStep, errorMapping{http.StatusBadRequest, "invalid_step"}},
	{conquest.ErrInvalidInput, errorMapping{http.StatusBadRequest, "invalid_input"}},
	{conquest.ErrTeamNotFound, errorMapping{http.StatusNotFound, "team_not_found"}},
	{conquest.ErrPlayerNotFound, errorMapping{http.StatusNotFound, "player_not_found"}},
	{conquest.ErrLocationNotFound, errorMapping{http.StatusNotFound, "location_not_found"}},
	{conquest.ErrChallengeNotFound, errorMapping{http.StatusNotFound, "challenge_not_found"}},
	{conquest.ErrCaptureNotFound, errorMapping{http.StatusNotFound, "capture_not_found"}},
	{conquest.ErrBonusNotFound, errorMapping{http.StatusNotFound, "bonus_not_found"}},
	{conquest.ErrEntryRequired, errorMapping{http.StatusConflict, "entry_required"}},
	{conquest.ErrNameTaken, errorMapping{http.StatusConflict, "name_taken"}},
	{conquest.ErrConflict, errorMapping{http.StatusConflict, "conflict"}},
	{conquest.ErrLocationLocked, errorMapping{http.StatusConflict, "location_locked"}},
	{conquest.ErrAlreadyCompleted, errorMapping{http.StatusConflict, "already_completed"}},
	{conquest.ErrEntryAlreadyPaid, errorMapping{http.StatusConflict, "entry_already_paid"}},
	{conquest.ErrHistoryWriteFailed, errorMapping{http.StatusOK, "history_write_failed"}},
	{conquest.ErrLockFailed, errorMapping{http.StatusOK, "lock_failed"}},
	{store.ErrNoSession, errorMapping{http.StatusUnauthorized, "unauthorized"}},
}

func mapError(err error) (errorMapping, bool) {
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			return d.errorMapping, true
		}
	}
	return errorMapping{}, false
}

// writeDomainError maps rule and store errors to HTTP responses. Anything
// unrecognised is logged and reported as a 500.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	m, ok := mapError(err)
	if !ok || m.status == http.StatusOK {
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeJSON(w, m.status, ErrorResponse{Error: err.Error(), Code: m.code})
}

// warning returns the code of a partial failure, or "" for a clean result.
// ok is false when err is not a partial failure and must be reported as an
// error instead.
func warning(err error) (code string, ok bool) {
	if err == nil {
		return "", true
	}
	if conquest.ClassOf(err) != conquest.ClassPartial {
		return "", false
	}
	m, _ := mapError(err)
	return m.code, true
}

func auditWarning(res conquest.Correction) string {
	if res.AuditErr == nil {
		return ""
	}
	return "audit_write_failed"
}
