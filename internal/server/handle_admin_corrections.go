package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/pubconquest/internal/conquest"
)

// CorrectionResponse wraps every admin correction result. AuditWarning is
// set when the change was applied but its audit entry was not written.
type CorrectionResponse struct {
	conquest.Correction
	AuditWarning string `json:"auditWarning,omitempty"`
}

type SetGameRequest struct {
	Active bool `json:"active"`
}

type ChangeOwnerRequest struct {
	TeamID string `json:"teamId"`
}

type SetDrinksRequest struct {
	DrinkCount *int64 `json:"drinkCount"`
}

type ToggleLockRequest struct {
	Locked bool `json:"locked"`
}

type ReassignPlayerRequest struct {
	TeamID string `json:"teamId"`
}

// correct runs fn and writes its result. Each correction handler only
// decodes its input.
func correct(d *deps, w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) (conquest.Correction, error)) {
	res, err := fn(r.Context())
	if err != nil {
		writeDomainError(w, d.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, CorrectionResponse{Correction: res, AuditWarning: auditWarning(res)})
}

func handleAdminSetGame(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetGameRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		correct(d, w, r, func(ctx context.Context) (conquest.Correction, error) {
			return d.corrections.SetGameActive(ctx, req.Active)
		})
	}
}

func handleAdminUndoCapture(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID := r.URL.Query().Get("locationId")
		if locationID == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "locationId query parameter required")
			return
		}
		correct(d, w, r, func(ctx context.Context) (conquest.Correction, error) {
			return d.corrections.UndoCapture(ctx, chi.URLParam(r, "id"), locationID)
		})
	}
}

func handleAdminResetLocation(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correct(d, w, r, func(ctx context.Context) (conquest.Correction, error) {
			return d.corrections.ResetLocation(ctx, chi.URLParam(r, "id"))
		})
	}
}

func handleAdminReplayLocation(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correct(d, w, r, func(ctx context.Context) (conquest.Correction, error) {
			return d.corrections.ReplayLocation(ctx, chi.URLParam(r, "id"))
		})
	}
}

func handleAdminToggleLock(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ToggleLockRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		correct(d, w, r, func(ctx context.Context) (conquest.Correction, error) {
			return d.corrections.ToggleLock(ctx, chi.URLParam(r, "id"), req.Locked)
		})
	}
}

func handleAdminChangeOwner(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChangeOwnerRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		correct(d, w, r, func(ctx context.Context) (conquest.Correction, error) {
			return d.corrections.ChangeOwner(ctx, chi.URLParam(r, "id"), req.TeamID)
		})
	}
}

func handleAdminSetDrinks(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetDrinksRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		if req.DrinkCount == nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "drinkCount is required")
			return
		}
		correct(d, w, r, func(ctx context.Context) (conquest.Correction, error) {
			return d.corrections.SetDrinkCount(ctx, chi.URLParam(r, "id"), *req.DrinkCount)
		})
	}
}

func handleAdminDeleteChallenge(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correct(d, w, r, func(ctx context.Context) (conquest.Correction, error) {
			return d.corrections.DeleteChallenge(ctx, chi.URLParam(r, "id"))
		})
	}
}

func handleAdminResetChallenge(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correct(d, w, r, func(ctx context.Context) (conquest.Correction, error) {
			return d.corrections.ResetChallenge(ctx, chi.URLParam(r, "id"))
		})
	}
}

func handleAdminRevokeBonus(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correct(d, w, r, func(ctx context.Context) (conquest.Correction, error) {
			return d.corrections.RevokeBonus(ctx, chi.URLParam(r, "id"))
		})
	}
}

func handleAdminReassignPlayer(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReassignPlayerRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		correct(d, w, r, func(ctx context.Context) (conquest.Correction, error) {
			return d.corrections.ReassignPlayer(ctx, chi.URLParam(r, "id"), req.TeamID)
		})
	}
}

func handleAdminDeletePlayer(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correct(d, w, r, func(ctx context.Context) (conquest.Correction, error) {
			return d.corrections.DeletePlayer(ctx, chi.URLParam(r, "id"))
		})
	}
}

func handleAdminAudit(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_input", "limit must be a positive integer")
				return
			}
			limit = min(n, 1000)
		}
		entries, err := d.store.RecentAudit(r.Context(), limit)
		if err != nil {
			writeDomainError(w, d.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
