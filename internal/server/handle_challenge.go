package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/pubconquest/internal/conquest"
)

type StepRequest struct {
	Step     conquest.Step `json:"step"`
	Evidence string        `json:"evidence"`
	// Passed is required for the result step.
	Passed *bool `json:"passed,omitempty"`
}

type StepResponse struct {
	conquest.StepOutcome
	Warning string `json:"warning,omitempty"`
}

func handleChallengeStep(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StepRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		player := playerFrom(r)

		res, err := d.challenges.SubmitStep(r.Context(), conquest.StepRequest{
			ChallengeID: chi.URLParam(r, "id"),
			TeamID:      player.TeamID,
			PlayerID:    player.ID,
			Step:        req.Step,
			Evidence:    req.Evidence,
			Outcome:     req.Passed,
		})
		code, ok := warning(err)
		if !ok {
			writeDomainError(w, d.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, StepResponse{StepOutcome: res, Warning: code})
	}
}
