package server

import (
	"net/http"

	"github.com/playperu/pubconquest/internal/conquest"
)

type CaptureRequest struct {
	LocationID string `json:"locationId"`
	Evidence   string `json:"evidence"`
}

type CaptureResponse struct {
	Location conquest.Location  `json:"location"`
	Capture  *conquest.Capture  `json:"capture,omitempty"`
	Previous conquest.Ownership `json:"previous"`
	Warning  string             `json:"warning,omitempty"`
}

func handleCapture(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CaptureRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		player := playerFrom(r)

		res, err := d.resolver.AttemptCapture(r.Context(), conquest.CaptureRequest{
			LocationID: req.LocationID,
			TeamID:     player.TeamID,
			PlayerID:   player.ID,
			Evidence:   req.Evidence,
		})
		code, ok := warning(err)
		if !ok {
			writeDomainError(w, d.logger, err)
			return
		}

		resp := CaptureResponse{Location: res.Location, Previous: res.Previous, Warning: code}
		if code == "" {
			resp.Capture = &res.Capture
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
