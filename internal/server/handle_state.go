package server

import (
	"net/http"

	"github.com/playperu/pubconquest/internal/conquest"
	"github.com/playperu/pubconquest/internal/realtime"
)

// StateResponse is the snapshot a player client starts from.
type StateResponse struct {
	Me conquest.Player `json:"me"`
	realtime.Snapshot
}

func handleState(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := realtime.BuildSnapshot(r.Context(), d.store, d.history, false)
		if err != nil {
			writeDomainError(w, d.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, StateResponse{Me: playerFrom(r), Snapshot: snap})
	}
}

func handleScores(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scores, err := conquest.Scoreboard(r.Context(), d.store)
		if err != nil {
			writeDomainError(w, d.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, scores)
	}
}

func handleAdminState(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := realtime.BuildSnapshot(r.Context(), d.store, d.history, true)
		if err != nil {
			writeDomainError(w, d.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
