package server

import (
	"net/http"

	"github.com/playperu/pubconquest/internal/conquest"
	"github.com/playperu/pubconquest/internal/store"
)

type CreateTeamRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type CreateLocationRequest struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat,omitempty"`
	Lng  *float64 `json:"lng,omitempty"`
}

type CreateChallengeRequest struct {
	Kind        conquest.ChallengeKind `json:"kind"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	LocationID  string                 `json:"locationId,omitempty"`
}

func handleAdminCreateTeam(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTeamRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		team, err := d.store.CreateTeam(r.Context(), req.Name, req.Color)
		if err != nil {
			writeDomainError(w, d.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, team)
	}
}

func handleAdminCreateLocation(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateLocationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		loc, err := d.store.CreateLocation(r.Context(), req.Name, req.Lat, req.Lng)
		if err != nil {
			writeDomainError(w, d.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, loc)
	}
}

func handleAdminCreateChallenge(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateChallengeRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		ch, err := d.store.CreateChallenge(r.Context(), store.NewChallenge{
			Kind:        req.Kind,
			Title:       req.Title,
			Description: req.Description,
			LocationID:  req.LocationID,
		})
		if err != nil {
			writeDomainError(w, d.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, ch)
	}
}
