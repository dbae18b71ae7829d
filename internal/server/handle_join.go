package server

import (
	"net/http"

	"github.com/playperu/pubconquest/internal/conquest"
)

type JoinRequest struct {
	TeamID   string `json:"teamId"`
	Nickname string `json:"nickname"`
}

type JoinResponse struct {
	Token  string          `json:"token"`
	Player conquest.Player `json:"player"`
	Team   conquest.Team   `json:"team"`
}

func handleListTeams(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teams, err := d.store.Teams(r.Context())
		if err != nil {
			writeDomainError(w, d.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, teams)
	}
}

func handleJoin(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		if req.TeamID == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "teamId and nickname are required")
			return
		}

		team, err := d.store.Team(r.Context(), req.TeamID)
		if err != nil {
			writeDomainError(w, d.logger, err)
			return
		}

		player, token, err := d.store.JoinTeam(r.Context(), team.ID, req.Nickname)
		if err != nil {
			writeDomainError(w, d.logger, err)
			return
		}

		d.logger.Info("player joined", "player_id", player.ID, "team_id", team.ID)
		writeJSON(w, http.StatusOK, JoinResponse{Token: token, Player: player, Team: team})
	}
}
