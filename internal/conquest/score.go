package conquest

import (
	"context"
	"fmt"
	"sort"
)

type TeamScore struct {
	Team      Team `json:"team"`
	Locations int  `json:"locations"`
	Bonuses   int  `json:"bonuses"`
	Score     int  `json:"score"`
	Rank      int  `json:"rank"`
}

// Score ranks teams by controlled locations plus bonus awards, highest first.
// Equal scores keep the order of teams. Locations or bonuses that reference
// unknown teams are ignored.
func Score(teams []Team, locations []Location, bonuses []Bonus) []TeamScore {
	scores := make([]TeamScore, len(teams))
	index := make(map[string]int, len(teams))
	for i, t := range teams {
		scores[i] = TeamScore{Team: t}
		index[t.ID] = i
	}

	for _, l := range locations {
		if i, ok := index[l.TeamID]; ok && l.TeamID != "" {
			scores[i].Locations++
		}
	}
	for _, b := range bonuses {
		if i, ok := index[b.TeamID]; ok {
			scores[i].Bonuses++
		}
	}
	for i := range scores {
		scores[i].Score = scores[i].Locations + scores[i].Bonuses
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
	return scores
}

// Scoreboard reads the current teams, locations and bonuses and scores them.
func Scoreboard(ctx context.Context, src ScoreSource) ([]TeamScore, error) {
	teams, err := src.Teams(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	locations, err := src.Locations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	bonuses, err := src.Bonuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing bonuses: %w", err)
	}
	return Score(teams, locations, bonuses), nil
}
