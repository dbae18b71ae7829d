// Package seed loads teams, locations and challenges from a YAML file so a
// night out can be prepared before anyone joins.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/playperu/pubconquest/internal/conquest"
	"github.com/playperu/pubconquest/internal/store"
)

type File struct {
	Teams      []Team      `yaml:"teams"`
	Locations  []Location  `yaml:"locations"`
	Challenges []Challenge `yaml:"challenges"`
	// Active starts the game once the seed is applied.
	Active bool `yaml:"active"`
}

type Team struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

type Location struct {
	Name string   `yaml:"name"`
	Lat  *float64 `yaml:"lat"`
	Lng  *float64 `yaml:"lng"`
}

// Challenge refers to its location by name. Global challenges leave it empty.
type Challenge struct {
	Kind        conquest.ChallengeKind `yaml:"kind"`
	Title       string                 `yaml:"title"`
	Description string                 `yaml:"description"`
	Location    string                 `yaml:"location"`
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	for i, c := range f.Challenges {
		if c.Kind == "" {
			f.Challenges[i].Kind = conquest.KindLocation
			if c.Location == "" {
				f.Challenges[i].Kind = conquest.KindGlobal
			}
		}
	}
	return &f, nil
}

// Apply creates every entry whose name (or challenge title) does not exist
// yet. Running it twice changes nothing.
func Apply(ctx context.Context, st *store.Store, f *File, logger *slog.Logger) error {
	teams, err := st.Teams(ctx)
	if err != nil {
		return fmt.Errorf("listing teams: %w", err)
	}
	haveTeam := make(map[string]bool, len(teams))
	for _, t := range teams {
		haveTeam[t.Name] = true
	}
	for _, t := range f.Teams {
		if haveTeam[t.Name] {
			continue
		}
		if _, err := st.CreateTeam(ctx, t.Name, t.Color); err != nil {
			return fmt.Errorf("creating team %q: %w", t.Name, err)
		}
		haveTeam[t.Name] = true
		logger.Info("seeded team", "name", t.Name)
	}

	locations, err := st.Locations(ctx)
	if err != nil {
		return fmt.Errorf("listing locations: %w", err)
	}
	locationIDs := make(map[string]string, len(locations))
	for _, l := range locations {
		locationIDs[l.Name] = l.ID
	}
	for _, l := range f.Locations {
		if _, ok := locationIDs[l.Name]; ok {
			continue
		}
		loc, err := st.CreateLocation(ctx, l.Name, l.Lat, l.Lng)
		if err != nil {
			return fmt.Errorf("creating location %q: %w", l.Name, err)
		}
		locationIDs[l.Name] = loc.ID
		logger.Info("seeded location", "name", l.Name)
	}

	challenges, err := st.Challenges(ctx)
	if err != nil {
		return fmt.Errorf("listing challenges: %w", err)
	}
	haveChallenge := make(map[string]bool, len(challenges))
	for _, c := range challenges {
		haveChallenge[c.Title] = true
	}
	for _, c := range f.Challenges {
		if haveChallenge[c.Title] {
			continue
		}
		nc := store.NewChallenge{Kind: c.Kind, Title: c.Title, Description: c.Description}
		if c.Location != "" {
			id, ok := locationIDs[c.Location]
			if !ok {
				return fmt.Errorf("challenge %q: unknown location %q", c.Title, c.Location)
			}
			nc.LocationID = id
		}
		if _, err := st.CreateChallenge(ctx, nc); err != nil {
			return fmt.Errorf("creating challenge %q: %w", c.Title, err)
		}
		haveChallenge[c.Title] = true
		logger.Info("seeded challenge", "title", c.Title)
	}

	if f.Active {
		if _, err := st.SetGame(ctx, true); err != nil {
			return fmt.Errorf("starting game: %w", err)
		}
	}
	return nil
}
