package spectator

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/playperu/pubconquest/internal/conquest"
	"github.com/playperu/pubconquest/internal/realtime"
)

const clearScreen = "\033[H\033[2J"

// Render writes the scoreboard, the locations and the latest captures.
// Rows that changed within the animation window are marked with '*'.
func Render(w io.Writer, rec *realtime.Reconciler, clear bool) error {
	scores, err := rec.Scores()
	if err != nil {
		return err
	}
	teams := make(map[string]string, len(scores))
	for _, s := range scores {
		teams[s.Team.ID] = s.Team.Name
	}

	locations, err := realtime.Decode[conquest.Location](rec, realtime.TableLocations)
	if err != nil {
		return err
	}
	slices.SortFunc(locations, func(a, b conquest.Location) int { return cmp.Compare(a.Name, b.Name) })

	captures, err := realtime.Decode[conquest.Capture](rec, realtime.TableCaptures)
	if err != nil {
		return err
	}

	if clear {
		fmt.Fprint(w, clearScreen)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "RANK\tTEAM\tPUBS\tBONUS\tSCORE\t")
	for _, s := range scores {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\n", s.Rank, s.Team.Name, s.Locations, s.Bonuses, s.Score,
			mark(rec, realtime.TableTeams, s.Team.ID))
	}
	fmt.Fprintln(tw, "\t\t\t\t\t")

	fmt.Fprintln(tw, "PUB\tOWNER\tDRINKS\tLOCKED\t\t")
	for _, l := range locations {
		owner := teams[l.TeamID]
		if owner == "" {
			owner = "-"
		}
		locked := ""
		if l.Locked {
			locked = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t\t%s\n", l.Name, owner, l.DrinkCount, locked,
			mark(rec, realtime.TableLocations, l.ID))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(captures) > 0 {
		fmt.Fprintln(w, "\nLatest captures")
		for _, c := range captures[:min(len(captures), 5)] {
			fmt.Fprintf(w, "  %s  %s took %s at %d drinks %s\n",
				c.CreatedAt.Local().Format("15:04:05"), teams[c.TeamID], locationName(locations, c.LocationID),
				c.DrinkCount, mark(rec, realtime.TableCaptures, c.ID))
		}
	}
	return nil
}

func mark(rec *realtime.Reconciler, t realtime.Table, id string) string {
	if rec.Animating(realtime.Key{Table: t, ID: id}) {
		return "*"
	}
	return ""
}

func locationName(locations []conquest.Location, id string) string {
	for _, l := range locations {
		if l.ID == id {
			return l.Name
		}
	}
	return id
}
