package conquest

// FoldOwnership replays captures, oldest first, on top of base. Each capture
// hands the location to its team and adds one drink. The lock state of base
// is left alone.
func FoldOwnership(base Ownership, captures []Capture) Ownership {
	o := base
	for _, c := range captures {
		o.TeamID = c.TeamID
		o.DrinkCount++
	}
	return o
}

// latestOwnership is the ownership implied by a newest-first history: the
// head capture's team and count, or nobody at zero when empty.
func latestOwnership(base Ownership, newestFirst []Capture) Ownership {
	o := base
	if len(newestFirst) == 0 {
		o.TeamID = ""
		o.DrinkCount = 0
		return o
	}
	o.TeamID = newestFirst[0].TeamID
	o.DrinkCount = newestFirst[0].DrinkCount
	return o
}
