package clinic

import "slices"

// Snapshot ranks bots by votes, descending, with ties kept in insertion order.
// Percentages sum to 100 when at least one vote was cast.
func Snapshot(bots []Bot, tally Tally) []StatRow {
	total := 0
	for _, b := range bots {
		total += tally[b.ID]
	}

	rows := make([]StatRow, len(bots))
	for i, b := range bots {
		votes := tally[b.ID]
		pct := 0.0
		if total > 0 {
			pct = float64(votes) / float64(total) * 100
		}
		rows[i] = StatRow{BotID: b.ID, Name: b.Name, Votes: votes, Percentage: pct}
	}
	slices.SortStableFunc(rows, func(a, b StatRow) int {
		return b.Votes - a.Votes
	})
	return rows
}
