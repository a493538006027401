package tags

import "github.com/dmitrijs2005/daybook/internal/client/models"

// Total is the aggregated time for one label.
type Total struct {
	Label   string
	Minutes int
	Count   int
}

// Totals aggregates activities per label in order of first appearance.
// Items without a duration count towards Count only.
func Totals(items []models.TaggedActivity) []Total {
	idx := make(map[string]int, len(items))
	var out []Total
	for _, it := range items {
		i, ok := idx[it.Label]
		if !ok {
			i = len(out)
			idx[it.Label] = i
			out = append(out, Total{Label: it.Label})
		}
		out[i].Count++
		if it.Minutes != nil {
			out[i].Minutes += *it.Minutes
		}
	}
	return out
}
