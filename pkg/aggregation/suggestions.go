package aggregation

import (
	"sort"

	"github.com/careforward/aco-insights/pkg/common/models"
)

// SuggestionRow is one flat suggestion as stored: free text tied to a
// category with an explicit sort position.
type SuggestionRow struct {
	Category  string
	Text      string
	SortOrder int
}

// GroupSuggestions folds flat suggestion rows into per-category ordered
// lists. Rows sort stably by sort order first, so items inside a group are
// ordered and groups appear in the order their first item surfaces.
func GroupSuggestions(rows []SuggestionRow) []models.SuggestionGroup {
	sorted := make([]SuggestionRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].SortOrder < sorted[b].SortOrder
	})

	index := make(map[string]int)
	groups := make([]models.SuggestionGroup, 0, len(sorted))
	for _, row := range sorted {
		i, ok := index[row.Category]
		if !ok {
			i = len(groups)
			index[row.Category] = i
			groups = append(groups, models.SuggestionGroup{Category: row.Category})
		}
		groups[i].Items = append(groups[i].Items, row.Text)
	}
	return groups
}
