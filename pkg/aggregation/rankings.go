package aggregation

import (
	"sort"

	"github.com/careforward/aco-insights/pkg/common/models"
)

// RankedEntry is one doctor or patient scored within a category. Rank is a
// dense ordering scoped to the category, increasing as spend decreases.
type RankedEntry struct {
	Rank  int
	Ref   string
	Name  string
	Spend float64
	Count int
}

// RankingRow is one flat (category, entity) pair as joined by the store.
type RankingRow struct {
	Category models.CategoryMeta
	Entry    RankedEntry
}

type RankingGroup struct {
	Category models.CategoryMeta
	Entries  []RankedEntry
}

// GroupByCategory folds flat ranking rows into per-category groups. Groups
// iterate by category amount descending (slug ascending on ties, so the
// output is deterministic for any input order); entries keep their dense
// rank order. An empty input yields an empty, non-nil slice.
func GroupByCategory(rows []RankingRow) []RankingGroup {
	index := make(map[string]int)
	groups := make([]RankingGroup, 0, len(rows))

	for _, row := range rows {
		i, ok := index[row.Category.Slug]
		if !ok {
			i = len(groups)
			index[row.Category.Slug] = i
			groups = append(groups, RankingGroup{Category: row.Category})
		}
		groups[i].Entries = append(groups[i].Entries, row.Entry)
	}

	for i := range groups {
		entries := groups[i].Entries
		sort.SliceStable(entries, func(a, b int) bool {
			return entries[a].Rank < entries[b].Rank
		})
	}

	sort.SliceStable(groups, func(a, b int) bool {
		if groups[a].Category.Amount != groups[b].Category.Amount {
			return groups[a].Category.Amount > groups[b].Category.Amount
		}
		return groups[a].Category.Slug < groups[b].Category.Slug
	})

	return groups
}

// Flatten is the inverse of GroupByCategory; regrouping its output
// reproduces the same groups.
func Flatten(groups []RankingGroup) []RankingRow {
	rows := make([]RankingRow, 0, len(groups))
	for _, g := range groups {
		for _, e := range g.Entries {
			rows = append(rows, RankingRow{Category: g.Category, Entry: e})
		}
	}
	return rows
}
