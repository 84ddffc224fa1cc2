package aggregation

import (
	"sort"

	"github.com/careforward/aco-insights/pkg/common/models"
)

// GapRow is one metric+intervention join row: the store fans a gap metric
// out across its N intervention rows, repeating the metric columns on each.
// Numeric columns arrive in whatever type the driver produced and are
// coerced here.
type GapRow struct {
	GapType      string
	Name         string
	OpenGaps     interface{}
	DaysOverdue  interface{}
	Intervention string
	SortOrder    int
}

// CollapseGapRows reduces joined rows to one record per gap type carrying
// an ordered intervention list. Record order follows the first appearance
// of each gap type; interventions order by their own sort order.
// Classification is left for the caller to derive from the metric catalog.
func CollapseGapRows(rows []GapRow) []models.CareGapMetric {
	type pending struct {
		metric        models.CareGapMetric
		interventions []SuggestionRow
	}

	index := make(map[string]int)
	collapsed := make([]*pending, 0, len(rows))

	for _, row := range rows {
		i, ok := index[row.GapType]
		if !ok {
			i = len(collapsed)
			index[row.GapType] = i
			collapsed = append(collapsed, &pending{metric: models.CareGapMetric{
				GapType:     row.GapType,
				Name:        row.Name,
				OpenGaps:    ToInt(row.OpenGaps),
				DaysOverdue: ToFloat(row.DaysOverdue),
			}})
		}
		if row.Intervention != "" {
			collapsed[i].interventions = append(collapsed[i].interventions, SuggestionRow{
				Text:      row.Intervention,
				SortOrder: row.SortOrder,
			})
		}
	}

	out := make([]models.CareGapMetric, 0, len(collapsed))
	for _, p := range collapsed {
		sort.SliceStable(p.interventions, func(a, b int) bool {
			return p.interventions[a].SortOrder < p.interventions[b].SortOrder
		})
		p.metric.Interventions = make([]string, 0, len(p.interventions))
		for _, iv := range p.interventions {
			p.metric.Interventions = append(p.metric.Interventions, iv.Text)
		}
		out = append(out, p.metric)
	}
	return out
}
