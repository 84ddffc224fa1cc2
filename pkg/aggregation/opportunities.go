package aggregation

import (
	"sort"

	"github.com/careforward/aco-insights/pkg/common/models"
)

// Opportunity types. An opportunity is overspending iff its amount variance
// is positive; the deriver sets both from the same computed value so sign
// and type cannot diverge.
const (
	TypeOverspending = "overspending"
	TypeEfficient    = "efficient"
)

// PartitionOpportunities splits derived opportunities into the two display
// lists the dashboard shows: cost-saving targets (overspending) and top
// performing categories (efficient). Only visible records survive. Both
// lists order by display order ascending, breaking ties by absolute amount
// variance descending.
func PartitionOpportunities(opps []models.CostOpportunity) (saving, performing []models.CostOpportunity) {
	saving = make([]models.CostOpportunity, 0, len(opps))
	performing = make([]models.CostOpportunity, 0, len(opps))

	for _, opp := range opps {
		if !opp.Visible {
			continue
		}
		switch opp.Type {
		case TypeOverspending:
			saving = append(saving, opp)
		case TypeEfficient:
			performing = append(performing, opp)
		}
	}

	sortByDisplayOrder(saving)
	sortByDisplayOrder(performing)
	return saving, performing
}

func sortByDisplayOrder(opps []models.CostOpportunity) {
	sort.SliceStable(opps, func(a, b int) bool {
		if opps[a].DisplayOrder != opps[b].DisplayOrder {
			return opps[a].DisplayOrder < opps[b].DisplayOrder
		}
		return absFloat(opps[a].AmountVariance) > absFloat(opps[b].AmountVariance)
	})
}

// OpportunityTotals sums the two sides of the board: positive variances as
// potential savings, negative ones as realized efficiency.
func OpportunityTotals(saving, performing []models.CostOpportunity) (savingsTotal, efficiencyTotal float64) {
	for _, opp := range saving {
		savingsTotal += opp.AmountVariance
	}
	for _, opp := range performing {
		efficiencyTotal += -opp.AmountVariance
	}
	return savingsTotal, efficiencyTotal
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
