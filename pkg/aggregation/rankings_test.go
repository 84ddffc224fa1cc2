package aggregation

import (
	"reflect"
	"testing"

	"github.com/careforward/aco-insights/pkg/common/models"
)

func rankingFixture() []RankingRow {
	inpatient := models.CategoryMeta{Slug: "inpatient", Name: "Inpatient", Amount: 250000}
	imaging := models.CategoryMeta{Slug: "imaging", Name: "Imaging", Amount: 90000}
	return []RankingRow{
		{Category: imaging, Entry: RankedEntry{Rank: 2, Name: "Dr. Patel", Spend: 21000}},
		{Category: inpatient, Entry: RankedEntry{Rank: 1, Name: "Dr. Okafor", Spend: 88000}},
		{Category: imaging, Entry: RankedEntry{Rank: 1, Name: "Dr. Reyes", Spend: 34000}},
		{Category: inpatient, Entry: RankedEntry{Rank: 2, Name: "Dr. Lindqvist", Spend: 61000}},
	}
}

func TestGroupByCategory(t *testing.T) {
	groups := GroupByCategory(rankingFixture())
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	// Category iteration order: amount descending.
	if groups[0].Category.Slug != "inpatient" || groups[1].Category.Slug != "imaging" {
		t.Fatalf("unexpected group order: %s, %s", groups[0].Category.Slug, groups[1].Category.Slug)
	}
	// Entries keep rank order inside each group.
	for _, g := range groups {
		for i, e := range g.Entries {
			if e.Rank != i+1 {
				t.Fatalf("group %s: entry %d has rank %d", g.Category.Slug, i, e.Rank)
			}
		}
	}
	if groups[1].Entries[0].Name != "Dr. Reyes" {
		t.Fatalf("expected rank 1 first, got %s", groups[1].Entries[0].Name)
	}
}

func TestGroupByCategoryIsIdempotent(t *testing.T) {
	rows := rankingFixture()
	first := GroupByCategory(rows)
	second := GroupByCategory(rows)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("grouping the same rows twice produced different output")
	}
}

func TestGroupFlattenRoundTrip(t *testing.T) {
	groups := GroupByCategory(rankingFixture())
	regrouped := GroupByCategory(Flatten(groups))
	if !reflect.DeepEqual(groups, regrouped) {
		t.Fatal("regrouping the flattened output did not reproduce the original grouping")
	}
}

func TestGroupByCategoryEmptyInput(t *testing.T) {
	groups := GroupByCategory(nil)
	if groups == nil || len(groups) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", groups)
	}
}

func TestGroupByCategoryTieBreaksBySlug(t *testing.T) {
	a := models.CategoryMeta{Slug: "alpha", Amount: 100}
	b := models.CategoryMeta{Slug: "beta", Amount: 100}
	groups := GroupByCategory([]RankingRow{
		{Category: b, Entry: RankedEntry{Rank: 1}},
		{Category: a, Entry: RankedEntry{Rank: 1}},
	})
	if groups[0].Category.Slug != "alpha" {
		t.Fatalf("expected slug tiebreak, got %s first", groups[0].Category.Slug)
	}
}
