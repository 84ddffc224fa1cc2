package aggregation

import (
	"reflect"
	"testing"
)

func TestGroupSuggestions(t *testing.T) {
	rows := []SuggestionRow{
		{Category: "pharmacy", Text: "Review brand-name fills", SortOrder: 3},
		{Category: "imaging", Text: "Route MRIs to freestanding centers", SortOrder: 1},
		{Category: "pharmacy", Text: "Prefer 90-day generics", SortOrder: 2},
	}

	groups := GroupSuggestions(rows)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Category != "imaging" {
		t.Fatalf("expected imaging first (lowest sort order), got %s", groups[0].Category)
	}
	want := []string{"Prefer 90-day generics", "Review brand-name fills"}
	if !reflect.DeepEqual(groups[1].Items, want) {
		t.Fatalf("pharmacy items out of order: %v", groups[1].Items)
	}
}

func TestGroupSuggestionsStableOnTies(t *testing.T) {
	rows := []SuggestionRow{
		{Category: "ed", Text: "first", SortOrder: 1},
		{Category: "ed", Text: "second", SortOrder: 1},
	}
	groups := GroupSuggestions(rows)
	if !reflect.DeepEqual(groups[0].Items, []string{"first", "second"}) {
		t.Fatalf("tied sort orders must keep input order, got %v", groups[0].Items)
	}
}

func TestGroupSuggestionsEmptyInput(t *testing.T) {
	groups := GroupSuggestions(nil)
	if groups == nil || len(groups) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", groups)
	}
}

func TestGroupSuggestionsDoesNotMutateInput(t *testing.T) {
	rows := []SuggestionRow{
		{Category: "a", Text: "later", SortOrder: 9},
		{Category: "a", Text: "earlier", SortOrder: 1},
	}
	GroupSuggestions(rows)
	if rows[0].Text != "later" {
		t.Fatal("input slice was reordered")
	}
}
