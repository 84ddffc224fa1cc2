package aggregation

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestCollapseGapRows(t *testing.T) {
	rows := []GapRow{
		{GapType: "annual_wellness", Name: "Annual Wellness Visit", OpenGaps: "42", DaysOverdue: "71.5", Intervention: "Call overdue patients", SortOrder: 2},
		{GapType: "annual_wellness", Name: "Annual Wellness Visit", OpenGaps: "42", DaysOverdue: "71.5", Intervention: "Send portal reminders", SortOrder: 1},
		{GapType: "a1c_screening", Name: "A1c Screening", OpenGaps: 13, DaysOverdue: 22.0, Intervention: "Standing lab orders", SortOrder: 1},
	}

	metrics := CollapseGapRows(rows)
	if len(metrics) != 2 {
		t.Fatalf("expected 2 collapsed metrics, got %d", len(metrics))
	}

	awv := metrics[0]
	if awv.GapType != "annual_wellness" {
		t.Fatalf("expected first-appearance order, got %s first", awv.GapType)
	}
	if awv.OpenGaps != 42 {
		t.Fatalf("string open_gaps not coerced: %v", awv.OpenGaps)
	}
	if awv.DaysOverdue != 71.5 {
		t.Fatalf("string days_overdue not coerced: %v", awv.DaysOverdue)
	}
	want := []string{"Send portal reminders", "Call overdue patients"}
	if !reflect.DeepEqual(awv.Interventions, want) {
		t.Fatalf("interventions out of order: %v", awv.Interventions)
	}
}

func TestCollapseGapRowsSkipsBlankInterventions(t *testing.T) {
	metrics := CollapseGapRows([]GapRow{
		{GapType: "flu_vaccine", Name: "Flu Vaccine", OpenGaps: 5, DaysOverdue: 10.0},
	})
	if len(metrics) != 1 {
		t.Fatalf("expected 1 metric, got %d", len(metrics))
	}
	if len(metrics[0].Interventions) != 0 {
		t.Fatalf("expected no interventions, got %v", metrics[0].Interventions)
	}
}

func TestCollapseGapRowsEmptyInput(t *testing.T) {
	metrics := CollapseGapRows(nil)
	if metrics == nil || len(metrics) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", metrics)
	}
}

func TestToFloatRepresentations(t *testing.T) {
	cases := []struct {
		in   interface{}
		want float64
	}{
		{"123.45", 123.45},
		{" 67 ", 67},
		{[]byte("8.5"), 8.5},
		{json.Number("9.25"), 9.25},
		{int64(4), 4},
		{nil, 0},
		{"not-a-number", 0},
	}
	for _, c := range cases {
		if got := ToFloat(c.in); got != c.want {
			t.Fatalf("ToFloat(%v): got %v, want %v", c.in, got, c.want)
		}
	}
}

func TestToIntRepresentations(t *testing.T) {
	if got := ToInt("17"); got != 17 {
		t.Fatalf("ToInt string: got %d", got)
	}
	if got := ToInt(json.Number("21")); got != 21 {
		t.Fatalf("ToInt json.Number: got %d", got)
	}
	if got := ToInt(3.9); got != 3 {
		t.Fatalf("ToInt float truncates: got %d", got)
	}
}
