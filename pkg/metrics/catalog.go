package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Polarity declares which direction of a metric is favorable. It is an
// explicit attribute per metric type, never inferred from the variance sign.
const (
	LowerIsBetter  = "lower_is_better"
	HigherIsBetter = "higher_is_better"
)

// Threshold basis: percent compares |variance percent|, value compares the
// raw unfavorable magnitude (e.g. days overdue on care gaps).
const (
	BasisPercent = "percent"
	BasisValue   = "value"
)

type Definition struct {
	Type     string  `yaml:"type" json:"type"`
	Polarity string  `yaml:"polarity" json:"polarity"`
	Basis    string  `yaml:"basis" json:"basis"`
	Red      float64 `yaml:"red" json:"red"`
	Yellow   float64 `yaml:"yellow" json:"yellow"`
}

type Catalog struct {
	Metrics []Definition `yaml:"metrics" json:"metrics"`
}

// Load reads metric definitions from a YAML file, falling back to the
// built-in catalog when no path is configured.
func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}

	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Metrics) == 0 {
		return Catalog{}, fmt.Errorf("metric catalog empty")
	}
	for _, def := range cat.Metrics {
		if def.Polarity != LowerIsBetter && def.Polarity != HigherIsBetter {
			return Catalog{}, fmt.Errorf("metric %s: unknown polarity %q", def.Type, def.Polarity)
		}
	}
	return cat, nil
}

func DefaultCatalog() Catalog {
	return Catalog{Metrics: []Definition{
		{Type: "cost_category", Polarity: LowerIsBetter, Basis: BasisPercent, Red: 3, Yellow: 1},
		{Type: "pmpm", Polarity: LowerIsBetter, Basis: BasisPercent, Red: 3, Yellow: 1},
		{Type: "readmission_rate", Polarity: LowerIsBetter, Basis: BasisPercent, Red: 3, Yellow: 1},
		{Type: "ed_utilization", Polarity: LowerIsBetter, Basis: BasisPercent, Red: 5, Yellow: 2},
		{Type: "wellness_visit_rate", Polarity: HigherIsBetter, Basis: BasisPercent, Red: 10, Yellow: 5},
		{Type: "quality_score", Polarity: HigherIsBetter, Basis: BasisPercent, Red: 5, Yellow: 2},
		{Type: "care_gap", Polarity: LowerIsBetter, Basis: BasisValue, Red: 60, Yellow: 30},
	}}
}

// Lookup finds the definition for a metric type. Unknown types fall back to
// the cost_category definition so a new metric degrades to the strictest
// cost rules instead of silently going unclassified.
func (c Catalog) Lookup(metricType string) Definition {
	key := strings.ToLower(strings.TrimSpace(metricType))
	for _, def := range c.Metrics {
		if def.Type == key {
			return def
		}
	}
	for _, def := range c.Metrics {
		if def.Type == "cost_category" {
			return def
		}
	}
	return Definition{Type: key, Polarity: LowerIsBetter, Basis: BasisPercent, Red: 3, Yellow: 1}
}
