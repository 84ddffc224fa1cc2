package metrics

import "errors"

// ErrZeroBenchmark marks a variance-percent computation against a zero
// benchmark. The amount is still meaningful; the percent is undefined and
// callers must classify the row as unknown rather than coerce to 0 or Inf.
var ErrZeroBenchmark = errors.New("variance percent undefined: benchmark is zero")

// Classification labels.
const (
	StatusRed     = "red"
	StatusYellow  = "yellow"
	StatusGreen   = "green"
	StatusUnknown = "unknown"
)

type Result struct {
	Amount         float64
	Percent        float64
	AboveBenchmark bool
}

// Compute derives the variance of an actual/benchmark pair. Pure: identical
// inputs always yield identical output.
func Compute(actual, benchmark float64) (Result, error) {
	amount := actual - benchmark
	res := Result{
		Amount:         amount,
		AboveBenchmark: amount > 0,
	}
	if benchmark == 0 {
		return res, ErrZeroBenchmark
	}
	res.Percent = amount / benchmark * 100
	return res, nil
}

// Classify maps a variance onto the red/yellow/green scale using the
// definition's declared polarity and thresholds. Favorable variances are
// always green; unfavorable ones escalate once their magnitude crosses the
// yellow and red thresholds.
func (d Definition) Classify(r Result) string {
	unfavorable := r.AboveBenchmark
	if d.Polarity == HigherIsBetter {
		unfavorable = !r.AboveBenchmark && r.Amount != 0
	}
	if !unfavorable {
		return StatusGreen
	}

	magnitude := abs(r.Percent)
	if d.Basis == BasisValue {
		magnitude = abs(r.Amount)
	}
	switch {
	case magnitude > d.Red:
		return StatusRed
	case magnitude > d.Yellow:
		return StatusYellow
	default:
		return StatusGreen
	}
}

// ClassifyPair computes and classifies in one step, returning unknown when
// a percent-based definition meets a zero benchmark.
func (d Definition) ClassifyPair(actual, benchmark float64) (Result, string) {
	res, err := Compute(actual, benchmark)
	if err != nil {
		if d.Basis == BasisValue {
			// Value-based thresholds never divide by the benchmark.
			return res, d.Classify(res)
		}
		return res, StatusUnknown
	}
	return res, d.Classify(res)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
