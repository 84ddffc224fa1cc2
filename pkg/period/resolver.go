package period

import "time"

// Period keys stored in reporting_periods. For the relative keys the key is
// the only durable fact and boundaries are recomputed on every read; custom
// periods carry their stored boundaries instead.
const (
	KeyYTD          = "ytd"
	KeyLast12Months = "last_12_months"
	KeyLastQuarter  = "last_quarter"
	KeyCustom       = "custom"
)

// Window is a closed calendar-day range in the UTC civil calendar.
type Window struct {
	Start time.Time
	End   time.Time
}

const dateLayout = "2006-01-02"

func (w Window) StartDate() string { return w.Start.Format(dateLayout) }
func (w Window) EndDate() string   { return w.End.Format(dateLayout) }

// Custom builds a window from explicitly stored boundaries, normalizing the
// instants to UTC civil dates.
func Custom(start, end time.Time) Window {
	start = start.UTC()
	end = end.UTC()
	return Window{
		Start: civilDate(start.Year(), start.Month(), start.Day()),
		End:   civilDate(end.Year(), end.Month(), end.Day()),
	}
}

// Resolve turns a period key into concrete calendar boundaries relative to
// the supplied reference instant. Callers pass the clock in; Resolve never
// reads wall time itself. Unknown keys resolve to a degenerate single-day
// window rather than an error.
func Resolve(key string, ref time.Time) Window {
	ref = ref.UTC()
	today := civilDate(ref.Year(), ref.Month(), ref.Day())

	switch key {
	case KeyYTD:
		return Window{
			Start: civilDate(ref.Year(), time.January, 1),
			End:   today,
		}
	case KeyLast12Months:
		return Window{
			Start: civilDate(ref.Year()-1, ref.Month(), ref.Day()),
			End:   today,
		}
	case KeyLastQuarter:
		return lastQuarter(ref)
	default:
		return Window{Start: today, End: today}
	}
}

// lastQuarter returns the full quarter immediately preceding the reference
// instant's quarter, rolling into Q4 of the previous year when the
// reference falls in Q1.
func lastQuarter(ref time.Time) Window {
	q := (int(ref.Month()) - 1) / 3 // 0-based quarter index
	year := ref.Year()
	if q == 0 {
		year--
		q = 4
	}
	startMonth := time.Month(3*(q-1) + 1)
	// Day 0 of the month after the quarter is its last calendar day.
	return Window{
		Start: civilDate(year, startMonth, 1),
		End:   civilDate(year, startMonth+3, 0),
	}
}

func civilDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
