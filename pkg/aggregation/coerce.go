package aggregation

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Store drivers hand back numeric columns in whatever representation the
// wire gave them (string decimals, json.Number, ints). All coercion to Go
// numerics happens here, at the boundary, before any derived-metric math.

func ToFloat(v interface{}) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return 0
	case []byte:
		return parseFloat(string(n))
	case string:
		return parseFloat(n)
	default:
		return 0
	}
}

func ToInt(v interface{}) int {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		return int(ToFloat(v))
	case []byte:
		return int(parseFloat(string(n)))
	case string:
		return int(parseFloat(n))
	default:
		return 0
	}
}

func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
