package medicine

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NormalizePrice converts a stored price into a float. ok is false when the
// value should be left out of aggregates: nil, booleans, containers, and
// strings that hold no parseable number once everything except digits, '.'
// and '-' is stripped ("$12.50" and "12.50 USD" parse, "N/A" does not).
func NormalizePrice(v any) (f float64, ok bool) {
	switch p := v.(type) {
	case nil:
		return 0, false
	case json.Number:
		n, err := p.Float64()
		if err != nil {
			return 0, false
		}
		return finite(n)
	case float64:
		return finite(p)
	case float32:
		return finite(float64(p))
	case int:
		return float64(p), true
	case int8:
		return float64(p), true
	case int16:
		return float64(p), true
	case int32:
		return float64(p), true
	case int64:
		return float64(p), true
	case uint:
		return float64(p), true
	case uint8:
		return float64(p), true
	case uint16:
		return float64(p), true
	case uint32:
		return float64(p), true
	case uint64:
		return float64(p), true
	case string:
		return parsePriceString(p)
	default:
		return 0, false
	}
}

func parsePriceString(s string) (float64, bool) {
	s = strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if s == "" {
		return 0, false
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finite(n)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Summary is the average of the normalizable prices of a collection.
// Average is nil when Count is zero.
type Summary struct {
	Average *float64 `json:"average"`
	Count   int      `json:"count"`
}

func Average(meds []Medicine) Summary {
	prices := make([]float64, 0, len(meds))
	for _, m := range meds {
		if p, ok := NormalizePrice(m.Price); ok {
			prices = append(prices, p)
		}
	}

	if len(prices) == 0 {
		return Summary{}
	}

	avg := round2(mean(prices))
	return Summary{Average: &avg, Count: len(prices)}
}

// mean falls back to summing scaled terms when the plain sum leaves the
// float64 range, so the result stays finite for finite inputs.
func mean(prices []float64) float64 {
	var sum float64
	for _, p := range prices {
		sum += p
	}
	n := float64(len(prices))
	if !math.IsInf(sum, 0) {
		return sum / n
	}

	sum = 0
	for _, p := range prices {
		sum += p / n
	}
	return sum
}

// round2 rounds to two decimals from the exact binary value: 2.675 is stored
// just below the midpoint and gives 2.67, exact ties such as 0.125 go to even.
func round2(f float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 2, 64), 64)
	if err != nil {
		return f
	}
	return r
}
