package ledger

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE NORMALIZATION
// =============================================================================

// Accepted string layouts, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// NormalizeDate coerces the heterogeneous date shapes found in exported
// customer documents into a single time.Time (UTC).
//
// Accepted forms, checked in order:
//  1. Timestamp / *Timestamp (store-native, {seconds, nanos})
//  2. map with a "seconds" field (store-native after generic JSON decode)
//  3. time.Time / *time.Time
//  4. ISO-like string
//  5. integer or float epoch seconds
//
// Store-native shapes must be resolved before string/number parsing: a
// Timestamp is never a valid argument to time.Parse.
func NormalizeDate(input any) (time.Time, error) {
	switch v := input.(type) {
	case Timestamp:
		return v.Time(), nil
	case *Timestamp:
		if v != nil {
			return v.Time(), nil
		}
	case map[string]any:
		if secs, ok := mapSeconds(v); ok {
			return time.Unix(secs, 0).UTC(), nil
		}
	case time.Time:
		if !v.IsZero() {
			return v.UTC(), nil
		}
	case *time.Time:
		if v != nil && !v.IsZero() {
			return v.UTC(), nil
		}
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), nil
			}
		}
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case float64:
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return time.Unix(int64(v), 0).UTC(), nil
		}
	case json.Number:
		if secs, err := v.Int64(); err == nil {
			return time.Unix(secs, 0).UTC(), nil
		}
	}
	return time.Time{}, &InvalidDateError{Input: input}
}

func mapSeconds(m map[string]any) (int64, bool) {
	raw, ok := m["seconds"]
	if !ok {
		return 0, false
	}
	switch s := raw.(type) {
	case int64:
		return s, true
	case int:
		return int64(s), true
	case float64:
		return int64(s), true
	case json.Number:
		if n, err := s.Int64(); err == nil {
			return n, true
		}
	case string:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// DateOrNow normalizes input, falling back to the current time when the
// input is nil or uninterpretable. Used where a date is required but the
// caller's date field is optional.
func DateOrNow(input any) time.Time {
	if input == nil {
		return time.Now().UTC()
	}
	t, err := NormalizeDate(input)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

// CanonicalDate truncates to day granularity in UTC. Allocation ordering
// compares dates at this granularity.
func CanonicalDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// AMOUNT NORMALIZATION
// =============================================================================

// NormalizeAmount parses a monetary input into a decimal. Rejects negative
// and non-finite values. Zero is allowed; bill amounts that must be strictly
// positive go through NormalizeBillAmount.
func NormalizeAmount(input any) (decimal.Decimal, error) {
	var d decimal.Decimal
	switch v := input.(type) {
	case decimal.Decimal:
		d = v
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, &InvalidAmountError{Input: input, Reason: "not a number"}
		}
		d = parsed
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, &InvalidAmountError{Input: input, Reason: "not finite"}
		}
		d = decimal.NewFromFloat(v)
	case float32:
		return NormalizeAmount(float64(v))
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case json.Number:
		return NormalizeAmount(string(v))
	default:
		return decimal.Zero, &InvalidAmountError{Input: input, Reason: "unsupported type"}
	}
	if d.IsNegative() {
		return decimal.Zero, &InvalidAmountError{Input: input, Reason: "negative"}
	}
	return d, nil
}

// NormalizeBillAmount is NormalizeAmount with a strict positivity check.
func NormalizeBillAmount(input any) (decimal.Decimal, error) {
	d, err := NormalizeAmount(input)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, &InvalidAmountError{Input: input, Reason: "bill amount must be > 0"}
	}
	return d, nil
}
