package ledger_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karat/ledger-engine/ledger"
)

// =============================================================================
// DATE NORMALIZATION
// =============================================================================

func TestNormalizeDate_AcceptedForms(t *testing.T) {
	want := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	epoch := want.Unix()

	cases := []struct {
		name  string
		input any
		want  time.Time
	}{
		{"date-only string", "2024-03-15", want},
		{"rfc3339 string", "2024-03-15T10:30:00Z", want.Add(10*time.Hour + 30*time.Minute)},
		{"naive datetime string", "2024-03-15T10:30:00", want.Add(10*time.Hour + 30*time.Minute)},
		{"store-native timestamp", ledger.Timestamp{Seconds: epoch}, want},
		{"store-native pointer", &ledger.Timestamp{Seconds: epoch}, want},
		{"decoded timestamp map", map[string]any{"seconds": float64(epoch)}, want},
		{"decoded timestamp map with json.Number", map[string]any{"seconds": json.Number("1710460800")}, want},
		{"time.Time passthrough", want, want},
		{"epoch int64", epoch, want},
		{"epoch float64", float64(epoch), want},
		{"epoch json.Number", json.Number("1710460800"), want},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ledger.NormalizeDate(tc.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(tc.want), "got %s want %s", got, tc.want)
		})
	}
}

func TestNormalizeDate_RejectedForms(t *testing.T) {
	cases := []struct {
		name  string
		input any
	}{
		{"nil", nil},
		{"garbage string", "not a date"},
		{"empty string", ""},
		{"nan", math.NaN()},
		{"map without seconds", map[string]any{"nanos": 5}},
		{"nil timestamp pointer", (*ledger.Timestamp)(nil)},
		{"zero time", time.Time{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.NormalizeDate(tc.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ledger.ErrInvalidDate)
			assert.True(t, ledger.IsClientError(err))
		})
	}
}

func TestDateOrNow_FallsBackForMissingInput(t *testing.T) {
	before := time.Now().UTC()
	got := ledger.DateOrNow(nil)
	after := time.Now().UTC()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))

	// A parseable input is honored, not replaced.
	fixed := ledger.DateOrNow("2024-03-15")
	assert.Equal(t, 2024, fixed.Year())
	assert.Equal(t, time.March, fixed.Month())
}

func TestCanonicalDate_TruncatesToDay(t *testing.T) {
	late := time.Date(2024, time.March, 15, 23, 59, 59, 0, time.UTC)
	early := time.Date(2024, time.March, 15, 0, 0, 1, 0, time.UTC)

	assert.True(t, ledger.CanonicalDate(late).Equal(ledger.CanonicalDate(early)),
		"same day, different times, same canonical date")
}

// =============================================================================
// AMOUNT NORMALIZATION
// =============================================================================

func TestNormalizeAmount_AcceptedForms(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  string
	}{
		{"decimal string", "12.50", "12.50"},
		{"integer string", "100", "100"},
		{"json.Number", json.Number("99.99"), "99.99"},
		{"float64", 42.5, "42.5"},
		{"int", 7, "7"},
		{"zero", "0", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ledger.NormalizeAmount(tc.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(d(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestNormalizeAmount_RejectedForms(t *testing.T) {
	cases := []struct {
		name  string
		input any
	}{
		{"negative", "-5"},
		{"nan", math.NaN()},
		{"infinity", math.Inf(1)},
		{"garbage string", "twelve"},
		{"nil", nil},
		{"bool", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.NormalizeAmount(tc.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
		})
	}
}

func TestNormalizeBillAmount_RequiresStrictlyPositive(t *testing.T) {
	_, err := ledger.NormalizeBillAmount("0")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	got, err := ledger.NormalizeBillAmount("0.01")
	require.NoError(t, err)
	assert.True(t, got.Equal(d("0.01")))
}
