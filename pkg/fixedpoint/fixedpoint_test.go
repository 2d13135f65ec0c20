package fixedpoint

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	cases := []struct {
		in       string
		decimals int
		want     string
	}{
		{"1", 9, "1000000000"},
		{"1.5", 9, "1500000000"},
		{"0.000000001", 9, "1"},
		{"5", 0, "5"},
		{".5", 2, "50"},          // missing integer part defaults to 0
		{"5.", 2, "500"},         // missing fractional part defaults to 0
		{"1.23456", 2, "123"},    // truncated, not rounded
		{"1.99999", 2, "199"},    // 1.99999 -> 1.99, never 2.00
		{"0", 6, "0"},
		{"  2.5 ", 1, "25"},
		{"-1.5", 9, "-1500000000"}, // sign carried through; gating is the caller's job
		{"+2", 2, "200"},
		{"-.5", 2, "-50"},
	}

	for _, tc := range cases {
		units, err := ParseUnits(tc.in, tc.decimals)
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, units.String(), "input %q at %d decimals", tc.in, tc.decimals)
	}
}

func TestParseUnitsMalformed(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "1,5", "1e9", "-", "+", "--1", "-a.5"} {
		_, err := ParseUnits(in, 9)
		assert.Error(t, err, "input %q", in)
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		units    string
		decimals int
		want     string
	}{
		{"1000000000", 9, "1"},
		{"1500000000", 9, "1.5"},
		{"1", 9, "0.000000001"},
		{"123", 2, "1.23"},
		{"120", 2, "1.2"}, // trailing zeros trimmed
		{"0", 9, "0"},
		{"5", 0, "5"},
		{"-1500000000", 9, "-1.5"},
	}

	for _, tc := range cases {
		units := decimal.RequireFromString(tc.units)
		assert.Equal(t, tc.want, FormatUnits(units, tc.decimals), "units %s at %d decimals", tc.units, tc.decimals)
	}
}

// Round trip: parse then format equals the input truncated to the asset's
// precision.
func TestRoundTrip(t *testing.T) {
	cases := []struct {
		in       string
		decimals int
		want     string
	}{
		{"1.5", 9, "1.5"},
		{"1.23456789", 4, "1.2345"},
		{"100", 6, "100"},
		{"0.1", 1, "0.1"},
		{"3.14159", 2, "3.14"},
		{"7.000", 3, "7"},
		{".25", 2, "0.25"},
		{"-1.50", 2, "-1.5"},
	}

	for _, tc := range cases {
		units, err := ParseUnits(tc.in, tc.decimals)
		require.NoError(t, err)
		assert.Equal(t, tc.want, FormatUnits(units, tc.decimals), "input %q", tc.in)
	}
}

func TestTruncate(t *testing.T) {
	got, err := Truncate("12.3456", 2)
	require.NoError(t, err)
	assert.Equal(t, "12.34", got)

	_, err = Truncate("not-a-number", 2)
	assert.Error(t, err)
}
