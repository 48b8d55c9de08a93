package core

import (
	"errors"
	"math"
	"strconv"
	"testing"
)

func TestNormalizePrice(t *testing.T) {
	nan := math.NaN()
	cases := []struct {
		in   any
		want *float64
	}{
		{"12.5", ptr(12.5)},
		{" 7 ", ptr(7)},
		{"0", ptr(0)},
		{"1e3", ptr(1000)},
		{42.0, ptr(42)},
		{3, ptr(3)},
		{"", nil},
		{"   ", nil},
		{nil, nil},
		{"abc", nil},
		{"12abc", nil},
		{"0x10", nil},
		{"0x1p4", nil},
		{"NaN", nil},
		{"Inf", nil},
		{nan, nil},
		{math.Inf(1), nil},
		{"-5", nil},
		{-1.0, nil},
		{true, nil},
		{(*float64)(nil), nil},
	}
	for _, tc := range cases {
		got := NormalizePrice(tc.in)
		if (got == nil) != (tc.want == nil) {
			t.Fatalf("NormalizePrice(%#v) = %v, want %v", tc.in, deref(got), deref(tc.want))
		}
		if got != nil && *got != *tc.want {
			t.Fatalf("NormalizePrice(%#v) = %v, want %v", tc.in, *got, *tc.want)
		}
	}
}

func TestNormalizePriceRoundTrip(t *testing.T) {
	for _, n := range []float64{0, 0.01, 1, 9.99, 10, 123.456, 1234567.89, 1e21, math.MaxFloat64, math.SmallestNonzeroFloat64} {
		s := strconv.FormatFloat(n, 'g', -1, 64)
		got := NormalizePrice(s)
		if got == nil || *got != n {
			t.Fatalf("round trip %q: got %v, want %v", s, deref(got), n)
		}
	}
}

func TestFormatCurrency(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{1234.56, "$1,234.56"},
		{0.0, "$0.00"},
		{10, "$10.00"},
		{1000000.0, "$1,000,000.00"},
		{-5.5, "-$5.50"},
		{ptr(60), "$60.00"},
		{(*float64)(nil), "N/A"},
		{nil, "N/A"},
		{"12", "N/A"},
		{math.NaN(), "N/A"},
	}
	for _, tc := range cases {
		if got := FormatCurrency(tc.in); got != tc.want {
			t.Fatalf("FormatCurrency(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatCurrencyFallback(t *testing.T) {
	orig := formatUSD
	t.Cleanup(func() { formatUSD = orig })

	formatUSD = func(float64) (string, error) { return "", errors.New("unavailable") }
	if got := FormatCurrency(1234.5); got != "$1234.50" {
		t.Fatalf("fallback on error = %q", got)
	}

	formatUSD = func(float64) (string, error) { panic("no locale data") }
	if got := FormatCurrency(3.0); got != "$3.00" {
		t.Fatalf("fallback on panic = %q", got)
	}
}

func ptr(f float64) *float64 { return &f }

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
