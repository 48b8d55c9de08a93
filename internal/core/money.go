// Package core provides money parsing and formatting utilities.
//
// This file contains the normalization applied to every price and goal on
// its way into a GiftRecord, and the currency formatting used by views.
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NormalizePrice coerces a raw price or goal into a finite, non-negative
// amount. It returns nil for empty, missing, non-numeric, non-finite or
// negative input and never returns NaN. Strings must be decimal: hex forms
// such as "0x10" or "0x1p4" are rejected.
//
// Examples:
//
//	NormalizePrice("12.5") -> 12.5
//	NormalizePrice(" 7 ")  -> 7
//	NormalizePrice("")     -> nil
//	NormalizePrice("abc")  -> nil
//	NormalizePrice(nil)    -> nil
func NormalizePrice(raw any) *float64 {
	var f float64
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case *float64:
		if v == nil {
			return nil
		}
		f = *v
	case json.Number:
		return NormalizePrice(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" || strings.ContainsAny(s, "xX") {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil
	}
	return &f
}

// currencyFormatter renders a finite amount as US dollars.
type currencyFormatter func(v float64) (string, error)

var formatUSD currencyFormatter = localizedUSD

func localizedUSD(v float64) (string, error) {
	p := message.NewPrinter(language.AmericanEnglish)
	s := p.Sprintf("%.2f", math.Abs(v))
	if s == "" {
		return "", fmt.Errorf("empty localized amount for %v", v)
	}
	if v < 0 {
		return "-$" + s, nil
	}
	return "$" + s, nil
}

// FormatCurrency formats value as "$1,234.56". Non-numeric input, nil and
// NaN render as "N/A". When localized formatting fails the result falls back
// to a plain two-decimal "$" string.
func FormatCurrency(value any) string {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case *float64:
		if v == nil {
			return "N/A"
		}
		f = *v
	default:
		return "N/A"
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "N/A"
	}
	if s, err := safeFormat(formatUSD, f); err == nil {
		return s
	}
	return fmt.Sprintf("$%.2f", f)
}

func safeFormat(format currencyFormatter, v float64) (s string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("currency formatting panicked: %v", r)
		}
	}()
	return format(v)
}
