// Package format renders engine numbers for people: two decimals, half away from zero, with a unit.
package format

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	UnitMW  = " MW"
	UnitA   = " A"
	UnitKV  = " kV"
	UnitMVA = " MVA"
)

// Round2 rounds to two decimals, half away from zero. Non-finite input gives 0.
func Round2(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}

// Number is Round2 as text with exactly two decimals.
func Number(v float64) string {
	return Round2(v).StringFixed(2)
}

func MW(v float64) string  { return Number(v) + UnitMW }
func A(v float64) string   { return Number(v) + UnitA }
func KV(v float64) string  { return Number(v) + UnitKV }
func MVA(v float64) string { return Number(v) + UnitMVA }

// Timestamp renders a reading time as RFC 3339 UTC, or "" when unknown.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
