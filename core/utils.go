package core

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NowFunc returns the current time. Services take one so tests can pin the clock.
type NowFunc func() time.Time

// UTCNow is the default NowFunc.
func UTCNow() time.Time { return time.Now().UTC() }

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanStrings cleans every element of `ss` and drops the blank ones.
func CleanStrings(ss []string) []string {
	cleaned := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = CleanString(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

// Round2 rounds `f` half away from zero to 2 decimal places.
// The rounding is decimal on f's shortest representation, so 1.005 gives 1.01.
func Round2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	r, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return r
}
