package feedback

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	decHundred    = decimal.NewFromInt(100)
	decPercentCap = decimal.NewFromInt(1000)
	decRatioBound = decimal.NewFromInt(1)
)

// NormalizePercent folds a percent-or-ratio value into percent scale.
// Upstream producers disagree on units: some send 0.08 meaning 8%, some send
// 8.0. Magnitudes at or below 1.0 are treated as ratios and scaled x100.
// The result is clamped to [-1000, 1000] so one corrupt price cannot poison
// aggregate statistics.
func NormalizePercent(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	val := decimal.NewFromFloat(p)
	if val.Abs().Cmp(decRatioBound) <= 0 {
		val = val.Mul(decHundred)
	}
	if val.Cmp(decPercentCap) > 0 {
		val = decPercentCap
	}
	if val.Cmp(decPercentCap.Neg()) < 0 {
		val = decPercentCap.Neg()
	}
	f, _ := val.Float64()
	return f
}

// PercentChange returns the percent change from baseline to target, rounded
// to two decimals. The bool is false when baseline is zero (undefined change).
func PercentChange(baseline, target float64) (float64, bool) {
	if baseline == 0 || math.IsNaN(baseline) || math.IsNaN(target) {
		return 0, false
	}
	b := decimal.NewFromFloat(baseline)
	t := decimal.NewFromFloat(target)
	pct := t.Sub(b).Div(b).Mul(decHundred).Round(2)
	f, _ := pct.Float64()
	return f, true
}

// Judge classifies a decision against the realized percent change using the
// configured threshold bands. Band boundaries are inclusive. Unknown actions
// are always wrong.
func (c Config) Judge(action string, realizedPct float64) bool {
	pct := decimal.NewFromFloat(realizedPct)
	switch action {
	case "buy":
		return pct.Cmp(decimal.NewFromFloat(c.BuyOKThreshold)) >= 0
	case "sell":
		return pct.Cmp(decimal.NewFromFloat(c.SellOKThreshold)) <= 0
	case "hold":
		band := decimal.NewFromFloat(c.HoldBand)
		return pct.Cmp(band.Neg()) >= 0 && pct.Cmp(band) <= 0
	default:
		return false
	}
}
