package learning

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"omerta/internal/store"
)

// AccuracyStat is a derived tally; it is computed on demand, never persisted.
type AccuracyStat struct {
	Total       int     `json:"total"`
	Correct     int     `json:"correct"`
	Wrong       int     `json:"wrong"`
	AccuracyPct float64 `json:"accuracy_pct"`
}

// Stats is the full point-in-time view over the learning log.
type Stats struct {
	Overall AccuracyStat            `json:"overall"`
	ByAsset map[string]AccuracyStat `json:"by_asset"`
	Latest  []string                `json:"latest"`
}

// AssetStat pairs an asset with its tally for ranked output.
type AssetStat struct {
	Asset string
	Stat  AccuracyStat
}

const latestCount = 10

// Aggregator reads the learning log and produces accuracy statistics. It is
// strictly read-only.
type Aggregator struct {
	log   store.LearningLog
	nowFn func() time.Time
}

func NewAggregator(log store.LearningLog) *Aggregator {
	return &Aggregator{log: log, nowFn: time.Now}
}

// ComputeStats tallies records, optionally restricted to the last windowDays.
// windowDays <= 0 means "all time". An empty log yields zeroed stats, never
// an error.
func (a *Aggregator) ComputeStats(ctx context.Context, windowDays int) (Stats, error) {
	since := time.Time{}
	if windowDays > 0 {
		since = a.nowFn().UTC().AddDate(0, 0, -windowDays)
	}
	recs, err := a.log.ListLearning(ctx, since)
	if err != nil {
		return Stats{}, fmt.Errorf("computing learning stats failed: %w", err)
	}

	stats := Stats{ByAsset: map[string]AccuracyStat{}}
	for _, rec := range recs {
		stats.Overall.Total++
		byAsset := stats.ByAsset[rec.Asset]
		byAsset.Total++
		if rec.Correct {
			stats.Overall.Correct++
			byAsset.Correct++
		} else {
			stats.Overall.Wrong++
			byAsset.Wrong++
		}
		stats.ByAsset[rec.Asset] = byAsset
	}
	stats.Overall.AccuracyPct = accuracyPct(stats.Overall.Correct, stats.Overall.Total)
	for asset, s := range stats.ByAsset {
		s.AccuracyPct = accuracyPct(s.Correct, s.Total)
		stats.ByAsset[asset] = s
	}

	start := len(recs) - latestCount
	if start < 0 {
		start = 0
	}
	for i, rec := range recs[start:] {
		mark := "WRONG"
		if rec.Correct {
			mark = "OK"
		}
		stats.Latest = append(stats.Latest, fmt.Sprintf("%d. %s %s %s (%.2f%%) %s",
			i+1, rec.Asset, rec.Action, mark, rec.RealizedPercent,
			rec.Timestamp.UTC().Format(time.RFC3339)))
	}
	return stats, nil
}

// TopAssets ranks assets by accuracy, then by sample count, then by name for
// a stable order. Exposing both accuracy and count lets consumers see that a
// 100% asset with one sample is ranked on thin evidence.
func TopAssets(stats Stats, n int) []AssetStat {
	out := make([]AssetStat, 0, len(stats.ByAsset))
	for asset, s := range stats.ByAsset {
		out = append(out, AssetStat{Asset: asset, Stat: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stat.AccuracyPct != out[j].Stat.AccuracyPct {
			return out[i].Stat.AccuracyPct > out[j].Stat.AccuracyPct
		}
		if out[i].Stat.Total != out[j].Stat.Total {
			return out[i].Stat.Total > out[j].Stat.Total
		}
		return out[i].Asset < out[j].Asset
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func accuracyPct(correct, total int) float64 {
	if total == 0 {
		return 0.0
	}
	pct := decimal.NewFromInt(int64(correct)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
	f, _ := pct.Float64()
	return f
}
