package advisor

import (
	"context"
	"fmt"
	"time"

	talib "github.com/markcheno/go-talib"

	"omerta/internal/feedback"
	"omerta/internal/logger"
	"omerta/internal/store"
)

// Source tags ledger entries produced by the heuristic advisor; the dedupe
// key keeps one advisor entry per asset per day.
const Source = "advisor"

// Config tunes the heuristic. Thresholds are percent moves over the lookback
// window; RSI acts as a confirmation filter when enough samples exist.
type Config struct {
	LookbackDays  int
	BuyDipPct     float64
	SellRallyPct  float64
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64
}

func DefaultConfig() Config {
	return Config{
		LookbackDays:  3,
		BuyDipPct:     10.0,
		SellRallyPct:  15.0,
		RSIPeriod:     14,
		RSIOversold:   30.0,
		RSIOverbought: 70.0,
	}
}

// Advisor is a decision producer: it reads recorded price history for the
// watchlist and logs buy/sell/hold advice into the ledger. It never touches
// an exchange.
type Advisor struct {
	cfg       Config
	prices    store.PriceHistory
	ledger    store.DecisionLedger
	watchlist func() []string
	nowFn     func() time.Time
}

func New(cfg Config, prices store.PriceHistory, ledger store.DecisionLedger, watchlist func() []string) *Advisor {
	return &Advisor{
		cfg:       cfg,
		prices:    prices,
		ledger:    ledger,
		watchlist: watchlist,
		nowFn:     time.Now,
	}
}

// RunAdvicePass emits one decision per watched asset that has enough history.
// Returns the number of ledger entries added or merged.
func (a *Advisor) RunAdvicePass(ctx context.Context) (int, error) {
	now := a.nowFn().UTC()
	assets := a.watchlist()
	if len(assets) == 0 {
		logger.Debugf("advisor: watchlist empty, nothing to do")
		return 0, nil
	}

	inputs := make([]store.DecisionInput, 0, len(assets))
	for _, asset := range assets {
		in, ok := a.adviceFor(ctx, asset, now)
		if !ok {
			continue
		}
		inputs = append(inputs, in)
	}
	if len(inputs) == 0 {
		return 0, nil
	}
	n, err := a.ledger.LogDecisions(ctx, inputs, now)
	if err != nil {
		return 0, fmt.Errorf("advisor pass failed: %w", err)
	}
	logger.Infof("advisor: logged %d decisions for %d assets", n, len(assets))
	return n, nil
}

func (a *Advisor) adviceFor(ctx context.Context, asset string, now time.Time) (store.DecisionInput, bool) {
	from := now.AddDate(0, 0, -a.cfg.LookbackDays)
	snaps, err := a.prices.ListPrices(ctx, asset, from, now)
	if err != nil {
		logger.Warnf("advisor: price history read failed for %s: %v", asset, err)
		return store.DecisionInput{}, false
	}
	if len(snaps) < 2 {
		logger.Debugf("advisor: not enough history for %s (%d samples)", asset, len(snaps))
		return store.DecisionInput{}, false
	}

	first := snaps[0].Price
	last := snaps[len(snaps)-1].Price
	pct, ok := feedback.PercentChange(first, last)
	if !ok {
		return store.DecisionInput{}, false
	}

	rsi, hasRSI := a.lastRSI(snaps)
	action := "hold"
	reason := fmt.Sprintf("%.2f%% over %dd", pct, a.cfg.LookbackDays)
	switch {
	case pct <= -a.cfg.BuyDipPct && (!hasRSI || rsi <= a.cfg.RSIOversold):
		action = "buy"
		if hasRSI {
			reason = fmt.Sprintf("dip %.2f%% over %dd, rsi=%.1f", pct, a.cfg.LookbackDays, rsi)
		}
	case pct >= a.cfg.SellRallyPct && (!hasRSI || rsi >= a.cfg.RSIOverbought):
		action = "sell"
		if hasRSI {
			reason = fmt.Sprintf("rally %.2f%% over %dd, rsi=%.1f", pct, a.cfg.LookbackDays, rsi)
		}
	}

	ref := last
	return store.DecisionInput{
		Asset:          asset,
		Action:         action,
		Source:         Source,
		Reason:         reason,
		ReferencePrice: &ref,
	}, true
}

// lastRSI computes RSI over the close series when there are enough samples
// for the configured period.
func (a *Advisor) lastRSI(snaps []store.PriceSnapshot) (float64, bool) {
	if a.cfg.RSIPeriod <= 0 || len(snaps) <= a.cfg.RSIPeriod {
		return 0, false
	}
	closes := make([]float64, len(snaps))
	for i, snap := range snaps {
		closes[i] = snap.Price
	}
	series := talib.Rsi(closes, a.cfg.RSIPeriod)
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}
