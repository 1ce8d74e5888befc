package feedback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"omerta/internal/logger"
	"omerta/internal/store"
)

// EvalNoteMaxRetry is the terminal annotation attached to a decision that
// exhausted its retry budget without finding price data.
const EvalNoteMaxRetry = "max_retry_reached_no_data"

// OriginFeedbackLoop tags learning records produced by the evaluator.
const OriginFeedbackLoop = "feedback_loop"

// ErrPassInProgress is returned when a feedback pass is started while another
// one is still running. Callers should just wait for the next tick.
var ErrPassInProgress = errors.New("feedback pass already in progress")

// Config carries the evaluation policy. Zero values are not usable; start
// from DefaultConfig.
type Config struct {
	HorizonDays       int
	EvalDelayDays     int
	ToleranceBaseline time.Duration
	ToleranceTarget   time.Duration
	BuyOKThreshold    float64
	SellOKThreshold   float64
	HoldBand          float64
	MaxRetry          int
}

func DefaultConfig() Config {
	return Config{
		HorizonDays:       3,
		EvalDelayDays:     1,
		ToleranceBaseline: 24 * time.Hour,
		ToleranceTarget:   24 * time.Hour,
		BuyOKThreshold:    5.0,
		SellOKThreshold:   -5.0,
		HoldBand:          5.0,
		MaxRetry:          7,
	}
}

// Outcome is what one successful evaluation reports back to the caller.
// It is informational only; correctness of later passes never depends on it.
type Outcome struct {
	DecisionID      int64     `json:"decision_id"`
	Asset           string    `json:"asset"`
	Action          string    `json:"action"`
	DecisionTime    time.Time `json:"decision_time"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
	RealizedPercent float64   `json:"realized_percent"`
	Correct         bool      `json:"correct"`
}

// Evaluator resolves pending decisions into learning records using recorded
// price history. One instance is safe for concurrent callers, but passes are
// serialized: overlapping runs would race on the ledger.
type Evaluator struct {
	cfg    Config
	prices store.PriceHistory
	ledger store.DecisionLedger
	learn  store.LearningLog

	runMu sync.Mutex
	nowFn func() time.Time
}

func NewEvaluator(cfg Config, prices store.PriceHistory, ledger store.DecisionLedger, learn store.LearningLog) *Evaluator {
	return &Evaluator{
		cfg:    cfg,
		prices: prices,
		ledger: ledger,
		learn:  learn,
		nowFn:  time.Now,
	}
}

// RunFeedbackPass evaluates every due decision once. Missing price data is a
// retry, a malformed entry is a skip, and only a failing ledger read aborts
// the pass. Re-running immediately produces no additional records: an
// evaluated decision never comes back from ListPending, and the status check
// guards against stale reads.
func (e *Evaluator) RunFeedbackPass(ctx context.Context) ([]Outcome, error) {
	if !e.runMu.TryLock() {
		return nil, ErrPassInProgress
	}
	defer e.runMu.Unlock()

	now := e.nowFn().UTC()
	passID := uuid.NewString()[:8]
	cutoff := now.AddDate(0, 0, -e.cfg.EvalDelayDays)

	pending, err := e.ledger.ListPending(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("feedback pass %s: listing pending decisions failed: %w", passID, err)
	}
	if len(pending) == 0 {
		logger.Debugf("feedback[%s]: nothing pending", passID)
		return nil, nil
	}

	var outcomes []Outcome
	retried := 0
	for _, d := range pending {
		if d.Status != store.DecisionStatusOpen {
			continue
		}
		out, state := e.evaluateOne(ctx, passID, now, d)
		switch state {
		case evalDone:
			outcomes = append(outcomes, out)
		case evalRetried:
			retried++
		}
	}
	logger.Infof("feedback[%s]: evaluated=%d retried=%d pending=%d", passID, len(outcomes), retried, len(pending))
	return outcomes, nil
}

type evalState int

const (
	evalSkipped evalState = iota
	evalRetried
	evalDone
)

func (e *Evaluator) evaluateOne(ctx context.Context, passID string, now time.Time, d store.Decision) (Outcome, evalState) {
	horizon := e.cfg.HorizonDays
	if d.HorizonDays != nil && *d.HorizonDays > 0 {
		horizon = *d.HorizonDays
	}
	targetTime := d.DecisionTime.AddDate(0, 0, horizon)
	if targetTime.After(now) {
		// Not yet due; not an error and not a retry.
		return Outcome{}, evalSkipped
	}

	baseline, ok := e.baselinePrice(ctx, d)
	if !ok {
		return Outcome{}, e.retryOrClose(ctx, now, d, "no baseline price")
	}
	target, found, err := e.prices.NearestPrice(ctx, d.Asset, targetTime, e.cfg.ToleranceTarget)
	if err != nil {
		logger.Warnf("feedback[%s]: target lookup failed for %s: %v", passID, d.Asset, err)
		return Outcome{}, evalSkipped
	}
	if !found {
		return Outcome{}, e.retryOrClose(ctx, now, d, "no target price")
	}

	pct, ok := PercentChange(baseline, target.Price)
	if !ok {
		// Zero baseline: undefined change, same path as missing data.
		return Outcome{}, e.retryOrClose(ctx, now, d, "zero baseline price")
	}
	realized := NormalizePercent(pct)
	correct := e.cfg.Judge(d.Action, realized)

	rec := store.LearningRecord{
		Timestamp:       now,
		Asset:           d.Asset,
		Action:          d.Action,
		RealizedPercent: realized,
		Correct:         correct,
		HorizonDays:     horizon,
		Origin:          OriginFeedbackLoop,
		PassID:          passID,
	}
	if err := e.writeOutcome(ctx, d.ID, realized, now, rec); err != nil {
		logger.Warnf("feedback[%s]: writing outcome for decision %d failed: %v", passID, d.ID, err)
		return Outcome{}, evalSkipped
	}
	logger.Infof("feedback[%s]: %s %s -> %.2f%% correct=%v", passID, d.Asset, d.Action, realized, correct)
	return Outcome{
		DecisionID:      d.ID,
		Asset:           d.Asset,
		Action:          d.Action,
		DecisionTime:    d.DecisionTime,
		EvaluatedAt:     now,
		RealizedPercent: realized,
		Correct:         correct,
	}, evalDone
}

// writeOutcome closes the decision and appends its learning record. Both
// shipped stores implement the atomic path; the fallback appends first so a
// failed status flip leaves the decision open instead of silently dropping the
// record, keeping every evaluated decision paired with exactly one record.
func (e *Evaluator) writeOutcome(ctx context.Context, decisionID int64, realized float64, now time.Time, rec store.LearningRecord) error {
	if w, ok := e.learn.(store.OutcomeWriter); ok {
		return w.RecordOutcome(ctx, decisionID, realized, now, rec)
	}
	if err := e.learn.AppendLearning(ctx, rec); err != nil {
		return err
	}
	return e.ledger.MarkEvaluated(ctx, decisionID, realized, now)
}

// baselinePrice prefers the decision's stored reference price; only when that
// is absent does it fall back to history around the decision time.
func (e *Evaluator) baselinePrice(ctx context.Context, d store.Decision) (float64, bool) {
	if d.ReferencePrice != nil && *d.ReferencePrice > 0 {
		return *d.ReferencePrice, true
	}
	snap, found, err := e.prices.NearestPrice(ctx, d.Asset, d.DecisionTime, e.cfg.ToleranceBaseline)
	if err != nil {
		logger.Warnf("feedback: baseline lookup failed for %s: %v", d.Asset, err)
		return 0, false
	}
	if !found {
		return 0, false
	}
	return snap.Price, true
}

// retryOrClose bumps the retry counter; past the cap the decision is
// force-closed with a terminal note so it stops consuming retry cycles.
// Force-closed decisions write no learning record and therefore never bias
// accuracy statistics.
func (e *Evaluator) retryOrClose(ctx context.Context, now time.Time, d store.Decision, reason string) evalState {
	count, err := e.ledger.IncrementRetry(ctx, d.ID)
	if err != nil {
		logger.Warnf("feedback: incrementing retry for decision %d failed: %v", d.ID, err)
		return evalSkipped
	}
	if count > e.cfg.MaxRetry {
		if err := e.ledger.ForceClose(ctx, d.ID, EvalNoteMaxRetry, now); err != nil {
			logger.Warnf("feedback: force-closing decision %d failed: %v", d.ID, err)
			return evalSkipped
		}
		logger.Warnf("feedback: retry cap reached for %s (%s), closed without outcome", d.Asset, reason)
		return evalSkipped
	}
	logger.Debugf("feedback: %s for %s, retry %d/%d", reason, d.Asset, count, e.cfg.MaxRetry)
	return evalRetried
}
