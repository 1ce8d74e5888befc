package store

import (
	"context"
	"time"
)

// DecisionStatus tracks the evaluation lifecycle of a ledger entry.
type DecisionStatus int

const (
	DecisionStatusOpen      DecisionStatus = 0
	DecisionStatusEvaluated DecisionStatus = 1
)

func (s DecisionStatus) String() string {
	switch s {
	case DecisionStatusOpen:
		return "open"
	case DecisionStatusEvaluated:
		return "evaluated"
	default:
		return "unknown"
	}
}

// PriceSnapshot is one observed price for one asset. Timestamps are UTC.
// Source labels the feed that produced the observation.
type PriceSnapshot struct {
	Asset     string
	Price     float64
	Timestamp time.Time
	Source    string
}

// Decision is one advisory entry in the ledger. Entries are deduplicated by
// (asset, UTC calendar day, source); see DecisionLedger.LogDecisions.
type Decision struct {
	ID              int64
	Asset           string
	Action          string
	Day             string // YYYY-MM-DD, UTC
	Source          string
	DecisionTime    time.Time
	ReferencePrice  *float64
	HorizonDays     *int
	Confidence      *float64
	Reason          string
	Status          DecisionStatus
	RetryCount      int
	EvaluatedAt     *time.Time
	RealizedPercent *float64
	EvalNote        string
	Meta            map[string]any
}

// DecisionInput is the canonical ingress value for logging a decision.
// Producers that speak looser formats are normalized into this before they
// reach the ledger.
type DecisionInput struct {
	Asset          string
	Action         string
	Source         string
	Reason         string
	ReferencePrice *float64
	Confidence     *float64
	HorizonDays    *int
	Meta           map[string]any
}

// LearningRecord is one immutable outcome derived from an evaluated decision.
type LearningRecord struct {
	ID              int64
	Timestamp       time.Time
	Asset           string
	Action          string
	RealizedPercent float64
	Correct         bool
	HorizonDays     int
	Origin          string
	PassID          string
}

// PriceHistory persists and queries asset price observations.
type PriceHistory interface {
	// RecordPrices appends snapshots. Malformed snapshots (empty asset,
	// non-positive price, zero timestamp) are skipped with a warning;
	// the returned count is the number actually written.
	RecordPrices(ctx context.Context, snaps []PriceSnapshot) (int, error)
	// NearestPrice returns the snapshot closest to target within tolerance.
	// Ties on time delta resolve to the earlier-recorded snapshot. The bool
	// is false when nothing qualifies.
	NearestPrice(ctx context.Context, asset string, target time.Time, tolerance time.Duration) (PriceSnapshot, bool, error)
	// ListPrices returns snapshots for asset in [from, to], oldest first.
	ListPrices(ctx context.Context, asset string, from, to time.Time) ([]PriceSnapshot, error)
	// PrunePricesBefore deletes snapshots older than cutoff, returning the
	// number removed.
	PrunePricesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DecisionLedger records and looks up advisory decisions. It owns the
// dedupe/merge rule: one entry per (asset, day, source), with new non-empty
// fields overriding old ones while the entry is still open.
type DecisionLedger interface {
	// LogDecisions writes or merges the given inputs, returning the number
	// added or merged. Inputs without an asset are skipped.
	LogDecisions(ctx context.Context, inputs []DecisionInput, now time.Time) (int, error)
	// ListPending returns open decisions whose decision time is at or before
	// cutoff.
	ListPending(ctx context.Context, cutoff time.Time) ([]Decision, error)
	// MarkEvaluated closes a decision with its realized outcome and clears
	// retry bookkeeping.
	MarkEvaluated(ctx context.Context, id int64, realizedPercent float64, evaluatedAt time.Time) error
	// IncrementRetry bumps the retry counter and returns the new value.
	IncrementRetry(ctx context.Context, id int64) (int, error)
	// ForceClose marks a decision evaluated without an outcome, attaching a
	// terminal note. Used when the retry cap is exhausted.
	ForceClose(ctx context.Context, id int64, note string, at time.Time) error
}

// OutcomeWriter closes a decision and appends its learning record as one
// atomic write, so a crash between the two can never leave an evaluated
// decision without its record. Stores that can offer this implement it; the
// evaluator falls back to the two separate writes otherwise.
type OutcomeWriter interface {
	RecordOutcome(ctx context.Context, decisionID int64, realizedPercent float64, evaluatedAt time.Time, rec LearningRecord) error
}

// LearningLog is the append-only outcome stream consumed by the aggregator.
type LearningLog interface {
	AppendLearning(ctx context.Context, rec LearningRecord) error
	// ListLearning returns records with Timestamp >= since (all records when
	// since is the zero time), oldest first.
	ListLearning(ctx context.Context, since time.Time) ([]LearningRecord, error)
}

// Store bundles the three persistence concerns behind one handle.
type Store interface {
	PriceHistory
	DecisionLedger
	LearningLog
	Close() error
}
