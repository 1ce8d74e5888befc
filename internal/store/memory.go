package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"omerta/internal/logger"
)

// MemoryStore is an in-memory Store. It backs dry runs (empty db_path) and
// unit tests. Semantics mirror the SQLite store exactly.
type MemoryStore struct {
	mu        sync.Mutex
	prices    map[string][]memPrice
	priceSeq  int64
	decisions []Decision
	decSeq    int64
	learning  []LearningRecord
	learnSeq  int64
}

type memPrice struct {
	seq  int64
	snap PriceSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prices: make(map[string][]memPrice)}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) RecordPrices(ctx context.Context, snaps []PriceSnapshot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	written := 0
	for _, snap := range snaps {
		asset := NormalizeAsset(snap.Asset)
		if asset == "" || snap.Price <= 0 || snap.Timestamp.IsZero() {
			logger.Warnf("price store: skip malformed snapshot asset=%q price=%v", snap.Asset, snap.Price)
			continue
		}
		s.priceSeq++
		snap.Asset = asset
		snap.Timestamp = snap.Timestamp.UTC()
		s.prices[asset] = append(s.prices[asset], memPrice{seq: s.priceSeq, snap: snap})
		written++
	}
	return written, nil
}

func (s *MemoryStore) NearestPrice(ctx context.Context, asset string, target time.Time, tolerance time.Duration) (PriceSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.prices[NormalizeAsset(asset)]
	var (
		best      PriceSnapshot
		bestSeq   int64
		bestDelta time.Duration
		found     bool
	)
	for _, row := range rows {
		delta := row.snap.Timestamp.Sub(target)
		if delta < 0 {
			delta = -delta
		}
		if delta > tolerance {
			continue
		}
		if !found || delta < bestDelta || (delta == bestDelta && row.seq < bestSeq) {
			best = row.snap
			bestSeq = row.seq
			bestDelta = delta
			found = true
		}
	}
	return best, found, nil
}

func (s *MemoryStore) ListPrices(ctx context.Context, asset string, from, to time.Time) ([]PriceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.prices[NormalizeAsset(asset)]
	out := make([]PriceSnapshot, 0, len(rows))
	for _, row := range rows {
		ts := row.snap.Timestamp
		if ts.Before(from) || ts.After(to) {
			continue
		}
		out = append(out, row.snap)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) PrunePricesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for asset, rows := range s.prices {
		kept := rows[:0]
		for _, row := range rows {
			if row.snap.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, row)
		}
		s.prices[asset] = kept
	}
	return removed, nil
}

func (s *MemoryStore) LogDecisions(ctx context.Context, inputs []DecisionInput, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now = now.UTC()
	day := now.Format("2006-01-02")
	changed := 0
	for _, in := range inputs {
		asset := NormalizeAsset(in.Asset)
		if asset == "" {
			continue
		}
		action := NormalizeAction(in.Action)
		idx := s.findDecision(asset, day, in.Source)
		if idx >= 0 {
			if s.decisions[idx].Status == DecisionStatusEvaluated {
				continue
			}
			mergeDecisionFields(&s.decisions[idx], action, in)
			changed++
			continue
		}
		s.decSeq++
		d := Decision{
			ID:           s.decSeq,
			Asset:        asset,
			Action:       action,
			Day:          day,
			Source:       in.Source,
			DecisionTime: now,
			Status:       DecisionStatusOpen,
		}
		mergeDecisionFields(&d, action, in)
		s.decisions = append(s.decisions, d)
		changed++
	}
	return changed, nil
}

func (s *MemoryStore) findDecision(asset, day, source string) int {
	for i := range s.decisions {
		d := &s.decisions[i]
		if d.Asset == asset && d.Day == day && d.Source == source {
			return i
		}
	}
	return -1
}

// mergeDecisionFields applies the "new non-empty wins" merge rule shared with
// the SQLite store.
func mergeDecisionFields(d *Decision, action string, in DecisionInput) {
	d.Action = action
	if in.ReferencePrice != nil {
		d.ReferencePrice = in.ReferencePrice
	}
	if in.Confidence != nil {
		d.Confidence = in.Confidence
	}
	if in.HorizonDays != nil {
		d.HorizonDays = in.HorizonDays
	}
	if in.Reason != "" {
		d.Reason = in.Reason
	}
	if len(in.Meta) > 0 {
		if d.Meta == nil {
			d.Meta = make(map[string]any, len(in.Meta))
		}
		for k, v := range in.Meta {
			d.Meta[k] = v
		}
	}
}

func (s *MemoryStore) ListPending(ctx context.Context, cutoff time.Time) ([]Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Decision
	for _, d := range s.decisions {
		if d.Status != DecisionStatusOpen {
			continue
		}
		if d.DecisionTime.After(cutoff) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *MemoryStore) MarkEvaluated(ctx context.Context, id int64, realizedPercent float64, evaluatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.byID(id)
	if d == nil {
		return fmt.Errorf("decision %d not found", id)
	}
	at := evaluatedAt.UTC()
	d.Status = DecisionStatusEvaluated
	d.RealizedPercent = &realizedPercent
	d.EvaluatedAt = &at
	d.RetryCount = 0
	return nil
}

func (s *MemoryStore) IncrementRetry(ctx context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.byID(id)
	if d == nil {
		return 0, fmt.Errorf("decision %d not found", id)
	}
	d.RetryCount++
	return d.RetryCount, nil
}

func (s *MemoryStore) ForceClose(ctx context.Context, id int64, note string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.byID(id)
	if d == nil {
		return fmt.Errorf("decision %d not found", id)
	}
	ts := at.UTC()
	d.Status = DecisionStatusEvaluated
	d.EvaluatedAt = &ts
	d.EvalNote = note
	return nil
}

// RecordOutcome performs both outcome writes under one lock hold; a lookup
// failure leaves the learning slice untouched.
func (s *MemoryStore) RecordOutcome(ctx context.Context, decisionID int64, realizedPercent float64, evaluatedAt time.Time, rec LearningRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.byID(decisionID)
	if d == nil {
		return fmt.Errorf("decision %d not found", decisionID)
	}
	at := evaluatedAt.UTC()
	d.Status = DecisionStatusEvaluated
	d.RealizedPercent = &realizedPercent
	d.EvaluatedAt = &at
	d.RetryCount = 0
	s.learnSeq++
	rec.ID = s.learnSeq
	rec.Timestamp = rec.Timestamp.UTC()
	s.learning = append(s.learning, rec)
	return nil
}

func (s *MemoryStore) byID(id int64) *Decision {
	for i := range s.decisions {
		if s.decisions[i].ID == id {
			return &s.decisions[i]
		}
	}
	return nil
}

func (s *MemoryStore) AppendLearning(ctx context.Context, rec LearningRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.learnSeq++
	rec.ID = s.learnSeq
	rec.Timestamp = rec.Timestamp.UTC()
	s.learning = append(s.learning, rec)
	return nil
}

func (s *MemoryStore) ListLearning(ctx context.Context, since time.Time) ([]LearningRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LearningRecord, 0, len(s.learning))
	for _, rec := range s.learning {
		if !since.IsZero() && rec.Timestamp.Before(since) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
