package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omerta/internal/store"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestGormStore_PriceRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	target := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

	n, err := st.RecordPrices(ctx, []store.PriceSnapshot{
		{Asset: "btc", Price: 101, Timestamp: target.Add(-10 * time.Hour), Source: "binance"},
		{Asset: "BTC", Price: 102, Timestamp: target.Add(2 * time.Hour), Source: "binance"},
		{Asset: "BTC", Price: 0, Timestamp: target, Source: "binance"}, // malformed, skipped
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snap, found, err := st.NearestPrice(ctx, "BTC", target, 24*time.Hour)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 102.0, snap.Price)
	assert.Equal(t, "binance", snap.Source)

	_, found, err = st.NearestPrice(ctx, "BTC", target.AddDate(0, 0, 10), 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, found)

	snaps, err := st.ListPrices(ctx, "BTC", target.Add(-24*time.Hour), target.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].Timestamp.Before(snaps[1].Timestamp))
	assert.Equal(t, "binance", snaps[0].Source)

	removed, err := st.PrunePricesBefore(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestGormStore_DecisionDedupeAndLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	ref := 100.0
	n, err := st.LogDecisions(ctx, []store.DecisionInput{
		{Asset: "BTC", Action: "buy", Source: "advisor", Reason: "dip", ReferencePrice: &ref,
			Meta: map[string]any{"origin": "test"}},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Same key later the same day merges instead of inserting.
	conf := 0.9
	_, err = st.LogDecisions(ctx, []store.DecisionInput{
		{Asset: "btc", Action: "sell", Source: "advisor", Confidence: &conf,
			Meta: map[string]any{"note": "flipped"}},
	}, now.Add(3*time.Hour))
	require.NoError(t, err)

	pending, err := st.ListPending(ctx, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	d := pending[0]
	assert.Equal(t, "sell", d.Action)
	assert.Equal(t, "dip", d.Reason)
	require.NotNil(t, d.ReferencePrice)
	assert.Equal(t, 100.0, *d.ReferencePrice)
	require.NotNil(t, d.Confidence)
	assert.Equal(t, 0.9, *d.Confidence)
	assert.Equal(t, "test", d.Meta["origin"], "old meta keys survive the merge")
	assert.Equal(t, "flipped", d.Meta["note"])

	count, err := st.IncrementRetry(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, st.MarkEvaluated(ctx, d.ID, 6.25, now.AddDate(0, 0, 4)))
	pending, err = st.ListPending(ctx, now.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Logging against the evaluated key is a no-op.
	n, err = st.LogDecisions(ctx, []store.DecisionInput{
		{Asset: "BTC", Action: "hold", Source: "advisor"},
	}, now.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGormStore_RecordOutcome(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	_, err := st.LogDecisions(ctx, []store.DecisionInput{
		{Asset: "BTC", Action: "buy", Source: "advisor"},
	}, now)
	require.NoError(t, err)
	pending, err := st.ListPending(ctx, now)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	rec := store.LearningRecord{
		Timestamp: now.AddDate(0, 0, 4), Asset: "BTC", Action: "buy",
		RealizedPercent: 6.25, Correct: true, HorizonDays: 3, Origin: "feedback_loop", PassID: "cccc3333",
	}

	// An unknown decision id rolls the whole write back.
	err = st.RecordOutcome(ctx, pending[0].ID+99, 6.25, now.AddDate(0, 0, 4), rec)
	require.Error(t, err)
	recs, err := st.ListLearning(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, recs)

	require.NoError(t, st.RecordOutcome(ctx, pending[0].ID, 6.25, now.AddDate(0, 0, 4), rec))

	pending, err = st.ListPending(ctx, now.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Empty(t, pending)

	recs, err = st.ListLearning(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "cccc3333", recs[0].PassID)
}

func TestGormStore_LearningRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.AppendLearning(ctx, store.LearningRecord{
		Timestamp: now.AddDate(0, 0, -40), Asset: "BTC", Action: "buy",
		RealizedPercent: -2, Correct: false, HorizonDays: 3, Origin: "feedback_loop", PassID: "aaaa1111",
	}))
	require.NoError(t, st.AppendLearning(ctx, store.LearningRecord{
		Timestamp: now.AddDate(0, 0, -2), Asset: "BTC", Action: "buy",
		RealizedPercent: 7.5, Correct: true, HorizonDays: 3, Origin: "feedback_loop", PassID: "bbbb2222",
	}))

	all, err := st.ListLearning(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Timestamp.Before(all[1].Timestamp))

	recent, err := st.ListLearning(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Correct)
	assert.Equal(t, "bbbb2222", recent[0].PassID)
}
