package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RecordPricesSkipsMalformed(t *testing.T) {
	st := NewMemoryStore()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	n, err := st.RecordPrices(context.Background(), []PriceSnapshot{
		{Asset: "btc", Price: 100, Timestamp: now, Source: "test"},
		{Asset: "", Price: 100, Timestamp: now},
		{Asset: "ETH", Price: 0, Timestamp: now},
		{Asset: "SOL", Price: -3, Timestamp: now},
		{Asset: "BNB", Price: 10, Timestamp: time.Time{}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the well-formed snapshot is stored")

	snaps, err := st.ListPrices(context.Background(), "BTC", now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "BTC", snaps[0].Asset, "asset is normalized on write")
}

func TestMemoryStore_NearestPrice(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	target := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

	_, err := st.RecordPrices(ctx, []PriceSnapshot{
		{Asset: "BTC", Price: 101, Timestamp: target.Add(-10 * time.Hour), Source: "test"},
		{Asset: "BTC", Price: 102, Timestamp: target.Add(2 * time.Hour), Source: "test"},
		{Asset: "BTC", Price: 103, Timestamp: target.Add(30 * time.Hour), Source: "test"},
	})
	require.NoError(t, err)

	t.Run("closest within tolerance wins", func(t *testing.T) {
		snap, found, err := st.NearestPrice(ctx, "BTC", target, 24*time.Hour)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 102.0, snap.Price)
		assert.Equal(t, "test", snap.Source)
	})

	t.Run("outside tolerance not found", func(t *testing.T) {
		_, found, err := st.NearestPrice(ctx, "BTC", target.Add(-6*24*time.Hour), 24*time.Hour)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("tie breaks to earlier record", func(t *testing.T) {
		st2 := NewMemoryStore()
		_, err := st2.RecordPrices(ctx, []PriceSnapshot{
			{Asset: "BTC", Price: 99, Timestamp: target.Add(-time.Hour), Source: "test"},
			{Asset: "BTC", Price: 100, Timestamp: target.Add(time.Hour), Source: "test"},
		})
		require.NoError(t, err)
		snap, found, err := st2.NearestPrice(ctx, "BTC", target, 24*time.Hour)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 99.0, snap.Price)
	})
}

func TestMemoryStore_PrunePricesBefore(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	_, err := st.RecordPrices(ctx, []PriceSnapshot{
		{Asset: "BTC", Price: 1, Timestamp: now.AddDate(-1, 0, 0), Source: "test"},
		{Asset: "BTC", Price: 2, Timestamp: now.AddDate(0, 0, -1), Source: "test"},
	})
	require.NoError(t, err)

	removed, err := st.PrunePricesBefore(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	snaps, err := st.ListPrices(ctx, "BTC", now.AddDate(-2, 0, 0), now)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestMemoryStore_LogDecisionsDedupe(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	ref := 100.0
	_, err := st.LogDecisions(ctx, []DecisionInput{
		{Asset: "btc", Action: "buy", Source: "advisor", Reason: "dip", ReferencePrice: &ref},
	}, now)
	require.NoError(t, err)

	t.Run("same key merges with new-non-empty-wins", func(t *testing.T) {
		conf := 0.8
		_, err := st.LogDecisions(ctx, []DecisionInput{
			{Asset: "BTC", Action: "sell", Source: "advisor", Confidence: &conf},
		}, now.Add(2*time.Hour))
		require.NoError(t, err)

		pending, err := st.ListPending(ctx, now.AddDate(0, 0, 1))
		require.NoError(t, err)
		require.Len(t, pending, 1, "same asset+day+source stays one entry")
		d := pending[0]
		assert.Equal(t, "sell", d.Action, "action is overwritten")
		assert.Equal(t, "dip", d.Reason, "empty new reason keeps the old one")
		require.NotNil(t, d.ReferencePrice)
		assert.Equal(t, 100.0, *d.ReferencePrice)
		require.NotNil(t, d.Confidence)
		assert.Equal(t, 0.8, *d.Confidence)
	})

	t.Run("different source is a separate entry", func(t *testing.T) {
		_, err := st.LogDecisions(ctx, []DecisionInput{
			{Asset: "BTC", Action: "hold", Source: "manual"},
		}, now)
		require.NoError(t, err)
		pending, err := st.ListPending(ctx, now.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Len(t, pending, 2)
	})

	t.Run("next utc day is a separate entry", func(t *testing.T) {
		_, err := st.LogDecisions(ctx, []DecisionInput{
			{Asset: "BTC", Action: "buy", Source: "advisor"},
		}, now.AddDate(0, 0, 1))
		require.NoError(t, err)
		pending, err := st.ListPending(ctx, now.AddDate(0, 0, 2))
		require.NoError(t, err)
		assert.Len(t, pending, 3)
	})
}

func TestMemoryStore_LogDecisionsSkipsEvaluated(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	_, err := st.LogDecisions(ctx, []DecisionInput{
		{Asset: "BTC", Action: "buy", Source: "advisor"},
	}, now)
	require.NoError(t, err)

	pending, err := st.ListPending(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, st.MarkEvaluated(ctx, pending[0].ID, 6.0, now.Add(time.Hour)))

	n, err := st.LogDecisions(ctx, []DecisionInput{
		{Asset: "BTC", Action: "sell", Source: "advisor", Reason: "late edit"},
	}, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "an evaluated decision is immutable")
}

func TestMemoryStore_RetryAndForceClose(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	_, err := st.LogDecisions(ctx, []DecisionInput{
		{Asset: "BTC", Action: "buy", Source: "advisor"},
	}, now)
	require.NoError(t, err)
	pending, err := st.ListPending(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	id := pending[0].ID

	count, err := st.IncrementRetry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = st.IncrementRetry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, st.ForceClose(ctx, id, "max_retry_reached_no_data", now.AddDate(0, 0, 5)))
	pending, err = st.ListPending(ctx, now.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Empty(t, pending)
}
