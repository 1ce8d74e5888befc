package advisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omerta/internal/store"
)

func seedTrend(t *testing.T, st *store.MemoryStore, asset string, start, end float64, points int, until time.Time) {
	t.Helper()
	snaps := make([]store.PriceSnapshot, 0, points)
	step := (end - start) / float64(points-1)
	for i := 0; i < points; i++ {
		snaps = append(snaps, store.PriceSnapshot{
			Asset:     asset,
			Price:     start + step*float64(i),
			Timestamp: until.Add(-time.Duration(points-1-i) * time.Hour),
			Source:    "test",
		})
	}
	_, err := st.RecordPrices(context.Background(), snaps)
	require.NoError(t, err)
}

func newTestAdvisor(st *store.MemoryStore, assets []string, now time.Time) *Advisor {
	cfg := DefaultConfig()
	cfg.RSIPeriod = 0 // trend-only, keeps fixtures small
	adv := New(cfg, st, st, func() []string { return assets })
	adv.nowFn = func() time.Time { return now }
	return adv
}

func TestRunAdvicePass_BuyOnDip(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	seedTrend(t, st, "BTC", 100, 88, 6, now) // -12% over the lookback

	adv := newTestAdvisor(st, []string{"BTC"}, now)
	n, err := adv.RunAdvicePass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := st.ListPending(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	d := pending[0]
	assert.Equal(t, "buy", d.Action)
	assert.Equal(t, Source, d.Source)
	require.NotNil(t, d.ReferencePrice)
	assert.InDelta(t, 88.0, *d.ReferencePrice, 1e-9)
}

func TestRunAdvicePass_SellOnRally(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	seedTrend(t, st, "ETH", 100, 120, 6, now) // +20%

	adv := newTestAdvisor(st, []string{"ETH"}, now)
	n, err := adv.RunAdvicePass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := st.ListPending(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "sell", pending[0].Action)
}

func TestRunAdvicePass_HoldInsideBands(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	seedTrend(t, st, "SOL", 100, 103, 6, now) // +3%, no signal

	adv := newTestAdvisor(st, []string{"SOL"}, now)
	n, err := adv.RunAdvicePass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := st.ListPending(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "hold", pending[0].Action)
}

func TestRunAdvicePass_SkipsAssetsWithoutHistory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	seedTrend(t, st, "BTC", 100, 88, 6, now)
	// ETH has a single sample: not enough to measure a move.
	_, err := st.RecordPrices(ctx, []store.PriceSnapshot{
		{Asset: "ETH", Price: 200, Timestamp: now, Source: "test"},
	})
	require.NoError(t, err)

	adv := newTestAdvisor(st, []string{"BTC", "ETH"}, now)
	n, err := adv.RunAdvicePass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only BTC produced advice")
}

func TestRunAdvicePass_EmptyWatchlist(t *testing.T) {
	now := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	adv := newTestAdvisor(st, nil, now)

	n, err := adv.RunAdvicePass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
