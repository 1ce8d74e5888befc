package feedback

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePercent(t *testing.T) {
	t.Run("ratio scaled to percent", func(t *testing.T) {
		assert.InDelta(t, 8.0, NormalizePercent(0.08), 1e-9)
		assert.InDelta(t, -5.0, NormalizePercent(-0.05), 1e-9)
		assert.InDelta(t, 100.0, NormalizePercent(1.0), 1e-9)
		assert.InDelta(t, -100.0, NormalizePercent(-1.0), 1e-9)
	})

	t.Run("percent passed through", func(t *testing.T) {
		assert.InDelta(t, 8.0, NormalizePercent(8.0), 1e-9)
		assert.InDelta(t, -42.5, NormalizePercent(-42.5), 1e-9)
		assert.InDelta(t, 1.5, NormalizePercent(1.5), 1e-9)
	})

	t.Run("clamped to plus minus 1000", func(t *testing.T) {
		assert.InDelta(t, 1000.0, NormalizePercent(25000), 1e-9)
		assert.InDelta(t, -1000.0, NormalizePercent(-25000), 1e-9)
	})

	t.Run("non finite collapses to zero", func(t *testing.T) {
		assert.Zero(t, NormalizePercent(math.NaN()))
		assert.Zero(t, NormalizePercent(math.Inf(1)))
		assert.Zero(t, NormalizePercent(math.Inf(-1)))
	})
}

func TestPercentChange(t *testing.T) {
	t.Run("rounds to two decimals", func(t *testing.T) {
		pct, ok := PercentChange(30000, 31000)
		assert.True(t, ok)
		assert.InDelta(t, 3.33, pct, 1e-9)
	})

	t.Run("negative move", func(t *testing.T) {
		pct, ok := PercentChange(100, 94)
		assert.True(t, ok)
		assert.InDelta(t, -6.0, pct, 1e-9)
	})

	t.Run("zero baseline undefined", func(t *testing.T) {
		_, ok := PercentChange(0, 100)
		assert.False(t, ok)
	})
}

func TestJudge(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("buy", func(t *testing.T) {
		assert.True(t, cfg.Judge("buy", 5.0), "threshold is inclusive")
		assert.True(t, cfg.Judge("buy", 12.3))
		assert.False(t, cfg.Judge("buy", 4.99))
		assert.False(t, cfg.Judge("buy", -2.0))
	})

	t.Run("sell", func(t *testing.T) {
		assert.True(t, cfg.Judge("sell", -5.0), "threshold is inclusive")
		assert.True(t, cfg.Judge("sell", -20.0))
		assert.False(t, cfg.Judge("sell", -4.99))
		assert.False(t, cfg.Judge("sell", 3.0))
	})

	t.Run("hold", func(t *testing.T) {
		assert.True(t, cfg.Judge("hold", 0))
		assert.True(t, cfg.Judge("hold", 5.0), "band edge is inclusive")
		assert.True(t, cfg.Judge("hold", -5.0), "band edge is inclusive")
		assert.False(t, cfg.Judge("hold", 5.01))
		assert.False(t, cfg.Judge("hold", -5.01))
	})

	t.Run("unknown action always wrong", func(t *testing.T) {
		assert.False(t, cfg.Judge("short", 10))
		assert.False(t, cfg.Judge("", 0))
	})
}
