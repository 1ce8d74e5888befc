package watchlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWatchlist(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_NormalizesAndDeduplicates(t *testing.T) {
	path := writeWatchlist(t, `
assets:
  - btc
  - " ETH "
  - BTC
  - ""
`)
	w, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH"}, w.Assets())
}

func TestLoad_EmptyListFails(t *testing.T) {
	path := writeWatchlist(t, `assets: []`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_BadYAMLFails(t *testing.T) {
	path := writeWatchlist(t, `assets: [unclosed`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestAssets_ReturnsCopy(t *testing.T) {
	path := writeWatchlist(t, "assets: [BTC, ETH]")
	w, err := Load(path)
	require.NoError(t, err)

	got := w.Assets()
	got[0] = "DOGE"
	assert.Equal(t, []string{"BTC", "ETH"}, w.Assets(), "callers cannot mutate the shared list")
}

func TestReload_KeepsPreviousListOnFailure(t *testing.T) {
	path := writeWatchlist(t, "assets: [BTC]")
	w, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("assets: []"), 0o644))
	assert.Error(t, w.reload())
	assert.Equal(t, []string{"BTC"}, w.Assets())
}
