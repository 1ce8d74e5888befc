package watchlist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"omerta/internal/logger"
	"omerta/internal/store"
)

type fileFormat struct {
	Assets []string `yaml:"assets"`
}

// Watchlist holds the set of assets the advisor and snapshot jobs care
// about. The backing yaml file can be edited while the process runs; the
// watcher reloads it on change.
type Watchlist struct {
	mu     sync.RWMutex
	path   string
	assets []string
}

// Load reads the yaml file at path. Assets are normalized and deduplicated;
// an empty or missing list is an error because every producer depends on it.
func Load(path string) (*Watchlist, error) {
	w := &Watchlist{path: path}
	if err := w.reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// Assets returns a copy of the current asset list.
func (w *Watchlist) Assets() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, len(w.assets))
	copy(out, w.assets)
	return out
}

func (w *Watchlist) reload() error {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("read watchlist: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse watchlist: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Assets))
	assets := make([]string, 0, len(f.Assets))
	for _, raw := range f.Assets {
		asset := store.NormalizeAsset(raw)
		if asset == "" {
			continue
		}
		if _, dup := seen[asset]; dup {
			continue
		}
		seen[asset] = struct{}{}
		assets = append(assets, asset)
	}
	if len(assets) == 0 {
		return fmt.Errorf("watchlist %s contains no assets", w.path)
	}
	sort.Strings(assets)

	w.mu.Lock()
	w.assets = assets
	w.mu.Unlock()
	logger.Infof("watchlist: loaded %d assets: %s", len(assets), strings.Join(assets, ", "))
	return nil
}

// Watch reloads the file whenever it changes, until ctx is cancelled.
// Reload failures keep the previous list.
func (w *Watchlist) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory rather than the file: editors replace files by
	// rename, which drops a direct file watch.
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	base := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := w.reload(); err != nil {
				logger.Warnf("watchlist: reload failed, keeping previous list: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("watchlist: watcher error: %v", err)
		}
	}
}
