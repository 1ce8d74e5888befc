package learning

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RenderLines formats stats into notification-friendly text lines: an overall
// header, the top assets by accuracy, and the most recent outcomes. Empty
// stats render an explicit "no data yet" line so a consumer cannot mistake
// silence for 0% accuracy.
func RenderLines(stats Stats, windowDays int) []string {
	if stats.Overall.Total == 0 {
		return []string{"No learning data recorded yet."}
	}
	var lines []string
	if windowDays > 0 {
		lines = append(lines, fmt.Sprintf("Learning stats (last %d days)", windowDays))
	} else {
		lines = append(lines, "Learning stats (all time)")
	}
	o := stats.Overall
	lines = append(lines, fmt.Sprintf("Total: %d - ok %d / wrong %d - accuracy %.2f%%",
		o.Total, o.Correct, o.Wrong, o.AccuracyPct))

	top := TopAssets(stats, 10)
	if len(top) > 0 {
		lines = append(lines, "Top assets (accuracy):")
		for _, entry := range top {
			lines = append(lines, fmt.Sprintf("- %s: ok %d / wrong %d -> %.2f%% (n=%d)",
				entry.Asset, entry.Stat.Correct, entry.Stat.Wrong, entry.Stat.AccuracyPct, entry.Stat.Total))
		}
	}
	if len(stats.Latest) > 0 {
		lines = append(lines, "Latest outcomes:")
		lines = append(lines, stats.Latest...)
	}
	return lines
}

// ExportReport writes stats as indented JSON using write-to-temp-then-rename,
// so a crash mid-write never leaves a truncated report behind.
func ExportReport(path string, stats Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding learning report failed: %w", err)
	}
	return atomicWriteFile(path, data)
}

func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp report file failed: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp report file failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing report file failed: %w", err)
	}
	return nil
}
