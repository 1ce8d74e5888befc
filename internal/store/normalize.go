package store

import "strings"

// NormalizeAction folds an action label to one of buy/sell/hold. Anything
// unrecognized falls back to hold, matching the ledger's tolerance for sloppy
// producers.
func NormalizeAction(action string) string {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "buy":
		return "buy"
	case "sell":
		return "sell"
	case "hold":
		return "hold"
	default:
		return "hold"
	}
}

// NormalizeAsset uppercases and trims an asset ticker. Returns "" for blank
// input, which callers treat as "skip this entry".
func NormalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
