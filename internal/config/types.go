package config

import "strings"

// Config is the top-level configuration carrier.
type Config struct {
	App      AppConfig      `toml:"app"`
	Storage  StorageConfig  `toml:"storage"`
	Market   MarketConfig   `toml:"market"`
	Advisor  AdvisorConfig  `toml:"advisor"`
	Feedback FeedbackConfig `toml:"feedback"`
	Learning LearningConfig `toml:"learning"`
	Notify   NotifyConfig   `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// StorageConfig controls the SQLite store. An empty db_path switches to the
// in-memory store (useful for dry runs; nothing survives a restart).
type StorageConfig struct {
	DBPath        string `toml:"db_path"`
	RetentionDays int    `toml:"retention_days"`
}

type MarketConfig struct {
	Source           string `toml:"source"`
	RESTBaseURL      string `toml:"rest_base_url"`
	QuoteAsset       string `toml:"quote_asset"`
	WatchlistPath    string `toml:"watchlist_path"`
	SnapshotInterval string `toml:"snapshot_interval"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// AdvisorConfig tunes the heuristic decision producer.
type AdvisorConfig struct {
	Enabled       bool    `toml:"enabled"`
	Interval      string  `toml:"interval"`
	LookbackDays  int     `toml:"lookback_days"`
	BuyDipPct     float64 `toml:"buy_dip_pct"`
	SellRallyPct  float64 `toml:"sell_rally_pct"`
	RSIPeriod     int     `toml:"rsi_period"`
	RSIOversold   float64 `toml:"rsi_oversold"`
	RSIOverbought float64 `toml:"rsi_overbought"`
}

// FeedbackConfig tunes the decision-evaluation pass.
type FeedbackConfig struct {
	Interval               string  `toml:"interval"`
	HorizonDays            int     `toml:"horizon_days"`
	EvalDelayDays          int     `toml:"eval_delay_days"`
	ToleranceBaselineHours float64 `toml:"tolerance_baseline_hours"`
	ToleranceTargetHours   float64 `toml:"tolerance_target_hours"`
	BuyOKThreshold         float64 `toml:"buy_ok_threshold"`
	SellOKThreshold        float64 `toml:"sell_ok_threshold"`
	HoldBand               float64 `toml:"hold_band"`
	MaxRetry               int     `toml:"max_retry"`
}

type LearningConfig struct {
	StatsWindowDays int    `toml:"stats_window_days"`
	ReportPath      string `toml:"report_path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet tracks which config keys were explicitly present in the file, so
// defaults never clobber an intentional zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
