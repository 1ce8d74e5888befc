package config

import "strings"

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9984"
	defaultAppLogPath  = ""

	defaultStorageDBPath    = "data/omerta.db"
	defaultStorageRetention = 365

	defaultMarketSource    = "binance"
	defaultMarketREST      = "https://api.binance.com"
	defaultMarketQuote     = "USDT"
	defaultMarketWatchlist = "configs/watchlist.yaml"
	defaultMarketSnapshot  = "1h"
	defaultMarketTimeout   = 15

	defaultAdvisorInterval  = "4h"
	defaultAdvisorLookback  = 3
	defaultAdvisorBuyDip    = 10.0
	defaultAdvisorSellRally = 15.0
	defaultAdvisorRSIPeriod = 14
	defaultAdvisorOversold  = 30.0
	defaultAdvisorBought    = 70.0

	defaultFeedbackInterval     = "1h"
	defaultFeedbackHorizonDays  = 3
	defaultFeedbackEvalDelay    = 1
	defaultFeedbackTolBaseline  = 24.0
	defaultFeedbackTolTarget    = 24.0
	defaultFeedbackBuyOK        = 5.0
	defaultFeedbackSellOK       = -5.0
	defaultFeedbackHoldBand     = 5.0
	defaultFeedbackMaxRetry     = 7
	defaultLearningStatsWindow  = 30
	defaultLearningReportPath   = "data/learning_report.json"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Storage.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Advisor.applyDefaults(keys)
	c.Feedback.applyDefaults(keys)
	c.Learning.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (s *StorageConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("storage.db_path", &s.DBPath, defaultStorageDBPath),
		fieldDefault{
			key:   "storage.retention_days",
			need:  func() bool { return s.RetentionDays <= 0 },
			apply: func() { s.RetentionDays = defaultStorageRetention },
		},
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.source", &m.Source, defaultMarketSource),
		stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultMarketREST),
		stringFieldDefault("market.quote_asset", &m.QuoteAsset, defaultMarketQuote),
		stringFieldDefault("market.watchlist_path", &m.WatchlistPath, defaultMarketWatchlist),
		stringFieldDefault("market.snapshot_interval", &m.SnapshotInterval, defaultMarketSnapshot),
		fieldDefault{
			key:   "market.timeout_seconds",
			need:  func() bool { return m.TimeoutSeconds <= 0 },
			apply: func() { m.TimeoutSeconds = defaultMarketTimeout },
		},
	)
}

func (a *AdvisorConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("advisor.interval", &a.Interval, defaultAdvisorInterval),
		fieldDefault{
			key:   "advisor.lookback_days",
			need:  func() bool { return a.LookbackDays <= 0 },
			apply: func() { a.LookbackDays = defaultAdvisorLookback },
		},
		fieldDefault{
			key:   "advisor.buy_dip_pct",
			need:  func() bool { return a.BuyDipPct <= 0 },
			apply: func() { a.BuyDipPct = defaultAdvisorBuyDip },
		},
		fieldDefault{
			key:   "advisor.sell_rally_pct",
			need:  func() bool { return a.SellRallyPct <= 0 },
			apply: func() { a.SellRallyPct = defaultAdvisorSellRally },
		},
		fieldDefault{
			key:   "advisor.rsi_period",
			need:  func() bool { return a.RSIPeriod <= 0 },
			apply: func() { a.RSIPeriod = defaultAdvisorRSIPeriod },
		},
		fieldDefault{
			key:   "advisor.rsi_oversold",
			need:  func() bool { return a.RSIOversold <= 0 },
			apply: func() { a.RSIOversold = defaultAdvisorOversold },
		},
		fieldDefault{
			key:   "advisor.rsi_overbought",
			need:  func() bool { return a.RSIOverbought <= 0 },
			apply: func() { a.RSIOverbought = defaultAdvisorBought },
		},
	)
}

func (f *FeedbackConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("feedback.interval", &f.Interval, defaultFeedbackInterval),
		fieldDefault{
			key:   "feedback.horizon_days",
			need:  func() bool { return f.HorizonDays <= 0 },
			apply: func() { f.HorizonDays = defaultFeedbackHorizonDays },
		},
		fieldDefault{
			key:   "feedback.eval_delay_days",
			need:  func() bool { return f.EvalDelayDays <= 0 },
			apply: func() { f.EvalDelayDays = defaultFeedbackEvalDelay },
		},
		fieldDefault{
			key:   "feedback.tolerance_baseline_hours",
			need:  func() bool { return f.ToleranceBaselineHours <= 0 },
			apply: func() { f.ToleranceBaselineHours = defaultFeedbackTolBaseline },
		},
		fieldDefault{
			key:   "feedback.tolerance_target_hours",
			need:  func() bool { return f.ToleranceTargetHours <= 0 },
			apply: func() { f.ToleranceTargetHours = defaultFeedbackTolTarget },
		},
		fieldDefault{
			key:   "feedback.buy_ok_threshold",
			need:  func() bool { return f.BuyOKThreshold == 0 },
			apply: func() { f.BuyOKThreshold = defaultFeedbackBuyOK },
		},
		fieldDefault{
			key:   "feedback.sell_ok_threshold",
			need:  func() bool { return f.SellOKThreshold == 0 },
			apply: func() { f.SellOKThreshold = defaultFeedbackSellOK },
		},
		fieldDefault{
			key:   "feedback.hold_band",
			need:  func() bool { return f.HoldBand <= 0 },
			apply: func() { f.HoldBand = defaultFeedbackHoldBand },
		},
		fieldDefault{
			key:   "feedback.max_retry",
			need:  func() bool { return f.MaxRetry <= 0 },
			apply: func() { f.MaxRetry = defaultFeedbackMaxRetry },
		},
	)
}

func (l *LearningConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("learning.report_path", &l.ReportPath, defaultLearningReportPath),
		fieldDefault{
			key:   "learning.stats_window_days",
			need:  func() bool { return l.StatsWindowDays <= 0 },
			apply: func() { l.StatsWindowDays = defaultLearningStatsWindow },
		},
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
