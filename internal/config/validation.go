package config

import (
	"fmt"
	"strings"

	"omerta/internal/scheduler"
)

// validate performs basic sanity checks after defaults have been applied.
func validate(c *Config) error {
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Advisor.validate(); err != nil {
		return err
	}
	if err := c.Feedback.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if strings.TrimSpace(m.Source) != "binance" {
		return fmt.Errorf("market.source only supports \"binance\" (got %q)", m.Source)
	}
	if _, ok := scheduler.ParseIntervalDuration(m.SnapshotInterval); !ok {
		return fmt.Errorf("market.snapshot_interval is not a valid interval: %q", m.SnapshotInterval)
	}
	return nil
}

func (a *AdvisorConfig) validate() error {
	if !a.Enabled {
		return nil
	}
	if _, ok := scheduler.ParseIntervalDuration(a.Interval); !ok {
		return fmt.Errorf("advisor.interval is not a valid interval: %q", a.Interval)
	}
	if a.RSIOversold >= a.RSIOverbought {
		return fmt.Errorf("advisor.rsi_oversold (%v) must be below advisor.rsi_overbought (%v)",
			a.RSIOversold, a.RSIOverbought)
	}
	return nil
}

func (f *FeedbackConfig) validate() error {
	if _, ok := scheduler.ParseIntervalDuration(f.Interval); !ok {
		return fmt.Errorf("feedback.interval is not a valid interval: %q", f.Interval)
	}
	if f.BuyOKThreshold <= 0 {
		return fmt.Errorf("feedback.buy_ok_threshold must be positive (got %v)", f.BuyOKThreshold)
	}
	if f.SellOKThreshold >= 0 {
		return fmt.Errorf("feedback.sell_ok_threshold must be negative (got %v)", f.SellOKThreshold)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if !n.Telegram.Enabled {
		return nil
	}
	if strings.TrimSpace(n.Telegram.BotToken) == "" || strings.TrimSpace(n.Telegram.ChatID) == "" {
		return fmt.Errorf("notify.telegram enabled but bot_token/chat_id missing")
	}
	return nil
}
