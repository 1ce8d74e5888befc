package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"omerta/internal/advisor"
	"omerta/internal/config"
	"omerta/internal/feedback"
	"omerta/internal/gateway/binance"
	"omerta/internal/gateway/notifier"
	"omerta/internal/learning"
	"omerta/internal/logger"
	"omerta/internal/scheduler"
	"omerta/internal/store"
	"omerta/internal/store/gormstore"
	httpapi "omerta/internal/transport/http"
	"omerta/internal/watchlist"
)

// App owns every long-running component: the store, the price snapshot job,
// the advisor, the feedback evaluator and the HTTP surface.
type App struct {
	cfg        *config.Config
	store      store.Store
	watch      *watchlist.Watchlist
	source     *binance.Source
	advisor    *advisor.Advisor
	evaluator  *feedback.Evaluator
	aggregator *learning.Aggregator
	notify     notifier.TextNotifier
	httpServer *httpapi.Server

	snapshotInterval time.Duration
	advisorInterval  time.Duration
	feedbackInterval time.Duration
}

// New wires the application from config. It opens the store and loads the
// watchlist but starts nothing; Run does that.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	var st store.Store
	if cfg.Storage.DBPath == "" {
		logger.Warnf("app: db_path empty, using in-memory store (nothing survives restart)")
		st = store.NewMemoryStore()
	} else {
		gs, err := gormstore.New(cfg.Storage.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		st = gs
	}

	watch, err := watchlist.Load(cfg.Market.WatchlistPath)
	if err != nil {
		st.Close()
		return nil, err
	}

	source := binance.New(binance.Config{
		RESTBaseURL: cfg.Market.RESTBaseURL,
		QuoteAsset:  cfg.Market.QuoteAsset,
		HTTPTimeout: time.Duration(cfg.Market.TimeoutSeconds) * time.Second,
	})

	fbCfg := feedback.Config{
		HorizonDays:       cfg.Feedback.HorizonDays,
		EvalDelayDays:     cfg.Feedback.EvalDelayDays,
		ToleranceBaseline: time.Duration(cfg.Feedback.ToleranceBaselineHours * float64(time.Hour)),
		ToleranceTarget:   time.Duration(cfg.Feedback.ToleranceTargetHours * float64(time.Hour)),
		BuyOKThreshold:    cfg.Feedback.BuyOKThreshold,
		SellOKThreshold:   cfg.Feedback.SellOKThreshold,
		HoldBand:          cfg.Feedback.HoldBand,
		MaxRetry:          cfg.Feedback.MaxRetry,
	}
	evaluator := feedback.NewEvaluator(fbCfg, st, st, st)
	aggregator := learning.NewAggregator(st)

	var adv *advisor.Advisor
	if cfg.Advisor.Enabled {
		adv = advisor.New(advisor.Config{
			LookbackDays:  cfg.Advisor.LookbackDays,
			BuyDipPct:     cfg.Advisor.BuyDipPct,
			SellRallyPct:  cfg.Advisor.SellRallyPct,
			RSIPeriod:     cfg.Advisor.RSIPeriod,
			RSIOversold:   cfg.Advisor.RSIOversold,
			RSIOverbought: cfg.Advisor.RSIOverbought,
		}, st, st, watch.Assets)
	}

	var notify notifier.TextNotifier = notifier.Noop{}
	if cfg.Notify.Telegram.Enabled {
		notify = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}

	srv, err := httpapi.NewServer(httpapi.Config{
		Addr:       cfg.App.HTTPAddr,
		Ledger:     st,
		Evaluator:  evaluator,
		Aggregator: aggregator,
		StatsDays:  cfg.Learning.StatsWindowDays,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	snapInterval, ok := scheduler.ParseIntervalDuration(cfg.Market.SnapshotInterval)
	if !ok {
		st.Close()
		return nil, fmt.Errorf("invalid snapshot interval %q", cfg.Market.SnapshotInterval)
	}
	advInterval, ok := scheduler.ParseIntervalDuration(cfg.Advisor.Interval)
	if !ok {
		st.Close()
		return nil, fmt.Errorf("invalid advisor interval %q", cfg.Advisor.Interval)
	}
	fbInterval, ok := scheduler.ParseIntervalDuration(cfg.Feedback.Interval)
	if !ok {
		st.Close()
		return nil, fmt.Errorf("invalid feedback interval %q", cfg.Feedback.Interval)
	}

	return &App{
		cfg:              cfg,
		store:            st,
		watch:            watch,
		source:           source,
		advisor:          adv,
		evaluator:        evaluator,
		aggregator:       aggregator,
		notify:           notify,
		httpServer:       srv,
		snapshotInterval: snapInterval,
		advisorInterval:  advInterval,
		feedbackInterval: fbInterval,
	}, nil
}

// Run blocks until ctx is cancelled or a component fails fatally.
func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.httpServer.Start(ctx)
	})

	g.Go(func() error {
		err := a.watch.Watch(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Warnf("watchlist: watcher stopped: %v", err)
		}
		return nil
	})

	g.Go(func() error {
		sched := scheduler.NewAlignedScheduler(ctx, "snapshot", a.snapshotInterval, 0)
		sched.RunImmediately = true
		sched.Start(func() { a.snapshotOnce(ctx) })
		return nil
	})

	if a.advisor != nil {
		g.Go(func() error {
			sched := scheduler.NewAlignedScheduler(ctx, "advisor", a.advisorInterval, 30*time.Second)
			sched.Start(func() { a.advisorOnce(ctx) })
			return nil
		})
	}

	g.Go(func() error {
		sched := scheduler.NewAlignedScheduler(ctx, "feedback", a.feedbackInterval, time.Minute)
		sched.RunImmediately = true
		sched.Start(func() { a.feedbackOnce(ctx) })
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// snapshotOnce fetches prices for the watchlist, stores them, and prunes
// history beyond retention.
func (a *App) snapshotOnce(ctx context.Context) {
	assets := a.watch.Assets()
	snaps, err := a.source.FetchPrices(ctx, assets)
	if err != nil {
		logger.Warnf("snapshot: fetch failed: %v", err)
		return
	}
	n, err := a.store.RecordPrices(ctx, snaps)
	if err != nil {
		logger.Warnf("snapshot: store failed: %v", err)
		return
	}
	logger.Infof("snapshot: stored %d prices for %d assets", n, len(assets))

	if a.cfg.Storage.RetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Storage.RetentionDays)
		if pruned, err := a.store.PrunePricesBefore(ctx, cutoff); err != nil {
			logger.Warnf("snapshot: prune failed: %v", err)
		} else if pruned > 0 {
			logger.Infof("snapshot: pruned %d prices older than %s", pruned, cutoff.Format("2006-01-02"))
		}
	}
}

func (a *App) advisorOnce(ctx context.Context) {
	if _, err := a.advisor.RunAdvicePass(ctx); err != nil {
		logger.Warnf("advisor: pass failed: %v", err)
	}
}

// feedbackOnce runs one evaluation pass and pushes a summary when anything
// was evaluated.
func (a *App) feedbackOnce(ctx context.Context) {
	outcomes, err := a.evaluator.RunFeedbackPass(ctx)
	if err != nil {
		if err == feedback.ErrPassInProgress {
			logger.Debugf("feedback: previous pass still running, skipped")
			return
		}
		logger.Warnf("feedback: pass failed: %v", err)
		return
	}
	if len(outcomes) == 0 {
		return
	}

	stats, err := a.aggregator.ComputeStats(ctx, a.cfg.Learning.StatsWindowDays)
	if err != nil {
		logger.Warnf("feedback: stats failed: %v", err)
		return
	}
	if a.cfg.Learning.ReportPath != "" {
		if err := learning.ExportReport(a.cfg.Learning.ReportPath, stats); err != nil {
			logger.Warnf("feedback: report export failed: %v", err)
		}
	}

	lines := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		verdict := "wrong"
		if o.Correct {
			verdict = "correct"
		}
		lines = append(lines, fmt.Sprintf("%s %s %+.2f%% %s", o.Asset, o.Action, o.RealizedPercent, verdict))
	}
	msg := notifier.StructuredMessage{
		Icon:  "\U0001F4CA",
		Title: "Feedback pass",
		Sections: []notifier.MessageSection{
			{Title: "Evaluated", Lines: lines},
			{Title: "Accuracy", Lines: learning.RenderLines(stats, a.cfg.Learning.StatsWindowDays)},
		},
		Timestamp: time.Now().UTC(),
	}
	if err := a.notify.SendText(msg.RenderMarkdown()); err != nil {
		logger.Warnf("feedback: notify failed: %v", err)
	}
}
