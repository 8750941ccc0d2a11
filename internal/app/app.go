// Package app assembles the ledger, engine, strategy runner and scheduler
// from configuration. The server and ledgerctl share it.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/papertrade-backend/internal/config"
	"github.com/kjannette/papertrade-backend/internal/db"
	"github.com/kjannette/papertrade-backend/internal/external"
	"github.com/kjannette/papertrade-backend/internal/logging"
	"github.com/kjannette/papertrade-backend/internal/market"
	"github.com/kjannette/papertrade-backend/internal/notifications"
	"github.com/kjannette/papertrade-backend/internal/repository"
	"github.com/kjannette/papertrade-backend/internal/risk"
	"github.com/kjannette/papertrade-backend/internal/scheduler"
	"github.com/kjannette/papertrade-backend/internal/strategy"
	"github.com/kjannette/papertrade-backend/internal/trading"
	"github.com/shopspring/decimal"
)

type App struct {
	Config   *config.Config
	Pool     *pgxpool.Pool
	Markets  *market.Registry
	Ledger   *repository.LedgerRepo
	Engine   *trading.Engine
	Runner   *strategy.Runner
	Notifier *notifications.Sender

	mu    sync.Mutex
	sched *scheduler.StrategyScheduler
}

// New connects to the database and builds every service. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.For("app")

	markets, err := Markets(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg.DSN(), db.PoolOptions{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := db.TestConnection(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("Schema up to date")
	}

	ledger := repository.NewLedgerRepo(pool)

	var guard trading.Guard
	guardian := risk.NewGuardian(Limits(cfg), ledger)
	if guardian.Enabled() {
		guard = guardian
		log.Info("Order limits enabled")
	}

	notify := notifications.NewSender(cfg.WebhookURL, cfg.NotifierName)
	engine := trading.NewEngine(ledger, guard, notify)
	runner := strategy.NewRunner(external.NewChartClient(cfg.ChartAPIURL), engine)

	return &App{
		Config:   cfg,
		Pool:     pool,
		Markets:  markets,
		Ledger:   ledger,
		Engine:   engine,
		Runner:   runner,
		Notifier: notify,
	}, nil
}

// Markets returns the built-in registry with MARKETS_FILE applied.
func Markets(cfg *config.Config) (*market.Registry, error) {
	reg := market.DefaultRegistry()
	if cfg.MarketsFile == "" {
		return reg, nil
	}
	o, err := market.LoadOverrides(cfg.MarketsFile)
	if err != nil {
		return nil, err
	}
	if err := reg.Apply(o); err != nil {
		return nil, err
	}
	logging.For("app").Infof("Market overrides loaded from %s", cfg.MarketsFile)
	return reg, nil
}

// Limits maps the per-market order limits from config.
func Limits(cfg *config.Config) map[string]risk.Limits {
	return map[string]risk.Limits{
		market.India: {
			MaxOrderValue:  decimal.NewFromFloat(cfg.MaxOrderValueIN),
			MaxDailyTrades: cfg.MaxDailyTradesIN,
		},
		market.US: {
			MaxOrderValue:  decimal.NewFromFloat(cfg.MaxOrderValueUS),
			MaxDailyTrades: cfg.MaxDailyTradesUS,
		},
	}
}

// Watches builds the scheduler watchlists, skipping markets with no symbols.
func Watches(cfg *config.Config, markets *market.Registry) []scheduler.Watch {
	var out []scheduler.Watch
	for _, w := range []struct {
		code    string
		symbols []string
	}{
		{market.India, cfg.StrategyWatchlistIN},
		{market.US, cfg.StrategyWatchlistUS},
	} {
		p, ok := markets.Lookup(w.code)
		if !ok || len(w.symbols) == 0 {
			continue
		}
		out = append(out, scheduler.Watch{Policy: p, Symbols: w.symbols})
	}
	return out
}

// StartScheduler launches the periodic strategy sweep when enabled.
func (a *App) StartScheduler() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Config.StrategyEnabled {
		logging.For("scheduler").Info("Skipped - STRATEGY_ENABLED is false")
		return false
	}
	if a.sched != nil && a.sched.Running() {
		return true
	}

	a.sched = a.newScheduler(reportSkipped(a.Notifier.Send))
	a.sched.Start()
	a.Notifier.Send("Strategy scheduler started (SMA 20/50 crossover)")
	return true
}

// SweepOnce runs the strategy over every configured watchlist right away,
// handing each result to onResult.
func (a *App) SweepOnce(ctx context.Context, onResult func(*market.Policy, *strategy.Result)) scheduler.Summary {
	return a.newScheduler(onResult).RunNow(ctx)
}

func (a *App) newScheduler(onResult func(*market.Policy, *strategy.Result)) *scheduler.StrategyScheduler {
	return scheduler.NewStrategyScheduler(a.Runner, scheduler.StrategySchedulerConfig{
		Interval: time.Duration(a.Config.StrategyIntervalMinutes) * time.Minute,
		Quantity: decimal.NewFromFloat(a.Config.StrategyQuantity),
		Watch:    Watches(a.Config, a.Markets),
		OnResult: onResult,
	})
}

// reportSkipped notifies signals that fired but could not trade. Executed
// trades are already announced by the engine.
func reportSkipped(send func(string)) func(*market.Policy, *strategy.Result) {
	return func(p *market.Policy, res *strategy.Result) {
		if res.Executed || res.Reason == "" {
			return
		}
		send(fmt.Sprintf("[%s] %s signal on %s not executed: %s", p.Code, res.Signal, res.Symbol, res.Reason))
	}
}

// Close stops the scheduler, flushes notifications and closes the pool.
func (a *App) Close() {
	a.mu.Lock()
	if a.sched != nil {
		a.sched.Stop()
		a.sched = nil
	}
	a.mu.Unlock()

	a.Notifier.Close()
	a.Pool.Close()
	logging.For("db").Info("Connection pool closed")
}
