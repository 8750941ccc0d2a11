package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kjannette/papertrade-backend/internal/logging"
	"github.com/kjannette/papertrade-backend/internal/market"
	"github.com/kjannette/papertrade-backend/internal/strategy"
	"github.com/shopspring/decimal"
)

// SignalRunner evaluates and acts on one symbol. strategy.Runner implements it.
type SignalRunner interface {
	Run(ctx context.Context, policy *market.Policy, symbol string, quantity decimal.Decimal) (*strategy.Result, error)
}

// Watch is the list of symbols scanned in one market.
type Watch struct {
	Policy  *market.Policy
	Symbols []string
}

type StrategySchedulerConfig struct {
	Interval time.Duration // e.g. 1*time.Hour
	Quantity decimal.Decimal
	Watch    []Watch
	OnResult func(policy *market.Policy, res *strategy.Result)
}

// Summary counts the outcomes of one sweep over the watchlists.
type Summary struct {
	Evaluated int
	Executed  int
	Skipped   int
	Failed    int
}

type StrategyScheduler struct {
	runner SignalRunner
	cfg    StrategySchedulerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewStrategyScheduler(runner SignalRunner, cfg StrategySchedulerConfig) *StrategyScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Hour
	}
	if !cfg.Quantity.IsPositive() {
		cfg.Quantity = decimal.NewFromInt(1)
	}
	return &StrategyScheduler{runner: runner, cfg: cfg}
}

func (s *StrategyScheduler) Start() {
	log := logging.For("scheduler")

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Warn("Already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
				sum := s.sweep(ctx, stopCh)
				cancel()
				log.Infof("Sweep done: %d evaluated, %d executed, %d skipped, %d failed",
					sum.Evaluated, sum.Executed, sum.Skipped, sum.Failed)
			}
		}
	}()

	log.Infof("Started (every %s, %d markets)", s.cfg.Interval, len(s.cfg.Watch))
}

// Stop halts the ticker and waits for an in-flight sweep to finish.
func (s *StrategyScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	logging.For("scheduler").Info("Stopped")
}

func (s *StrategyScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow sweeps every watchlist once outside the normal schedule.
func (s *StrategyScheduler) RunNow(ctx context.Context) Summary {
	logging.For("scheduler").Info("Manual strategy sweep triggered")
	return s.sweep(ctx, nil)
}

func (s *StrategyScheduler) sweep(ctx context.Context, stopCh <-chan struct{}) Summary {
	log := logging.For("scheduler")
	var sum Summary

	for _, w := range s.cfg.Watch {
		for _, sym := range w.Symbols {
			select {
			case <-stopCh:
				return sum
			case <-ctx.Done():
				return sum
			default:
			}

			sum.Evaluated++
			res, err := s.runner.Run(ctx, w.Policy, sym, s.cfg.Quantity)
			if err != nil {
				sum.Failed++
				entry := log.WithField("market", w.Policy.Code).WithField("symbol", sym)
				if errors.Is(err, strategy.ErrNotEnoughData) {
					entry.Warn(err)
				} else {
					entry.Error(fmt.Errorf("strategy run: %w", err))
				}
				continue
			}

			if res.Executed {
				sum.Executed++
			} else if res.Signal != strategy.SignalHold {
				sum.Skipped++
			}
			if s.cfg.OnResult != nil {
				s.cfg.OnResult(w.Policy, res)
			}
		}
	}
	return sum
}
