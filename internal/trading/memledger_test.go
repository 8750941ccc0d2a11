package trading

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/kjannette/papertrade-backend/internal/models"
	"github.com/kjannette/papertrade-backend/internal/repository"
	"github.com/shopspring/decimal"
)

var errInjected = errors.New("injected failure")

// memLedger is an in-memory Ledger. A transaction snapshots committed state
// when it locks the account and publishes its copy on Commit.
type memLedger struct {
	rowLock sync.Mutex

	mu        sync.Mutex
	state     memState
	nextID    int64
	failOn    string
	beginErr  error
	commitCnt int
}

type memState struct {
	accounts  map[string]models.Account
	positions map[string]models.Position
	trades    []models.Trade
}

func newMemLedger() *memLedger {
	return &memLedger{state: memState{
		accounts:  map[string]models.Account{},
		positions: map[string]models.Position{},
	}}
}

func posKey(market, symbol string) string {
	return market + "/" + symbol
}

func (s memState) clone() memState {
	c := memState{
		accounts:  make(map[string]models.Account, len(s.accounts)),
		positions: make(map[string]models.Position, len(s.positions)),
		trades:    append([]models.Trade(nil), s.trades...),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	return c
}

func (l *memLedger) snapshot() memState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.clone()
}

func (l *memLedger) Begin(ctx context.Context) (repository.LedgerTx, error) {
	if l.beginErr != nil {
		return nil, l.beginErr
	}
	return &memTx{l: l}, nil
}

func (l *memLedger) Account(ctx context.Context, market string) (*models.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.state.accounts[market]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (l *memLedger) Position(ctx context.Context, market, symbol string) (*models.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.state.positions[posKey(market, symbol)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (l *memLedger) Positions(ctx context.Context, market string) ([]models.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []models.Position{}
	for _, p := range l.state.positions {
		if p.Market == market {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (l *memLedger) RecentTrades(ctx context.Context, market string, limit int) ([]models.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []models.Trade{}
	for i := len(l.state.trades) - 1; i >= 0 && len(out) < limit; i-- {
		if t := l.state.trades[i]; t.Market == market {
			out = append(out, t)
		}
	}
	return out, nil
}

type memTx struct {
	l      *memLedger
	state  memState
	locked bool
	done   bool
}

func (t *memTx) fail(op string) error {
	t.l.mu.Lock()
	defer t.l.mu.Unlock()
	if t.l.failOn == op {
		return errInjected
	}
	return nil
}

func (t *memTx) LockAccount(ctx context.Context, market string, defaultBalance decimal.Decimal) (*models.Account, error) {
	if err := t.fail("lock"); err != nil {
		return nil, err
	}
	if !t.locked {
		t.l.rowLock.Lock()
		t.locked = true
		t.state = t.l.snapshot()
	}
	a, ok := t.state.accounts[market]
	if !ok {
		a = models.Account{
			Market:           market,
			Balance:          defaultBalance,
			InitialBalance:   defaultBalance,
			TotalChargesPaid: decimal.Zero,
		}
		t.state.accounts[market] = a
	}
	return &a, nil
}

func (t *memTx) Position(ctx context.Context, market, symbol string) (*models.Position, error) {
	p, ok := t.state.positions[posKey(market, symbol)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *memTx) SaveAccount(ctx context.Context, a *models.Account) error {
	if err := t.fail("save_account"); err != nil {
		return err
	}
	t.state.accounts[a.Market] = *a
	return nil
}

func (t *memTx) InsertTrade(ctx context.Context, tr *models.Trade) (*models.Trade, error) {
	if err := t.fail("insert_trade"); err != nil {
		return nil, err
	}
	t.l.mu.Lock()
	t.l.nextID++
	id := t.l.nextID
	t.l.mu.Unlock()

	row := *tr
	row.ID = id
	t.state.trades = append(t.state.trades, row)
	return &row, nil
}

func (t *memTx) SavePosition(ctx context.Context, p *models.Position) error {
	if err := t.fail("save_position"); err != nil {
		return err
	}
	t.state.positions[posKey(p.Market, p.Symbol)] = *p
	return nil
}

func (t *memTx) DeletePosition(ctx context.Context, market, symbol string) error {
	if err := t.fail("delete_position"); err != nil {
		return err
	}
	delete(t.state.positions, posKey(market, symbol))
	return nil
}

func (t *memTx) ResetMarket(ctx context.Context, market string) error {
	if err := t.fail("reset"); err != nil {
		return err
	}
	kept := t.state.trades[:0:0]
	for _, tr := range t.state.trades {
		if tr.Market != market {
			kept = append(kept, tr)
		}
	}
	t.state.trades = kept
	for k, p := range t.state.positions {
		if p.Market == market {
			delete(t.state.positions, k)
		}
	}
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("tx closed")
	}
	if err := t.fail("commit"); err != nil {
		return err
	}
	t.done = true
	if t.locked {
		t.l.mu.Lock()
		t.l.state = t.state
		t.l.commitCnt++
		t.l.mu.Unlock()
		t.l.rowLock.Unlock()
	}
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return errors.New("tx closed")
	}
	t.done = true
	if t.locked {
		t.l.rowLock.Unlock()
	}
	return nil
}
