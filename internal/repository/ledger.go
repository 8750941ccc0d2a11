package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/papertrade-backend/internal/models"
	"github.com/shopspring/decimal"
)

// LedgerTx is one atomic unit of work against a market's account,
// positions and trades. Callers must end it with Commit or Rollback.
type LedgerTx interface {
	// LockAccount returns the market's account, creating it with
	// defaultBalance when absent, and holds a row lock until the
	// transaction ends.
	LockAccount(ctx context.Context, market string, defaultBalance decimal.Decimal) (*models.Account, error)
	// Position returns nil when the symbol is not held.
	Position(ctx context.Context, market, symbol string) (*models.Position, error)
	SaveAccount(ctx context.Context, a *models.Account) error
	InsertTrade(ctx context.Context, t *models.Trade) (*models.Trade, error)
	SavePosition(ctx context.Context, p *models.Position) error
	DeletePosition(ctx context.Context, market, symbol string) error
	// ResetMarket removes every trade and position of the market.
	ResetMarket(ctx context.Context, market string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

func (r *LedgerRepo) Begin(ctx context.Context) (LedgerTx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &ledgerTx{tx: tx}, nil
}

// Account returns nil when the market's account has not been created yet.
func (r *LedgerRepo) Account(ctx context.Context, market string) (*models.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM paper_accounts WHERE market = $1`,
		market,
	)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// Position returns nil when the symbol is not held.
func (r *LedgerRepo) Position(ctx context.Context, market, symbol string) (*models.Position, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE market = $1 AND symbol = $2`,
		market, symbol,
	)
	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *LedgerRepo) Positions(ctx context.Context, market string) ([]models.Position, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE market = $1 ORDER BY symbol ASC`,
		market,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPositions(rows)
}

// RecentTrades returns the newest trades first.
func (r *LedgerRepo) RecentTrades(ctx context.Context, market string, limit int) ([]models.Trade, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE market = $1
		 ORDER BY timestamp DESC, id DESC LIMIT $2`,
		market, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// CountSince counts a market's trades executed at or after since.
func (r *LedgerRepo) CountSince(ctx context.Context, market string, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trades WHERE market = $1 AND timestamp >= $2`,
		market, since,
	).Scan(&count)
	return count, err
}

// --- transaction ---

type ledgerTx struct {
	tx pgx.Tx
}

func (l *ledgerTx) LockAccount(ctx context.Context, market string, defaultBalance decimal.Decimal) (*models.Account, error) {
	_, err := l.tx.Exec(ctx,
		`INSERT INTO paper_accounts (market, balance, initial_balance, total_charges_paid, updated_at)
		 VALUES ($1, $2, $2, 0, NOW())
		 ON CONFLICT (market) DO NOTHING`,
		market, defaultBalance.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	row := l.tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM paper_accounts WHERE market = $1 FOR UPDATE`,
		market,
	)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}
	return a, nil
}

func (l *ledgerTx) Position(ctx context.Context, market, symbol string) (*models.Position, error) {
	row := l.tx.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE market = $1 AND symbol = $2`,
		market, symbol,
	)
	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (l *ledgerTx) SaveAccount(ctx context.Context, a *models.Account) error {
	_, err := l.tx.Exec(ctx,
		`UPDATE paper_accounts
		 SET balance = $1, initial_balance = $2, total_charges_paid = $3, updated_at = NOW()
		 WHERE market = $4`,
		a.Balance.String(), a.InitialBalance.String(), a.TotalChargesPaid.String(), a.Market,
	)
	return err
}

func (l *ledgerTx) InsertTrade(ctx context.Context, t *models.Trade) (*models.Trade, error) {
	row := l.tx.QueryRow(ctx,
		`INSERT INTO trades
		 (ref, market, symbol, side, product_type, price, quantity, charges, strategy_name, timestamp)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 RETURNING `+tradeColumns,
		t.Ref, t.Market, t.Symbol, string(t.Side), string(t.ProductType),
		t.Price.String(), t.Quantity.String(), t.Charges.String(), t.StrategyName, t.Timestamp,
	)
	return scanTrade(row)
}

func (l *ledgerTx) SavePosition(ctx context.Context, p *models.Position) error {
	_, err := l.tx.Exec(ctx,
		`INSERT INTO positions (market, symbol, average_price, total_quantity, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (market, symbol) DO UPDATE
		 SET average_price = EXCLUDED.average_price,
		     total_quantity = EXCLUDED.total_quantity,
		     updated_at = NOW()`,
		p.Market, p.Symbol, p.AveragePrice.String(), p.TotalQuantity.String(),
	)
	return err
}

func (l *ledgerTx) DeletePosition(ctx context.Context, market, symbol string) error {
	_, err := l.tx.Exec(ctx,
		`DELETE FROM positions WHERE market = $1 AND symbol = $2`,
		market, symbol,
	)
	return err
}

func (l *ledgerTx) ResetMarket(ctx context.Context, market string) error {
	if _, err := l.tx.Exec(ctx, `DELETE FROM trades WHERE market = $1`, market); err != nil {
		return fmt.Errorf("delete trades: %w", err)
	}
	if _, err := l.tx.Exec(ctx, `DELETE FROM positions WHERE market = $1`, market); err != nil {
		return fmt.Errorf("delete positions: %w", err)
	}
	return nil
}

func (l *ledgerTx) Commit(ctx context.Context) error {
	return l.tx.Commit(ctx)
}

func (l *ledgerTx) Rollback(ctx context.Context) error {
	return l.tx.Rollback(ctx)
}

// --- scan helpers ---

const (
	accountColumns  = `market, balance::text, initial_balance::text, total_charges_paid::text, updated_at`
	positionColumns = `market, symbol, average_price::text, total_quantity::text, updated_at`
	tradeColumns    = `id, ref, market, symbol, side, product_type, price::text, quantity::text,
		charges::text, strategy_name, timestamp`
)

type scannable interface {
	Scan(dest ...any) error
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanAccount(row scannable) (*models.Account, error) {
	var a models.Account
	var balance, initial, charges string
	if err := row.Scan(&a.Market, &balance, &initial, &charges, &a.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	if a.InitialBalance, err = decimal.NewFromString(initial); err != nil {
		return nil, fmt.Errorf("parse initial_balance: %w", err)
	}
	if a.TotalChargesPaid, err = decimal.NewFromString(charges); err != nil {
		return nil, fmt.Errorf("parse total_charges_paid: %w", err)
	}
	return &a, nil
}

func scanPosition(row scannable) (*models.Position, error) {
	var p models.Position
	var avg, qty string
	if err := row.Scan(&p.Market, &p.Symbol, &avg, &qty, &p.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.AveragePrice, err = decimal.NewFromString(avg); err != nil {
		return nil, fmt.Errorf("parse average_price: %w", err)
	}
	if p.TotalQuantity, err = decimal.NewFromString(qty); err != nil {
		return nil, fmt.Errorf("parse total_quantity: %w", err)
	}
	return &p, nil
}

func collectPositions(rows rowsIter) ([]models.Position, error) {
	out := []models.Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanTrade(row scannable) (*models.Trade, error) {
	var t models.Trade
	var side, product, price, qty, charges string
	err := row.Scan(
		&t.ID, &t.Ref, &t.Market, &t.Symbol, &side, &product,
		&price, &qty, &charges, &t.StrategyName, &t.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	t.Side = models.Side(side)
	t.ProductType = models.ProductType(product)
	if t.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	if t.Quantity, err = decimal.NewFromString(qty); err != nil {
		return nil, fmt.Errorf("parse quantity: %w", err)
	}
	if t.Charges, err = decimal.NewFromString(charges); err != nil {
		return nil, fmt.Errorf("parse charges: %w", err)
	}
	return &t, nil
}

func collectTrades(rows rowsIter) ([]models.Trade, error) {
	out := []models.Trade{}
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
