package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`
CREATE TABLE IF NOT EXISTS paper_accounts (
  market             TEXT PRIMARY KEY,
  balance            NUMERIC(20,6) NOT NULL,
  initial_balance    NUMERIC(20,6) NOT NULL,
  total_charges_paid NUMERIC(20,6) NOT NULL DEFAULT 0,
  updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	`
CREATE TABLE IF NOT EXISTS positions (
  market         TEXT NOT NULL,
  symbol         TEXT NOT NULL,
  average_price  NUMERIC(24,10) NOT NULL,
  total_quantity NUMERIC(20,6) NOT NULL CHECK (total_quantity > 0),
  updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (market, symbol)
);`,
	`
CREATE TABLE IF NOT EXISTS trades (
  id            BIGSERIAL PRIMARY KEY,
  ref           TEXT NOT NULL UNIQUE,
  market        TEXT NOT NULL,
  symbol        TEXT NOT NULL,
  side          TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
  product_type  TEXT NOT NULL DEFAULT 'DELIVERY' CHECK (product_type IN ('DELIVERY', 'INTRADAY')),
  price         NUMERIC(20,6) NOT NULL,
  quantity      NUMERIC(20,6) NOT NULL,
  charges       NUMERIC(20,6) NOT NULL DEFAULT 0,
  strategy_name TEXT NOT NULL DEFAULT 'Manual',
  timestamp     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	`CREATE INDEX IF NOT EXISTS idx_trades_market_timestamp ON trades (market, timestamp DESC);`,
}

// Migrate creates the ledger tables. Every statement is idempotent.
func Migrate(ctx context.Context, p *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for i, stmt := range schema {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
