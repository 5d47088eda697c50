// Package database provides an optional Postgres archive of check
// outcomes, for deployments that want history beyond the in-memory
// diagnostics ring.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maltedev/pricewatch/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS check_log (
	id            BIGSERIAL PRIMARY KEY,
	checked_at    TIMESTAMPTZ NOT NULL,
	item_id       TEXT NOT NULL,
	item_name     TEXT NOT NULL DEFAULT '',
	url           TEXT NOT NULL,
	list_id       TEXT NOT NULL DEFAULT 'default',
	ok            BOOLEAN NOT NULL,
	price         DOUBLE PRECISION,
	currency      TEXT NOT NULL DEFAULT '',
	confidence    INTEGER NOT NULL DEFAULT 0,
	source        TEXT NOT NULL DEFAULT '',
	selector_used TEXT NOT NULL DEFAULT '',
	stock_status  TEXT NOT NULL DEFAULT '',
	out_of_stock  BOOLEAN NOT NULL DEFAULT FALSE,
	stock_reason  TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS check_log_item_time_idx ON check_log (item_id, checked_at DESC);
`

// Archive writes check records to Postgres. Failures are logged and
// swallowed; archiving must never slow down or abort a sweep.
type Archive struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewArchive(ctx context.Context, databaseURL string) (*Archive, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &Archive{
		pool:   pool,
		logger: slog.Default().With("component", "archive"),
	}
	if err := a.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) ensureSchema(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Record inserts one check outcome.
func (a *Archive) Record(ctx context.Context, rec models.CheckRecord) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := a.pool.Exec(ctx, `
		INSERT INTO check_log (
			checked_at, item_id, item_name, url, list_id, ok, price,
			currency, confidence, source, selector_used, stock_status,
			out_of_stock, stock_reason, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rec.Time, rec.ItemID, rec.ItemName, rec.URL, rec.ListID, rec.OK, rec.Price,
		rec.Currency, rec.Confidence, rec.Source, rec.SelectorUsed, string(rec.StockStatus),
		rec.OutOfStock, rec.StockReason, rec.Error,
	)
	if err != nil {
		a.logger.Warn("failed to archive check record", "item", rec.ItemID, "error", err)
	}
}

func (a *Archive) Close() {
	a.pool.Close()
}
