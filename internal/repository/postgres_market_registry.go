package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"AaveRisk/internal/domain/models"
	domrepo "AaveRisk/internal/domain/repository"
	pkgpg "AaveRisk/pkg/postgres"
	applogger "AaveRisk/pkg/logger"
)

// PGMarketRegistry reads the aave_markets table.
type PGMarketRegistry struct {
	db *sql.DB
	l  *applogger.Logger
}

var _ domrepo.MarketRegistry = (*PGMarketRegistry)(nil)

func NewPGMarketRegistry(pg *pkgpg.Client) *PGMarketRegistry {
	return &PGMarketRegistry{db: pg.DB(), l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (r *PGMarketRegistry) SetLogger(l *applogger.Logger) {
	if l != nil {
		r.l = l
	}
}

// ListMarkets returns registry rows in insertion order.
func (r *PGMarketRegistry) ListMarkets(ctx context.Context) ([]models.RegisteredMarket, error) {
	start := time.Now()
	const q = `SELECT chain, rpc_provider, COALESCE(coingecko_name, ''), created_at FROM aave_markets ORDER BY created_at, chain`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		r.l.Error("postgres list_markets query error", applogger.Error(err))
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	var out []models.RegisteredMarket
	for rows.Next() {
		var m models.RegisteredMarket
		if err := rows.Scan(&m.Chain, &m.RPCProvider, &m.CoingeckoName, &m.CreatedAt); err != nil {
			r.l.Error("postgres list_markets scan error", applogger.Error(err))
			return nil, fmt.Errorf("scan market: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	r.l.Debug("postgres list_markets ok",
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// FindMarket returns the row for chain, or nil when it is not registered.
func (r *PGMarketRegistry) FindMarket(ctx context.Context, chain string) (*models.RegisteredMarket, error) {
	const q = `SELECT chain, rpc_provider, COALESCE(coingecko_name, ''), created_at FROM aave_markets WHERE chain = $1`
	var m models.RegisteredMarket
	err := r.db.QueryRowContext(ctx, q, chain).Scan(&m.Chain, &m.RPCProvider, &m.CoingeckoName, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.l.Error("postgres find_market error", applogger.String("chain", chain), applogger.Error(err))
		return nil, fmt.Errorf("find market %s: %w", chain, err)
	}
	return &m, nil
}

// UpsertMarket registers or updates a market row.
func (r *PGMarketRegistry) UpsertMarket(ctx context.Context, m models.RegisteredMarket) error {
	const q = `
        INSERT INTO aave_markets (chain, rpc_provider, coingecko_name)
        VALUES ($1, $2, NULLIF($3, ''))
        ON CONFLICT (chain) DO UPDATE SET rpc_provider = EXCLUDED.rpc_provider, coingecko_name = EXCLUDED.coingecko_name
    `
	if _, err := r.db.ExecContext(ctx, q, m.Chain, m.RPCProvider, m.CoingeckoName); err != nil {
		r.l.Error("postgres upsert_market error", applogger.String("chain", m.Chain), applogger.Error(err))
		return fmt.Errorf("upsert market %s: %w", m.Chain, err)
	}
	return nil
}

func (r *PGMarketRegistry) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
