package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"AaveRisk/internal/domain/models"
	pkgpg "AaveRisk/pkg/postgres"
)

func newMockRegistry(t *testing.T) (*PGMarketRegistry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPGMarketRegistry(pkgpg.NewClientFromDB(db)), mock
}

func TestListMarkets(t *testing.T) {
	repo, mock := newMockRegistry(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT chain, rpc_provider, COALESCE\(coingecko_name, ''\), created_at FROM aave_markets ORDER BY`).
		WillReturnRows(sqlmock.NewRows([]string{"chain", "rpc_provider", "coingecko_name", "created_at"}).
			AddRow("Polygon", "https://polygon-rpc.example", "polygon-pos", now).
			AddRow("Ethereum", "", "", now))

	markets, err := repo.ListMarkets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(markets) != 2 || markets[0].Chain != "Polygon" || markets[0].CoingeckoName != "polygon-pos" {
		t.Fatalf("unexpected markets: %+v", markets)
	}
	if markets[1].CoingeckoName != "" {
		t.Fatalf("expected empty platform override, got %q", markets[1].CoingeckoName)
	}
}

func TestListMarketsError(t *testing.T) {
	repo, mock := newMockRegistry(t)
	mock.ExpectQuery(`FROM aave_markets`).WillReturnError(errors.New("connection refused"))
	if _, err := repo.ListMarkets(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFindMarket(t *testing.T) {
	tests := []struct {
		name      string
		mockSetup func(mock sqlmock.Sqlmock)
		wantNil   bool
		wantErr   bool
	}{
		{
			name: "found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`WHERE chain = \$1`).
					WithArgs("Arbitrum").
					WillReturnRows(sqlmock.NewRows([]string{"chain", "rpc_provider", "coingecko_name", "created_at"}).
						AddRow("Arbitrum", "https://arb.example", "arbitrum-one", time.Now()))
			},
		},
		{
			name: "missing",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`WHERE chain = \$1`).WithArgs("Arbitrum").WillReturnError(sql.ErrNoRows)
			},
			wantNil: true,
		},
		{
			name: "db error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`WHERE chain = \$1`).WithArgs("Arbitrum").WillReturnError(errors.New("timeout"))
			},
			wantNil: true,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRegistry(t)
			tt.mockSetup(mock)
			m, err := repo.FindMarket(context.Background(), "Arbitrum")
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if (m == nil) != tt.wantNil {
				t.Fatalf("unexpected market: %+v", m)
			}
		})
	}
}

func TestUpsertMarket(t *testing.T) {
	repo, mock := newMockRegistry(t)
	mock.ExpectExec(`INSERT INTO aave_markets`).
		WithArgs("Base", "https://base.example", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.UpsertMarket(context.Background(), models.RegisteredMarket{Chain: "Base", RPCProvider: "https://base.example"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
