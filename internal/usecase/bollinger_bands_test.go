package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"AaveRisk/internal/domain"
	"AaveRisk/internal/domain/models"
	domrepo "AaveRisk/internal/domain/repository"
)

const wethAddr = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestMonthlyBandQueriesCompletedMonths(t *testing.T) {
	store := &fakeStore{aggregate: map[string][]models.Candle{
		wethAddr: monthlyBars(wethAddr, 1, 2, 3, 4),
	}}
	uc := NewBandUseCase(store, 4, 2)
	uc.SetClock(fixedClock(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)))

	band, ok, err := uc.MonthlyBand(context.Background(), "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", 1)
	if err != nil || !ok {
		t.Fatalf("expected band, got ok=%v err=%v", ok, err)
	}
	// mean 2.5, population sd sqrt(1.25)
	sd := math.Sqrt(1.25)
	if math.Abs(band.Middle-2.5) > 1e-9 || math.Abs(band.Lower-(2.5-2*sd)) > 1e-9 || math.Abs(band.Upper-(2.5+2*sd)) > 1e-9 {
		t.Fatalf("unexpected band: %+v", band)
	}

	q := store.queries[0]
	if q.Interval != domrepo.Interval1M || q.Sort != domrepo.Ascending || !q.KeepsNewest() || q.Max != 4 {
		t.Fatalf("unexpected query: %+v", q)
	}
	if !q.Cutoff.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected cutoff at start of month, got %v", q.Cutoff)
	}
}

func TestMonthlyBandInsufficientData(t *testing.T) {
	store := &fakeStore{aggregate: map[string][]models.Candle{wethAddr: monthlyBars(wethAddr, 1, 2)}}
	uc := NewBandUseCase(store, 20, 2)
	_, ok, err := uc.MonthlyBand(context.Background(), wethAddr, 1)
	if err != nil {
		t.Fatalf("insufficient data must not be an error, got %v", err)
	}
	if ok {
		t.Fatalf("expected no band")
	}
}

func TestMonthlyBandRejectsUnorderedSeries(t *testing.T) {
	bars := monthlyBars(wethAddr, 1, 2, 3)
	bars[0], bars[2] = bars[2], bars[0]
	store := &fakeStore{aggregate: map[string][]models.Candle{wethAddr: bars}}
	uc := NewBandUseCase(store, 3, 2)
	_, _, err := uc.MonthlyBand(context.Background(), wethAddr, 1)
	if !errors.Is(err, domain.ErrUnorderedSeries) {
		t.Fatalf("expected ErrUnorderedSeries, got %v", err)
	}
}

func TestMonthlyBandStoreError(t *testing.T) {
	store := &fakeStore{aggErr: errors.New("clickhouse down")}
	uc := NewBandUseCase(store, 3, 2)
	if _, _, err := uc.MonthlyBand(context.Background(), wethAddr, 1); err == nil {
		t.Fatalf("expected error")
	}
}
