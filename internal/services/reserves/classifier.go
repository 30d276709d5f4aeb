package reserves

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"AaveRisk/internal/domain"
	"AaveRisk/internal/domain/models"
	domsvc "AaveRisk/internal/domain/service"
)

const (
	usdDecimals       = 8
	bpsDenominator    = 10000
	defaultRefDecimal = 18
)

// Classifier normalizes raw reader output and splits it into borrow and
// collateral buckets. It holds no state.
type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

// Classify joins positions to reserves by underlying asset. A position is a
// borrow when it carries any debt; otherwise it is collateral when it has a
// balance and the user enabled it as collateral.
func (c *Classifier) Classify(s models.ReserveSnapshot) (models.PositionBuckets, error) {
	var out models.PositionBuckets

	refPriceUSD, err := parseAmount("marketReferenceCurrencyPriceInUsd", s.BaseCurrency.MarketReferenceCurrencyPriceInUSD)
	if err != nil {
		return out, err
	}
	refDecimals := s.BaseCurrency.MarketReferenceCurrencyDecimals
	if refDecimals <= 0 {
		refDecimals = defaultRefDecimal
	}
	// USD per one unit of market reference currency
	refUSD := refPriceUSD.Shift(-usdDecimals)

	byAsset := make(map[string]models.RawReserve, len(s.Reserves))
	for _, r := range s.Reserves {
		byAsset[strings.ToLower(r.UnderlyingAsset)] = r
	}

	total := decimal.Zero
	for _, p := range s.Positions {
		r, ok := byAsset[strings.ToLower(p.UnderlyingAsset)]
		if !ok {
			return models.PositionBuckets{}, fmt.Errorf("%w: no reserve for position %s", domain.ErrCollaborator, p.UnderlyingAsset)
		}
		pos, borrowsUSD, err := normalize(r, p, refDecimals, refUSD)
		if err != nil {
			return models.PositionBuckets{}, err
		}
		switch {
		case pos.TotalBorrows > 0:
			out.Borrow = append(out.Borrow, pos)
			total = total.Add(borrowsUSD)
		case pos.UnderlyingBalance > 0 && pos.UsageAsCollateralEnabledOnUser:
			out.Collateral = append(out.Collateral, pos)
		}
	}
	out.TotalBorrowsUSD = total.InexactFloat64()
	return out, nil
}

func normalize(r models.RawReserve, p models.RawUserPosition, refDecimals int, refUSD decimal.Decimal) (models.ReservePosition, decimal.Decimal, error) {
	priceRef, err := parseAmount("priceInMarketReferenceCurrency", r.PriceInMarketReferenceCurrency)
	if err != nil {
		return models.ReservePosition{}, decimal.Zero, err
	}
	lt, err := parseAmount("reserveLiquidationThreshold", r.ReserveLiquidationThreshold)
	if err != nil {
		return models.ReservePosition{}, decimal.Zero, err
	}
	balance, err := parseAmount("underlyingBalance", p.UnderlyingBalance)
	if err != nil {
		return models.ReservePosition{}, decimal.Zero, err
	}
	variable, err := parseAmount("variableDebt", p.VariableDebt)
	if err != nil {
		return models.ReservePosition{}, decimal.Zero, err
	}
	stable, err := parseAmount("stableDebt", p.StableDebt)
	if err != nil {
		return models.ReservePosition{}, decimal.Zero, err
	}

	priceUSD := priceRef.Shift(int32(-refDecimals)).Mul(refUSD)
	borrows := variable.Add(stable)
	borrowsUSD := borrows.Mul(priceUSD)

	return models.ReservePosition{
		ReserveID:                      r.ID,
		UnderlyingAsset:                r.UnderlyingAsset,
		Name:                           r.Name,
		Symbol:                         r.Symbol,
		Decimals:                       r.Decimals,
		PriceUSD:                       priceUSD.InexactFloat64(),
		UnderlyingBalance:              balance.InexactFloat64(),
		UnderlyingBalanceUSD:           balance.Mul(priceUSD).InexactFloat64(),
		TotalBorrows:                   borrows.InexactFloat64(),
		TotalBorrowsUSD:                borrowsUSD.InexactFloat64(),
		UsageAsCollateralEnabledOnUser: p.UsageAsCollateralEnabledOnUser,
		LiquidationThreshold:           lt.Div(decimal.NewFromInt(bpsDenominator)).InexactFloat64(),
	}, borrowsUSD, nil
}

// parseAmount treats an empty string as zero.
func parseAmount(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: parse %s %q: %v", domain.ErrCollaborator, field, s, err)
	}
	return d, nil
}

var _ domsvc.ReserveClassifier = (*Classifier)(nil)
