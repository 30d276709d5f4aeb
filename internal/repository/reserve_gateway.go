package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"AaveRisk/internal/domain"
	"AaveRisk/internal/domain/models"
	domrepo "AaveRisk/internal/domain/repository"
	xhttp "AaveRisk/pkg/http"
	applogger "AaveRisk/pkg/logger"
)

// ReserveGateway reads reserve and account state from an HTTP JSON gateway in
// front of the Aave UI pool data provider.
type ReserveGateway struct {
	client *xhttp.Client
	l      *applogger.Logger
}

var _ domrepo.ReserveReader = (*ReserveGateway)(nil)

type userReservesResponse struct {
	UserReserves []models.RawUserPosition `json:"userReserves"`
}

// NewReserveGateway builds a gateway on top of an outbound client that already
// carries base URL, timeout and retry settings.
func NewReserveGateway(client *xhttp.Client) *ReserveGateway {
	return &ReserveGateway{client: client, l: applogger.Nop()}
}

// NewReserveGatewayFromURL is a convenience constructor.
func NewReserveGatewayFromURL(baseURL string, timeout time.Duration, attempts int) *ReserveGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewReserveGateway(xhttp.NewClient(
		xhttp.WithBaseURL(baseURL),
		xhttp.WithTimeout(timeout),
		xhttp.WithRetry(attempts, 100*time.Millisecond),
	))
}

// SetLogger injects a structured logger.
func (g *ReserveGateway) SetLogger(l *applogger.Logger) {
	if l != nil {
		g.l = l
	}
}

// GetReserves returns the reserve list and base currency of a market.
func (g *ReserveGateway) GetReserves(ctx context.Context, market models.Market) (models.ReservesData, error) {
	var out models.ReservesData
	path := "/markets/" + url.PathEscape(market.Chain) + "/reserves"
	if err := g.get(ctx, "get_reserves", path, marketQuery(market), &out); err != nil {
		return models.ReservesData{}, err
	}
	return out, nil
}

// GetUserPositions returns the humanized per-reserve state of one account.
func (g *ReserveGateway) GetUserPositions(ctx context.Context, market models.Market, account models.Account) ([]models.RawUserPosition, error) {
	var out userReservesResponse
	path := "/markets/" + url.PathEscape(market.Chain) + "/users/" + url.PathEscape(account.Address) + "/reserves"
	if err := g.get(ctx, "get_user_positions", path, marketQuery(market), &out); err != nil {
		return nil, err
	}
	return out.UserReserves, nil
}

func (g *ReserveGateway) get(ctx context.Context, op, path string, query map[string][]string, dest interface{}) error {
	if g.client == nil || g.client.BaseURL() == "" {
		return fmt.Errorf("%s: %w: reserve gateway not configured", op, domain.ErrCollaborator)
	}
	start := time.Now()
	if err := g.client.GetJSON(ctx, path, query, dest); err != nil {
		g.l.Error("reserve gateway "+op+" error", applogger.String("path", path), applogger.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", op, domain.ErrTimeout)
		}
		return fmt.Errorf("%s: %w: %v", op, domain.ErrCollaborator, err)
	}
	g.l.Debug("reserve gateway "+op+" ok",
		applogger.String("path", path),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func marketQuery(m models.Market) map[string][]string {
	q := map[string][]string{
		"chainId": {strconv.FormatInt(m.ChainID, 10)},
	}
	if m.Contracts.PoolAddressesProvider != "" {
		q["poolAddressesProvider"] = []string{m.Contracts.PoolAddressesProvider}
	}
	if m.Contracts.UIPoolDataProvider != "" {
		q["uiPoolDataProvider"] = []string{m.Contracts.UIPoolDataProvider}
	}
	if m.RPCProvider != "" {
		q["rpc"] = []string{m.RPCProvider}
	}
	return q
}
