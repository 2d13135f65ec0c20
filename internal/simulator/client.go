// Package simulator adapts the remote swap/liquidity simulation API
package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"swapdesk/internal/core"
	apperrors "swapdesk/pkg/errors"
	httpclient "swapdesk/pkg/http"
)

// Client talks to the remote simulation service over HTTP/JSON
type Client struct {
	http    *httpclient.Client
	limiter *rate.Limiter
	logger  core.ILogger
}

// NewClient creates a simulation client against the given base URL.
// requestsPerSecond bounds the call rate toward the service.
func NewClient(baseURL string, timeout time.Duration, requestsPerSecond float64, logger core.ILogger) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &Client{
		http:    httpclient.NewClient(baseURL, timeout),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1),
		logger:  logger.WithField("component", "simulator"),
	}
}

type swapRequest struct {
	OfferAddress string `json:"offer_address"`
	AskAddress   string `json:"ask_address"`
	Units        string `json:"units"`
	ExactSide    string `json:"exact_side"` // "offer" or "ask"
	Slippage     string `json:"slippage_tolerance"`
}

type provisionRequest struct {
	Mode        string `json:"mode"`
	TokenA      string `json:"token_a"`
	TokenB      string `json:"token_b"`
	UnitsA      string `json:"units_a,omitempty"`
	UnitsB      string `json:"units_b,omitempty"`
	PoolAddress string `json:"pool_address,omitempty"`
	Wallet      string `json:"wallet_address,omitempty"`
	Slippage    string `json:"slippage_tolerance"`
}

type simulationResponse struct {
	UnitsA      string `json:"units_a"`
	UnitsB      string `json:"units_b"`
	MinUnitsA   string `json:"min_units_a"`
	MinUnitsB   string `json:"min_units_b"`
	MinLPUnits  string `json:"min_lp_units"`
	Rate        string `json:"rate"`
	PriceImpact string `json:"price_impact"`
	PoolAddress string `json:"pool_address"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SimulateSwap quotes a swap where knownSide holds the exact amount
func (c *Client) SimulateSwap(ctx context.Context, offer, ask core.Asset, knownUnits decimal.Decimal, knownSide core.Side, slippage decimal.Decimal) (*core.SimulationResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRateLimitExceeded, err)
	}

	exact := "offer"
	if knownSide == core.SideB {
		exact = "ask"
	}

	body, err := c.http.Post(ctx, "/v1/swap/simulate", swapRequest{
		OfferAddress: offer.Address,
		AskAddress:   ask.Address,
		Units:        knownUnits.String(),
		ExactSide:    exact,
		Slippage:     slippage.String(),
	})
	if err != nil {
		return nil, c.classify(err)
	}
	return decodeResult(body)
}

// SimulateProvision quotes a liquidity deposit for the given mode
func (c *Client) SimulateProvision(ctx context.Context, req *core.SimulationRequest) (*core.SimulationResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRateLimitExceeded, err)
	}

	pr := provisionRequest{
		Mode:        string(req.Mode),
		TokenA:      req.AssetA.Address,
		TokenB:      req.AssetB.Address,
		PoolAddress: req.PoolAddress,
		Wallet:      req.WalletAddress,
		Slippage:    req.Slippage.String(),
	}
	if req.UnitsA != nil {
		pr.UnitsA = req.UnitsA.String()
	}
	if req.UnitsB != nil {
		pr.UnitsB = req.UnitsB.String()
	}

	body, err := c.http.Post(ctx, "/v1/liquidity/simulate", pr)
	if err != nil {
		return nil, c.classify(err)
	}
	return decodeResult(body)
}

// Ping checks reachability of the simulation service
func (c *Client) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.http.Get(ctx, "/v1/health", nil); err != nil {
		return fmt.Errorf("simulation service unreachable: %w", err)
	}
	return nil
}

// classify maps transport and API failures onto the error taxonomy
func (c *Client) classify(err error) error {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		var er errorResponse
		if jsonErr := json.Unmarshal(apiErr.Body, &er); jsonErr == nil && er.Error != "" {
			return classifyMessage(er.Error)
		}
		return classifyMessage(string(apiErr.Body))
	}
	c.logger.Warn("Simulation transport failure", "error", err)
	return fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
}

func decodeResult(body []byte) (*core.SimulationResult, error) {
	var resp simulationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", apperrors.ErrSimulation, err)
	}

	res := &core.SimulationResult{PoolAddress: resp.PoolAddress}
	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{resp.UnitsA, &res.UnitsA},
		{resp.UnitsB, &res.UnitsB},
		{resp.MinUnitsA, &res.MinUnitsA},
		{resp.MinUnitsB, &res.MinUnitsB},
		{resp.MinLPUnits, &res.MinLPUnits},
		{resp.Rate, &res.Rate},
		{resp.PriceImpact, &res.PriceImpact},
	} {
		if f.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad numeric field %q: %v", apperrors.ErrSimulation, f.raw, err)
		}
		*f.dst = d
	}
	return res, nil
}
