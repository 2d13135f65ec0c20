package simulator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapdesk/internal/core"
	apperrors "swapdesk/pkg/errors"
	"swapdesk/pkg/logging"
)

func testClient(t *testing.T, url string) *Client {
	t.Helper()
	logger, err := logging.NewZapLogger("error")
	require.NoError(t, err)
	return NewClient(url, 2*time.Second, 100, logger)
}

var (
	tonAsset = core.Asset{Address: "EQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAM", Symbol: "TON", Decimals: 9}
	jetAsset = core.Asset{Address: "EQBynBO23ywHy_CgarY9NK9FTz0yDsG82PtcbSTQgGoXwiuA", Symbol: "JETX", Decimals: 6}
)

func TestSimulateSwap_DecodesQuote(t *testing.T) {
	var got swapRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/swap/simulate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(simulationResponse{
			UnitsA:      "5000000000",
			UnitsB:      "10000000",
			MinUnitsB:   "9900000",
			Rate:        "2",
			PriceImpact: "0.003",
			PoolAddress: testPoolAddr,
		})
	}))
	defer srv.Close()

	res, err := testClient(t, srv.URL).SimulateSwap(
		context.Background(), tonAsset, jetAsset,
		decimal.New(5, 9), core.SideA, decimal.NewFromFloat(0.01))
	require.NoError(t, err)

	assert.Equal(t, tonAsset.Address, got.OfferAddress)
	assert.Equal(t, "offer", got.ExactSide)
	assert.Equal(t, "5000000000", got.Units)

	assert.Equal(t, "10000000", res.UnitsB.String())
	assert.Equal(t, "9900000", res.MinUnitsB.String())
	assert.Equal(t, testPoolAddr, res.PoolAddress)
}

func TestSimulateSwap_ExactAskSide(t *testing.T) {
	var got swapRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(simulationResponse{UnitsA: "1", UnitsB: "2"})
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).SimulateSwap(
		context.Background(), tonAsset, jetAsset,
		decimal.New(3, 6), core.SideB, decimal.NewFromFloat(0.01))
	require.NoError(t, err)
	assert.Equal(t, "ask", got.ExactSide)
}

func TestSimulateProvision_PoolExistsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(errorResponse{Error: "pool already exists: " + testPoolAddr})
	}))
	defer srv.Close()

	unitsA := decimal.New(1, 9)
	unitsB := decimal.New(2, 6)
	_, err := testClient(t, srv.URL).SimulateProvision(context.Background(), &core.SimulationRequest{
		AssetA:   tonAsset,
		AssetB:   jetAsset,
		UnitsA:   &unitsA,
		UnitsB:   &unitsB,
		Mode:     core.ModeInitial,
		Slippage: decimal.NewFromFloat(0.01),
	})
	require.Error(t, err)

	pe, ok := apperrors.AsPoolExists(err)
	require.True(t, ok)
	assert.Equal(t, testPoolAddr, pe.PoolAddress)
}

func TestSimulateSwap_RouteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errorResponse{Error: "route not found"})
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).SimulateSwap(
		context.Background(), tonAsset, jetAsset,
		decimal.New(1, 9), core.SideA, decimal.NewFromFloat(0.01))
	assert.ErrorIs(t, err, apperrors.ErrRouteNotFound)
}

func TestSimulateSwap_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).SimulateSwap(
		context.Background(), tonAsset, jetAsset,
		decimal.New(1, 9), core.SideA, decimal.NewFromFloat(0.01))
	assert.ErrorIs(t, err, apperrors.ErrSimulation)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/health", r.URL.Path)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	assert.NoError(t, testClient(t, srv.URL).Ping())
}

func TestPing_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	assert.Error(t, testClient(t, srv.URL).Ping())
}
