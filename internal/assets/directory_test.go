package assets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"

	"swapdesk/pkg/concurrency"
	apperrors "swapdesk/pkg/errors"
	"swapdesk/pkg/logging"
)

func testAddr(seed byte) string {
	data := make([]byte, 32)
	data[0] = seed
	return address.NewAddress(0, 0, data).String()
}

func newTestDirectory(t *testing.T, url string, ttl time.Duration) (*Directory, *concurrency.WorkerPool) {
	t.Helper()
	logger, err := logging.NewZapLogger("error")
	require.NoError(t, err)
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{MaxWorkers: 2, MaxCapacity: 16}, logger)
	t.Cleanup(pool.Stop)
	return NewDirectory(url, 2*time.Second, ttl, pool, logger), pool
}

func TestList_FetchesAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/assets", r.URL.Path)
		json.NewEncoder(w).Encode([]assetRecord{
			{Address: testAddr(1), Symbol: "TON", Decimals: 9, Balance: "5000000000"},
			{Address: testAddr(2), Symbol: "JETX", Decimals: 6, Balance: "0"},
		})
	}))
	defer srv.Close()

	dir, _ := newTestDirectory(t, srv.URL, time.Minute)

	list, err := dir.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "TON", list[0].Symbol)
	assert.Equal(t, "5000000000", list[0].Balance.String())

	// served from cache, no second fetch
	_, err = dir.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestList_WalletParamForwarded(t *testing.T) {
	wallet := testAddr(9)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wallet, r.URL.Query().Get("wallet_address"))
		json.NewEncoder(w).Encode([]assetRecord{})
	}))
	defer srv.Close()

	dir, _ := newTestDirectory(t, srv.URL, time.Minute)
	_, err := dir.List(context.Background(), wallet)
	require.NoError(t, err)
}

func TestList_StaleEntryTriggersBackgroundRefresh(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode([]assetRecord{{Address: testAddr(1), Symbol: "TON", Decimals: 9}})
	}))
	defer srv.Close()

	dir, _ := newTestDirectory(t, srv.URL, 10*time.Millisecond)

	_, err := dir.List(context.Background(), "")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	// stale hit still returns immediately and schedules a refresh
	list, err := dir.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestList_SkipsUnparseableAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]assetRecord{
			{Address: "not-an-address", Symbol: "BAD", Decimals: 9},
			{Address: testAddr(1), Symbol: "TON", Decimals: 9},
		})
	}))
	defer srv.Close()

	dir, _ := newTestDirectory(t, srv.URL, time.Minute)
	list, err := dir.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "TON", list[0].Symbol)
}

func TestGet_KnownAndUnknown(t *testing.T) {
	known := testAddr(1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]assetRecord{{Address: known, Symbol: "TON", Decimals: 9}})
	}))
	defer srv.Close()

	dir, _ := newTestDirectory(t, srv.URL, time.Minute)

	a, err := dir.Get(context.Background(), known)
	require.NoError(t, err)
	assert.Equal(t, "TON", a.Symbol)

	_, err = dir.Get(context.Background(), testAddr(7))
	assert.ErrorIs(t, err, apperrors.ErrMissingAsset)

	_, err = dir.Get(context.Background(), "garbage")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
