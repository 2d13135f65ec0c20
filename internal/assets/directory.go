// Package assets fetches and caches the tradable asset list
package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/address"

	"swapdesk/internal/core"
	"swapdesk/pkg/concurrency"
	apperrors "swapdesk/pkg/errors"
	httpclient "swapdesk/pkg/http"
)

// Directory serves the asset list from the remote directory service with a
// TTL cache. Stale entries are served while a background refresh runs.
type Directory struct {
	http   *httpclient.Client
	pool   *concurrency.WorkerPool
	logger core.ILogger
	ttl    time.Duration

	mu         sync.RWMutex
	entries    map[string]*cacheEntry // keyed by wallet address ("" for no wallet)
	refreshing map[string]bool
}

type cacheEntry struct {
	assets    []core.Asset
	fetchedAt time.Time
}

func NewDirectory(baseURL string, timeout, ttl time.Duration, pool *concurrency.WorkerPool, logger core.ILogger) *Directory {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Directory{
		http:       httpclient.NewClient(baseURL, timeout),
		pool:       pool,
		logger:     logger.WithField("component", "assets"),
		ttl:        ttl,
		entries:    make(map[string]*cacheEntry),
		refreshing: make(map[string]bool),
	}
}

type assetRecord struct {
	Address       string `json:"address"`
	Symbol        string `json:"symbol"`
	Decimals      int    `json:"decimals"`
	Balance       string `json:"balance"`
	LiquidityTier int    `json:"liquidity_tier"`
}

// List returns the tradable assets, with balances when walletAddr is set.
// A fresh cache entry is returned directly; a stale one is returned while a
// refresh is scheduled on the worker pool.
func (d *Directory) List(ctx context.Context, walletAddr string) ([]core.Asset, error) {
	d.mu.RLock()
	entry := d.entries[walletAddr]
	d.mu.RUnlock()

	if entry != nil {
		if time.Since(entry.fetchedAt) < d.ttl {
			return cloneAssets(entry.assets), nil
		}
		d.scheduleRefresh(walletAddr)
		return cloneAssets(entry.assets), nil
	}

	assets, err := d.fetch(ctx, walletAddr)
	if err != nil {
		return nil, err
	}
	d.store(walletAddr, assets)
	return cloneAssets(assets), nil
}

// Get returns a single asset by address, served from the no-wallet list
func (d *Directory) Get(ctx context.Context, addr string) (core.Asset, error) {
	if _, err := address.ParseAddr(addr); err != nil {
		return core.Asset{}, fmt.Errorf("%w: asset address %q: %v", apperrors.ErrInvalidInput, addr, err)
	}

	list, err := d.List(ctx, "")
	if err != nil {
		return core.Asset{}, err
	}
	for _, a := range list {
		if a.Address == addr {
			return a, nil
		}
	}
	return core.Asset{}, fmt.Errorf("%w: asset %s not in directory", apperrors.ErrMissingAsset, addr)
}

func (d *Directory) scheduleRefresh(walletAddr string) {
	d.mu.Lock()
	if d.refreshing[walletAddr] {
		d.mu.Unlock()
		return
	}
	d.refreshing[walletAddr] = true
	d.mu.Unlock()

	err := d.pool.Submit(func() {
		defer func() {
			d.mu.Lock()
			delete(d.refreshing, walletAddr)
			d.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		assets, err := d.fetch(ctx, walletAddr)
		if err != nil {
			d.logger.Warn("Asset refresh failed", "wallet", walletAddr, "error", err)
			return
		}
		d.store(walletAddr, assets)
	})
	if err != nil {
		d.mu.Lock()
		delete(d.refreshing, walletAddr)
		d.mu.Unlock()
	}
}

func (d *Directory) fetch(ctx context.Context, walletAddr string) ([]core.Asset, error) {
	params := map[string]string{}
	if walletAddr != "" {
		params["wallet_address"] = walletAddr
	}

	body, err := d.http.Get(ctx, "/v1/assets", params)
	if err != nil {
		return nil, fmt.Errorf("%w: asset directory: %v", apperrors.ErrNetwork, err)
	}

	var records []assetRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: malformed asset list: %v", apperrors.ErrNetwork, err)
	}

	assets := make([]core.Asset, 0, len(records))
	for _, r := range records {
		if _, err := address.ParseAddr(r.Address); err != nil {
			d.logger.Warn("Skipping asset with unparseable address", "address", r.Address, "symbol", r.Symbol)
			continue
		}
		balance := decimal.Zero
		if r.Balance != "" {
			b, err := decimal.NewFromString(r.Balance)
			if err != nil {
				d.logger.Warn("Skipping asset with malformed balance", "address", r.Address, "balance", r.Balance)
				continue
			}
			balance = b
		}
		assets = append(assets, core.Asset{
			Address:       r.Address,
			Symbol:        r.Symbol,
			Decimals:      r.Decimals,
			Balance:       balance,
			LiquidityTier: r.LiquidityTier,
		})
	}
	return assets, nil
}

func (d *Directory) store(walletAddr string, assets []core.Asset) {
	d.mu.Lock()
	d.entries[walletAddr] = &cacheEntry{assets: assets, fetchedAt: time.Now()}
	d.mu.Unlock()
}

func cloneAssets(in []core.Asset) []core.Asset {
	out := make([]core.Asset, len(in))
	copy(out, in)
	return out
}
