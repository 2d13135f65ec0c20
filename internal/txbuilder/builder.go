// Package txbuilder assembles signable router messages from simulation results
package txbuilder

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"swapdesk/internal/core"
	apperrors "swapdesk/pkg/errors"
)

// Router op codes
const (
	opJettonTransfer = 0x0f8a7ea5
	opSwap           = 0x25938561
	opProvideLP      = 0xfcf9e58f
)

// Gas attached to router messages, in nanoTON
var (
	gasSwap      = decimal.New(300_000_000, 0) // 0.3 TON
	gasProvision = decimal.New(400_000_000, 0) // 0.4 TON
	gasForward   = decimal.New(250_000_000, 0) // 0.25 TON
)

// JettonWalletResolver resolves the jetton wallet address a given owner holds
// for a jetton master contract.
type JettonWalletResolver interface {
	WalletOf(ctx context.Context, owner, master string) (string, error)
}

// Config identifies the DEX router and its proxy-TON master. Assets whose
// address equals ProxyTONMaster are treated as native TON.
type Config struct {
	RouterAddress  string `yaml:"router_address"`
	ProxyTONMaster string `yaml:"proxy_ton_master"`
}

// Builder implements core.ITxBuilder against a ston.fi style router
type Builder struct {
	router   *address.Address
	proxyTON string
	resolver JettonWalletResolver
	logger   core.ILogger
}

func NewBuilder(cfg Config, resolver JettonWalletResolver, logger core.ILogger) (*Builder, error) {
	router, err := address.ParseAddr(cfg.RouterAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid router address %q: %w", cfg.RouterAddress, err)
	}
	if _, err := address.ParseAddr(cfg.ProxyTONMaster); err != nil {
		return nil, fmt.Errorf("invalid proxy TON master %q: %w", cfg.ProxyTONMaster, err)
	}
	return &Builder{
		router:   router,
		proxyTON: cfg.ProxyTONMaster,
		resolver: resolver,
		logger:   logger.WithField("component", "txbuilder"),
	}, nil
}

// BuildSwap builds the single router message that swaps offerUnits of offer
// for at least minAskUnits of ask.
func (b *Builder) BuildSwap(ctx context.Context, walletAddr string, offer, ask core.Asset, offerUnits, minAskUnits decimal.Decimal) ([]core.TxMessage, error) {
	owner, err := address.ParseAddr(walletAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: wallet address: %v", apperrors.ErrInvalidInput, err)
	}

	askWallet, err := b.routerWalletOf(ctx, b.masterOf(ask))
	if err != nil {
		return nil, err
	}

	body := cell.BeginCell().
		MustStoreUInt(opSwap, 32).
		MustStoreAddr(askWallet).
		MustStoreBigCoins(minAskUnits.BigInt()).
		MustStoreAddr(owner).
		MustStoreBoolBit(false). // no referral
		EndCell()

	msg, err := b.wrapTransfer(ctx, owner, offer, offerUnits, body)
	if err != nil {
		return nil, err
	}
	return []core.TxMessage{msg}, nil
}

// BuildProvision builds one router message per pool side, each carrying the
// minimum LP amount bound from the simulation.
func (b *Builder) BuildProvision(ctx context.Context, walletAddr string, req *core.SimulationRequest, res *core.SimulationResult) ([]core.TxMessage, error) {
	owner, err := address.ParseAddr(walletAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: wallet address: %v", apperrors.ErrInvalidInput, err)
	}

	msgs := make([]core.TxMessage, 0, 2)
	for _, side := range []struct {
		asset core.Asset
		units decimal.Decimal
		other core.Asset
	}{
		{req.AssetA, res.UnitsA, req.AssetB},
		{req.AssetB, res.UnitsB, req.AssetA},
	} {
		otherWallet, err := b.routerWalletOf(ctx, b.masterOf(side.other))
		if err != nil {
			return nil, err
		}

		body := cell.BeginCell().
			MustStoreUInt(opProvideLP, 32).
			MustStoreAddr(otherWallet).
			MustStoreBigCoins(res.MinLPUnits.BigInt()).
			EndCell()

		msg, err := b.wrapTransfer(ctx, owner, side.asset, side.units, body)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// wrapTransfer wraps a router payload in the outer message for one asset.
// Jettons go through the owner's jetton wallet as a transfer with a forward
// payload; native TON goes straight to the router's proxy-TON wallet with the
// amount attached as message value.
func (b *Builder) wrapTransfer(ctx context.Context, owner *address.Address, asset core.Asset, units decimal.Decimal, payload *cell.Cell) (core.TxMessage, error) {
	if b.isNative(asset) {
		ptonWallet, err := b.routerWalletOf(ctx, b.proxyTON)
		if err != nil {
			return core.TxMessage{}, err
		}
		return core.TxMessage{
			Destination: ptonWallet.String(),
			Value:       units.Add(gasSwap),
			Payload:     payload.ToBOC(),
		}, nil
	}

	srcWallet, err := b.resolver.WalletOf(ctx, owner.String(), asset.Address)
	if err != nil {
		return core.TxMessage{}, fmt.Errorf("%w: jetton wallet of %s: %v", apperrors.ErrNetwork, asset.Symbol, err)
	}

	transfer := cell.BeginCell().
		MustStoreUInt(opJettonTransfer, 32).
		MustStoreUInt(queryID(), 64).
		MustStoreBigCoins(units.BigInt()).
		MustStoreAddr(b.router).
		MustStoreAddr(owner).
		MustStoreBoolBit(false). // no custom payload
		MustStoreBigCoins(gasForward.BigInt()).
		MustStoreBoolBit(true).
		MustStoreRef(payload).
		EndCell()

	return core.TxMessage{
		Destination: srcWallet,
		Value:       gasProvision,
		Payload:     transfer.ToBOC(),
	}, nil
}

func (b *Builder) routerWalletOf(ctx context.Context, master string) (*address.Address, error) {
	w, err := b.resolver.WalletOf(ctx, b.router.String(), master)
	if err != nil {
		return nil, fmt.Errorf("%w: router wallet for %s: %v", apperrors.ErrNetwork, master, err)
	}
	addr, err := address.ParseAddr(w)
	if err != nil {
		return nil, fmt.Errorf("%w: resolved wallet %q: %v", apperrors.ErrNetwork, w, err)
	}
	return addr, nil
}

func (b *Builder) masterOf(asset core.Asset) string {
	if b.isNative(asset) {
		return b.proxyTON
	}
	return asset.Address
}

func (b *Builder) isNative(asset core.Asset) bool {
	return asset.Address == b.proxyTON
}

func queryID() uint64 {
	return uint64(time.Now().UnixMilli())<<16 | uint64(rand.Intn(1<<16))
}
