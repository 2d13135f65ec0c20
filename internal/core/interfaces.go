// Package core defines the core types and interfaces for the swapdesk client
package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// IWalletConnector defines the interface for the wallet-connect protocol.
// Connect and SendTransaction block until the user acts in the wallet or the
// context is cancelled.
type IWalletConnector interface {
	Connect(ctx context.Context) (string, error)
	Disconnect() error
	Address() string
	IsConnected() bool
	SendTransaction(ctx context.Context, msgs []TxMessage, validUntil time.Time) (string, error)
}

// IAssetDirectory defines the interface for listing tradable assets.
// walletAddr may be empty, in which case balances are zero.
type IAssetDirectory interface {
	List(ctx context.Context, walletAddr string) ([]Asset, error)
	Get(ctx context.Context, address string) (Asset, error)
}

// ISimulator defines the interface for the remote simulation service
type ISimulator interface {
	SimulateSwap(ctx context.Context, offer, ask Asset, knownUnits decimal.Decimal, knownSide Side, slippage decimal.Decimal) (*SimulationResult, error)
	SimulateProvision(ctx context.Context, req *SimulationRequest) (*SimulationResult, error)
}

// ITxBuilder builds signable message descriptors from a simulation result
type ITxBuilder interface {
	BuildSwap(ctx context.Context, walletAddr string, offer, ask Asset, offerUnits, minAskUnits decimal.Decimal) ([]TxMessage, error)
	BuildProvision(ctx context.Context, walletAddr string, req *SimulationRequest, res *SimulationResult) ([]TxMessage, error)
}

// IStatusService polls the on-chain outcome of a submitted transaction.
// The returned channel is closed after a terminal status or the maximum
// wait duration; a timeout yields TxStateIndeterminate, not a failure.
type IStatusService interface {
	Poll(ctx context.Context, requestID string) <-chan TxStatus
}

// IHealthMonitor defines the interface for health monitoring
type IHealthMonitor interface {
	Register(component string, check func() error)
	GetStatus() map[string]string
	IsHealthy() bool
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
