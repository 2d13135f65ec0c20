package apperrors

import (
	"errors"
	"fmt"
)

// Standardized collaborator errors. Every error leaving an adapter boundary
// maps to exactly one of these kinds before reaching the presentation layer.
var (
	// Input validation
	ErrMissingAsset    = errors.New("asset not selected")
	ErrMalformedAmount = errors.New("malformed amount")
	ErrAmountTooSmall  = errors.New("amount below minimum")
	ErrIncompleteInput = errors.New("incomplete input for mode")
	ErrWalletRequired  = errors.New("wallet not connected")

	// Simulation
	ErrRouteNotFound = errors.New("no route between assets")
	ErrPoolNotFound  = errors.New("pool not found")
	ErrInvalidInput  = errors.New("simulation rejected input")
	ErrSimulation    = errors.New("simulation failed")

	// Transaction submission
	ErrWalletRejected = errors.New("transaction rejected in wallet")
	ErrSendFailed     = errors.New("transaction send failed")

	// Status polling
	ErrStatusTimeout = errors.New("status polling timed out")
	ErrStatusPoll    = errors.New("status polling failed")

	// Transport
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrNetwork           = errors.New("network error")
)

// PoolExistsError is returned by the simulation service when an initial
// provision targets a pair whose pool already exists on chain. The discovered
// pool address drives the initial -> balanced mode transition.
type PoolExistsError struct {
	PoolAddress string
}

func (e *PoolExistsError) Error() string {
	return fmt.Sprintf("pool already exists: %s", e.PoolAddress)
}

// AsPoolExists unwraps err into a PoolExistsError if it is one
func AsPoolExists(err error) (*PoolExistsError, bool) {
	var pe *PoolExistsError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsValidation reports whether err belongs to the input-validation class
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingAsset) ||
		errors.Is(err, ErrMalformedAmount) ||
		errors.Is(err, ErrAmountTooSmall) ||
		errors.Is(err, ErrIncompleteInput) ||
		errors.Is(err, ErrWalletRequired)
}

// IsTransient reports whether err is worth retrying at the transport layer
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, ErrStatusPoll)
}
