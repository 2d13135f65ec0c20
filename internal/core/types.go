package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies one of the two linked amount fields of a form.
type Side int

const (
	SideA Side = iota
	SideB
)

// String returns the string representation of a side
func (s Side) String() string {
	if s == SideA {
		return "A"
	}
	return "B"
}

// Other returns the opposite side
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// ProvisionMode governs how many amount fields a liquidity deposit requires
// and what the simulation call needs.
type ProvisionMode string

const (
	// ModeInitial seeds a pool that does not exist yet; both amounts required.
	ModeInitial ProvisionMode = "initial"
	// ModeBalanced supplies one amount against a known pool; the other side
	// is derived from the quote.
	ModeBalanced ProvisionMode = "balanced"
	// ModeArbitrary supplies both amounts against a known pool. Only
	// reachable by explicit user selection.
	ModeArbitrary ProvisionMode = "arbitrary"
)

// Asset describes a tradable token as reported by the asset directory.
type Asset struct {
	Address       string          `json:"address"`
	Symbol        string          `json:"symbol"`
	Decimals      int             `json:"decimals"`
	Balance       decimal.Decimal `json:"balance"` // in units
	LiquidityTier int             `json:"liquidity_tier"`
}

// AmountPair holds the two linked decimal-string amount fields of a form.
// ActiveSide is the side the user most recently typed into when only one
// side may be authoritative. FirstChangedSide records which side became
// non-empty first, for mode-switch recovery.
type AmountPair struct {
	AmountA          string `json:"amount_a"`
	AmountB          string `json:"amount_b"`
	ActiveSide       *Side  `json:"active_side,omitempty"`
	FirstChangedSide *Side  `json:"first_changed_side,omitempty"`
}

// Amount returns the raw decimal string for the given side
func (p AmountPair) Amount(side Side) string {
	if side == SideA {
		return p.AmountA
	}
	return p.AmountB
}

// SetAmount stores the raw decimal string for the given side
func (p *AmountPair) SetAmount(side Side, value string) {
	if side == SideA {
		p.AmountA = value
	} else {
		p.AmountB = value
	}
}

// SimulationRequest is the input snapshot sent to the simulation service.
// Unit amounts are fixed-point integers derived from the form's decimal
// strings at each asset's precision.
type SimulationRequest struct {
	AssetA        Asset
	AssetB        Asset
	UnitsA        *decimal.Decimal
	UnitsB        *decimal.Decimal
	Mode          ProvisionMode
	PoolAddress   string
	WalletAddress string
	Slippage      decimal.Decimal
}

// SimulationResult is an immutable snapshot of one simulation response.
type SimulationResult struct {
	UnitsA      decimal.Decimal
	UnitsB      decimal.Decimal
	MinUnitsA   decimal.Decimal
	MinUnitsB   decimal.Decimal
	MinLPUnits  decimal.Decimal
	Rate        decimal.Decimal
	PriceImpact decimal.Decimal
	PoolAddress string
}

// QuotedUnits returns the quoted unit amount for the given side
func (r SimulationResult) QuotedUnits(side Side) decimal.Decimal {
	if side == SideA {
		return r.UnitsA
	}
	return r.UnitsB
}

// MinUnits returns the minimum acceptable output units for the given side
func (r SimulationResult) MinUnits(side Side) decimal.Decimal {
	if side == SideA {
		return r.MinUnitsA
	}
	return r.MinUnitsB
}

// TxMessage is one signable message descriptor produced by the transaction
// builder and submitted through the wallet connector.
type TxMessage struct {
	Destination string
	Value       decimal.Decimal // units of the native coin
	Payload     []byte          // opaque BOC
}

// TxStatus is one snapshot of a submitted transaction's on-chain outcome.
type TxStatus struct {
	RequestID string
	State     TxState
	Hash      string
	Detail    string
	Observed  time.Time
}

// TxState enumerates terminal and non-terminal transaction states
type TxState string

const (
	TxStatePending       TxState = "pending"
	TxStateConfirmed     TxState = "confirmed"
	TxStateFailed        TxState = "failed"
	TxStateIndeterminate TxState = "indeterminate"
)

// Terminal reports whether the state ends status polling
func (s TxState) Terminal() bool {
	return s == TxStateConfirmed || s == TxStateFailed || s == TxStateIndeterminate
}
