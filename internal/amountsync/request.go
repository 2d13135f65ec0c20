package amountsync

import (
	"github.com/shopspring/decimal"

	"swapdesk/internal/core"
	"swapdesk/pkg/fixedpoint"
)

// buildRequestLocked shapes the current inputs into a simulation request, or
// reports that the mode-specific minimum input requirement is not met. Raw
// amount strings are converted to fixed-point units here; malformed or
// non-positive amounts count as absent.
func (c *Controller) buildRequestLocked() (*core.SimulationRequest, bool) {
	if c.assetA == nil || c.assetB == nil {
		return nil, false
	}
	if c.assetA.Address == c.assetB.Address {
		return nil, false
	}

	unitsA := c.parseUnitsLocked(core.SideA)
	unitsB := c.parseUnitsLocked(core.SideB)

	req := &core.SimulationRequest{
		AssetA:        *c.assetA,
		AssetB:        *c.assetB,
		UnitsA:        unitsA,
		UnitsB:        unitsB,
		Mode:          c.mode,
		PoolAddress:   c.poolAddress,
		WalletAddress: c.walletAddr,
		Slippage:      c.cfg.Slippage,
	}

	if c.kind == KindSwap {
		active := c.activeInputSideLocked()
		if unitsFor(req, active) == nil {
			return nil, false
		}
		return req, true
	}

	switch c.mode {
	case core.ModeInitial:
		if unitsA == nil || unitsB == nil {
			return nil, false
		}
	case core.ModeBalanced:
		if c.poolAddress == "" {
			return nil, false
		}
		if unitsA == nil && unitsB == nil {
			return nil, false
		}
	case core.ModeArbitrary:
		if c.poolAddress == "" || unitsA == nil || unitsB == nil {
			return nil, false
		}
	}
	return req, true
}

// activeInputSideLocked resolves which side holds the authoritative input:
// the recorded active side when its amount is usable, else the first changed
// side, else whichever side is non-empty.
func (c *Controller) activeInputSideLocked() core.Side {
	if c.pair.ActiveSide != nil && c.parseUnitsLocked(*c.pair.ActiveSide) != nil {
		return *c.pair.ActiveSide
	}
	if c.pair.FirstChangedSide != nil && c.parseUnitsLocked(*c.pair.FirstChangedSide) != nil {
		return *c.pair.FirstChangedSide
	}
	if c.parseUnitsLocked(core.SideA) != nil {
		return core.SideA
	}
	return core.SideB
}

// parseUnitsLocked converts a side's raw amount to positive units, or nil
// when the amount is empty, malformed or non-positive.
func (c *Controller) parseUnitsLocked(side core.Side) *decimal.Decimal {
	raw := c.pair.Amount(side)
	if raw == "" {
		return nil
	}
	asset := c.assetFor(side)
	if asset == nil {
		return nil
	}
	units, err := fixedpoint.ParseUnits(raw, asset.Decimals)
	if err != nil || !units.IsPositive() {
		return nil
	}
	return &units
}

func unitsFor(req *core.SimulationRequest, side core.Side) *decimal.Decimal {
	if side == core.SideA {
		return req.UnitsA
	}
	return req.UnitsB
}
