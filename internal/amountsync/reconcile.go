package amountsync

import (
	"context"

	"swapdesk/internal/core"
	apperrors "swapdesk/pkg/errors"
	"swapdesk/pkg/fixedpoint"
	"swapdesk/pkg/telemetry"
)

// onSimulationResult applies a completed simulation. A result whose
// generation is no longer the latest is dropped: only the most recent input
// snapshot is ever authoritative, which protects the displayed state against
// out-of-order network responses.
func (c *Controller) onSimulationResult(gen uint64, res *core.SimulationResult) {
	c.mu.Lock()

	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("Dropping superseded simulation result", "generation", gen)
		telemetry.GetGlobalMetrics().AddStaleSimulation(context.Background(), kindLabel(c.kind))
		return
	}

	c.busy = false
	c.result = res
	c.lastErr = ""

	if res.PoolAddress != "" && c.poolAddress == "" {
		c.poolAddress = res.PoolAddress
	}

	// In single-authoritative modes the quoted amount for the derived side is
	// written back at that side's precision. The side the user is typing into
	// is never touched. In both-sides modes the result is informational only.
	if c.singleAuthoritative() && c.pair.ActiveSide != nil {
		derived := c.pair.ActiveSide.Other()
		if asset := c.assetFor(derived); asset != nil {
			c.pair.SetAmount(derived, fixedpoint.FormatUnits(res.QuotedUnits(derived), asset.Decimals))
		}
	}

	st := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(st)
}

// onSimulationError classifies a failed simulation. One shape is intercepted:
// an initial provision answered with "pool already exists" auto-transitions
// the form to balanced mode against the discovered pool. Everything else is
// surfaced as a display-only failure with no state mutation.
func (c *Controller) onSimulationError(gen uint64, err error) {
	c.mu.Lock()

	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("Dropping superseded simulation error", "generation", gen, "error", err)
		telemetry.GetGlobalMetrics().AddStaleSimulation(context.Background(), kindLabel(c.kind))
		return
	}

	c.busy = false

	if pe, ok := apperrors.AsPoolExists(err); ok && c.kind == KindProvision && c.mode == core.ModeInitial {
		c.logger.Info("Pool discovered for pair, switching to balanced provisioning",
			"pool", pe.PoolAddress)

		c.mode = core.ModeBalanced
		c.modeHistory = append(c.modeHistory, core.ModeBalanced)
		c.poolAddress = pe.PoolAddress
		c.result = nil

		if c.pair.FirstChangedSide != nil {
			s := *c.pair.FirstChangedSide
			c.pair.ActiveSide = &s
		} else if c.pair.AmountA != "" {
			s := core.SideA
			c.pair.ActiveSide = &s
		} else if c.pair.AmountB != "" {
			s := core.SideB
			c.pair.ActiveSide = &s
		}

		telemetry.GetGlobalMetrics().AddPoolDiscovery(context.Background())

		// Re-quote immediately under the new mode; the pool address is now
		// known so the balanced gate can pass.
		c.scheduleLocked()

		st := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(st)
		return
	}

	c.lastErr = err.Error()
	c.logger.Warn("Simulation failed", "error", err)
	telemetry.GetGlobalMetrics().AddSimulationError(context.Background(), kindLabel(c.kind))

	st := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(st)
}
