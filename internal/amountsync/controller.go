// Package amountsync keeps two linked amount fields consistent with the
// latest remote price quote. It owns the debounce layer, the supersede rule
// for in-flight simulations, and the reconciliation step that writes the
// derived side back after a quote arrives.
package amountsync

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"swapdesk/internal/core"
	"swapdesk/pkg/telemetry"
)

// Kind selects the form the controller is driving
type Kind int

const (
	KindSwap Kind = iota
	KindProvision
)

// Config holds controller tuning
type Config struct {
	Debounce       time.Duration
	RequestTimeout time.Duration
	Slippage       decimal.Decimal
}

// DefaultConfig returns the default controller tuning
func DefaultConfig() Config {
	return Config{
		Debounce:       500 * time.Millisecond,
		RequestTimeout: 10 * time.Second,
		Slippage:       decimal.NewFromFloat(0.01),
	}
}

// State is an immutable snapshot published to listeners after every change
type State struct {
	Kind        Kind
	AssetA      *core.Asset
	AssetB      *core.Asset
	Pair        core.AmountPair
	Mode        core.ProvisionMode
	ModeHistory []core.ProvisionMode
	PoolAddress string
	Result      *core.SimulationResult
	LastError   string
	Busy        bool
}

// Listener receives state snapshots
type Listener func(State)

// Controller is the amount-sync state machine. All transitions happen under
// one mutex in response to discrete events: user input, debounce expiry, and
// simulation responses.
type Controller struct {
	mu  sync.Mutex
	cfg Config

	kind   Kind
	sim    core.ISimulator
	logger core.ILogger

	assetA *core.Asset
	assetB *core.Asset
	pair   core.AmountPair

	mode        core.ProvisionMode
	modeHistory []core.ProvisionMode
	poolAddress string

	walletAddr string
	result     *core.SimulationResult
	lastErr    string
	busy       bool

	timer *time.Timer

	// generation identifies the input snapshot the next simulation is built
	// from. Every edit advances it, so a response carrying an older
	// generation is dropped regardless of arrival order, including when the
	// edit that superseded it never fired a request of its own.
	generation uint64

	listener Listener

	quoteLatency metric.Float64Histogram
}

// NewController creates a controller for the given form kind
func NewController(kind Kind, sim core.ISimulator, cfg Config, logger core.ILogger) *Controller {
	meter := telemetry.GetMeter("amountsync")
	quoteLatency, _ := meter.Float64Histogram("amountsync_quote_latency_ms",
		metric.WithDescription("Latency of simulation round trips"), metric.WithUnit("ms"))

	c := &Controller{
		cfg:          cfg,
		kind:         kind,
		sim:          sim,
		logger:       logger.WithField("component", "amountsync"),
		mode:         core.ModeInitial,
		modeHistory:  []core.ProvisionMode{core.ModeInitial},
		quoteLatency: quoteLatency,
	}
	return c
}

// SetListener registers the snapshot listener. Must be called before events
// start flowing.
func (c *Controller) SetListener(l Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

// SetWalletAddress records the connected wallet address for request shaping
func (c *Controller) SetWalletAddress(addr string) {
	c.mu.Lock()
	c.walletAddr = addr
	st := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(st)
}

// SetAmount records a raw decimal-string input for side. In modes where only
// one side may be authoritative the side becomes the active side; in
// both-sides modes the first side to become non-empty is remembered for
// mode-switch recovery.
func (c *Controller) SetAmount(side core.Side, value string) {
	c.mu.Lock()

	c.pair.SetAmount(side, value)

	if value != "" && c.pair.FirstChangedSide == nil {
		s := side
		c.pair.FirstChangedSide = &s
	}

	if c.singleAuthoritative() {
		s := side
		c.pair.ActiveSide = &s
	}

	c.lastErr = ""
	c.scheduleLocked()

	st := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(st)
}

// SetAsset replaces the selected asset for side. Choosing a new asset is a
// full form reset: a new token pair invalidates any previously discovered
// pool. Selecting the asset already held by the other side clears the other
// side's selection, since a self-pair offers no price to quote.
func (c *Controller) SetAsset(side core.Side, asset core.Asset) {
	c.mu.Lock()

	prev := c.assetFor(side)
	changed := prev == nil || prev.Address != asset.Address

	if changed {
		c.resetLocked()
	}

	other := c.assetFor(side.Other())
	cleared := other != nil && other.Address == asset.Address
	if cleared {
		c.setAssetFor(side.Other(), nil)
	}

	a := asset
	c.setAssetFor(side, &a)

	if changed || cleared {
		c.scheduleLocked()
	}

	st := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(st)
}

// SetMode switches the provision mode at the user's request. Manual switches
// are always permitted and are recorded in the mode history.
func (c *Controller) SetMode(mode core.ProvisionMode) {
	c.mu.Lock()
	if c.kind != KindProvision || mode == c.mode {
		c.mu.Unlock()
		return
	}

	c.mode = mode
	c.modeHistory = append(c.modeHistory, mode)
	c.lastErr = ""
	c.result = nil
	c.scheduleLocked()

	st := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(st)
}

// Mode returns the current provision mode
func (c *Controller) Mode() core.ProvisionMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// ModeHistory returns a copy of the provision mode history
func (c *Controller) ModeHistory() []core.ProvisionMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.ProvisionMode, len(c.modeHistory))
	copy(out, c.modeHistory)
	return out
}

// PoolAddress returns the pool address known to the controller, if any
func (c *Controller) PoolAddress() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poolAddress
}

// Snapshot returns the current state
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close stops any pending debounce timer
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	// bump the generation so any in-flight result is dropped on arrival
	c.generation++
}

// singleAuthoritative reports whether only one side may hold user input
func (c *Controller) singleAuthoritative() bool {
	return c.kind == KindSwap || c.mode == core.ModeBalanced
}

func (c *Controller) assetFor(side core.Side) *core.Asset {
	if side == core.SideA {
		return c.assetA
	}
	return c.assetB
}

func (c *Controller) setAssetFor(side core.Side, a *core.Asset) {
	if side == core.SideA {
		c.assetA = a
	} else {
		c.assetB = a
	}
}

// resetLocked clears amounts, pool discovery and mode history. Asset
// selections are left to the caller.
func (c *Controller) resetLocked() {
	c.pair = core.AmountPair{}
	c.poolAddress = ""
	c.mode = core.ModeInitial
	c.modeHistory = []core.ProvisionMode{core.ModeInitial}
	c.result = nil
	c.lastErr = ""
	c.generation++ // orphan any in-flight simulation
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// scheduleLocked arms the debounce timer and advances the generation. Each
// new edit resets the quiet period, cancelling any not-yet-fired request,
// and orphans whatever simulation is already in flight.
func (c *Controller) scheduleLocked() {
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.cfg.Debounce, c.fire)
}

// fire runs after the quiet period. It snapshots the current inputs and
// issues the simulation off the event path. When the inputs no longer pass
// the mode gate nothing fires and any held quote is discarded, since it was
// produced for inputs that no longer exist.
func (c *Controller) fire() {
	c.mu.Lock()

	req, ok := c.buildRequestLocked()
	if !ok {
		c.busy = false
		c.result = nil
		st := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(st)
		return
	}

	gen := c.generation
	c.busy = true
	kind := c.kind
	active := c.activeInputSideLocked()
	cfg := c.cfg

	st := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(st)

	telemetry.GetGlobalMetrics().AddSimulation(context.Background(), kindLabel(kind))

	go c.simulate(req, kind, active, gen, cfg)
}

func (c *Controller) simulate(req *core.SimulationRequest, kind Kind, active core.Side, gen uint64, cfg Config) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	var res *core.SimulationResult
	var err error

	if kind == KindSwap {
		units := req.UnitsA
		if active == core.SideB {
			units = req.UnitsB
		}
		res, err = c.sim.SimulateSwap(ctx, req.AssetA, req.AssetB, *units, active, req.Slippage)
	} else {
		res, err = c.sim.SimulateProvision(ctx, req)
	}

	c.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("kind", kindLabel(kind))))

	if err != nil {
		c.onSimulationError(gen, err)
		return
	}
	c.onSimulationResult(gen, res)
}

func (c *Controller) notify(st State) {
	c.mu.Lock()
	l := c.listener
	c.mu.Unlock()
	if l != nil {
		l(st)
	}
}

func (c *Controller) snapshotLocked() State {
	hist := make([]core.ProvisionMode, len(c.modeHistory))
	copy(hist, c.modeHistory)

	st := State{
		Kind:        c.kind,
		AssetA:      c.assetA,
		AssetB:      c.assetB,
		Pair:        c.pair,
		Mode:        c.mode,
		ModeHistory: hist,
		PoolAddress: c.poolAddress,
		LastError:   c.lastErr,
		Busy:        c.busy,
	}
	if c.result != nil {
		r := *c.result
		st.Result = &r
	}
	return st
}

func kindLabel(k Kind) string {
	if k == KindSwap {
		return "swap"
	}
	return "provision"
}
