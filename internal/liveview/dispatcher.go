package liveview

import (
	"context"
	"time"

	"swapdesk/internal/amountsync"
	"swapdesk/internal/core"
	"swapdesk/internal/history"
	"swapdesk/internal/session"
)

// Dispatcher routes inbound UI events into the right session and mirrors
// every state change back out through the hub.
type Dispatcher struct {
	hub       *Hub
	swap      *session.Session
	liquidity *session.Session
	wallet    core.IWalletConnector
	directory core.IAssetDirectory
	store     *history.Store
	logger    core.ILogger
}

func NewDispatcher(hub *Hub, swap, liquidity *session.Session, wallet core.IWalletConnector,
	directory core.IAssetDirectory, store *history.Store, logger core.ILogger) *Dispatcher {
	d := &Dispatcher{
		hub:       hub,
		swap:      swap,
		liquidity: liquidity,
		wallet:    wallet,
		directory: directory,
		store:     store,
		logger:    logger.WithField("component", "dispatcher"),
	}

	swap.Controller().SetListener(func(st amountsync.State) {
		hub.Broadcast(NewMessage(TypeSwapState, viewOf(st)))
	})
	liquidity.Controller().SetListener(func(st amountsync.State) {
		hub.Broadcast(NewMessage(TypeLiquidityState, viewOf(st)))
	})

	return d
}

// stateView is the JSON shape of a controller snapshot
type stateView struct {
	AssetA      *core.Asset            `json:"asset_a,omitempty"`
	AssetB      *core.Asset            `json:"asset_b,omitempty"`
	AmountA     string                 `json:"amount_a"`
	AmountB     string                 `json:"amount_b"`
	ActiveSide  string                 `json:"active_side,omitempty"`
	Mode        core.ProvisionMode     `json:"mode"`
	ModeHistory []core.ProvisionMode   `json:"mode_history"`
	PoolAddress string                 `json:"pool_address,omitempty"`
	Result      *core.SimulationResult `json:"result,omitempty"`
	LastError   string                 `json:"last_error,omitempty"`
	Busy        bool                   `json:"busy"`
}

func viewOf(st amountsync.State) stateView {
	v := stateView{
		AssetA:      st.AssetA,
		AssetB:      st.AssetB,
		AmountA:     st.Pair.AmountA,
		AmountB:     st.Pair.AmountB,
		Mode:        st.Mode,
		ModeHistory: st.ModeHistory,
		PoolAddress: st.PoolAddress,
		Result:      st.Result,
		LastError:   st.LastError,
		Busy:        st.Busy,
	}
	if st.Pair.ActiveSide != nil {
		v.ActiveSide = st.Pair.ActiveSide.String()
	}
	return v
}

// HandleInput processes one user event. Slow operations run off the caller's
// goroutine so the read pump never blocks.
func (d *Dispatcher) HandleInput(ctx context.Context, ev InputEvent) {
	sess := d.sessionFor(ev.Form)

	switch ev.Action {
	case ActionSetAmount:
		side, ok := parseSide(ev.Side)
		if !ok {
			d.sendError("unknown side " + ev.Side)
			return
		}
		sess.Controller().SetAmount(side, ev.Value)

	case ActionSetAsset:
		side, ok := parseSide(ev.Side)
		if !ok {
			d.sendError("unknown side " + ev.Side)
			return
		}
		asset, err := d.directory.Get(ctx, ev.Asset)
		if err != nil {
			d.sendError(err.Error())
			return
		}
		sess.Controller().SetAsset(side, asset)

	case ActionSetMode:
		mode := core.ProvisionMode(ev.Mode)
		switch mode {
		case core.ModeInitial, core.ModeBalanced, core.ModeArbitrary:
			d.liquidity.Controller().SetMode(mode)
		default:
			d.sendError("unknown mode " + ev.Mode)
		}

	case ActionConnectWallet:
		go d.connectWallet()

	case ActionDisconnectWallet:
		if err := d.wallet.Disconnect(); err != nil {
			d.logger.Warn("Wallet disconnect failed", "error", err)
		}
		d.swap.Controller().SetWalletAddress("")
		d.liquidity.Controller().SetWalletAddress("")
		d.hub.Broadcast(NewMessage(TypeWallet, map[string]interface{}{"connected": false}))

	case ActionSubmit:
		go d.submit(sess, ev.Form)

	case ActionListAssets:
		go d.listAssets(ctx)

	case ActionListHistory:
		go d.listHistory(ctx)

	default:
		d.sendError("unknown action " + ev.Action)
	}
}

func (d *Dispatcher) sessionFor(form string) *session.Session {
	if form == "liquidity" {
		return d.liquidity
	}
	return d.swap
}

func (d *Dispatcher) connectWallet() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	addr, err := d.wallet.Connect(ctx)
	if err != nil {
		d.logger.Warn("Wallet connect failed", "error", err)
		d.sendError("wallet connect failed: " + err.Error())
		return
	}

	// both forms see the same wallet
	d.swap.Controller().SetWalletAddress(addr)
	d.liquidity.Controller().SetWalletAddress(addr)
	d.hub.Broadcast(NewMessage(TypeWallet, map[string]interface{}{
		"connected": true,
		"address":   addr,
	}))
}

func (d *Dispatcher) submit(sess *session.Session, form string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	requestID, err := sess.Submit(ctx)
	if err != nil {
		d.hub.Broadcast(NewMessage(TypeSubmitResult, map[string]interface{}{
			"form":  form,
			"ok":    false,
			"error": err.Error(),
		}))
		return
	}

	d.hub.Broadcast(NewMessage(TypeSubmitResult, map[string]interface{}{
		"form":       form,
		"ok":         true,
		"request_id": requestID,
	}))
}

func (d *Dispatcher) listAssets(ctx context.Context) {
	list, err := d.directory.List(ctx, d.wallet.Address())
	if err != nil {
		d.sendError("asset list failed: " + err.Error())
		return
	}
	d.hub.Broadcast(NewMessage(TypeAssets, list))
}

func (d *Dispatcher) listHistory(ctx context.Context) {
	recs, err := d.store.List(ctx, 50)
	if err != nil {
		d.sendError("history list failed: " + err.Error())
		return
	}
	d.hub.Broadcast(NewMessage(TypeHistory, recs))
}

// TransactionOutcome lets the dispatcher double as a notification channel so
// finished transactions reach the UI.
func (d *Dispatcher) TransactionOutcome(_ context.Context, rec *history.Record) {
	d.hub.Broadcast(NewMessage(TypeNotification, rec))
}

func (d *Dispatcher) sendError(msg string) {
	d.hub.Broadcast(NewMessage(TypeError, map[string]string{"message": msg}))
}

func parseSide(s string) (core.Side, bool) {
	switch s {
	case "a":
		return core.SideA, true
	case "b":
		return core.SideB, true
	default:
		return core.SideA, false
	}
}
