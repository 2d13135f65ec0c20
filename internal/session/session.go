// Package session owns one swap or liquidity form end to end: the amount
// controller, the submit validation gate, transaction build and send, and
// outcome tracking.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"swapdesk/internal/amountsync"
	"swapdesk/internal/core"
	"swapdesk/internal/history"
	apperrors "swapdesk/pkg/errors"
	"swapdesk/pkg/telemetry"
)

// Notifier receives terminal transaction outcomes
type Notifier interface {
	TransactionOutcome(ctx context.Context, rec *history.Record)
}

// Deps are the collaborators a session wires together
type Deps struct {
	Simulator core.ISimulator
	Wallet    core.IWalletConnector
	Builder   core.ITxBuilder
	Status    core.IStatusService
	History   *history.Store
	Notifier  Notifier
	Logger    core.ILogger
}

// Session drives one form. SwapSession and LiquiditySession are the two
// concrete shapes.
type Session struct {
	kind amountsync.Kind
	ctrl *amountsync.Controller
	deps Deps

	txValidity time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
	ctx    context.Context
}

func newSession(kind amountsync.Kind, cfg amountsync.Config, deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		kind:       kind,
		ctrl:       amountsync.NewController(kind, deps.Simulator, cfg, deps.Logger),
		deps:       deps,
		txValidity: 5 * time.Minute,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// NewSwapSession creates a session for the swap form
func NewSwapSession(cfg amountsync.Config, deps Deps) *Session {
	return newSession(amountsync.KindSwap, cfg, deps)
}

// NewLiquiditySession creates a session for the liquidity provision form
func NewLiquiditySession(cfg amountsync.Config, deps Deps) *Session {
	return newSession(amountsync.KindProvision, cfg, deps)
}

// Controller exposes the form's amount controller
func (s *Session) Controller() *amountsync.Controller {
	return s.ctrl
}

// ConnectWallet connects the wallet and feeds the address into the controller
func (s *Session) ConnectWallet(ctx context.Context) (string, error) {
	addr, err := s.deps.Wallet.Connect(ctx)
	if err != nil {
		return "", err
	}
	s.ctrl.SetWalletAddress(addr)
	return addr, nil
}

// DisconnectWallet drops the wallet session
func (s *Session) DisconnectWallet() error {
	s.ctrl.SetWalletAddress("")
	return s.deps.Wallet.Disconnect()
}

// Close stops the controller and waits for outcome trackers to finish
func (s *Session) Close() {
	s.ctrl.Close()
	s.cancel()
	s.wg.Wait()
}

// Validate runs the submit gate against the current form state without
// submitting. The returned error is the inline message to show; simulation
// keeps running regardless.
func (s *Session) Validate() error {
	st := s.ctrl.Snapshot()
	return s.validate(&st)
}

func (s *Session) validate(st *amountsync.State) error {
	if !s.deps.Wallet.IsConnected() {
		return apperrors.ErrWalletRequired
	}
	if st.AssetA == nil || st.AssetB == nil {
		return apperrors.ErrMissingAsset
	}
	if st.Busy || st.Result == nil {
		return fmt.Errorf("%w: waiting for quote", apperrors.ErrIncompleteInput)
	}
	if st.LastError != "" {
		return fmt.Errorf("%w: %s", apperrors.ErrIncompleteInput, st.LastError)
	}
	if !st.Result.UnitsA.IsPositive() || !st.Result.UnitsB.IsPositive() {
		return apperrors.ErrAmountTooSmall
	}
	if s.kind == amountsync.KindProvision && st.Mode != core.ModeInitial && st.PoolAddress == "" {
		return fmt.Errorf("%w: no pool for mode %s", apperrors.ErrIncompleteInput, st.Mode)
	}
	return nil
}

// Submit runs the validation gate, builds the router messages, sends them
// through the wallet and starts outcome tracking. Returns the request ID.
func (s *Session) Submit(ctx context.Context) (string, error) {
	st := s.ctrl.Snapshot()
	if err := s.validate(&st); err != nil {
		return "", err
	}

	walletAddr := s.deps.Wallet.Address()
	msgs, err := s.buildMessages(ctx, walletAddr, &st)
	if err != nil {
		return "", err
	}

	requestID := uuid.New().String()
	hash, err := s.deps.Wallet.SendTransaction(ctx, msgs, time.Now().Add(s.txValidity))
	if err != nil {
		return "", err
	}

	rec := s.record(requestID, walletAddr, &st)
	rec.Hash = hash
	if err := s.deps.History.Save(ctx, rec); err != nil {
		s.deps.Logger.Error("Failed to record submission", "request_id", requestID, "error", err)
	}

	telemetry.GetGlobalMetrics().AddSubmission(ctx, rec.Kind)

	s.wg.Add(1)
	go s.trackOutcome(requestID)

	return requestID, nil
}

func (s *Session) buildMessages(ctx context.Context, walletAddr string, st *amountsync.State) ([]core.TxMessage, error) {
	if s.kind == amountsync.KindSwap {
		offer, ask := *st.AssetA, *st.AssetB
		offerUnits, minAskUnits := st.Result.UnitsA, st.Result.MinUnitsB
		if st.Pair.ActiveSide != nil && *st.Pair.ActiveSide == core.SideB {
			offer, ask = ask, offer
			offerUnits, minAskUnits = st.Result.UnitsB, st.Result.MinUnitsA
		}
		return s.deps.Builder.BuildSwap(ctx, walletAddr, offer, ask, offerUnits, minAskUnits)
	}

	unitsA, unitsB := st.Result.UnitsA, st.Result.UnitsB
	req := &core.SimulationRequest{
		AssetA:        *st.AssetA,
		AssetB:        *st.AssetB,
		UnitsA:        &unitsA,
		UnitsB:        &unitsB,
		Mode:          st.Mode,
		PoolAddress:   st.PoolAddress,
		WalletAddress: walletAddr,
	}
	return s.deps.Builder.BuildProvision(ctx, walletAddr, req, st.Result)
}

func (s *Session) record(requestID, walletAddr string, st *amountsync.State) *history.Record {
	kind := "swap"
	if s.kind == amountsync.KindProvision {
		kind = "provision"
	}
	return &history.Record{
		RequestID:   requestID,
		Kind:        kind,
		WalletAddr:  walletAddr,
		AssetA:      *st.AssetA,
		AssetB:      *st.AssetB,
		AmountA:     st.Pair.AmountA,
		AmountB:     st.Pair.AmountB,
		PoolAddress: st.PoolAddress,
		State:       core.TxStatePending,
		SubmittedAt: time.Now(),
	}
}

// trackOutcome follows status snapshots to a terminal or indeterminate end,
// keeping history current and notifying once at the end.
func (s *Session) trackOutcome(requestID string) {
	defer s.wg.Done()

	var last core.TxStatus
	for st := range s.deps.Status.Poll(s.ctx, requestID) {
		last = st
		if err := s.deps.History.UpdateStatus(s.ctx, st); err != nil && s.ctx.Err() == nil {
			s.deps.Logger.Error("Failed to update history", "request_id", requestID, "error", err)
		}
	}

	if s.ctx.Err() != nil || last.RequestID == "" {
		return
	}

	if last.State.Terminal() {
		rec, err := s.deps.History.Get(s.ctx, requestID)
		if err != nil || rec == nil {
			return
		}
		if s.deps.Notifier != nil {
			s.deps.Notifier.TransactionOutcome(s.ctx, rec)
		}
	}
}
