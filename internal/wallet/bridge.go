// Package wallet implements the wallet-connect bridge protocol
package wallet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"swapdesk/internal/core"
	apperrors "swapdesk/pkg/errors"
	"swapdesk/pkg/telemetry"
	"swapdesk/pkg/websocket"
)

// wsSender is the subset of the websocket client the bridge uses
type wsSender interface {
	Send(message interface{}) error
	Start()
	Stop()
	IsConnected() bool
}

// Bridge implements core.IWalletConnector over a wallet-connect style
// WebSocket relay. Connect and SendTransaction block until the wallet app
// responds or the context is done.
type Bridge struct {
	ws      wsSender
	logger  core.ILogger
	metrics *telemetry.MetricsHolder

	mu            sync.Mutex
	sessionID     string
	addr          string
	connectWaiter chan connectResponse
	pending       map[string]chan txResponse
}

func NewBridge(bridgeURL string, metrics *telemetry.MetricsHolder, logger core.ILogger) *Bridge {
	b := &Bridge{
		logger:  logger.WithField("component", "wallet"),
		metrics: metrics,
		pending: make(map[string]chan txResponse),
	}
	b.ws = websocket.NewClient(bridgeURL, b.handleMessage, b.logger)
	return b
}

// Start begins the relay connection loop
func (b *Bridge) Start() {
	b.ws.Start()
}

// Stop tears down the relay connection
func (b *Bridge) Stop() {
	b.ws.Stop()
}

// Healthy reports whether the relay connection is up
func (b *Bridge) Healthy() error {
	if !b.ws.IsConnected() {
		return fmt.Errorf("bridge relay not connected")
	}
	return nil
}

type envelope struct {
	Type string `json:"type"`
}

type connectRequest struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type connectResponse struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Address   string `json:"address"`
}

type disconnectMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type txRequestMessage struct {
	Type       string      `json:"type"`
	SessionID  string      `json:"session_id"`
	RequestID  string      `json:"request_id"`
	ValidUntil int64       `json:"valid_until"`
	Messages   []txMessage `json:"messages"`
}

type txMessage struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
	Payload string `json:"payload,omitempty"` // base64 BOC
}

type txResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Approved  bool   `json:"approved"`
	Hash      string `json:"hash,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Connect opens a new wallet session and blocks until the wallet approves
// the connection or ctx is done. Returns the connected wallet address.
func (b *Bridge) Connect(ctx context.Context) (string, error) {
	sessionID := uuid.New().String()
	waiter := make(chan connectResponse, 1)

	b.mu.Lock()
	b.sessionID = sessionID
	b.connectWaiter = waiter
	b.mu.Unlock()

	if err := b.ws.Send(connectRequest{Type: "connect_request", SessionID: sessionID}); err != nil {
		return "", fmt.Errorf("%w: bridge send: %v", apperrors.ErrNetwork, err)
	}

	select {
	case resp := <-waiter:
		b.mu.Lock()
		b.addr = resp.Address
		b.connectWaiter = nil
		b.mu.Unlock()
		if b.metrics != nil {
			b.metrics.SetWalletConnected(true)
		}
		b.logger.Info("Wallet connected", "address", resp.Address)
		return resp.Address, nil
	case <-ctx.Done():
		b.mu.Lock()
		b.connectWaiter = nil
		b.mu.Unlock()
		return "", ctx.Err()
	}
}

// Disconnect ends the wallet session
func (b *Bridge) Disconnect() error {
	b.mu.Lock()
	sessionID := b.sessionID
	b.sessionID = ""
	b.addr = ""
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SetWalletConnected(false)
	}
	if sessionID == "" {
		return nil
	}
	if err := b.ws.Send(disconnectMessage{Type: "disconnect", SessionID: sessionID}); err != nil {
		return fmt.Errorf("%w: bridge send: %v", apperrors.ErrNetwork, err)
	}
	return nil
}

// Address returns the connected wallet address, empty when disconnected
func (b *Bridge) Address() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addr
}

func (b *Bridge) IsConnected() bool {
	return b.Address() != ""
}

// SendTransaction submits the messages for signing and blocks until the
// wallet approves or rejects, or ctx is done.
func (b *Bridge) SendTransaction(ctx context.Context, msgs []core.TxMessage, validUntil time.Time) (string, error) {
	b.mu.Lock()
	sessionID := b.sessionID
	connected := b.addr != ""
	b.mu.Unlock()

	if !connected {
		return "", apperrors.ErrWalletRequired
	}

	requestID := uuid.New().String()
	waiter := make(chan txResponse, 1)

	b.mu.Lock()
	b.pending[requestID] = waiter
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, requestID)
		b.mu.Unlock()
	}()

	out := txRequestMessage{
		Type:       "tx_request",
		SessionID:  sessionID,
		RequestID:  requestID,
		ValidUntil: validUntil.Unix(),
		Messages:   make([]txMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, txMessage{
			Address: m.Destination,
			Amount:  m.Value.String(),
			Payload: base64.StdEncoding.EncodeToString(m.Payload),
		})
	}

	if err := b.ws.Send(out); err != nil {
		return "", fmt.Errorf("%w: bridge send: %v", apperrors.ErrSendFailed, err)
	}

	select {
	case resp := <-waiter:
		if !resp.Approved {
			if resp.Error != "" {
				return "", fmt.Errorf("%w: %s", apperrors.ErrWalletRejected, resp.Error)
			}
			return "", apperrors.ErrWalletRejected
		}
		return resp.Hash, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *Bridge) handleMessage(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		b.logger.Warn("Unparseable bridge message", "error", err)
		return
	}

	switch env.Type {
	case "connect_response":
		var resp connectResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			b.logger.Warn("Malformed connect response", "error", err)
			return
		}
		b.mu.Lock()
		waiter := b.connectWaiter
		match := resp.SessionID == b.sessionID
		b.mu.Unlock()
		if waiter != nil && match {
			waiter <- resp
		}

	case "tx_response":
		var resp txResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			b.logger.Warn("Malformed tx response", "error", err)
			return
		}
		b.mu.Lock()
		waiter := b.pending[resp.RequestID]
		b.mu.Unlock()
		if waiter != nil {
			waiter <- resp
		}

	case "session_closed":
		b.mu.Lock()
		b.addr = ""
		b.sessionID = ""
		waiters := make([]chan txResponse, 0, len(b.pending))
		for id, w := range b.pending {
			waiters = append(waiters, w)
			delete(b.pending, id)
		}
		b.mu.Unlock()
		for _, w := range waiters {
			w <- txResponse{Approved: false, Error: "session closed"}
		}
		if b.metrics != nil {
			b.metrics.SetWalletConnected(false)
		}
		b.logger.Info("Wallet session closed by remote")

	default:
		b.logger.Debug("Ignoring bridge message", "type", env.Type)
	}
}
