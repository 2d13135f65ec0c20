// Package notify delivers terminal transaction outcomes to configured
// channels.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"swapdesk/internal/core"
	"swapdesk/internal/history"
)

type Level string

const (
	Info    Level = "INFO"
	Warning Level = "WARNING"
	Error   Level = "ERROR"
)

type Payload struct {
	Level     Level
	Title     string
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

type Channel interface {
	Send(ctx context.Context, p Payload) error
	Name() string
}

// Manager fans outcomes out to all channels. Delivery is fire-and-forget so
// a slow webhook never blocks the submit path.
type Manager struct {
	channels []Channel
	logger   core.ILogger
	mu       sync.RWMutex
}

func NewManager(logger core.ILogger) *Manager {
	return &Manager{
		channels: make([]Channel, 0),
		logger:   logger.WithField("component", "notify"),
	}
}

func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
	m.logger.Info("Added notification channel", "name", ch.Name())
}

// TransactionOutcome notifies every channel about a finished transaction
func (m *Manager) TransactionOutcome(ctx context.Context, rec *history.Record) {
	p := payloadFor(rec)
	m.logger.Info("Notifying transaction outcome",
		"request_id", rec.RequestID, "state", rec.State)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.channels {
		go func(c Channel) {
			timeoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()

			if err := c.Send(timeoutCtx, p); err != nil {
				m.logger.Error("Failed to send notification", "channel", c.Name(), "error", err)
			}
		}(ch)
	}
}

func payloadFor(rec *history.Record) Payload {
	pair := fmt.Sprintf("%s/%s", rec.AssetA.Symbol, rec.AssetB.Symbol)

	var level Level
	var title string
	switch rec.State {
	case core.TxStateConfirmed:
		level = Info
		title = fmt.Sprintf("%s confirmed", rec.Kind)
	case core.TxStateFailed:
		level = Error
		title = fmt.Sprintf("%s failed", rec.Kind)
	case core.TxStateIndeterminate:
		level = Warning
		title = fmt.Sprintf("%s outcome unknown", rec.Kind)
	default:
		level = Warning
		title = fmt.Sprintf("%s %s", rec.Kind, rec.State)
	}

	fields := map[string]string{
		"pair":     pair,
		"amount_a": rec.AmountA,
		"amount_b": rec.AmountB,
	}
	if rec.Hash != "" {
		fields["hash"] = rec.Hash
	}
	if rec.PoolAddress != "" {
		fields["pool"] = rec.PoolAddress
	}

	msg := fmt.Sprintf("%s %s for %s", rec.Kind, rec.State, pair)
	if rec.Detail != "" {
		msg += ": " + rec.Detail
	}

	return Payload{
		Level:     level,
		Title:     title,
		Message:   msg,
		Timestamp: time.Now(),
		Fields:    fields,
	}
}

// LogChannel writes notifications to the application log
type LogChannel struct {
	logger core.ILogger
}

func NewLogChannel(logger core.ILogger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (l *LogChannel) Name() string { return "log" }

func (l *LogChannel) Send(_ context.Context, p Payload) error {
	switch p.Level {
	case Error:
		l.logger.Error(p.Title, "message", p.Message)
	case Warning:
		l.logger.Warn(p.Title, "message", p.Message)
	default:
		l.logger.Info(p.Title, "message", p.Message)
	}
	return nil
}
