// Package status polls the on-chain outcome of submitted transactions
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"swapdesk/internal/core"
	apperrors "swapdesk/pkg/errors"
	httpclient "swapdesk/pkg/http"
	"swapdesk/pkg/retry"
	"swapdesk/pkg/telemetry"
)

type Config struct {
	Interval time.Duration `yaml:"interval"`
	MaxWait  time.Duration `yaml:"max_wait"`
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 3 * time.Second
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 5 * time.Minute
	}
}

// Poller implements core.IStatusService against the status HTTP endpoint.
// Polling ends on a terminal state; hitting MaxWait yields a final
// Indeterminate snapshot, never a Failed one.
type Poller struct {
	http    *httpclient.Client
	cfg     Config
	logger  core.ILogger
	metrics *telemetry.MetricsHolder
}

func NewPoller(baseURL string, timeout time.Duration, cfg Config, metrics *telemetry.MetricsHolder, logger core.ILogger) *Poller {
	cfg.applyDefaults()
	return &Poller{
		http:    httpclient.NewClient(baseURL, timeout),
		cfg:     cfg,
		logger:  logger.WithField("component", "status"),
		metrics: metrics,
	}
}

type statusResponse struct {
	State  string `json:"state"`
	Hash   string `json:"hash"`
	Detail string `json:"detail"`
}

// Poll emits status snapshots until a terminal state or MaxWait. The
// returned channel is closed when polling ends.
func (p *Poller) Poll(ctx context.Context, requestID string) <-chan core.TxStatus {
	out := make(chan core.TxStatus, 4)

	go func() {
		defer close(out)

		deadline := time.NewTimer(p.cfg.MaxWait)
		defer deadline.Stop()
		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()

		emit := func(st core.TxStatus) {
			select {
			case out <- st:
			case <-ctx.Done():
			}
		}

		last := core.TxStatus{RequestID: requestID, State: core.TxStatePending, Observed: time.Now()}
		emit(last)

		for {
			select {
			case <-ctx.Done():
				return
			case <-deadline.C:
				if p.metrics != nil {
					p.metrics.AddStatusTimeout(ctx)
				}
				p.logger.Warn("Status polling hit max wait", "request_id", requestID)
				emit(core.TxStatus{
					RequestID: requestID,
					State:     core.TxStateIndeterminate,
					Hash:      last.Hash,
					Detail:    "no terminal status within wait window",
					Observed:  time.Now(),
				})
				return
			case <-ticker.C:
				st, err := p.fetch(ctx, requestID)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					p.logger.Warn("Status poll failed", "request_id", requestID, "error", err)
					continue
				}
				if st.State != last.State || st.Hash != last.Hash {
					last = st
					emit(st)
				}
				if st.State.Terminal() {
					return
				}
			}
		}
	}()

	return out
}

func (p *Poller) fetch(ctx context.Context, requestID string) (core.TxStatus, error) {
	resp, err := retry.DoValue(ctx, retry.DefaultPolicy, apperrors.IsTransient, func() (statusResponse, error) {
		body, err := p.http.Get(ctx, "/v1/status/"+requestID, nil)
		if err != nil {
			return statusResponse{}, fmt.Errorf("%w: %v", apperrors.ErrStatusPoll, err)
		}
		var sr statusResponse
		if err := json.Unmarshal(body, &sr); err != nil {
			return statusResponse{}, fmt.Errorf("%w: malformed status: %v", apperrors.ErrStatusPoll, err)
		}
		return sr, nil
	})
	if err != nil {
		return core.TxStatus{}, err
	}

	state, err := parseState(resp.State)
	if err != nil {
		return core.TxStatus{}, err
	}
	return core.TxStatus{
		RequestID: requestID,
		State:     state,
		Hash:      resp.Hash,
		Detail:    resp.Detail,
		Observed:  time.Now(),
	}, nil
}

func parseState(s string) (core.TxState, error) {
	switch core.TxState(s) {
	case core.TxStatePending, core.TxStateConfirmed, core.TxStateFailed, core.TxStateIndeterminate:
		return core.TxState(s), nil
	default:
		return "", fmt.Errorf("%w: unknown state %q", apperrors.ErrStatusPoll, s)
	}
}
