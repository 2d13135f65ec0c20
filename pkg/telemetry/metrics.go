package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricSimulationsTotal      = "swapdesk_simulations_total"
	MetricSimulationsStaleTotal = "swapdesk_simulations_stale_total"
	MetricSimulationErrorsTotal = "swapdesk_simulation_errors_total"
	MetricQuoteLatency          = "swapdesk_quote_latency_ms"
	MetricSubmissionsTotal      = "swapdesk_submissions_total"
	MetricStatusTimeoutsTotal   = "swapdesk_status_timeouts_total"
	MetricPoolDiscoveriesTotal  = "swapdesk_pool_discoveries_total"
	MetricConnectedClients      = "swapdesk_connected_clients"
	MetricWalletConnected       = "swapdesk_wallet_connected"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	SimulationsTotal      metric.Int64Counter
	SimulationsStaleTotal metric.Int64Counter
	SimulationErrorsTotal metric.Int64Counter
	QuoteLatency          metric.Float64Histogram
	SubmissionsTotal      metric.Int64Counter
	StatusTimeoutsTotal   metric.Int64Counter
	PoolDiscoveriesTotal  metric.Int64Counter
	ConnectedClients      metric.Int64ObservableGauge
	WalletConnected       metric.Int64ObservableGauge

	// State for observable gauges
	mu             sync.RWMutex
	clientCountMap map[string]int64
	walletState    int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			clientCountMap: make(map[string]int64),
		}
		// Initialization of instruments happens in InitMetrics
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.SimulationsTotal, err = meter.Int64Counter(MetricSimulationsTotal, metric.WithDescription("Total simulation requests sent"))
	if err != nil {
		return err
	}

	m.SimulationsStaleTotal, err = meter.Int64Counter(MetricSimulationsStaleTotal, metric.WithDescription("Superseded simulation results dropped on arrival"))
	if err != nil {
		return err
	}

	m.SimulationErrorsTotal, err = meter.Int64Counter(MetricSimulationErrorsTotal, metric.WithDescription("Simulation requests that returned an error"))
	if err != nil {
		return err
	}

	m.QuoteLatency, err = meter.Float64Histogram(MetricQuoteLatency, metric.WithDescription("Latency of simulation round trips"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.SubmissionsTotal, err = meter.Int64Counter(MetricSubmissionsTotal, metric.WithDescription("Transactions submitted through the wallet"))
	if err != nil {
		return err
	}

	m.StatusTimeoutsTotal, err = meter.Int64Counter(MetricStatusTimeoutsTotal, metric.WithDescription("Status polls that ended indeterminate"))
	if err != nil {
		return err
	}

	m.PoolDiscoveriesTotal, err = meter.Int64Counter(MetricPoolDiscoveriesTotal, metric.WithDescription("Pools discovered via the already-exists error path"))
	if err != nil {
		return err
	}

	// Observables
	m.ConnectedClients, err = meter.Int64ObservableGauge(MetricConnectedClients, metric.WithDescription("Number of connected UI clients"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for endpoint, val := range m.clientCountMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("endpoint", endpoint)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.WalletConnected, err = meter.Int64ObservableGauge(MetricWalletConnected, metric.WithDescription("Wallet connection state (1=connected, 0=disconnected)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.walletState)
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// AddSimulation counts an issued simulation request
func (m *MetricsHolder) AddSimulation(ctx context.Context, kind string) {
	if m.SimulationsTotal != nil {
		m.SimulationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// AddStaleSimulation counts a superseded result dropped on arrival
func (m *MetricsHolder) AddStaleSimulation(ctx context.Context, kind string) {
	if m.SimulationsStaleTotal != nil {
		m.SimulationsStaleTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// AddSimulationError counts a failed simulation
func (m *MetricsHolder) AddSimulationError(ctx context.Context, kind string) {
	if m.SimulationErrorsTotal != nil {
		m.SimulationErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// AddPoolDiscovery counts a pool discovered through error classification
func (m *MetricsHolder) AddPoolDiscovery(ctx context.Context) {
	if m.PoolDiscoveriesTotal != nil {
		m.PoolDiscoveriesTotal.Add(ctx, 1)
	}
}

// AddSubmission counts a transaction handed to the wallet
func (m *MetricsHolder) AddSubmission(ctx context.Context, kind string) {
	if m.SubmissionsTotal != nil {
		m.SubmissionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// AddStatusTimeout counts a poll that ended without a terminal status
func (m *MetricsHolder) AddStatusTimeout(ctx context.Context) {
	if m.StatusTimeoutsTotal != nil {
		m.StatusTimeoutsTotal.Add(ctx, 1)
	}
}

// SetConnectedClients updates the observable client count for an endpoint
func (m *MetricsHolder) SetConnectedClients(endpoint string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientCountMap[endpoint] = count
}

// SetWalletConnected updates the observable wallet connection state
func (m *MetricsHolder) SetWalletConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if connected {
		m.walletState = 1
	} else {
		m.walletState = 0
	}
}
