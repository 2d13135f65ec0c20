// Package bootstrap assembles the application: configuration, logging,
// telemetry, and every component wired into the two form sessions and the
// local live view.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"swapdesk/internal/amountsync"
	"swapdesk/internal/assets"
	"swapdesk/internal/config"
	"swapdesk/internal/core"
	"swapdesk/internal/history"
	"swapdesk/internal/infrastructure/health"
	"swapdesk/internal/infrastructure/metrics"
	"swapdesk/internal/liveview"
	"swapdesk/internal/notify"
	"swapdesk/internal/session"
	"swapdesk/internal/simulator"
	"swapdesk/internal/status"
	"swapdesk/internal/txbuilder"
	"swapdesk/internal/wallet"
	"swapdesk/pkg/concurrency"
	"swapdesk/pkg/logging"
	"swapdesk/pkg/telemetry"
)

// App holds the assembled application
type App struct {
	Cfg    *config.Config
	Logger core.ILogger

	Bridge     *wallet.Bridge
	Swap       *session.Session
	Liquidity  *session.Session
	Hub        *liveview.Hub
	Dispatcher *liveview.Dispatcher
	UI         *liveview.Server
	Health     *health.HealthManager

	store         *history.Store
	pool          *concurrency.WorkerPool
	tel           *telemetry.Telemetry
	metricsServer *metrics.Server
	outcomes      *outcomeFan
}

// NewApp bootstraps every dependency from the configuration file. A missing
// file falls back to the built-in defaults.
func NewApp(configPath string) (*App, error) {
	cfg := config.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	app := &App{Cfg: cfg, Logger: logger, outcomes: &outcomeFan{}}

	if cfg.Telemetry.EnableMetrics {
		tel, err := telemetry.Setup("swapdesk")
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		app.tel = tel
		app.metricsServer = metrics.NewServer(cfg.Telemetry.MetricsPort, logger)
	}
	metricsHolder := telemetry.GetGlobalMetrics()

	app.pool = concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "swapdesk",
		MaxWorkers:  cfg.Concurrency.PoolSize,
		MaxCapacity: cfg.Concurrency.PoolBuffer,
		NonBlocking: true,
	}, logger)

	sim := simulator.NewClient(cfg.API.SimulatorURL, cfg.API.Timeout(), cfg.API.RequestsPerSecond, logger)
	directory := assets.NewDirectory(cfg.API.DirectoryURL, cfg.API.Timeout(), cfg.API.AssetCacheTTL(), app.pool, logger)

	resolver := txbuilder.NewHTTPResolver(cfg.API.DirectoryURL, cfg.API.Timeout())
	builder, err := txbuilder.NewBuilder(txbuilder.Config{
		RouterAddress:  cfg.Router.Address,
		ProxyTONMaster: cfg.Router.ProxyTONMaster,
	}, resolver, logger)
	if err != nil {
		return nil, fmt.Errorf("tx builder: %w", err)
	}

	app.Bridge = wallet.NewBridge(cfg.Bridge.URL, metricsHolder, logger)
	poller := status.NewPoller(cfg.API.StatusURL, cfg.API.Timeout(), status.Config{
		Interval: cfg.Status.Interval(),
		MaxWait:  cfg.Status.MaxWait(),
	}, metricsHolder, logger)

	app.store, err = history.NewStore(cfg.History.DBPath)
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}

	notifier := notify.NewManager(logger)
	notifier.AddChannel(notify.NewLogChannel(logger))
	if cfg.Notify.SlackWebhookURL != "" {
		notifier.AddChannel(notify.NewSlackChannel(cfg.Notify.SlackWebhookURL.Reveal()))
	}
	if cfg.Notify.TelegramBotToken != "" {
		notifier.AddChannel(notify.NewTelegramChannel(cfg.Notify.TelegramBotToken.Reveal(), cfg.Notify.TelegramChatID))
	}
	app.outcomes.Add(notifier)

	syncCfg := amountsync.Config{
		Debounce:       time.Duration(cfg.Form.DebounceMs) * time.Millisecond,
		RequestTimeout: time.Duration(cfg.Form.RequestTimeoutMs) * time.Millisecond,
		Slippage:       decimal.NewFromFloat(cfg.Form.Slippage),
	}
	deps := session.Deps{
		Simulator: sim,
		Wallet:    app.Bridge,
		Builder:   builder,
		Status:    poller,
		History:   app.store,
		Notifier:  app.outcomes,
		Logger:    logger,
	}
	app.Swap = session.NewSwapSession(syncCfg, deps)
	app.Liquidity = session.NewLiquiditySession(syncCfg, deps)

	app.Hub = liveview.NewHub(app.pool, logger)
	app.Dispatcher = liveview.NewDispatcher(app.Hub, app.Swap, app.Liquidity, app.Bridge, directory, app.store, logger)
	app.outcomes.Add(app.Dispatcher)

	app.UI = liveview.NewServer(app.Hub, app.Dispatcher, logger, cfg.UI.AllowedOrigins)
	app.UI.SetMaxConnections(cfg.UI.MaxConnections)
	app.UI.SetRateLimit(cfg.UI.RateLimit, cfg.UI.RateBurst)
	if cfg.UI.StaticDir != "" {
		app.UI.SetStaticDir(cfg.UI.StaticDir)
	}

	app.Health = health.NewHealthManager(logger)
	app.Health.Register("history", app.store.Ping)
	app.Health.Register("simulator", sim.Ping)
	app.Health.Register("wallet_bridge", app.Bridge.Healthy)

	return app, nil
}

// Run starts every long-lived component and blocks until a termination
// signal arrives or one of them fails.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	a.Logger.Info("Starting swapdesk", "ui_addr", a.Cfg.UI.ListenAddr)

	a.Bridge.Start()
	if a.metricsServer != nil {
		a.metricsServer.Start()
	}

	g.Go(func() error {
		a.Hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return a.UI.Start(ctx, a.Cfg.UI.ListenAddr)
	})
	g.Go(func() error {
		a.Health.RunPeriodic(ctx, 30*time.Second)
		return nil
	})

	err := g.Wait()
	a.shutdown()

	if err != nil && err != context.Canceled {
		a.Logger.Error("Application stopped with error", "error", err)
		return err
	}

	a.Logger.Info("Application shut down gracefully")
	return nil
}

func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.Swap.Close()
	a.Liquidity.Close()
	a.Bridge.Stop()
	_ = a.UI.Stop(shutdownCtx)
	if a.metricsServer != nil {
		_ = a.metricsServer.Stop(shutdownCtx)
	}
	if err := a.store.Close(); err != nil {
		a.Logger.Error("Failed to close history store", "error", err)
	}
	a.pool.Stop()
	if a.tel != nil {
		if err := a.tel.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("Telemetry shutdown failed", "error", err)
		}
	}
}
