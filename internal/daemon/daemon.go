// Package daemon wires the tool registry, process manager, and gateway
// into a long-running service.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/okafor/toolmux/internal/config"
	"github.com/okafor/toolmux/internal/logger"
	"github.com/okafor/toolmux/internal/observability"
	"github.com/okafor/toolmux/internal/tracing"
	"github.com/okafor/toolmux/pkg/browser"
	"github.com/okafor/toolmux/pkg/gateway"
	"github.com/okafor/toolmux/pkg/procman"
	"github.com/okafor/toolmux/pkg/registry"
)

// Daemon is the toolmux daemon service.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	store    *registry.SQLiteStore
	registry *registry.Registry
	watcher  *registry.CatalogWatcher
	manager  *procman.Manager
	reaper   *procman.Reaper
	browser  *browser.Browser
	gateway  *gateway.Server

	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// Status represents daemon status
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
	Sessions  int
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	observability.EnsureRegistered()

	tracingEnabled := true
	if err := tracing.InitOpenTelemetry("toolmux-daemon"); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		tracingEnabled = false
	}

	d := &Daemon{
		config:         cfg,
		logger:         log,
		ctx:            ctx,
		cancel:         cancel,
		tracingEnabled: tracingEnabled,
	}

	if err := d.initialize(); err != nil {
		cancel()
		if d.tracingEnabled {
			_ = tracing.ShutdownOpenTelemetry(context.Background())
			d.tracingEnabled = false
		}
		return nil, err
	}

	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// initialize builds core components in dependency order.
func (d *Daemon) initialize() error {
	if err := os.MkdirAll(d.config.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := registry.OpenSQLiteStore(d.config.StorePath)
	if err != nil {
		return fmt.Errorf("failed to open tool store: %w", err)
	}
	d.store = store
	d.logger.Info().Str("path", d.config.StorePath).Msg("Tool store opened")

	d.registry = registry.New(d.config.CatalogPath, store)
	if err := d.registry.Load(d.ctx); err != nil {
		return fmt.Errorf("failed to load tool catalog: %w", err)
	}
	d.logger.Info().
		Str("catalog", d.config.CatalogPath).
		Int("tools", len(d.registry.ListAll())).
		Msg("Tool registry loaded")

	d.manager = procman.NewManager(d.registry)
	d.logger.Info().Msg("Process manager initialized")

	maxIdle := time.Duration(d.config.Reaper.MaxIdleMinutes) * time.Minute
	d.reaper = procman.NewReaper(d.manager, d.config.Reaper.Schedule, maxIdle)

	if d.config.Browser.Enabled {
		d.browser = browser.New(browser.Config{
			Headless:   d.config.Browser.Headless,
			NoSandbox:  d.config.Browser.NoSandbox,
			ChromePath: d.config.Browser.ChromePath,
			Security: browser.Policy{
				AllowFileURLs:      d.config.Browser.AllowFileURLs,
				AllowLocalhostURLs: d.config.Browser.AllowLocalhostURLs,
				AllowedDomains:     d.config.Browser.AllowedDomains,
				BlockedDomains:     d.config.Browser.BlockedDomains,
			},
		})
		d.logger.Info().Bool("headless", d.config.Browser.Headless).Msg("Browser tool enabled")
	}

	if d.config.Gateway.Enabled {
		gwCfg := gateway.Config{
			Port:         d.config.Gateway.Port,
			SharedSecret: d.config.Gateway.SharedSecret,
			Sessions:     d.manager,
			Tools:        d.registry,
			Logger:       d.logger.GetZerolog(),
		}
		if d.browser != nil {
			gwCfg.Browser = d.browser
		}
		server, err := gateway.NewServer(gwCfg)
		if err != nil {
			return fmt.Errorf("failed to create gateway server: %w", err)
		}
		d.gateway = server
	}

	return nil
}

// Start starts the daemon service
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	log := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	log.Info().Msg("Starting toolmux daemon")

	if err := d.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if d.config.CatalogPath != "" {
		watcher, err := registry.NewCatalogWatcher(d.registry, d.config.CatalogPath, d.logger.GetZerolog())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to start catalog watcher, hot-reload disabled")
		} else {
			d.watcher = watcher
		}
	}

	if err := d.reaper.Start(); err != nil {
		return fmt.Errorf("failed to start session reaper: %w", err)
	}
	log.Info().Str("schedule", d.config.Reaper.Schedule).Msg("Session reaper started")

	if d.gateway != nil {
		if err := d.gateway.Start(); err != nil {
			return fmt.Errorf("failed to start gateway server: %w", err)
		}
		log.Info().Int("port", d.config.Gateway.Port).Msg("Gateway server started")
	}

	log.Info().Msg("Daemon started successfully")
	return nil
}

// Stop stops the daemon service gracefully
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	log := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	log.Info().Msg("Stopping toolmux daemon")

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop catalog watcher")
		}
		d.watcher = nil
	}

	if d.gateway != nil {
		if err := d.gateway.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop gateway server")
		}
	}

	d.reaper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	d.manager.Shutdown(shutdownCtx)
	cancel()
	log.Info().Msg("Process manager shut down")

	if d.browser != nil {
		browserCtx, browserCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := d.browser.Cleanup(browserCtx); err != nil {
			log.Error().Err(err).Msg("Failed to clean up browser")
		}
		browserCancel()
	}

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Timeout waiting for goroutines to stop")
	}

	if err := d.store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close tool store")
	}

	if d.tracingEnabled {
		traceCtx, traceCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.ShutdownOpenTelemetry(traceCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown tracing")
		}
		traceCancel()
		d.tracingEnabled = false
	}

	if err := d.lifecycle.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	log.Info().Msg("Daemon stopped successfully")
	return nil
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}
	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
		status.Sessions = len(d.manager.List())
	}
	return status
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon.
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetManager returns the process manager
func (d *Daemon) GetManager() *procman.Manager {
	return d.manager
}

// GetRegistry returns the tool registry
func (d *Daemon) GetRegistry() *registry.Registry {
	return d.registry
}
