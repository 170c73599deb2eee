package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/relaykit/internal/config"
	"github.com/aretw0/relaykit/internal/metrics"
	"github.com/aretw0/relaykit/internal/plugin"
	httpAdapter "github.com/aretw0/relaykit/pkg/adapters/http"
	"github.com/aretw0/relaykit/pkg/adapters/process"
	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/aretw0/relaykit/pkg/editor"
	"github.com/aretw0/relaykit/pkg/params"
	"github.com/aretw0/relaykit/pkg/ports"
	"github.com/aretw0/relaykit/pkg/relay"
	"github.com/aretw0/relaykit/pkg/resource"
)

const shutdownTimeout = 5 * time.Second

// app is the fully wired demo plugin: parameters, editor, UI transport,
// assets and presets.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	registry   *params.Registry
	editor     *editor.Editor
	hub        *httpAdapter.Hub
	assets     *httpAdapter.AssetServer
	handler    http.Handler
	store      ports.SnapshotStore
	closeStore func() error
	// closeAssets releases the assets directory, if one is open.
	closeAssets func() error
	lane       *plugin.Lane
	dev        *process.DevServer
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	layout := plugin.Layout()
	registry, err := params.NewRegistry(layout)
	if err != nil {
		return nil, err
	}
	m := metrics.New()

	mode, err := httpAdapter.ParseMode(cfg.UI.Mode)
	if err != nil {
		return nil, err
	}
	closeAssets := func() error { return nil }
	var resolver *resource.Resolver
	if mode == httpAdapter.Bundled {
		var root fs.FS
		root, closeAssets, err = assetFS(cfg)
		if err != nil {
			return nil, err
		}
		resolver = resource.NewResolver(root, resource.WithRootDocument(cfg.UI.RootDocument))
	}
	assets, err := httpAdapter.NewAssetServer(mode, resolver, cfg.UI.DevURL,
		httpAdapter.WithAssetLogger(logger),
		httpAdapter.WithAssetMetrics(m),
	)
	if err != nil {
		_ = closeAssets()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, registry: registry, assets: assets, closeAssets: closeAssets}

	a.editor, err = editor.New(registry, layout, func(rs *relay.Set, inbox ports.Inbox) (ports.Transport, error) {
		a.hub = httpAdapter.NewHub(rs, inbox,
			httpAdapter.WithHubLogger(logger),
			httpAdapter.WithHubMetrics(m),
		)
		return a.hub, nil
	},
		editor.WithLogger(logger),
		editor.WithMetrics(m),
		editor.WithTelemetry(plugin.NewMeter(registry, 0)),
		editor.WithTickRate(float64(cfg.Telemetry.Rate)),
		editor.WithInitialURL(assets.InitialURL()),
	)
	if err != nil {
		_ = closeAssets()
		return nil, fmt.Errorf("failed to build editor: %w", err)
	}

	a.store, a.closeStore, err = openStore(cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	a.handler = httpAdapter.NewHandler(a.hub, assets,
		httpAdapter.WithPresets(a.store, a.editor),
		httpAdapter.WithMetrics(m),
		httpAdapter.WithLogger(logger),
	)

	if cfg.Automation.Enabled {
		param, err := registry.Get(domain.ParameterID(cfg.Automation.Parameter))
		if err != nil {
			a.close()
			return nil, fmt.Errorf("automation: %w", err)
		}
		a.lane, err = plugin.NewLane(param, cfg.Automation.Period, plugin.WithLaneLogger(logger))
		if err != nil {
			a.close()
			return nil, err
		}
	}

	if mode == httpAdapter.Live && len(cfg.UI.DevCommand) > 0 {
		env := map[string]string{"RELAYKIT_API_URL": "http://" + cfg.Server.Addr}
		for k, v := range cfg.UI.DevEnv {
			env[k] = v
		}
		a.dev, err = process.NewDevServer(cfg.UI.DevCommand,
			process.WithDir(cfg.UI.DevDir),
			process.WithEnv(env),
			process.WithLogger(logger.With("component", "dev-server")),
		)
		if err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

// serve runs everything until ctx is done. ready, when non-nil, receives the
// bound listen address once the server accepts connections.
func (a *app) serve(ctx context.Context, ready func(addr string)) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		a.close()
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Server.Addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	editorErr := make(chan error, 1)
	go func() {
		editorErr <- a.editor.Run(ctx)
	}()

	if a.lane != nil {
		go func() {
			if err := a.lane.Run(ctx); err != nil {
				a.logger.Error("automation lane failed", "err", err)
			}
		}()
	}

	if a.dev != nil {
		if err := a.dev.Start(ctx); err != nil {
			a.logger.Error("dev server did not start", "err", err)
		} else {
			go func() {
				if err := a.dev.WaitReady(ctx, a.cfg.UI.DevURL); err != nil && !errors.Is(err, context.Canceled) {
					a.logger.Warn("dev server not reachable", "url", a.cfg.UI.DevURL, "err", err)
				}
			}()
		}
	}

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Serve(ln)
	}()

	addr := ln.Addr().String()
	a.logger.Info("relaykit listening", "addr", addr, "mode", a.assets.Mode(), "ui", a.editor.InitialURL())
	if ready != nil {
		ready(addr)
	}

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case err := <-editorErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("editor stopped: %w", err)
		}
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	// closing the editor ends every SSE and WebSocket stream, so Shutdown only
	// waits for plain requests
	_ = a.editor.Close()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if a.dev != nil {
		if err := a.dev.Stop(shutdownCtx); err != nil && !errors.Is(err, process.ErrNotStarted) {
			a.logger.Warn("dev server stop", "err", err)
		}
	}
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
		_ = srv.Close()
	}
	if err := a.closeStore(); err != nil {
		a.logger.Warn("preset store close", "err", err)
	}
	_ = a.closeAssets()
	a.logger.Info("relaykit stopped")
	return runErr
}

func (a *app) close() {
	_ = a.editor.Close()
	if a.closeStore != nil {
		_ = a.closeStore()
	}
	_ = a.closeAssets()
}
