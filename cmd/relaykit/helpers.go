package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/relaykit/internal/config"
	"github.com/aretw0/relaykit/internal/logging"
	"github.com/aretw0/relaykit/pkg/adapters/file"
	"github.com/aretw0/relaykit/pkg/adapters/memory"
	"github.com/aretw0/relaykit/pkg/adapters/redis"
	"github.com/aretw0/relaykit/pkg/ports"
	"github.com/aretw0/relaykit/web"
)

// loadConfig resolves the configuration for cmd: .env, file, environment,
// then flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}

// openStore builds the preset backend named by cfg.
func openStore(cfg config.Config) (ports.SnapshotStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return memory.NewStore(), noop, nil
	case config.StoreFile:
		return file.New(cfg.Store.Dir), noop, nil
	case config.StoreRedis:
		r := cfg.Store.Redis
		opts := []redis.Option{redis.WithTTL(r.TTL)}
		if r.Prefix != "" {
			opts = append(opts, redis.WithPrefix(r.Prefix))
		}
		s := redis.New(r.Addr, r.Password, r.DB, opts...)
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// assetFS returns the configured assets directory, or the embedded bundle.
// The directory is opened as an os.Root so symlinks cannot leave it.
func assetFS(cfg config.Config) (fs.FS, func() error, error) {
	if cfg.UI.AssetsDir == "" {
		return web.FS(), func() error { return nil }, nil
	}
	root, err := os.OpenRoot(cfg.UI.AssetsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open assets dir: %w", err)
	}
	return root.FS(), root.Close, nil
}

// storeLabel describes the preset backend for humans.
func storeLabel(cfg config.Config) string {
	switch cfg.Store.Backend {
	case config.StoreFile:
		return "file " + cfg.Store.Dir
	case config.StoreRedis:
		return "redis " + cfg.Store.Redis.Addr
	default:
		return cfg.Store.Backend
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec
}
