package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/relaykit/internal/config"
	"github.com/aretw0/relaykit/internal/plugin"
	"github.com/aretw0/relaykit/pkg/resource"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and the parameter layout",
	Long: `Loads the configuration the way serve does and reports problems: invalid values,
an inconsistent parameter layout, a missing root document or, with --ping, an
unreachable Redis preset store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ping, _ := cmd.Flags().GetBool("ping")
		if err := runValidate(cmd.Context(), cfg, ping); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		printValid(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("ping", false, "Also connect to the configured preset store")
}

func runValidate(ctx context.Context, cfg config.Config, ping bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := plugin.Layout().Validate(); err != nil {
		return err
	}

	if !cfg.Live() {
		assets, closeAssets, err := assetFS(cfg)
		if err != nil {
			return err
		}
		defer closeAssets()
		r := resource.NewResolver(assets, resource.WithRootDocument(cfg.UI.RootDocument))
		if _, err := r.Resolve("/"); err != nil {
			return fmt.Errorf("root document %q: %w", cfg.UI.RootDocument, err)
		}
	}

	if ping && cfg.Store.Backend == config.StoreRedis {
		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		pinger, ok := store.(interface{ Ping(context.Context) error })
		if ok {
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				return fmt.Errorf("redis %s: %w", cfg.Store.Redis.Addr, err)
			}
		}
	}
	return nil
}

func printValid(w io.Writer) {
	fmt.Fprintln(w, "Configuration is valid! ✅")
}
