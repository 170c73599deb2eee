package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/aretw0/relaykit"
	"github.com/aretw0/relaykit/internal/config"
	"github.com/aretw0/relaykit/internal/presentation/tui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the demo plugin and serve its UI",
	Long: `Starts the demo control surface and exposes it over HTTP: the UI documents at /,
the relay API under /api, health at /health and Prometheus metrics at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyServeFlags(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return a.serve(ctx, func(addr string) {
			if !isTerminal(os.Stdout) {
				return
			}
			ui := a.editor.InitialURL()
			if ui == "/" {
				ui = "http://" + addr + "/"
			}
			tui.PrintBanner(os.Stdout, termenv.NewOutput(os.Stdout), tui.ServeInfo{
				Version: relaykit.Version,
				Addr:    addr,
				Mode:    a.assets.Mode().String(),
				UI:      ui,
				Store:   storeLabel(cfg),
			})
		})
	},
}

// applyServeFlags copies explicitly set flags over cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("mode") {
		cfg.UI.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("dev-url") {
		cfg.UI.DevURL, _ = flags.GetString("dev-url")
	}
	if flags.Changed("assets") {
		cfg.UI.AssetsDir, _ = flags.GetString("assets")
	}
	if flags.Changed("tick-rate") {
		cfg.Telemetry.Rate, _ = flags.GetInt("tick-rate")
	}
	if flags.Changed("store") {
		cfg.Store.Backend, _ = flags.GetString("store")
	}
	if flags.Changed("automate") {
		cfg.Automation.Enabled, _ = flags.GetBool("automate")
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", config.DefaultAddr, "Address to listen on")
	serveCmd.Flags().StringP("mode", "m", config.ModeBundled, "UI source: bundled or live")
	serveCmd.Flags().String("dev-url", config.DefaultDevURL, "Dev server URL used in live mode")
	serveCmd.Flags().String("assets", "", "Serve UI documents from this directory instead of the embedded bundle")
	serveCmd.Flags().Int("tick-rate", config.DefaultTickRate, "Telemetry events per second (0 disables)")
	serveCmd.Flags().String("store", config.StoreMemory, "Preset backend: memory, file or redis")
	serveCmd.Flags().Bool("automate", false, "Run the simulated automation lane")
}
