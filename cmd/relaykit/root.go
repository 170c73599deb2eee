package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relaykit",
	Short: "relaykit bridges native parameters and a web UI",
	Long: `relaykit keeps a set of typed, automatable parameters in sync with a web UI
over SSE and WebSocket, and serves the UI's documents from a bundle or a dev server.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "relaykit.yaml", "Path to the config file (YAML or JSON)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Path to a .env file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}
