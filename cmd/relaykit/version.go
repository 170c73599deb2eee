package main

import (
	"fmt"

	"github.com/aretw0/relaykit"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of relaykit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "relaykit version %s\n", relaykit.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
