package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aretw0/relaykit/internal/plugin"
	"github.com/aretw0/relaykit/pkg/domain"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "List the parameters of the demo plugin",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return printParams(cmd.OutOrStdout(), plugin.Layout(), asJSON)
	},
}

func init() {
	rootCmd.AddCommand(paramsCmd)
	paramsCmd.Flags().Bool("json", false, "Print the layout as JSON")
}

func printParams(w io.Writer, layout domain.Layout, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(layout)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tDOMAIN\tDEFAULT")
	for _, spec := range layout {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", spec.ID, spec.Kind, describeDomain(spec), describeDefault(spec))
	}
	return tw.Flush()
}

func describeDomain(spec domain.ParameterSpec) string {
	switch spec.Kind {
	case domain.Continuous:
		return fmt.Sprintf("[%g, %g]", spec.Range.Min, spec.Range.Max)
	case domain.Boolean:
		return "on/off"
	case domain.Enumerated:
		return strings.Join(spec.Choices, "|")
	default:
		panic(fmt.Sprintf("relaykit: unhandled %s", spec.Kind))
	}
}

func describeDefault(spec domain.ParameterSpec) string {
	if spec.Kind == domain.Enumerated {
		return spec.Choices[spec.Default.Index]
	}
	return fmt.Sprintf("%v", spec.Default.Any())
}
