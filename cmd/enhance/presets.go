package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List enhancement presets",
	Long: `List the built-in enhancement presets and any loaded from PRESETS_FILE.

Examples:
  enhance presets
  PRESETS_FILE=presets.yaml enhance presets --json`,
	Args: cobra.NoArgs,
	RunE: runPresets,
}

func init() {
	rootCmd.AddCommand(presetsCmd)
	presetsCmd.Flags().Bool("json", false, "print presets as JSON")
}

func runPresets(cmd *cobra.Command, args []string) error {
	c, err := newContainer(cmd)
	if err != nil {
		return err
	}
	presets := c.Presets.Presets()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(presets)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDPI\tBINARIZE\tMASK\tDESCRIPTION")
	for _, p := range presets {
		mask := "-"
		if p.Mask != nil {
			mask = fmt.Sprintf("%d ranges", len(p.Mask.Ranges))
		}
		fmt.Fprintf(tw, "%s\t%g\t%s\t%s\t%s\n", p.Name, p.DPI, p.Enhance.Binarize, mask, p.Description)
	}
	return tw.Flush()
}
