package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"bond-log-enhancer/internal/config"
	"bond-log-enhancer/internal/verify"
	"bond-log-enhancer/pkg/logger"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file.pdf> [term...]",
	Short: "Search the text layer of a PDF",
	Long: `Search the text layer of a PDF for terms, case-insensitively, and print
the pages each term appears on. Without terms the configured target
vocabulary is used.

The command exits non-zero when a term is not found anywhere.

Examples:
  enhance verify booking-enhanced.pdf U521981590
  enhance verify booking-enhanced.pdf "DOE, JANE A" "BOOKING FACE SHEET" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().Bool("json", false, "print the report as JSON")
	verifyCmd.Flags().Duration("timeout", verify.DefaultPageTimeout, "per-page extraction timeout")
}

func runVerify(cmd *cobra.Command, args []string) error {
	path, terms := args[0], args[1:]

	cfg := config.NewConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.GetLogLevel()
	}
	log := logger.NewWriterLogger(level, os.Stderr)

	if len(terms) == 0 {
		terms = cfg.GetTargetVocabulary().Entries()
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	report, err := verify.NewVerifier(log, timeout).SearchFile(cmd.Context(), path, terms, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%s: %d pages\n", path, report.Metadata.PageCount)
		for _, t := range report.Terms {
			if len(t.Pages) == 0 {
				fmt.Fprintf(out, "  %-28s not found\n", t.Term)
				continue
			}
			fmt.Fprintf(out, "  %-28s pages %s\n", t.Term, joinInts(t.Pages))
		}
		if len(report.PagesNoText) > 0 {
			fmt.Fprintf(out, "  pages without text: %s\n", joinInts(report.PagesNoText))
		}
		if len(report.Failed) > 0 {
			fmt.Fprintf(out, "  pages not checked: %s\n", joinInts(report.Failed))
		}
	}

	if !report.Found() {
		return fmt.Errorf("not every term was found in %s", path)
	}
	return nil
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
