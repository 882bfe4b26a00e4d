// Command enhance rebuilds scanned PDFs with enhanced page images and an
// invisible, searchable text layer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bond-log-enhancer/internal/config"
	"bond-log-enhancer/internal/domain"
	"bond-log-enhancer/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Enhance scanned PDFs and add a searchable text layer",
	Long: `Enhance scanned bond log PDFs.

Every page is rasterized, cleaned up (contrast, sharpening, thresholding and
optional tint removal), recognized, and written to a new PDF with the same
page count. Recognized text is placed as an invisible layer so the output
can be searched.

Configuration is read from the environment and an optional .env file; flags
override it.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		envFile, _ := cmd.Flags().GetString("env")
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env") {
			fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", envFile, err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("env", ".env", "environment file to load")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newContainer wires the application from the environment, honouring the
// --log-level flag.
func newContainer(cmd *cobra.Command) (*config.Container, error) {
	cfg := config.NewConfig()
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.GetLogLevel()
	}
	return config.NewContainerWith(cfg, logger.NewWriterLogger(level, os.Stderr))
}

func printSummary(cmd *cobra.Command, s *domain.RunSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d/%d pages, %d with text, %d with overlay, %d failed\n",
		s.ID, s.PagesProcessed, s.PageCount, s.PagesWithText, s.PagesWithOverlay, s.PagesFailed)
	for _, p := range s.Pages {
		if p.Status == domain.PageStatusOK && len(p.VocabularyHits) == 0 {
			continue
		}
		fmt.Fprintf(out, "  page %d: %s", p.Page, p.Status)
		if p.Backend != "" {
			fmt.Fprintf(out, " [%s]", p.Backend)
		}
		if len(p.VocabularyHits) > 0 {
			fmt.Fprintf(out, " hits=%q", p.VocabularyHits)
		}
		for _, e := range p.Errors {
			fmt.Fprintf(out, "\n    %s", e)
		}
		fmt.Fprintln(out)
	}
	if s.FatalError != "" {
		fmt.Fprintf(out, "fatal: %s\n", s.FatalError)
	}
}
