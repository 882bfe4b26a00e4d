package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bond-log-enhancer/internal/domain"
	"bond-log-enhancer/internal/service"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <input.pdf> <output.pdf>",
	Short: "Enhance one PDF",
	Long: `Enhance one scanned PDF and write the result to a new file.

The output always has the same number of pages as the input. Pages that fail
to render are kept as blank placeholders and reported in the summary.

Examples:
  enhance run booking.pdf booking-enhanced.pdf
  enhance run scan.pdf out.pdf --preset tinted-carbon-copy --recognizers tesseract,vocabulary
  enhance run scan.pdf out.pdf --recognizers sidecar --sidecar-dir ./ocr-text --page-policy letter`,
	Args: cobra.ExactArgs(2),
	RunE: runEnhance,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addSettingsFlags(runCmd)
	runCmd.Flags().Bool("json", false, "print the run summary as JSON")
}

// addSettingsFlags registers the run option flags shared by run and watch.
func addSettingsFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("preset", "p", "", "enhancement preset (see 'enhance presets')")
	cmd.Flags().Float64("dpi", 0, "render resolution, overrides the preset")
	cmd.Flags().StringSlice("recognizers", nil, "recognizer backends in priority order (tesseract, cloud, gemini, sidecar, vocabulary, none)")
	cmd.Flags().String("vocabulary", "", "semicolon separated target vocabulary, replaces the configured one")
	cmd.Flags().String("page-policy", "", "output page size: source or letter")
	cmd.Flags().IntP("workers", "w", 0, "pages processed concurrently")
	cmd.Flags().String("debug-dir", "", "write enhanced page PNGs to this directory")
	cmd.Flags().Duration("timeout", 0, "per-page recognition timeout")
	cmd.Flags().String("overlay-style", "", "overlay style: invisible or background")
	cmd.Flags().Float64("opacity", -1, "overlay opacity for the background style (0..1)")
	cmd.Flags().String("sidecar-dir", "", "directory of page-NNNN.txt/json recognition results")
	cmd.Flags().String("lang", "", "recognition languages, e.g. eng+spa")
}

// applySettingsFlags overrides s with every flag that was set.
func applySettingsFlags(cmd *cobra.Command, s service.Settings) (service.Settings, error) {
	f := cmd.Flags()
	if f.Changed("preset") {
		s.Preset, _ = f.GetString("preset")
	}
	if f.Changed("dpi") {
		s.DPI, _ = f.GetFloat64("dpi")
	}
	if f.Changed("recognizers") {
		s.Recognizers, _ = f.GetStringSlice("recognizers")
	}
	if f.Changed("vocabulary") {
		v, _ := f.GetString("vocabulary")
		s.Vocabulary = domain.ParseVocabulary(v)
	}
	if f.Changed("page-policy") {
		s.PagePolicy, _ = f.GetString("page-policy")
	}
	if f.Changed("workers") {
		s.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("debug-dir") {
		s.DebugDir, _ = f.GetString("debug-dir")
	}
	if f.Changed("timeout") {
		s.PageTimeout, _ = f.GetDuration("timeout")
		if s.PageTimeout < time.Second {
			return s, fmt.Errorf("invalid timeout %s (must be at least 1s)", s.PageTimeout)
		}
	}
	if f.Changed("overlay-style") {
		s.OverlayStyle, _ = f.GetString("overlay-style")
	}
	if f.Changed("opacity") {
		s.OverlayOpacity, _ = f.GetFloat64("opacity")
		if s.OverlayOpacity < 0 || s.OverlayOpacity > 1 {
			return s, fmt.Errorf("invalid opacity %.2f (must be between 0.0 and 1.0)", s.OverlayOpacity)
		}
	}
	if f.Changed("sidecar-dir") {
		s.SidecarDir, _ = f.GetString("sidecar-dir")
	}
	if f.Changed("lang") {
		lang, _ := f.GetString("lang")
		s.Languages = strings.FieldsFunc(strings.ToLower(lang), func(r rune) bool { return r == '+' || r == ',' })
	}
	return s, nil
}

func runEnhance(cmd *cobra.Command, args []string) error {
	input, output := args[0], args[1]
	if input == output {
		return errors.New("output must differ from input")
	}

	c, err := newContainer(cmd)
	if err != nil {
		return err
	}
	settings, err := applySettingsFlags(cmd, c.EnhancementService.Settings())
	if err != nil {
		return err
	}

	summary, runErr := c.EnhancementService.ProcessFile(cmd.Context(), input, output, settings)
	if summary != nil {
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}
		} else {
			printSummary(cmd, summary)
		}
	}
	if runErr != nil {
		return runErr
	}
	return nil
}
