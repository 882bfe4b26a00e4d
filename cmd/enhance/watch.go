package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bond-log-enhancer/internal/service"
	"bond-log-enhancer/internal/watcher"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <inbox> <outbox>",
	Short: "Enhance every PDF dropped into an inbox directory",
	Long: `Watch an inbox directory and enhance every PDF written to it. Results are
written to the outbox as <name>-enhanced.pdf. Files are picked up once they
stop changing for the settle interval.

Examples:
  enhance watch ./inbox ./outbox
  enhance watch /scans/in /scans/out --existing --done-dir /scans/done --preset high-dpi-high-contrast`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addSettingsFlags(watchCmd)
	watchCmd.Flags().Duration("settle", 2*time.Second, "quiet period before a file is processed")
	watchCmd.Flags().Bool("existing", false, "also process PDFs already in the inbox")
	watchCmd.Flags().Int("jobs", 1, "documents processed concurrently")
	watchCmd.Flags().String("done-dir", "", "move inputs here after a successful run")
}

func runWatch(cmd *cobra.Command, args []string) error {
	inbox, outbox := args[0], args[1]
	if filepath.Clean(inbox) == filepath.Clean(outbox) {
		return fmt.Errorf("outbox must differ from inbox")
	}
	if err := os.MkdirAll(outbox, 0o755); err != nil {
		return err
	}

	doneDir, _ := cmd.Flags().GetString("done-dir")
	if doneDir != "" {
		if err := os.MkdirAll(doneDir, 0o755); err != nil {
			return err
		}
	}

	c, err := newContainer(cmd)
	if err != nil {
		return err
	}
	settings, err := applySettingsFlags(cmd, c.EnhancementService.Settings())
	if err != nil {
		return err
	}

	var printMu sync.Mutex
	handle := func(ctx context.Context, path string) error {
		out := filepath.Join(outbox, service.EnhancedName(path))
		summary, err := c.EnhancementService.ProcessFile(ctx, path, out, settings)
		if err != nil {
			return err
		}
		printMu.Lock()
		printSummary(cmd, summary)
		printMu.Unlock()
		if doneDir != "" {
			return os.Rename(path, filepath.Join(doneDir, filepath.Base(path)))
		}
		return nil
	}

	settle, _ := cmd.Flags().GetDuration("settle")
	existing, _ := cmd.Flags().GetBool("existing")
	jobs, _ := cmd.Flags().GetInt("jobs")

	w, err := watcher.New(watcher.Config{
		Inbox:    inbox,
		Settle:   settle,
		Existing: existing,
		Workers:  jobs,
	}, handle, c.Logger)
	if err != nil {
		return err
	}

	c.Logger.Info("Watching inbox", "inbox", inbox, "outbox", outbox, "preset", settings.Preset)
	return w.Run(cmd.Context())
}
