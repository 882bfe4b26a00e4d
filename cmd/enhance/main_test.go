package main

import (
	"bytes"
	"testing"
	"time"

	"bond-log-enhancer/internal/domain"
	"bond-log-enhancer/internal/service"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settingsCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addSettingsFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestApplySettingsFlags_OverridesOnlyChangedFlags(t *testing.T) {
	base := service.Settings{
		Preset:      "default",
		Recognizers: []string{"tesseract"},
		Workers:     1,
		PageTimeout: 90 * time.Second,
		Vocabulary:  domain.NewTargetVocabulary("INTAKE DESK", "BOOKING FACE SHEET"),
	}

	cmd := settingsCmd(t,
		"--preset", "tinted-carbon-copy",
		"--recognizers", "sidecar,vocabulary",
		"--vocabulary", "U521981590; DOE, JANE A",
		"--workers", "4",
		"--timeout", "30s",
		"--lang", "ENG+spa",
	)
	got, err := applySettingsFlags(cmd, base)
	require.NoError(t, err)

	assert.Equal(t, "tinted-carbon-copy", got.Preset)
	assert.Equal(t, []string{"sidecar", "vocabulary"}, got.Recognizers)
	assert.Equal(t, []string{"U521981590", "DOE, JANE A"}, got.Vocabulary.Entries())
	assert.Equal(t, 4, got.Workers)
	assert.Equal(t, 30*time.Second, got.PageTimeout)
	assert.Equal(t, []string{"eng", "spa"}, got.Languages)
	assert.Zero(t, got.DPI)
	assert.Empty(t, got.PagePolicy)

	unchanged, err := applySettingsFlags(settingsCmd(t), base)
	require.NoError(t, err)
	assert.Equal(t, base, unchanged)
}

func TestApplySettingsFlags_RejectsBadValues(t *testing.T) {
	_, err := applySettingsFlags(settingsCmd(t, "--opacity", "1.5"), service.Settings{})
	assert.Error(t, err)

	_, err = applySettingsFlags(settingsCmd(t, "--timeout", "10ms"), service.Settings{})
	assert.Error(t, err)
}

func TestPresetsCommand(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")
	t.Setenv("PRESETS_FILE", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"presets", "--log-level", "error"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "NAME")
	assert.Contains(t, out.String(), "tinted-carbon-copy")
	assert.Contains(t, out.String(), "high-dpi-high-contrast")
}
