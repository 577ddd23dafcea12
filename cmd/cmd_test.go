// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/spacewatch/internal/config"
	"github.com/xkilldash9x/spacewatch/internal/observability"
)

// executeRoot runs a fresh root command with args. A hidden "probe"
// subcommand captures the configuration loaded by PersistentPreRunE.
func executeRoot(t *testing.T, args ...string) (string, *config.Config, error) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	var captured *config.Config
	root := NewRootCommand()
	root.AddCommand(&cobra.Command{
		Use:    "probe",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			captured = cfg
			return err
		},
	})

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), captured, err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, _, err := executeRoot(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestVersionCmd(t *testing.T) {
	out, _, err := executeRoot(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "spacewatch "+Version)
}

func TestRootCmd_DefaultsWithoutConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	_, cfg, err := executeRoot(t, "probe")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 250*time.Millisecond, cfg.Tracker().PollInterval)
	assert.Equal(t, 1280, cfg.Browser().Viewport.Width)
	assert.True(t, cfg.Browser().Headless)
}

func TestRootCmd_ConfigFileOverride(t *testing.T) {
	path := writeConfig(t, `
logger:
  level: error
browser:
  headless: false
  viewport:
    width: 640
    height: 480
tracker:
  poll_interval: 1s
`)
	_, cfg, err := executeRoot(t, "--config", path, "probe")
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Tracker().PollInterval)
	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, config.ViewportConfig{Width: 640, Height: 480}, cfg.Browser().Viewport)
	assert.Equal(t, 250*time.Millisecond, cfg.Tracker().ResizeDebounce, "unset keys keep their defaults")
}

func TestRootCmd_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SPACEWATCH_TRACKER_STREAM_BUFFER", "64")

	_, cfg, err := executeRoot(t, "probe")
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Tracker().StreamBuffer)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	t.Run("MissingExplicitFile", func(t *testing.T) {
		_, _, err := executeRoot(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "probe")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize configuration")
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		path := writeConfig(t, "tracker:\n  poll_interval: 0s\n")
		_, _, err := executeRoot(t, "--config", path, "probe")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "poll_interval")
	})
}

func TestWatchCmd_RequiresURL(t *testing.T) {
	_, _, err := executeRoot(t, "watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"url" not set`)
}

func TestMeasureCmd_RequiresURL(t *testing.T) {
	_, _, err := executeRoot(t, "measure", "#a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"url" not set`)
}

func TestConfigFromContext_Missing(t *testing.T) {
	_, err := configFromContext(context.Background())
	assert.Error(t, err)
}
