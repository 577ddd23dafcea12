// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/spacewatch/internal/config"
	"github.com/xkilldash9x/spacewatch/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// envPrefix namespaces environment overrides, e.g. SPACEWATCH_TRACKER_POLL_INTERVAL.
const envPrefix = "SPACEWATCH"

// NewRootCommand builds a fresh command tree. Each call is independent, so
// flags never leak between executions.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "spacewatch",
		Short:         "Tracks the space left in a page's viewport and containers.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.Initialize(cfg.Logger(), zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr())))
			observability.GetLogger().Debug("Starting spacewatch", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml or ~/.spacewatch/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newMeasureCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the root command with ctx, which should be signal aware.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		// zap.L is a no-op until the logger is initialized.
		zap.L().Error("Command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// initializeConfig points v at the config file and environment. A missing
// config file is not an error; defaults and env vars still apply.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".spacewatch"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// configFromContext returns the configuration stored by PersistentPreRunE.
func configFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}
