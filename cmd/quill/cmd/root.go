package cmd

import (
	"fmt"

	"github.com/solatis/quill/internal/core/config"
	"github.com/solatis/quill/internal/pkg/logger"
	"github.com/spf13/cobra"
)

// Version is the CLI and server version.
const Version = "0.1.0"

var (
	configFile string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:          "quill",
	Short:        "Quill query rewriting engine",
	Long:         `Quill rewrites search queries with rule files: synonyms, deletions, boosts, filters and decorations.`,
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("database", "", "rule-set database URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads configuration with cmd's changed flags taking precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger() *logger.Logger {
	return logger.New(logLevel, logFormat)
}
