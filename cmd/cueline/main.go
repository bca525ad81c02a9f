package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/cueline/internal/config"
	"github.com/satindergrewal/cueline/internal/logger"
)

var (
	version   = "0.1.0"
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:           "cueline",
	Short:         "Lyric teleprompter that starts scrolling when the band does",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cueline v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default $CUELINE_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (default $CUELINE_LOG_FORMAT)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(meterCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(songsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig() config.Config {
	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg
}

func newLogger(cfg config.Config) *slog.Logger {
	return logger.New(logger.Config{
		Format:    cfg.LogFormat,
		Level:     logger.ParseLevel(cfg.LogLevel),
		AddSource: cfg.LogSource,
	})
}
