package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/telebridge/telebridge/internal/mux"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	// Global flags.
	flagMux string
)

var rootCmd = &cobra.Command{
	Use:   "telebridge",
	Short: "Bridge terminal multiplexer panes to Telegram",
	Long: `telebridge connects tmux panes to Telegram conversations.

New pane output is watched, coalesced, and delivered as monospace
messages; text and control keys typed in the chat are injected back
into the pane. Long-running terminal work stays observable and
steerable from a phone.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMux, "mux", envOrDefault("TELEBRIDGE_MUX", ""), "terminal multiplexer: tmux (default: auto-detect)")
}

// getMultiplexer returns the configured or auto-detected multiplexer.
func getMultiplexer() (mux.Multiplexer, error) {
	if flagMux != "" {
		return mux.FromName(flagMux)
	}
	return mux.Detect()
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
