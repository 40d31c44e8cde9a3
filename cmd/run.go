package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/telebridge/telebridge/internal/bridge"
	"github.com/telebridge/telebridge/internal/config"
	telem "github.com/telebridge/telebridge/internal/otel"
	"github.com/telebridge/telebridge/internal/telegram"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the Telegram bridge daemon",
	Long: `Run the bridge daemon: poll watched panes, deliver new output to
connected Telegram conversations, and inject chat input back into panes.

Configuration is loaded from .telebridge.yaml or environment variables.
At minimum a bot token and a user whitelist are required; the whitelist
must not be empty, an empty one refuses every sender.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBridge()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBridge() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration: defaults -> config file -> env vars.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.ConfigFile != "" {
		fmt.Fprintf(os.Stderr, "config: loaded %s\n", cfg.ConfigFile)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Wire build version into OTEL service metadata
	telem.Version = Version

	// Initialize OTEL (no-op if no endpoint configured). The run ID
	// groups all telemetry emitted by this daemon process.
	runID := uuid.NewString()
	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
		RunID:    runID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: otel init failed: %v\n", err)
	}
	if tel != nil {
		defer tel.Shutdown(context.Background())
	}

	m, err := getMultiplexer()
	if err != nil {
		return fmt.Errorf("no supported terminal multiplexer found: %w", err)
	}

	bot, err := telegram.New(cfg.Token, cfg.AuthorizedUsers)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "telegram: authorized as @%s, %d whitelisted users\n",
		bot.Username(), len(cfg.AuthorizedUsers))

	var metrics *telem.Metrics
	if tel != nil {
		metrics = tel.Metrics
	}

	br := bridge.New(m, bot, bridge.Options{
		PollInterval:   cfg.PollIntervalDuration,
		QuietPeriod:    cfg.QuietPeriodDuration,
		MaxHold:        cfg.MaxHoldDuration,
		TerminalLines:  cfg.TerminalLines,
		Parallel:       cfg.Parallel,
		DefaultWorkDir: cfg.WorkDir,
		Metrics:        metrics,
	})
	bot.Bind(br)

	br.Start(ctx)
	defer br.Stop()

	fmt.Fprintf(os.Stderr, "bridge: polling every %s (run %s)\n", cfg.PollIntervalDuration, runID)

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("telegram updates: %w", err)
	}
	fmt.Fprintln(os.Stderr, "bridge: shutting down")
	return nil
}
