package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telebridge/telebridge/internal/capture"
)

var flagRaw bool

var captureCmd = &cobra.Command{
	Use:   "capture <target>",
	Short: "Capture the visible content of a pane",
	Long: `Capture the visible content of a terminal multiplexer pane and print it
to stdout.

The target format is session:window.pane (e.g., "work:0.1"). By default
the output is cleaned the same way the bridge cleans it before sending
to the chat: ANSI sequences stripped, long horizontal rules compressed.
Use --raw for the untouched capture.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]

		m, err := getMultiplexer()
		if err != nil {
			return err
		}

		content, err := m.CapturePane(cmd.Context(), target)
		if err != nil {
			return fmt.Errorf("failed to capture pane %q: %w", target, err)
		}

		if flagRaw {
			fmt.Fprint(os.Stdout, content)
			return nil
		}
		fmt.Fprintln(os.Stdout, strings.Join(capture.CleanLines(strings.Split(content, "\n")), "\n"))
		return nil
	},
}

func init() {
	captureCmd.Flags().BoolVar(&flagRaw, "raw", false, "print the raw capture without cleanup")
	rootCmd.AddCommand(captureCmd)
}
