package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telebridge/telebridge/internal/mux"
)

var flagNoEnter bool

var sendCmd = &cobra.Command{
	Use:   "send <target> <text>...",
	Short: "Type text into a pane",
	Long: `Type literal text into a terminal multiplexer pane and submit it with
Enter. Use --no-enter to leave the text on the input line unsent.

This is the same injection path the chat uses; it exists so scripts and
humans can drive panes without going through Telegram.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]
		text := strings.Join(args[1:], " ")

		m, err := getMultiplexer()
		if err != nil {
			return err
		}
		if err := m.SendText(cmd.Context(), target, text, !flagNoEnter); err != nil {
			return fmt.Errorf("failed to send to pane %q: %w", target, err)
		}
		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key <target> <key>",
	Short: "Send a named control key to a pane",
	Long: `Send a named control key to a terminal multiplexer pane.

Valid keys: ` + keyList() + `.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]

		key, err := mux.ParseKey(args[1])
		if err != nil {
			return fmt.Errorf("%w: %q (valid: %s)", err, args[1], keyList())
		}

		m, err := getMultiplexer()
		if err != nil {
			return err
		}
		if err := m.SendKey(cmd.Context(), target, key); err != nil {
			return fmt.Errorf("failed to send key to pane %q: %w", target, err)
		}
		return nil
	},
}

func keyList() string {
	keys := mux.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func init() {
	sendCmd.Flags().BoolVar(&flagNoEnter, "no-enter", false, "do not submit the text with Enter")
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(keyCmd)
}
