package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var flagTargetsOnly bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all pane targets",
	Long: `List all terminal multiplexer panes.

Each target (session:window.pane) can be passed to other commands
(capture, send, connect from the chat). With --targets only the bare
targets are printed, one per line, for scripting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getMultiplexer()
		if err != nil {
			return err
		}

		panes, err := m.ListPanes(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list panes: %w", err)
		}

		if flagTargetsOnly {
			for _, p := range panes {
				fmt.Println(p.Target)
			}
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TARGET\tWINDOW\tCOMMAND\tSIZE")
		for _, p := range panes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\n", p.Target, p.WindowName, p.Command, p.Width, p.Height)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().BoolVar(&flagTargetsOnly, "targets", false, "print bare targets only, one per line")
	rootCmd.AddCommand(listCmd)
}
