package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagWorkDir string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage multiplexer sessions",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a detached session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getMultiplexer()
		if err != nil {
			return err
		}
		name, target, err := m.NewSession(cmd.Context(), args[0], flagWorkDir)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		fmt.Printf("%s\t%s\n", name, target)
		return nil
	},
}

var sessionKillCmd = &cobra.Command{
	Use:   "kill <name>",
	Short: "Destroy a session and every pane in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getMultiplexer()
		if err != nil {
			return err
		}
		if err := m.KillSession(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to kill session %q: %w", args[0], err)
		}
		return nil
	},
}

func init() {
	sessionNewCmd.Flags().StringVar(&flagWorkDir, "dir", "", "working directory for the new session")
	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionKillCmd)
	rootCmd.AddCommand(sessionCmd)
}
