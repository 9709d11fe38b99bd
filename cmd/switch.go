package cmd

import "github.com/spf13/cobra"

var switchCmd = &cobra.Command{
	Use:   "switch [branch]",
	Short: "Open a shell in an existing session",
	Long: `Opens a shell in the worktree of an existing session, or in the main
checkout for the primary branch. The session is not claimed: a temporary
session is still removed when the cw that created it exits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSwitch,
}

func init() {
	rootCmd.AddCommand(switchCmd)
}

func runSwitch(cmd *cobra.Command, args []string) error {
	m, err := newManager(cmd)
	if err != nil {
		return err
	}
	return m.Switch(cmd.Context(), branchArg(args))
}

func branchArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
