package cmd

import "github.com/spf13/cobra"

var forceRemove bool

var rmCmd = &cobra.Command{
	Use:     "rm [branch]",
	Aliases: []string{"remove"},
	Short:   "Remove a session's worktree",
	Long: `Removes the worktree of a persistent or temporary session. The branch and
its commits are kept.

Uncommitted changes are listed and must be confirmed before removal unless
--force is given. A session in use by another cw is never removed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRemove,
}

func init() {
	rmCmd.Flags().BoolVarP(&forceRemove, "force", "f", false, "Remove even with uncommitted changes")
	rootCmd.AddCommand(rmCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	m, err := newManager(cmd)
	if err != nil {
		return err
	}
	return m.Remove(cmd.Context(), branchArg(args), forceRemove)
}
