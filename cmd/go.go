package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zhubert/claudway/internal/manager"
)

var (
	goCommand    string
	goShellOnly  bool
	goPersistent bool
)

var goCmd = &cobra.Command{
	Use:   "go [branch]",
	Short: "Start a session on a branch in its own worktree",
	Long: `Creates a worktree for the branch (creating the branch from HEAD if it does
not exist), copies untracked files and links dependency directories into it,
then runs the default command there followed by a shell.

Without a branch argument an interactive picker lists local and remote
branches, most recently committed first.

When the shell exits a temporary worktree is removed. If it has uncommitted
changes you are asked whether to go back to the shell first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGo,
}

func init() {
	goCmd.Flags().StringVarP(&goCommand, "command", "c", "", "Command to run instead of the default")
	goCmd.Flags().BoolVarP(&goShellOnly, "shell", "s", false, "Open a shell only, without running a command")
	goCmd.Flags().BoolVarP(&goPersistent, "persistent", "p", false, "Keep the worktree after the session ends")
	rootCmd.AddCommand(goCmd)
}

func runGo(cmd *cobra.Command, args []string) error {
	m, err := newManager(cmd)
	if err != nil {
		return err
	}
	return m.Go(cmd.Context(), manager.GoOptions{
		Branch:     branchArg(args),
		Command:    goCommand,
		ShellOnly:  goShellOnly,
		Persistent: goPersistent,
	})
}
