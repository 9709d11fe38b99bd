package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/claudway/internal/clipboard"
	"github.com/zhubert/claudway/internal/logger"
)

var copyPath bool

var pathCmd = &cobra.Command{
	Use:   "path [branch]",
	Short: "Print the worktree path of a session",
	Long: `Prints the directory of a session so it can be used from scripts, for
example: cd "$(cw path feature/login)"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPath,
}

func init() {
	pathCmd.Flags().BoolVar(&copyPath, "copy", false, "Also copy the path to the clipboard")
	rootCmd.AddCommand(pathCmd)
}

func runPath(cmd *cobra.Command, args []string) error {
	m, err := newManager(cmd)
	if err != nil {
		return err
	}
	path, err := m.Path(cmd.Context(), branchArg(args))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)

	if copyPath {
		if err := clipboard.CopyText(path); err != nil {
			logger.Warn("path: clipboard copy failed: %v", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not copy to clipboard: %v\n", err)
			return nil
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Copied to clipboard.")
	}
	return nil
}
