package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhubert/claudway/internal/logger"
	"github.com/zhubert/claudway/internal/manager"
	"github.com/zhubert/claudway/internal/session"
	"github.com/zhubert/claudway/internal/ui"
)

var (
	skipConfirm bool
	cleanLogs   bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove abandoned temporary worktrees and stale directories",
	Long: `Finds leftovers from sessions that did not finish normally:

  - directories under the worktree roots that git no longer tracks
  - temporary sessions whose cw process is gone and that have no
    uncommitted changes

Abandoned sessions with uncommitted changes are listed but kept; remove them
with cw rm once the work is saved. Worktrees found on disk but missing from
the registry are registered first.

It will prompt for confirmation before proceeding unless the --yes flag is used.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVarP(&skipConfirm, "yes", "y", false, "Skip confirmation prompt")
	cleanCmd.Flags().BoolVar(&cleanLogs, "logs", false, "Also delete cw's log files")
	rootCmd.AddCommand(cleanCmd)
}

// cleaner is the part of the manager clean needs.
type cleaner interface {
	PlanClean(ctx context.Context) (manager.CleanPlan, error)
	Clean(ctx context.Context, plan manager.CleanPlan) manager.CleanResult
}

func runClean(cmd *cobra.Command, args []string) error {
	m, err := newManager(cmd)
	if err != nil {
		return err
	}
	return runCleanWith(cmd.Context(), m, os.Stdin, cmd.OutOrStdout())
}

// runCleanWith allows injecting the manager and streams for testing
func runCleanWith(ctx context.Context, c cleaner, input io.Reader, out io.Writer) error {
	plan, err := c.PlanClean(ctx)
	if err != nil {
		return err
	}

	if plan.Empty() && !cleanLogs {
		fmt.Fprintln(out, "Nothing to clean.")
		printKept(out, plan.Dirty)
		return nil
	}

	fmt.Fprintln(out, "This will clean:")
	if len(plan.StaleDirs) > 0 {
		fmt.Fprintf(out, "  - %d stale worktree director%s\n", len(plan.StaleDirs), plural(len(plan.StaleDirs), "y", "ies"))
		for _, dir := range plan.StaleDirs {
			fmt.Fprintf(out, "      %s\n", dir)
		}
	}
	if len(plan.Abandoned) > 0 {
		fmt.Fprintf(out, "  - %d abandoned temporary session%s\n", len(plan.Abandoned), plural(len(plan.Abandoned), "", "s"))
		for _, s := range plan.Abandoned {
			fmt.Fprintf(out, "      %s  %s\n", s.Branch, s.Path)
		}
	}
	if cleanLogs {
		fmt.Fprintln(out, "  - All cw log files")
	}

	if !skipConfirm {
		if !confirm(input, out, "Continue?") {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	res := c.Clean(ctx, plan)
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", w)
	}

	var logsCleared int
	if cleanLogs {
		logger.Close()
		if logsCleared, err = logger.ClearLogs(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error clearing logs: %v\n", err)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Cleaned:")
	if res.RemovedDirs > 0 {
		fmt.Fprintf(out, "  - %d stale director%s removed\n", res.RemovedDirs, plural(res.RemovedDirs, "y", "ies"))
	}
	if res.RemovedSessions > 0 {
		fmt.Fprintf(out, "  - %d session%s removed\n", res.RemovedSessions, plural(res.RemovedSessions, "", "s"))
	}
	if res.Skipped > 0 {
		fmt.Fprintf(out, "  - %d session%s skipped (resumed or changed since listed)\n", res.Skipped, plural(res.Skipped, "", "s"))
	}
	if logsCleared > 0 {
		fmt.Fprintf(out, "  - %d log file%s removed\n", logsCleared, plural(logsCleared, "", "s"))
	}
	printKept(out, plan.Dirty)
	return nil
}

func printKept(out io.Writer, dirty []session.Session) {
	if len(dirty) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Kept (uncommitted changes):")
	for _, s := range dirty {
		fmt.Fprintf(out, "      %s  %s\n", s.Branch, s.Path)
	}
	fmt.Fprintln(out, "  Remove with: cw rm <branch>")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// confirm prompts the user for y/n confirmation
func confirm(input io.Reader, out io.Writer, prompt string) bool {
	reader := bufio.NewReader(input)
	ok, err := ui.ConfirmLine(out, func() (string, error) {
		line, err := reader.ReadString('\n')
		return strings.TrimSpace(line), err
	}, prompt, false)
	return err == nil && ok
}
