package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/claudway/internal/cli"
	"github.com/zhubert/claudway/internal/paths"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the tools cw uses are installed",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	checker := cli.NewChecker()
	prereqs := cli.Prerequisites(cfg.GetDefaultCommand())

	out := cmd.OutOrStdout()
	fmt.Fprint(out, cli.FormatCheckResults(checker.CheckAll(cmd.Context(), prereqs)))
	if logPath, err := paths.LogFilePath(); err == nil {
		fmt.Fprintf(out, "\nLog file: %s\n", logPath)
	}
	return checker.ValidateRequired(prereqs)
}
