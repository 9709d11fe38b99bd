package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhubert/claudway/internal/config"
	"github.com/zhubert/claudway/internal/errors"
	"github.com/zhubert/claudway/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"ls"},
	Short:   "Show configuration and the sessions of this repository",
	Args:    cobra.NoArgs,
	RunE:    runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, ui.RenderConfig(configRows(cfg)))
	fmt.Fprintln(out)

	m, err := newManagerWith(cmd, cfg)
	if err != nil {
		return err
	}
	overview, err := m.Status(cmd.Context())
	if errors.Is(err, errors.KindNotARepository) {
		fmt.Fprintln(out, ui.MutedStyle.Render("Not inside a git repository; skipping worktree listing."))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, ui.RenderSessions(overview.Repo, overview.Rows))
	return nil
}

// configRows reports the effective user-wide settings and where each comes from.
func configRows(cfg *config.Config) []ui.ConfigRow {
	command, source := cfg.GetDefaultCommand(), "config"
	if env := os.Getenv(config.DefaultCommandEnv); env != "" {
		command, source = env, config.DefaultCommandEnv
	} else if command == "" {
		command, source = config.DefaultCommand, "default"
	}

	repoLocation, repoSource := cfg.GetRepoLocation(), "config"
	if repoLocation == "" {
		repoLocation, repoSource = "(not set)", ""
	}

	notifications := "off"
	if cfg.GetNotificationsEnabled() {
		notifications = "on"
	}

	return []ui.ConfigRow{
		{Key: "default_command", Value: command, Source: source},
		{Key: "repo_location", Value: repoLocation, Source: repoSource},
		{Key: "notifications", Value: notifications, Source: "config"},
		{Key: "config file", Value: cfg.FilePath()},
	}
}
