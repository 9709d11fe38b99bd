package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhubert/claudway/internal/config"
	"github.com/zhubert/claudway/internal/git"
	"github.com/zhubert/claudway/internal/ui"
)

var setDefaultCommandCmd = &cobra.Command{
	Use:   "set-default-command <command>",
	Short: "Set the command started in new sessions",
	Long: `Stores the command cw go runs when -c is not given. Quote commands that
take arguments:

  cw set-default-command "claude --model opus"

The CW_DEFAULT_COMMAND environment variable takes precedence, and a
repository can set its own default_command in .claudway.yaml.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSetDefaultCommand,
}

var setRepoCmd = &cobra.Command{
	Use:   "set-repo [path]",
	Short: "Set the repository used when cw runs outside a checkout",
	Long: `Stores a repository that cw falls back to when the current directory is
not inside a git checkout. Defaults to the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSetRepo,
}

var setNotificationsCmd = &cobra.Command{
	Use:       "set-notifications <on|off>",
	Short:     "Toggle the desktop notification sent when a session command exits",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runSetNotifications,
}

func init() {
	rootCmd.AddCommand(setDefaultCommandCmd)
	rootCmd.AddCommand(setRepoCmd)
	rootCmd.AddCommand(setNotificationsCmd)
}

func runSetDefaultCommand(cmd *cobra.Command, args []string) error {
	command := strings.TrimSpace(strings.Join(args, " "))
	if command == "" {
		return fmt.Errorf("command cannot be empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.SetDefaultCommand(command)
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Default command set to: %s\n", ui.SuccessStyle.Render("✓"), command)
	if env := os.Getenv(config.DefaultCommandEnv); env != "" {
		fmt.Fprintln(out, ui.WarningStyle.Render(
			fmt.Sprintf("Note: %s=%q is set and takes precedence.", config.DefaultCommandEnv, env)))
	}
	return nil
}

func runSetRepo(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("error resolving %s: %w", dir, err)
	}

	root, err := git.NewGitService().Locate(cmd.Context(), abs)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.SetRepoLocation(root)
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Repository location set to: %s\n", ui.SuccessStyle.Render("✓"), root)
	return nil
}

func runSetNotifications(cmd *cobra.Command, args []string) error {
	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on", "true", "yes":
		enabled = true
	case "off", "false", "no":
	default:
		return fmt.Errorf("expected on or off, got %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.SetNotificationsEnabled(enabled)
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	state := "off"
	if enabled {
		state = "on"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Notifications %s\n", ui.SuccessStyle.Render("✓"), state)
	return nil
}
