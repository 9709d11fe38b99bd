package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/claudway/internal/cli"
	"github.com/zhubert/claudway/internal/config"
	"github.com/zhubert/claudway/internal/git"
	"github.com/zhubert/claudway/internal/manager"
	"github.com/zhubert/claudway/internal/registry"
	"github.com/zhubert/claudway/internal/session"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

// newManager wires a Manager for the current directory after checking that
// the required tools are installed.
func newManager(cmd *cobra.Command) (*manager.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newManagerWith(cmd, cfg)
}

func newManagerWith(cmd *cobra.Command, cfg *config.Config) (*manager.Manager, error) {
	checker := cli.NewChecker()
	if err := checker.ValidateRequired(cli.Prerequisites(cfg.GetDefaultCommand())); err != nil {
		return nil, fmt.Errorf("%w\n\nInstall required tools and try again", err)
	}

	gs := git.NewGitService()
	prov, err := session.NewDefaultProvisioner(gs)
	if err != nil {
		return nil, fmt.Errorf("error resolving worktree location: %w", err)
	}
	reg, err := registry.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("error opening session registry: %w", err)
	}

	return manager.New(manager.Options{
		Git:         gs,
		Provisioner: prov,
		Registry:    reg,
		Config:      cfg,
		Out:         cmd.OutOrStdout(),
	}), nil
}
