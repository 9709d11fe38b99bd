// Package cli checks for the external tools cw shells out to.
package cli

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/zhubert/claudway/internal/errors"
	pexec "github.com/zhubert/claudway/internal/exec"
)

// Prerequisite is an external command cw may run.
type Prerequisite struct {
	Name        string // Command name (e.g., "git", "mise")
	Required    bool   // Whether cw refuses to start without it
	Description string
	InstallURL  string
}

// Prerequisites lists the tools cw uses. The program named by the default
// command is included as optional, since any command can be launched with -c.
func Prerequisites(defaultCommand string) []Prerequisite {
	prereqs := []Prerequisite{
		{
			Name:        "git",
			Required:    true,
			Description: "Git version control (worktree support)",
			InstallURL:  "https://git-scm.com/downloads",
		},
		{
			Name:        "mise",
			Required:    false,
			Description: "mise (optional, trusts mise.toml in new worktrees)",
			InstallURL:  "https://mise.jdx.dev",
		},
	}
	if fields := strings.Fields(defaultCommand); len(fields) > 0 && fields[0] != "git" && fields[0] != "mise" {
		prereqs = append(prereqs, Prerequisite{
			Name:        fields[0],
			Required:    false,
			Description: "Default session command",
		})
	}
	return prereqs
}

// CheckResult is the outcome of checking one prerequisite.
type CheckResult struct {
	Prerequisite Prerequisite
	Found        bool
	Path         string
	Version      string
	Error        error
}

// Checker looks tools up on PATH and asks them for a version.
type Checker struct {
	LookPath func(string) (string, error)
	Executor pexec.CommandExecutor
}

// NewChecker returns a Checker using the real PATH.
func NewChecker() *Checker {
	return &Checker{LookPath: exec.LookPath, Executor: pexec.NewRealExecutor()}
}

// Check verifies that prereq is available.
func (c *Checker) Check(ctx context.Context, prereq Prerequisite) CheckResult {
	result := CheckResult{Prerequisite: prereq}

	path, err := c.LookPath(prereq.Name)
	if err != nil {
		result.Error = errors.CLINotFound(prereq.Name)
		return result
	}
	result.Found = true
	result.Path = path
	result.Version = c.version(ctx, prereq.Name)
	return result
}

// CheckAll checks every prerequisite in order.
func (c *Checker) CheckAll(ctx context.Context, prereqs []Prerequisite) []CheckResult {
	results := make([]CheckResult, len(prereqs))
	for i, p := range prereqs {
		results[i] = c.Check(ctx, p)
	}
	return results
}

// ValidateRequired fails when a required tool is missing.
func (c *Checker) ValidateRequired(prereqs []Prerequisite) error {
	var missing []string
	for _, p := range prereqs {
		if !p.Required {
			continue
		}
		if _, err := c.LookPath(p.Name); err != nil {
			missing = append(missing, fmt.Sprintf("  - %s (%s)\n    Install: %s", p.Name, p.Description, p.InstallURL))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required CLI tools:\n%s", strings.Join(missing, "\n"))
	}
	return nil
}

func (c *Checker) version(ctx context.Context, name string) string {
	out, err := c.Executor.Output(ctx, "", name, "--version")
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(out), "\n")
	line = strings.TrimSpace(line)
	if len(line) > 100 {
		line = line[:100] + "..."
	}
	return line
}

// FormatCheckResults renders results for `cw doctor`.
func FormatCheckResults(results []CheckResult) string {
	var sb strings.Builder
	sb.WriteString("CLI Prerequisites:\n")
	for _, r := range results {
		status := "✓"
		if !r.Found {
			status = "○"
			if r.Prerequisite.Required {
				status = "✗"
			}
		}
		fmt.Fprintf(&sb, "  %s %s", status, r.Prerequisite.Name)
		switch {
		case r.Found && r.Version != "":
			fmt.Fprintf(&sb, " (%s)", r.Version)
		case !r.Found && r.Prerequisite.Required:
			sb.WriteString(" [REQUIRED]")
		case !r.Found:
			sb.WriteString(" [optional]")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
