package ui

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/dustin/go-humanize"

	"github.com/zhubert/claudway/internal/guard"
	"github.com/zhubert/claudway/internal/session"
)

// SessionRow is one line of `cw status`.
type SessionRow struct {
	Session session.Session
	// Active is set when a live process owns the session.
	Active bool
}

// RenderSessions draws the status table.
func RenderSessions(repo string, rows []SessionRow) string {
	if len(rows) == 0 {
		return MutedStyle.Render("No sessions for " + repo)
	}

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		s := r.Session
		state := ""
		if r.Active {
			state = fmt.Sprintf("active (pid %d)", s.OwnerPID)
		}
		used := ""
		if !s.Recency().IsZero() {
			used = humanize.Time(s.Recency())
		}
		data = append(data, []string{s.Branch, string(s.Kind), state, used, s.Path})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers("BRANCH", "KIND", "STATE", "LAST USED", "PATH").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Foreground(ColorSecondary).Bold(true)
			}
			switch col {
			case 0:
				return base.Foreground(ColorText).Bold(true)
			case 1:
				return base.Inherit(KindStyle(data[row][1]))
			case 2:
				return base.Foreground(ColorSuccess)
			default:
				return base.Foreground(ColorTextMuted)
			}
		})

	return TitleStyle.Render(repo) + "\n" + t.String()
}

// ConfigRow is one setting in the `cw status` header.
type ConfigRow struct {
	Key    string
	Value  string
	Source string
}

// RenderConfig draws the settings table shown above the session list.
func RenderConfig(rows []ConfigRow) string {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{r.Key, r.Value, r.Source})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers("SETTING", "VALUE", "SOURCE").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return base.Foreground(ColorSecondary).Bold(true)
			case col == 1:
				return base.Foreground(ColorText)
			default:
				return base.Foreground(ColorTextMuted)
			}
		})

	return TitleStyle.Render("Configuration") + "\n" + t.String()
}

// RenderChanges lists the first limit entries of a change summary with
// colored status codes, followed by a count of the rest.
func RenderChanges(summary guard.ChangeSummary, limit int) string {
	var b strings.Builder
	for i, e := range summary.Entries {
		if i == limit {
			b.WriteString(MutedStyle.Render(fmt.Sprintf("  ... and %d more", len(summary.Entries)-limit)))
			b.WriteString("\n")
			break
		}
		fmt.Fprintf(&b, "  %s %s\n", StatusStyle(e.Status).Render(fmt.Sprintf("%-2s", e.Status)), e.Path)
	}
	return b.String()
}
