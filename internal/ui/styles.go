package ui

import "charm.land/lipgloss/v2"

// Color palette - Purple + Cyan/Teal theme
var (
	ColorPrimary     = lipgloss.Color("#7C3AED") // Purple
	ColorSecondary   = lipgloss.Color("#06B6D4") // Cyan
	ColorMuted       = lipgloss.Color("#6B7280") // Gray
	ColorBorder      = lipgloss.Color("#374151") // Dark gray
	ColorText        = lipgloss.Color("#F9FAFB") // Light text
	ColorTextMuted   = lipgloss.Color("#B0B8C4") // Muted text
	ColorTextInverse = lipgloss.Color("#1F2937") // Dark text for light backgrounds
	ColorWarning     = lipgloss.Color("#F59E0B") // Amber for warnings
	ColorError       = lipgloss.Color("#EF4444") // Red for errors
	ColorSuccess     = lipgloss.Color("#10B981") // Green for success
)

// Message styles for plain terminal output
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	BranchStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)
)

// Picker styles
var (
	PickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorPrimary).
				MarginBottom(1)

	PickerInputStyle = lipgloss.NewStyle().
				BorderLeft(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(ColorPrimary).
				PaddingLeft(1)

	PickerItemStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	PickerSelectedStyle = lipgloss.NewStyle().
				Foreground(ColorTextInverse).
				Background(ColorPrimary).
				Bold(true)

	PickerGroupStyle = lipgloss.NewStyle().
				Foreground(ColorSecondary).
				Bold(true)

	PickerCreateStyle = lipgloss.NewStyle().
				Foreground(ColorSuccess).
				Italic(true)

	PickerHelpStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true).
			MarginTop(1)
)

// Porcelain status colors used when listing uncommitted changes.
var (
	StatusModifiedStyle  = lipgloss.NewStyle().Foreground(ColorWarning)
	StatusAddedStyle     = lipgloss.NewStyle().Foreground(ColorSuccess)
	StatusDeletedStyle   = lipgloss.NewStyle().Foreground(ColorError)
	StatusUntrackedStyle = lipgloss.NewStyle().Foreground(ColorSecondary)
)

// KindStyle colors a session kind label.
func KindStyle(kind string) lipgloss.Style {
	switch kind {
	case "primary":
		return lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	case "persistent":
		return lipgloss.NewStyle().Foreground(ColorSecondary)
	default:
		return lipgloss.NewStyle().Foreground(ColorWarning)
	}
}

// StatusStyle colors a porcelain status code.
func StatusStyle(code string) lipgloss.Style {
	switch code {
	case "A":
		return StatusAddedStyle
	case "D":
		return StatusDeletedStyle
	case "??":
		return StatusUntrackedStyle
	case "M", "MM", "R", "RM":
		return StatusModifiedStyle
	default:
		return lipgloss.NewStyle().Foreground(ColorText)
	}
}
