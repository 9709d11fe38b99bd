// Package ui holds cw's terminal interaction: the fuzzy branch picker, the
// yes/no and text prompts, and the tables printed by `cw status`.
//
// # Prompter
//
// The session lifecycle never talks to the terminal directly. It asks a
// Prompter, which has two implementations:
//
//   - Terminal: a Bubble Tea picker and huh forms when stdin and stdout are
//     both TTYs, plain line prompts otherwise.
//   - Scripted: canned answers for tests.
//
// Cancelling the picker or a form with Esc or Ctrl+C returns an error of kind
// errors.KindSelectionCancelled. A line prompt that cannot be read returns
// the read error, never a default answer.
//
// # Picker
//
// Items are grouped (local branches, remote branches, session kinds) and
// sorted by recency within a group. Typing filters with sahilm/fuzzy across
// all groups. When creation is allowed a "+ Create new" entry is offered,
// prefilled with the current query.
//
// # Styles
//
// All styles are defined in styles.go using Lipgloss. FormTheme in theme.go
// applies the same palette to huh forms.
package ui
