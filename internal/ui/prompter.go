package ui

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	huh "charm.land/huh/v2"
	"golang.org/x/term"

	"github.com/zhubert/claudway/internal/errors"
)

const formWidth = 60

// Prompter is every interaction the session lifecycle needs from a user.
type Prompter interface {
	// Interactive reports whether a terminal is attached.
	Interactive() bool
	// Pick lets the user choose one of items, or ask for a new one.
	Pick(ctx context.Context, title string, items []Item, allowCreate bool) (Selection, error)
	// Confirm asks a yes/no question. def is the answer on a bare Enter.
	Confirm(ctx context.Context, title, description string, def bool) (bool, error)
	// Input asks for a line of text.
	Input(ctx context.Context, title, placeholder string, validate func(string) error) (string, error)
}

// Terminal prompts on a real terminal, using huh forms and the Bubble Tea
// picker when both streams are TTYs and plain line prompts otherwise.
type Terminal struct {
	in  *os.File
	out *os.File

	mu     sync.Mutex
	reader *bufio.Reader
}

// NewTerminal creates a Terminal reading from in and drawing on out.
func NewTerminal(in, out *os.File) *Terminal {
	return &Terminal{in: in, out: out}
}

func (t *Terminal) Interactive() bool {
	return term.IsTerminal(int(t.in.Fd())) && term.IsTerminal(int(t.out.Fd()))
}

func (t *Terminal) Pick(ctx context.Context, title string, items []Item, allowCreate bool) (Selection, error) {
	if !t.Interactive() {
		return Selection{}, errors.E(errors.Op("ui.Pick"), errors.KindInvalid, "no terminal attached; pass a branch name")
	}
	return RunPicker(ctx, t.in, t.out, title, items, allowCreate)
}

func (t *Terminal) Confirm(ctx context.Context, title, description string, def bool) (bool, error) {
	if !t.Interactive() {
		return t.confirmLine(title, def)
	}

	answer := def
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&answer),
		),
	).WithTheme(FormTheme()).
		WithShowHelp(false).
		WithWidth(formWidth).
		WithInput(t.in).
		WithOutput(t.out)

	if err := form.RunWithContext(ctx); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return false, errors.SelectionCancelled(errors.Op("ui.Confirm"))
		}
		return false, err
	}
	return answer, nil
}

func (t *Terminal) Input(ctx context.Context, title, placeholder string, validate func(string) error) (string, error) {
	if validate == nil {
		validate = func(string) error { return nil }
	}
	if !t.Interactive() {
		return t.inputLine(title, validate)
	}

	var value string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Placeholder(placeholder).
				Validate(func(s string) error { return validate(strings.TrimSpace(s)) }).
				Value(&value),
		),
	).WithTheme(FormTheme()).
		WithShowHelp(false).
		WithWidth(formWidth).
		WithInput(t.in).
		WithOutput(t.out)

	if err := form.RunWithContext(ctx); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return "", errors.SelectionCancelled(errors.Op("ui.Input"))
		}
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func (t *Terminal) readLine() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reader == nil {
		t.reader = bufio.NewReader(t.in)
	}
	line, err := t.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (t *Terminal) confirmLine(title string, def bool) (bool, error) {
	return ConfirmLine(t.out, t.readLine, title, def)
}

func (t *Terminal) inputLine(title string, validate func(string) error) (string, error) {
	fmt.Fprintf(t.out, "%s: ", title)
	value, err := t.readLine()
	if err != nil {
		return "", err
	}
	if err := validate(value); err != nil {
		return "", err
	}
	return value, nil
}

// ConfirmLine asks a yes/no question on a plain line-oriented stream.
// An unreadable answer is an error, never a yes.
func ConfirmLine(out io.Writer, readLine func() (string, error), title string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	fmt.Fprintf(out, "%s %s: ", title, hint)
	response, err := readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(response) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Scripted is a Prompter that replays canned answers, for tests and
// non-interactive automation. Once a script runs out the call fails.
type Scripted struct {
	Picks    []Selection
	Confirms []bool
	Inputs   []string
	TTY      bool

	mu sync.Mutex
	// PickCalls records the items offered on every Pick call.
	PickCalls [][]Item
	// ConfirmCalls records every confirmation title.
	ConfirmCalls []string
}

var errScriptExhausted = stderrors.New("scripted prompter: no answer left")

func (s *Scripted) Interactive() bool { return s.TTY }

func (s *Scripted) Pick(_ context.Context, _ string, items []Item, allowCreate bool) (Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := NewPickerModel("", items, allowCreate)
	offered := append([]Item(nil), m.items...)
	if allowCreate {
		offered = append(offered, Item{Label: CreateNewLabel})
	}
	s.PickCalls = append(s.PickCalls, offered)
	if len(s.Picks) == 0 {
		return Selection{}, errors.SelectionCancelled(errors.Op("ui.Pick"))
	}
	sel := s.Picks[0]
	s.Picks = s.Picks[1:]
	return sel, nil
}

func (s *Scripted) Confirm(_ context.Context, title, _ string, _ bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConfirmCalls = append(s.ConfirmCalls, title)
	if len(s.Confirms) == 0 {
		return false, errScriptExhausted
	}
	answer := s.Confirms[0]
	s.Confirms = s.Confirms[1:]
	return answer, nil
}

func (s *Scripted) Input(_ context.Context, _, _ string, validate func(string) error) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Inputs) == 0 {
		return "", errScriptExhausted
	}
	value := s.Inputs[0]
	s.Inputs = s.Inputs[1:]
	if validate != nil {
		if err := validate(value); err != nil {
			return "", err
		}
	}
	return value, nil
}
