package ui

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"github.com/zhubert/claudway/internal/errors"
	"github.com/zhubert/claudway/internal/keys"
)

// CreateNewLabel is the synthetic trailing entry offered when the picker
// allows creating a new branch.
const CreateNewLabel = "+ Create new"

const (
	pickerMaxVisible = 12
	pickerInputWidth = 50
	pickerCharLimit  = 100
	pickerMinWidth   = 40
)

// Item is one pickable candidate.
type Item struct {
	Label   string
	Value   string
	Group   string
	Recency time.Time
	// Note is extra text shown after the label, such as a session kind.
	Note string
}

// Selection is the result of a pick: either an existing item or a request to
// create a new one named after the typed filter text.
type Selection struct {
	Item      Item
	CreateNew bool
	Name      string
}

// Order sorts items into display order: groups in order of first
// appearance, most recent first within a group, ties by label.
func Order(items []Item) []Item {
	groupRank := make(map[string]int)
	for _, it := range items {
		if _, ok := groupRank[it.Group]; !ok {
			groupRank[it.Group] = len(groupRank)
		}
	}
	out := make([]Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if groupRank[a.Group] != groupRank[b.Group] {
			return groupRank[a.Group] < groupRank[b.Group]
		}
		if !a.Recency.Equal(b.Recency) {
			return a.Recency.After(b.Recency)
		}
		return a.Label < b.Label
	})
	return out
}

// Filter keeps the items whose label fuzzy-matches query, preserving the
// canonical order of items rather than match score.
func Filter(items []Item, query string) []Item {
	query = strings.TrimSpace(query)
	if query == "" {
		return items
	}
	labels := make([]string, len(items))
	for i, it := range items {
		labels[i] = it.Label
	}
	matched := make(map[int]bool)
	for _, m := range fuzzy.Find(query, labels) {
		matched[m.Index] = true
	}
	var out []Item
	for i, it := range items {
		if matched[i] {
			out = append(out, it)
		}
	}
	return out
}

// PickerModel is the Bubble Tea model behind Pick.
type PickerModel struct {
	Title         string
	Input         textinput.Model
	AllowCreate   bool
	SelectedIndex int
	ScrollOffset  int

	items      []Item
	filtered   []Item
	maxVisible int
	width      int

	chosen    *Selection
	cancelled bool
}

// NewPickerModel creates a picker over items, which are put into display
// order first.
func NewPickerModel(title string, items []Item, allowCreate bool) *PickerModel {
	input := textinput.New()
	input.Placeholder = "Type to filter..."
	input.CharLimit = pickerCharLimit
	input.SetWidth(pickerInputWidth)
	input.Focus()

	ordered := Order(items)
	return &PickerModel{
		Title:       title,
		Input:       input,
		AllowCreate: allowCreate,
		items:       ordered,
		filtered:    ordered,
		maxVisible:  pickerMaxVisible,
	}
}

// rowCount is the number of selectable rows, the create entry included.
func (m *PickerModel) rowCount() int {
	n := len(m.filtered)
	if m.AllowCreate {
		n++
	}
	return n
}

// Rows returns the labels currently offered, in order.
func (m *PickerModel) Rows() []string {
	rows := make([]string, 0, m.rowCount())
	for _, it := range m.filtered {
		rows = append(rows, it.Label)
	}
	if m.AllowCreate {
		rows = append(rows, CreateNewLabel)
	}
	return rows
}

func (m *PickerModel) Init() tea.Cmd {
	return nil
}

func (m *PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyPressMsg:
		switch msg.String() {
		case keys.Escape, keys.CtrlC:
			m.cancelled = true
			return m, tea.Quit
		case keys.Up, keys.CtrlP:
			m.move(-1)
			return m, nil
		case keys.Down, keys.CtrlN, keys.Tab:
			m.move(1)
			return m, nil
		case keys.PgUp:
			m.move(-m.maxVisible)
			return m, nil
		case keys.PgDown:
			m.move(m.maxVisible)
			return m, nil
		case keys.Enter:
			if m.choose() {
				return m, tea.Quit
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	before := m.Input.Value()
	m.Input, cmd = m.Input.Update(msg)
	if m.Input.Value() != before {
		m.refilter()
	}
	return m, cmd
}

// SetQuery replaces the filter text.
func (m *PickerModel) SetQuery(q string) {
	m.Input.SetValue(q)
	m.refilter()
}

func (m *PickerModel) refilter() {
	m.filtered = Filter(m.items, m.Input.Value())
	m.SelectedIndex = 0
	m.ScrollOffset = 0
}

func (m *PickerModel) move(delta int) {
	n := m.rowCount()
	if n == 0 {
		return
	}
	m.SelectedIndex = max(0, min(n-1, m.SelectedIndex+delta))
	if m.SelectedIndex < m.ScrollOffset {
		m.ScrollOffset = m.SelectedIndex
	}
	if m.SelectedIndex >= m.ScrollOffset+m.maxVisible {
		m.ScrollOffset = m.SelectedIndex - m.maxVisible + 1
	}
}

// choose records the highlighted row. It reports false when the list is empty.
func (m *PickerModel) choose() bool {
	if m.SelectedIndex < len(m.filtered) {
		m.chosen = &Selection{Item: m.filtered[m.SelectedIndex]}
		return true
	}
	if m.AllowCreate && m.SelectedIndex == len(m.filtered) {
		m.chosen = &Selection{CreateNew: true, Name: strings.TrimSpace(m.Input.Value())}
		return true
	}
	return false
}

// Result returns the selection, or SelectionCancelled when the user aborted.
func (m *PickerModel) Result() (Selection, error) {
	if m.cancelled || m.chosen == nil {
		return Selection{}, errors.SelectionCancelled(errors.Op("ui.Pick"))
	}
	return *m.chosen, nil
}

func (m *PickerModel) itemWidth() int {
	w := m.width - 4
	if w < pickerMinWidth {
		w = pickerMinWidth
	}
	return w
}

func (m *PickerModel) labelColumn() int {
	col := 0
	for _, it := range m.filtered {
		col = max(col, runewidth.StringWidth(it.Label))
	}
	return min(col, m.itemWidth()/2)
}

func (m *PickerModel) renderItem(it Item, selected bool, col int) string {
	label := ansi.Truncate(it.Label, col, "…")
	line := label + strings.Repeat(" ", max(0, col-runewidth.StringWidth(label)))
	var extra []string
	if it.Note != "" {
		extra = append(extra, it.Note)
	}
	if !it.Recency.IsZero() {
		extra = append(extra, humanize.Time(it.Recency))
	}
	if len(extra) > 0 {
		line += "  " + strings.Join(extra, " · ")
	}
	line = ansi.Truncate(line, m.itemWidth()-2, "…")

	if selected {
		return PickerSelectedStyle.Render("> " + line)
	}
	return PickerItemStyle.Render("  " + line)
}

func (m *PickerModel) View() tea.View {
	var v tea.View
	v.SetContent(m.Render())
	return v
}

// Render draws the picker as a string.
func (m *PickerModel) Render() string {
	title := PickerTitleStyle.Render(m.Title)
	input := PickerInputStyle.Render(m.Input.View())

	var b strings.Builder
	n := m.rowCount()
	if n == 0 {
		b.WriteString(MutedStyle.Italic(true).Render("No matches"))
	}
	end := min(n, m.ScrollOffset+m.maxVisible)
	if m.ScrollOffset > 0 {
		b.WriteString(MutedStyle.Render("  ↑ more above") + "\n")
	}
	col := m.labelColumn()
	lastGroup := ""
	if m.ScrollOffset > 0 && m.ScrollOffset <= len(m.filtered) {
		lastGroup = m.filtered[m.ScrollOffset-1].Group
	}
	for i := m.ScrollOffset; i < end; i++ {
		selected := i == m.SelectedIndex
		if i == len(m.filtered) {
			line := "  " + CreateNewLabel
			if name := strings.TrimSpace(m.Input.Value()); name != "" {
				line += fmt.Sprintf(" %q", name)
			}
			if selected {
				b.WriteString(PickerSelectedStyle.Render("> "+line[2:]) + "\n")
			} else {
				b.WriteString(PickerCreateStyle.Render(line) + "\n")
			}
			continue
		}
		it := m.filtered[i]
		if it.Group != "" && it.Group != lastGroup {
			b.WriteString(PickerGroupStyle.Render(it.Group) + "\n")
			lastGroup = it.Group
		}
		b.WriteString(m.renderItem(it, selected, col) + "\n")
	}
	if end < n {
		b.WriteString(MutedStyle.Render("  ↓ more below") + "\n")
	}

	help := PickerHelpStyle.Render("Type to filter  up/down: navigate  Enter: select  Esc: cancel")
	return lipgloss.JoinVertical(lipgloss.Left, title, input, "", strings.TrimRight(b.String(), "\n"), help)
}

// RunPicker runs the picker program on the given terminal streams.
func RunPicker(ctx context.Context, in io.Reader, out io.Writer, title string, items []Item, allowCreate bool) (Selection, error) {
	m := NewPickerModel(title, items, allowCreate)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return Selection{}, errors.SelectionCancelled(errors.Op("ui.Pick"))
		}
		return Selection{}, fmt.Errorf("running picker: %w", err)
	}
	return m.Result()
}
