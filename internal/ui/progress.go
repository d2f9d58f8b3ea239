// Package ui renders a live view of running scenario replays.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Status is the lifecycle of one replay row.
type Status uint8

const (
	StatusQueued Status = iota
	StatusRunning
	StatusDone
	StatusError
)

// Event updates one row. Frame and Total are engine frames; Tracked is the
// last tracked frame number.
type Event struct {
	Scenario string
	Status   Status
	Frame    int
	Total    int
	Tracked  int
	Events   int
	Detail   string
}

type replayModel struct {
	title   string
	events  <-chan Event
	spinner spinner.Model
	prog    progress.Model
	items   []replayItem
	index   map[string]int
	width   int
	done    bool
}

type replayItem struct {
	name    string
	status  Status
	frame   int
	total   int
	tracked int
	events  int
	detail  string
}

type eventMsg Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that shows replay progress
// for the named scenarios. The model quits when events is closed.
func NewProgressModel(title string, scenarios []string, events <-chan Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]replayItem, 0, len(scenarios))
	index := make(map[string]int, len(scenarios))
	for i, name := range scenarios {
		items = append(items, replayItem{name: name})
		index[name] = i
	}
	return &replayModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *replayModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *replayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *replayModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	const statusWidth = 10
	const countWidth = 22
	nameWidth := m.width - statusWidth - countWidth - 6
	if nameWidth < 20 {
		nameWidth = 20
	}

	for _, item := range m.items {
		label := statusLabel(item.status)
		statusStyled := styleStatus(item.status).Render(fmt.Sprintf("%10s", label))
		counts := fmt.Sprintf("%4d/%-4d #%-4d %3dev", item.frame, item.total, item.tracked, item.events)
		line := fmt.Sprintf("  %s %s  %s", statusStyled, padRight(truncate(item.name, nameWidth), nameWidth), counts)
		b.WriteString(line)
		b.WriteString("\n")
		if item.detail != "" {
			b.WriteString("    ")
			b.WriteString(truncate(item.detail, m.width-4))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *replayModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *replayModel) applyEvent(ev Event) tea.Cmd {
	idx, ok := m.index[ev.Scenario]
	if !ok {
		return nil
	}
	item := &m.items[idx]
	item.status = ev.Status
	if ev.Total > 0 {
		item.total = ev.Total
	}
	if ev.Frame > 0 {
		item.frame = ev.Frame
	}
	if ev.Tracked > 0 {
		item.tracked = ev.Tracked
	}
	item.events = ev.Events
	if ev.Detail != "" {
		item.detail = ev.Detail
	}
	return m.prog.SetPercent(m.percent())
}

func (m *replayModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	total := 0.0
	for _, item := range m.items {
		switch {
		case item.status == StatusDone || item.status == StatusError:
			total += 1.0
		case item.total > 0:
			total += float64(item.frame) / float64(item.total)
		}
	}
	return total / float64(len(m.items))
}

func statusLabel(s Status) string {
	switch s {
	case StatusRunning:
		return "replaying"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return "queued"
	}
}

func styleStatus(s Status) lipgloss.Style {
	switch s {
	case StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case StatusRunning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	tail := "..."
	if width <= len(tail) {
		tail = ""
	}
	return runewidth.Truncate(value, width, tail)
}

func padRight(value string, width int) string {
	return runewidth.FillRight(value, width)
}
