package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var ErrInterrupted = errors.New("interrupted")

type doneMsg struct {
	details []string
	err     error
}

type tickMsg time.Time

type model struct {
	title   string
	started time.Time
	elapsed time.Duration
	details []string
	err     error
	done    bool

	ctx    context.Context
	cancel context.CancelFunc
	action func(context.Context) ([]string, error)
}

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	run := func() tea.Msg {
		details, err := m.action(m.ctx)
		return doneMsg{details: details, err: err}
	}
	return tea.Batch(run, tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			m.err = ErrInterrupted
			m.done = true
			return m, tea.Quit
		}
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.elapsed = time.Time(msg).Sub(m.started).Round(100 * time.Millisecond)
		return m, tick()
	case doneMsg:
		m.details = msg.details
		m.err = msg.err
		m.done = true
		m.elapsed = time.Since(m.started).Round(time.Millisecond)
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	if !m.done {
		fmt.Fprintf(&b, "running %s\n", dimStyle.Render(m.elapsed.String()))
		return b.String()
	}
	if m.err != nil {
		fmt.Fprintf(&b, "%s: %v %s\n", failStyle.Render("FAILED"), m.err, dimStyle.Render(m.elapsed.String()))
	} else {
		fmt.Fprintf(&b, "%s %s\n", okStyle.Render("OK"), dimStyle.Render(m.elapsed.String()))
	}
	for _, d := range m.details {
		b.WriteString("- " + d + "\n")
	}
	return b.String()
}

// Run shows a progress view while action executes. A non-positive timeout
// defaults to two minutes; ctrl+c cancels the action's context.
func Run(title string, timeout time.Duration, action func(context.Context) ([]string, error)) ([]string, error) {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	m := model{title: title, started: time.Now(), ctx: ctx, cancel: cancel, action: action}
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}
	res := final.(model)
	return res.details, res.err
}
