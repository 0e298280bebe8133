package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func newTestModel() model {
	ctx, cancel := context.WithCancel(context.Background())
	return model{title: "migrate up", started: time.Now(), ctx: ctx, cancel: cancel}
}

func TestModelShowsDetailsWhenDone(t *testing.T) {
	m := newTestModel()
	next, cmd := m.Update(doneMsg{details: []string{"schema migration applied"}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	view := next.View()
	if !strings.Contains(view, "OK") || !strings.Contains(view, "- schema migration applied") {
		t.Fatalf("unexpected view: %q", view)
	}
}

func TestModelShowsFailure(t *testing.T) {
	m := newTestModel()
	next, _ := m.Update(doneMsg{err: errors.New("db ping: refused")})
	if view := next.View(); !strings.Contains(view, "FAILED") || !strings.Contains(view, "refused") {
		t.Fatalf("unexpected view: %q", view)
	}
}

func TestModelCtrlCCancelsAction(t *testing.T) {
	m := newTestModel()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if m.ctx.Err() == nil {
		t.Fatal("expected action context to be cancelled")
	}
	if got := next.(model); !errors.Is(got.err, ErrInterrupted) {
		t.Fatalf("expected interrupted error, got %v", got.err)
	}
}

func TestModelTicksUntilDone(t *testing.T) {
	m := newTestModel()
	next, cmd := m.Update(tickMsg(m.started.Add(time.Second)))
	if cmd == nil {
		t.Fatal("expected another tick while running")
	}
	if view := next.View(); !strings.Contains(view, "running 1s") {
		t.Fatalf("unexpected view: %q", view)
	}
}
