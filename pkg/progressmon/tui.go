// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package progressmon

import (
	tea "github.com/charmbracelet/bubbletea"
)

// lineMsg carries a freshly-rendered status line into the bubbletea
// update loop.
type lineMsg string

// closeMsg requests the program quit.
type closeMsg struct{}

// tuiModel is the minimal bubbletea model backing TUISink: one styled
// line, refreshed every tick.
type tuiModel struct {
	line string
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case lineMsg:
		m.line = string(msg)
		return m, nil
	case closeMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	return HeaderStyle.Render(m.line) + "\n"
}

// TUISink renders the progress line through a bubbletea program,
// allowing the status line to coexist with styled headers (lipgloss)
// instead of a raw carriage-return overwrite.
type TUISink struct {
	program *tea.Program
	done    chan struct{}
}

// NewTUISink starts a bubbletea program rendering the progress line.
func NewTUISink() *TUISink {
	p := tea.NewProgram(tuiModel{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Run()
	}()
	return &TUISink{program: p, done: done}
}

// Render implements Sink.
func (s *TUISink) Render(line string) {
	s.program.Send(lineMsg(line))
}

// Close implements Sink, requesting the bubbletea program quit and
// waiting for its goroutine to exit.
func (s *TUISink) Close() {
	s.program.Send(closeMsg{})
	<-s.done
}
