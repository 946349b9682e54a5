// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the client UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Controls carries user actions from the TUI back to the client
type Controls struct {
	MicMuted chan bool
	Quit     chan struct{}
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		MicMuted: make(chan bool, 10),
		Quit:     make(chan struct{}, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		controls: controls,
	}
}

// Run creates the TUI program; the caller runs it
func Run(controls *Controls) *tea.Program {
	return tea.NewProgram(NewModel(controls), tea.WithAltScreen())
}
