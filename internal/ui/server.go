// ABOUTME: Server TUI for displaying connected clients and speech stats
// ABOUTME: Real-time server status display using bubbletea
package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/linguflex/voicelink/pkg/voicelink"
)

// ServerTUI manages the server TUI
type ServerTUI struct {
	program  *tea.Program
	updates  chan ServerStatus
	quitChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// ServerStatus holds server state for the TUI
type ServerStatus struct {
	Name    string
	Addr    string
	Clients []string
	Stats   voicelink.ServerStats
}

type serverModel struct {
	status    ServerStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type serverStatusMsg ServerStatus

func (m serverModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m serverModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case serverStatusMsg:
		m.status = ServerStatus(msg)
	}

	return m, nil
}

func (m serverModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	clientHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	st := m.status.Stats

	var b strings.Builder
	b.WriteString(titleStyle.Render("Voicelink Server"))
	b.WriteString("\n\n")

	field := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	field("Server: ", m.status.Name)
	field("Listen: ", m.status.Addr)
	field("Uptime: ", time.Since(m.startTime).Round(time.Second).String())

	speaking := "idle"
	if st.Speaking {
		speaking = "speaking"
	}
	field("Speech: ", fmt.Sprintf("%s (%d utterances, %d bytes)", speaking, st.Utterances, st.BytesStreamed))
	field("Capture: ", fmt.Sprintf("%d frames, %d samples, %d bad", st.FramesReceived, st.SamplesCaptured, st.BadFrames))
	b.WriteString("\n")

	b.WriteString(clientHeaderStyle.Render(fmt.Sprintf("Connected Clients (%d)", len(m.status.Clients))))
	b.WriteString("\n\n")
	if len(m.status.Clients) == 0 {
		b.WriteString(valueStyle.Render("  No clients connected"))
		b.WriteString("\n")
	}
	for _, id := range m.status.Clients {
		b.WriteString("  • " + id + "\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Press 'q' or Ctrl+C to quit"))
	return b.String()
}

// NewServerTUI creates a new server TUI
func NewServerTUI() *ServerTUI {
	return &ServerTUI{
		updates:  make(chan ServerStatus, 10),
		quitChan: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start runs the TUI until it quits
func (t *ServerTUI) Start(initial ServerStatus) error {
	m := serverModel{
		status:    initial,
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for {
			select {
			case status := <-t.updates:
				t.program.Send(serverStatusMsg(status))
			case <-t.done:
				return
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI without blocking
func (t *ServerTUI) Update(status ServerStatus) {
	select {
	case t.updates <- status:
	case <-t.done:
	default:
	}
}

// Stop stops the TUI
func (t *ServerTUI) Stop() {
	t.stopOnce.Do(func() {
		if t.program != nil {
			t.program.Quit()
		}
		close(t.done)
	})
}

// QuitChan returns the channel that signals when user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
