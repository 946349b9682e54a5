// ABOUTME: Bubbletea model for the voicelink client TUI
// ABOUTME: Shows connection, playback buffer, capture and live transcript state
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/linguflex/voicelink/internal/version"
	"github.com/linguflex/voicelink/pkg/protocol"
	"github.com/linguflex/voicelink/pkg/voicelink"
)

const panelWidth = 54

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
	borderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(panelWidth)
)

// Model represents the TUI state
type Model struct {
	// Connection
	connected  bool
	serverAddr string

	// Session counters
	stats      voicelink.SessionStats
	micDropped uint64
	micMuted   bool

	// Transcript
	userText      string
	finalText     string
	assistantText string

	showDebug bool
	controls  *Controls

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case EventMsg:
		m.applyEvent(protocol.Event(msg))
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(version.String()))
	b.WriteString("\n")
	b.WriteString(m.renderConnection())
	b.WriteString(m.renderPlayback())
	b.WriteString(m.renderCapture())
	b.WriteString(m.renderTranscript())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}

	return borderStyle.Render(b.String()) + "\n" + helpStyle.Render("m:Mic  c:Clear  d:Debug  q:Quit") + "\n"
}

func (m Model) renderConnection() string {
	status := warnStyle.Render("Disconnected")
	if m.connected {
		status = valueStyle.Render("Connected to " + m.serverAddr)
	}
	return labelStyle.Render("Status: ") + status + "\n"
}

// renderPlayback renders the speech buffer and start gate
func (m Model) renderPlayback() string {
	state := "Idle"
	switch {
	case m.stats.Streaming && m.stats.Started:
		state = "Speaking"
	case m.stats.Streaming:
		state = "Buffering"
	}

	s := labelStyle.Render("Speech: ") + valueStyle.Render(state) + "\n"
	s += labelStyle.Render("Buffer: ") +
		valueStyle.Render(fmt.Sprintf("[%s] %dms", renderBar(m.stats.BufferedMs, m.stats.CapacityMs, 20), m.stats.BufferedMs)) + "\n"
	s += labelStyle.Render("Stats:  ") +
		valueStyle.Render(fmt.Sprintf("streams %d  chunks %d  underrun %d  dropped %d",
			m.stats.Streams, m.stats.ChunksReceived, m.stats.Underrun, m.stats.Dropped)) + "\n"
	return s
}

// renderCapture renders microphone state
func (m Model) renderCapture() string {
	mic := "Live"
	if m.micMuted {
		mic = "Muted"
	}
	return labelStyle.Render("Mic:    ") +
		valueStyle.Render(fmt.Sprintf("%s  sent %d  dropped %d", mic, m.stats.FramesSent, m.micDropped)) + "\n"
}

// renderTranscript renders the latest user and assistant text
func (m Model) renderTranscript() string {
	user := m.userText
	if user == "" {
		user = m.finalText
	}

	s := "\n"
	s += userStyle.Render("You: ") + valueStyle.Render(truncate(user, panelWidth-6)) + "\n"
	s += botStyle.Render("AI:  ") + valueStyle.Render(truncate(m.assistantText, panelWidth-6)) + "\n"
	return s
}

func (m Model) renderDebug() string {
	return fmt.Sprintf("\nDEBUG: bytes %d  truncated %d  capture errors %d  events %d (last %q)\n",
		m.stats.BytesReceived, m.stats.TruncatedBytes, m.stats.CaptureErrors, m.stats.Events, m.stats.LastEvent)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case "m":
		m.micMuted = !m.micMuted
		if m.controls != nil {
			select {
			case m.controls.MicMuted <- m.micMuted:
			default:
			}
		}
	case "c":
		m.userText = ""
		m.finalText = ""
		m.assistantText = ""
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerAddr != "" {
		m.serverAddr = msg.ServerAddr
	}
	if msg.Stats != nil {
		m.stats = *msg.Stats
	}
	if msg.MicDropped != 0 {
		m.micDropped = msg.MicDropped
	}
}

// applyEvent folds a server event into the transcript
func (m *Model) applyEvent(ev protocol.Event) {
	switch ev.Type {
	case protocol.EventRealtimeUser:
		m.userText = ev.Text
	case protocol.EventFinalUserText:
		m.finalText = ev.Text
		m.userText = ""
		m.assistantText = ""
	case protocol.EventRealtimeAssistant:
		m.assistantText = ev.Text
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Connected  *bool
	ServerAddr string
	Stats      *voicelink.SessionStats
	MicDropped uint64
}

// EventMsg forwards a server event to the TUI
type EventMsg protocol.Event

func renderBar(value, max, width int) string {
	if max <= 0 {
		return strings.Repeat("░", width)
	}
	filled := (value * width) / max
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	// keep the tail, the newest words matter most
	return "..." + s[len(s)-length+3:]
}
