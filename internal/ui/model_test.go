// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, transcript events, keys and rendering
package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linguflex/voicelink/pkg/protocol"
	"github.com/linguflex/voicelink/pkg/voicelink"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil)

	if model.connected {
		t.Error("expected connected to be false initially")
	}
	if model.micMuted {
		t.Error("expected mic live initially")
	}
	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}
}

func TestStatusMsgConnection(t *testing.T) {
	model := NewModel(nil)

	connected := true
	model.applyStatus(StatusMsg{Connected: &connected, ServerAddr: "10.0.0.2:8001"})
	if !model.connected || model.serverAddr != "10.0.0.2:8001" {
		t.Errorf("unexpected state after connect: %v %q", model.connected, model.serverAddr)
	}

	disconnected := false
	model.applyStatus(StatusMsg{Connected: &disconnected})
	if model.connected {
		t.Error("expected connected to be false after disconnect")
	}
	if model.serverAddr != "10.0.0.2:8001" {
		t.Error("server address should be retained")
	}
}

func TestStatusMsgStats(t *testing.T) {
	model := NewModel(nil)

	stats := voicelink.SessionStats{Streams: 2, BufferedMs: 300, CapacityMs: 60000, Underrun: 12}
	model.applyStatus(StatusMsg{Stats: &stats, MicDropped: 3})

	if model.stats.Streams != 2 || model.stats.Underrun != 12 {
		t.Errorf("stats not applied: %+v", model.stats)
	}
	if model.micDropped != 3 {
		t.Errorf("expected micDropped 3, got %d", model.micDropped)
	}

	// a message without stats keeps the previous snapshot
	model.applyStatus(StatusMsg{})
	if model.stats.Streams != 2 {
		t.Error("stats lost on empty update")
	}
}

func TestApplyEvent(t *testing.T) {
	tests := []struct {
		name      string
		events    []protocol.Event
		user      string
		final     string
		assistant string
	}{
		{
			name:   "partial user text",
			events: []protocol.Event{{Type: protocol.EventRealtimeUser, Text: "what is"}},
			user:   "what is",
		},
		{
			name: "final replaces partial",
			events: []protocol.Event{
				{Type: protocol.EventRealtimeUser, Text: "what is"},
				{Type: protocol.EventFinalUserText, Text: "what is the time"},
			},
			final: "what is the time",
		},
		{
			name: "assistant after final",
			events: []protocol.Event{
				{Type: protocol.EventFinalUserText, Text: "hi"},
				{Type: protocol.EventRealtimeAssistant, Text: "hello there"},
			},
			final:     "hi",
			assistant: "hello there",
		},
		{
			name:   "stream ready leaves transcript alone",
			events: []protocol.Event{{Type: protocol.EventRealtimeUser, Text: "x"}, {Type: protocol.EventAudioStreamReady}},
			user:   "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := NewModel(nil)
			for _, ev := range tt.events {
				next, _ := model.Update(EventMsg(ev))
				model = next.(Model)
			}
			if model.userText != tt.user || model.finalText != tt.final || model.assistantText != tt.assistant {
				t.Errorf("got user=%q final=%q assistant=%q", model.userText, model.finalText, model.assistantText)
			}
		})
	}
}

func TestMicToggleSendsControl(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	next, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	model = next.(Model)

	if !model.micMuted {
		t.Error("expected mic muted after toggle")
	}
	select {
	case muted := <-controls.MicMuted:
		if !muted {
			t.Error("expected muted=true on control channel")
		}
	default:
		t.Error("expected mic control message")
	}
}

func TestQuitKey(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	select {
	case <-controls.Quit:
	default:
		t.Error("expected quit signal")
	}
}

func TestViewRendersState(t *testing.T) {
	model := NewModel(nil)
	if got := model.View(); got != "Loading..." {
		t.Errorf("expected loading view before size, got %q", got)
	}

	next, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model = next.(Model)

	connected := true
	stats := voicelink.SessionStats{Streaming: true, Started: true, BufferedMs: 250, CapacityMs: 1000}
	model.applyStatus(StatusMsg{Connected: &connected, ServerAddr: "host:8001", Stats: &stats})
	model.applyEvent(protocol.Event{Type: protocol.EventRealtimeAssistant, Text: "hello"})

	view := model.View()
	for _, want := range []string{"host:8001", "Speaking", "250ms", "hello"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value, max, width int
		filled            int
	}{
		{0, 100, 10, 0},
		{50, 100, 10, 5},
		{100, 100, 10, 10},
		{200, 100, 10, 10},
		{5, 0, 10, 0},
	}

	for _, tt := range tests {
		bar := renderBar(tt.value, tt.max, tt.width)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("renderBar(%d, %d, %d): expected %d filled, got %d", tt.value, tt.max, tt.width, tt.filled, got)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != tt.width {
			t.Errorf("renderBar(%d, %d, %d): expected width %d, got %d", tt.value, tt.max, tt.width, tt.width, got)
		}
	}
}

func TestTruncateKeepsTail(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged, got %q", got)
	}
	got := truncate("the quick brown fox", 10)
	if len(got) != 10 || !strings.HasSuffix(got, "fox") || !strings.HasPrefix(got, "...") {
		t.Errorf("unexpected truncation %q", got)
	}
}

func TestServerModelStatus(t *testing.T) {
	m := serverModel{quitChan: make(chan struct{}, 1)}
	next, _ := m.Update(serverStatusMsg(ServerStatus{
		Name:    "kitchen",
		Clients: []string{"abc"},
		Stats:   voicelink.ServerStats{Speaking: true, Utterances: 3},
	}))
	m = next.(serverModel)

	view := m.View()
	for _, want := range []string{"kitchen", "Connected Clients (1)", "abc", "3 utterances"} {
		if !strings.Contains(view, want) {
			t.Errorf("server view missing %q", want)
		}
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !next.(serverModel).quitting {
		t.Error("expected quitting after ctrl+c")
	}
	select {
	case <-m.quitChan:
	default:
		t.Error("expected quit signal")
	}
}
