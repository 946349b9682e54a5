// ABOUTME: Voicelink wire protocol message definitions
// ABOUTME: Server text events and the endpoint paths shared by client and server
package protocol

import (
	"encoding/json"
	"fmt"
)

// Endpoint paths served by a voicelink server
const (
	PathWebSocket  = "/ws"
	PathSpeech     = "/tts"
	PathDisconnect = "/disconnect"
)

// Event types sent by the server as websocket text messages
const (
	// EventRealtimeUser carries a partial transcript of what the user is saying
	EventRealtimeUser = "realtime_user"
	// EventRealtimeAssistant carries a partial assistant response
	EventRealtimeAssistant = "realtime_assistant"
	// EventFinalUserText carries the final transcript of a user utterance
	EventFinalUserText = "final_usertext"
	// EventAudioStreamReady tells the client a new speech stream is waiting at PathSpeech
	EventAudioStreamReady = "audio_stream_ready"
)

// Event is one server→client text message
type Event struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ParseEvent decodes a text message into an Event
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("invalid event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("invalid event: missing type")
	}
	return ev, nil
}

// Known reports whether the event type is one the protocol defines
func (e Event) Known() bool {
	switch e.Type {
	case EventRealtimeUser, EventRealtimeAssistant, EventFinalUserText, EventAudioStreamReady:
		return true
	}
	return false
}
