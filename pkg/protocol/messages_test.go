// ABOUTME: Tests for voicelink protocol events
// ABOUTME: Verifies event parsing and known types
package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType string
		wantText string
		wantErr  bool
	}{
		{"partial transcript", `{"type":"realtime_user","text":"hello wor"}`, EventRealtimeUser, "hello wor", false},
		{"stream ready", `{"type":"audio_stream_ready"}`, EventAudioStreamReady, "", false},
		{"extra fields", `{"type":"final_usertext","text":"hi","confidence":0.9}`, EventFinalUserText, "hi", false},
		{"missing type", `{"text":"orphan"}`, "", "", true},
		{"not json", `audio_stream_ready`, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", ev)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEvent: %v", err)
			}
			if ev.Type != tt.wantType || ev.Text != tt.wantText {
				t.Errorf("expected %s/%q, got %s/%q", tt.wantType, tt.wantText, ev.Type, ev.Text)
			}
		})
	}
}

func TestEventKnown(t *testing.T) {
	for _, typ := range []string{EventRealtimeUser, EventRealtimeAssistant, EventFinalUserText, EventAudioStreamReady} {
		if !(Event{Type: typ}).Known() {
			t.Errorf("expected %s to be known", typ)
		}
	}
	if (Event{Type: "stream/start"}).Known() {
		t.Error("unexpected known type")
	}
}

func TestEventMarshalOmitsEmptyText(t *testing.T) {
	data, err := json.Marshal(Event{Type: EventAudioStreamReady})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"type":"audio_stream_ready"}` {
		t.Errorf("unexpected encoding %s", data)
	}
}
