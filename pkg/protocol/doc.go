// ABOUTME: Voicelink wire protocol package
// ABOUTME: Defines server events and the WebSocket client
// Package protocol implements the voicelink wire protocol.
//
// The client sends binary websocket messages, one capture frame each (see
// package capture). The server answers with JSON text events such as
// realtime_user or audio_stream_ready. Speech audio itself is fetched over
// plain HTTP from PathSpeech.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{ServerAddr: "localhost:8001"})
//	err := client.Connect(ctx)
//	for ev := range client.Events() { ... }
package protocol
