// ABOUTME: High-level voicelink package
// ABOUTME: Client sessions and the speech server built on the core pipeline
// Package voicelink connects a microphone and a speaker to a voice
// assistant server.
//
// A Session owns one websocket connection and, per speech stream, one
// playback engine. Captured microphone blocks go out as binary frames;
// when the server announces audio_stream_ready the session fetches the
// stream over HTTP and plays it through whichever render host calls
// Session.Render.
//
// Example client:
//
//	sess, err := voicelink.NewSession(voicelink.SessionConfig{ServerAddr: "localhost:8001"})
//	if err := sess.Connect(ctx); err != nil { ... }
//	out, _ := output.New(output.BackendMalgo)
//	out.Open(48000, 2, sess)
//
// Example server:
//
//	srv, err := voicelink.NewServer(voicelink.ServerConfig{Addr: ":8001"})
//	go srv.Start()
//	srv.Speak(voicelink.NewToneSource(440, 48000, time.Second))
package voicelink
