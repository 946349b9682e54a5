// ABOUTME: Audio output package for playing audio
// ABOUTME: Render hosts for malgo, oto and PortAudio
// Package output provides render hosts: audio devices that call a Renderer
// once per hardware period and play whatever it writes.
//
// Backends:
//   - malgo (default): miniaudio callback, float32
//   - oto: pull-based io.Reader player, float32
//   - portaudio: callback stream, requires -tags portaudio
//
// Example:
//
//	out, _ := output.New(output.BackendMalgo)
//	err := out.Open(48000, 2, session)
//	defer out.Close()
package output
