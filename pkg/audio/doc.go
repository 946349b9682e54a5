// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and the wire sample conversions
// Package audio provides the sample-level building blocks shared by the
// playback and capture paths.
//
// Every conversion is pinned to little-endian byte order:
//   - float32 ↔ bytes for the playback stream
//   - float32 → int16 quantization for captured microphone blocks
//
// Example:
//
//	samples := audio.DecodeFloat32LE(chunk) // trailing partial sample dropped
//	pcm := audio.QuantizeInt16(samples[0])
package audio
