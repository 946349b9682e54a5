// ABOUTME: Capture framing package
// ABOUTME: Packs microphone blocks into self-describing binary messages
// Package capture serializes fixed-size microphone blocks for transport.
//
// Wire layout, bit-exact:
//
//	[4 bytes: u32 little-endian length L]
//	[L bytes: UTF-8 JSON {"sample_rate":<int>}]
//	[N×2 bytes: little-endian int16 PCM]
//
// Samples are quantized with clamp(round(s*32768), -32768, 32767). NaN
// becomes 0.
//
// Example:
//
//	frame := capture.Encode(block, 48000)
//	err := conn.SendFrame(frame)
package capture
