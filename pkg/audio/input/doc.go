// ABOUTME: Audio input package for microphone capture
// ABOUTME: Produces fixed-size mono float32 blocks
// Package input captures microphone audio as a stream of fixed-size blocks.
//
// Device periods rarely line up with the block size the capture framing
// expects, so samples are regrouped before they are handed out. The device
// thread never blocks: when the consumer falls behind, whole blocks are
// dropped and counted.
//
// Example:
//
//	mic := input.NewMalgo()
//	if err := mic.Open(48000, input.DefaultBlockSize); err != nil { ... }
//	for block := range mic.Blocks() {
//	    session.SendCapture(block)
//	}
package input
