// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts float32 audio between sample rates
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation and carries the last input frame between calls
// so chunked input resamples as one continuous signal.
//
// Example:
//
//	r := resample.New(48000, 16000, 1)
//	out := r.Process(block)
package resample
