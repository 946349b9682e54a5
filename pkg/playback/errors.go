// ABOUTME: Sentinel errors for the playback package
// ABOUTME: Returned by constructors and the ingest loop
package playback

import "errors"

var (
	// ErrInvalidCapacity is returned when a buffer is sized below one sample
	ErrInvalidCapacity = errors.New("playback: capacity must be positive")

	// ErrThresholdTooLarge is returned when the start threshold could never be reached
	ErrThresholdTooLarge = errors.New("playback: start threshold must be between 0 and capacity")
)
