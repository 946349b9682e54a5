// ABOUTME: Playback pipeline package
// ABOUTME: Ring buffer, gated engine, and chunk ingest loop
// Package playback turns a bursty stream of float32 byte chunks into a
// steady supply of fixed-size render blocks.
//
// Data flows one way:
//
//	ChunkSource → IngestLoop → Engine.Ingest → RingBuffer.Push
//	render tick → Engine.RenderInto → RingBuffer.PullInto
//
// The ingest lane may block on the network; the render lane never blocks.
// The RingBuffer is the only state they share. When the buffer is full new
// samples are dropped, and when it runs dry the render lane gets silence.
//
// Example:
//
//	engine, _ := playback.NewEngine(60*48000, 24000)
//	loop := playback.NewIngestLoop(playback.NewReaderSource(resp.Body, 0).AlignTo(audio.Float32Size), engine)
//	go loop.Run(ctx)
//
//	// on every device callback
//	engine.RenderInterleaved(out, 2)
package playback
