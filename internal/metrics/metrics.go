// ABOUTME: Prometheus metrics for voicelink sessions and servers
// ABOUTME: Gauges and counters read live stats at scrape time
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/linguflex/voicelink/pkg/voicelink"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voicelink"

// SessionSource is anything that reports client session stats
type SessionSource interface {
	Stats() voicelink.SessionStats
}

// ServerSource is anything that reports server stats
type ServerSource interface {
	Stats() voicelink.ServerStats
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// RegisterSession registers client metrics on reg
func RegisterSession(reg prometheus.Registerer, src SessionSource) {
	f := promauto.With(reg)
	opts := func(name, help string) prometheus.GaugeOpts {
		return prometheus.GaugeOpts{Namespace: namespace, Subsystem: "session", Name: name, Help: help}
	}
	copts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: namespace, Subsystem: "session", Name: name, Help: help}
	}

	f.NewGaugeFunc(opts("connected", "1 while the server connection is up"),
		func() float64 { return boolGauge(src.Stats().Connected) })
	f.NewGaugeFunc(opts("streaming", "1 while a speech stream is being received"),
		func() float64 { return boolGauge(src.Stats().Streaming) })
	f.NewGaugeFunc(opts("playback_started", "1 once the current stream's start gate opened"),
		func() float64 { return boolGauge(src.Stats().Started) })
	f.NewGaugeFunc(opts("buffered_samples", "Samples waiting in the playback buffer"),
		func() float64 { return float64(src.Stats().Buffered) })

	f.NewCounterFunc(copts("streams_total", "Speech streams started"),
		func() float64 { return float64(src.Stats().Streams) })
	f.NewCounterFunc(copts("chunks_received_total", "Speech chunks ingested"),
		func() float64 { return float64(src.Stats().ChunksReceived) })
	f.NewCounterFunc(copts("bytes_received_total", "Speech bytes ingested"),
		func() float64 { return float64(src.Stats().BytesReceived) })
	f.NewCounterFunc(copts("truncated_bytes_total", "Trailing partial-sample bytes discarded"),
		func() float64 { return float64(src.Stats().TruncatedBytes) })
	f.NewCounterFunc(copts("dropped_samples_total", "Samples dropped because the buffer was full"),
		func() float64 { return float64(src.Stats().Dropped) })
	f.NewCounterFunc(copts("underrun_samples_total", "Silence samples rendered because the buffer ran dry"),
		func() float64 { return float64(src.Stats().Underrun) })
	f.NewCounterFunc(copts("frames_sent_total", "Capture frames sent"),
		func() float64 { return float64(src.Stats().FramesSent) })
	f.NewCounterFunc(copts("capture_errors_total", "Capture frames that failed to send"),
		func() float64 { return float64(src.Stats().CaptureErrors) })
	f.NewCounterFunc(copts("events_total", "Server events received"),
		func() float64 { return float64(src.Stats().Events) })
}

// RegisterServer registers server metrics on reg
func RegisterServer(reg prometheus.Registerer, src ServerSource) {
	f := promauto.With(reg)
	opts := func(name, help string) prometheus.GaugeOpts {
		return prometheus.GaugeOpts{Namespace: namespace, Subsystem: "server", Name: name, Help: help}
	}
	copts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: namespace, Subsystem: "server", Name: name, Help: help}
	}

	f.NewGaugeFunc(opts("clients", "Connected websocket clients"),
		func() float64 { return float64(src.Stats().Clients) })
	f.NewGaugeFunc(opts("speaking", "1 while an utterance is pending or streaming"),
		func() float64 { return boolGauge(src.Stats().Speaking) })

	f.NewCounterFunc(copts("utterances_total", "Utterances streamed"),
		func() float64 { return float64(src.Stats().Utterances) })
	f.NewCounterFunc(copts("speech_bytes_total", "Speech bytes streamed"),
		func() float64 { return float64(src.Stats().BytesStreamed) })
	f.NewCounterFunc(copts("capture_frames_total", "Capture frames decoded"),
		func() float64 { return float64(src.Stats().FramesReceived) })
	f.NewCounterFunc(copts("bad_frames_total", "Capture frames rejected"),
		func() float64 { return float64(src.Stats().BadFrames) })
	f.NewCounterFunc(copts("capture_samples_total", "Capture samples delivered at the capture rate"),
		func() float64 { return float64(src.Stats().SamplesCaptured) })
	f.NewCounterFunc(copts("events_sent_total", "Text events queued to clients"),
		func() float64 { return float64(src.Stats().EventsSent) })
}

// Handler exposes reg in the Prometheus text format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Serve runs a metrics endpoint on addr until ctx is cancelled
func Serve(ctx context.Context, addr, path string, reg *prometheus.Registry) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, Handler(reg))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()
	log.Printf("Metrics listening on %s%s", addr, path)

	select {
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics shutdown: %w", err)
	}
	return nil
}
