// ABOUTME: Client session owning the transport and per-stream playback engines
// ABOUTME: Sends capture frames, reacts to server events, and feeds the render host
package voicelink

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/linguflex/voicelink/pkg/audio"
	"github.com/linguflex/voicelink/pkg/capture"
	"github.com/linguflex/voicelink/pkg/playback"
	"github.com/linguflex/voicelink/pkg/protocol"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultSampleRate is the playback and capture rate of a session
	DefaultSampleRate = 48000

	// DefaultBufferSeconds sizes the playback ring buffer
	DefaultBufferSeconds = 60

	// DefaultStartMs is how much audio must be buffered before playback starts
	DefaultStartMs = 500
)

// ErrNotConnected is returned when the session has no live connection
var ErrNotConnected = errors.New("session not connected")

// SessionConfig holds session configuration
type SessionConfig struct {
	// ServerAddr is the server address (host:port)
	ServerAddr string

	// Secure selects wss/https; InsecureSkipVerify accepts self-signed certs
	Secure             bool
	InsecureSkipVerify bool

	// SampleRate is the playback rate of speech streams (default: 48000)
	SampleRate int

	// CaptureRate is the rate announced in capture frames (default: SampleRate)
	CaptureRate int

	// Capacity is the ring buffer size in samples (default: 60 s)
	Capacity int

	// StartThreshold is the sample count that opens the start gate (default: 0.5 s)
	StartThreshold int

	// ReadSize caps the bytes pulled from the speech stream per chunk
	ReadSize int

	// HTTPClient fetches speech streams (default: derived from Secure settings)
	HTTPClient *http.Client

	// Debug enables per-chunk logging
	Debug bool

	// OnEvent is called for every server event
	OnEvent func(protocol.Event)

	// OnStateChange is called when connection or stream state changes
	OnStateChange func(SessionState)

	// OnError is called when asynchronous errors occur
	OnError func(error)
}

// SessionState describes the current session state
type SessionState struct {
	Connected bool
	Streaming bool
}

// SessionStats contains session counters. Playback counters accumulate
// across every stream the session has played.
type SessionStats struct {
	Connected      bool
	Streaming      bool
	Started        bool // current stream's start gate
	Streams        uint64
	Buffered       int // samples waiting in the current engine
	BufferedMs     int
	Capacity       int
	CapacityMs     int
	ChunksReceived uint64
	BytesReceived  uint64
	TruncatedBytes uint64
	Dropped        uint64
	Underrun       uint64
	FramesSent     uint64
	CaptureErrors  uint64
	Events         uint64
	LastEvent      string
}

// Session connects one client to one voicelink server
type Session struct {
	config     SessionConfig
	id         string
	client     *protocol.Client
	httpClient *http.Client

	// engine is read lock-free by the render lane
	engine atomic.Pointer[playback.Engine]

	streamMu     sync.Mutex
	streamCancel context.CancelFunc
	retired      playback.EngineStats // totals from replaced engines
	streams      sync.WaitGroup
	active       atomic.Int32

	streamsStarted atomic.Uint64
	framesSent     atomic.Uint64
	captureErrors  atomic.Uint64
	events         atomic.Uint64
	lastEvent      atomic.Value // string
	connected      atomic.Bool

	group     *errgroup.Group
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewSession creates a session with the given configuration
func NewSession(config SessionConfig) (*Session, error) {
	if config.ServerAddr == "" {
		return nil, fmt.Errorf("server address is required")
	}
	if config.SampleRate == 0 {
		config.SampleRate = DefaultSampleRate
	}
	if config.CaptureRate == 0 {
		config.CaptureRate = config.SampleRate
	}
	if config.Capacity == 0 {
		config.Capacity = DefaultBufferSeconds * config.SampleRate
	}
	if config.StartThreshold == 0 {
		config.StartThreshold = config.SampleRate * DefaultStartMs / 1000
	}
	if config.StartThreshold > config.Capacity {
		return nil, fmt.Errorf("start threshold %d exceeds buffer capacity %d: %w",
			config.StartThreshold, config.Capacity, playback.ErrThresholdTooLarge)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
		if config.Secure && config.InsecureSkipVerify {
			httpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		config:     config,
		id:         uuid.New().String(),
		httpClient: httpClient,
		client: protocol.NewClient(protocol.Config{
			ServerAddr:         config.ServerAddr,
			Secure:             config.Secure,
			InsecureSkipVerify: config.InsecureSkipVerify,
			Debug:              config.Debug,
		}),
		ctx:    ctx,
		cancel: cancel,
	}
	s.lastEvent.Store("")
	return s, nil
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Connect opens the websocket and starts the event lane
func (s *Session) Connect(ctx context.Context) error {
	if err := s.client.Connect(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	log.Printf("Session %s connected to %s", s.id, s.config.ServerAddr)
	s.connected.Store(true)
	s.notifyStateChange()

	group, gctx := errgroup.WithContext(s.ctx)
	s.group = group
	group.Go(func() error {
		return s.handleEvents(gctx)
	})

	return nil
}

// Done is closed when the server connection ends
func (s *Session) Done() <-chan struct{} {
	return s.client.Done()
}

// handleEvents dispatches server events until the connection ends
func (s *Session) handleEvents(ctx context.Context) error {
	events := s.client.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				log.Printf("Session %s: server connection ended", s.id)
				s.connected.Store(false)
				s.notifyStateChange()
				return nil
			}
			s.events.Add(1)
			s.lastEvent.Store(ev.Type)

			if ev.Type == protocol.EventAudioStreamReady {
				s.startStream()
			}
			if s.config.OnEvent != nil {
				s.config.OnEvent(ev)
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// startStream replaces the current engine and ingest loop with fresh ones
func (s *Session) startStream() {
	engine, err := playback.NewEngine(s.config.Capacity, s.config.StartThreshold)
	if err != nil {
		s.notifyError(fmt.Errorf("failed to create playback engine: %w", err))
		return
	}

	s.streamMu.Lock()
	if s.streamCancel != nil {
		s.streamCancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.streamCancel = cancel
	if old := s.engine.Swap(engine); old != nil {
		s.retire(old.Stats())
	}
	s.streamMu.Unlock()

	n := s.streamsStarted.Add(1)
	log.Printf("Session %s: speech stream %d starting", s.id, n)

	s.streams.Add(1)
	s.active.Add(1)
	s.notifyStateChange()
	go func() {
		defer s.streams.Done()
		defer cancel()
		s.runStream(ctx, n, engine)
		s.active.Add(-1)
		s.notifyStateChange()
	}()
}

// retire folds a replaced engine's counters into the session totals (must hold streamMu)
func (s *Session) retire(st playback.EngineStats) {
	s.retired.Chunks += st.Chunks
	s.retired.BytesIngested += st.BytesIngested
	s.retired.TruncatedBytes += st.TruncatedBytes
	s.retired.Dropped += st.Dropped
	s.retired.Underrun += st.Underrun
}

// runStream fetches one speech stream and feeds it into engine
func (s *Session) runStream(ctx context.Context, n uint64, engine *playback.Engine) {
	body, err := s.openSpeech(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.notifyError(fmt.Errorf("speech stream %d: %w", n, err))
		}
		return
	}

	loop := playback.NewIngestLoop(playback.NewReaderSource(body, s.config.ReadSize).AlignTo(audio.Float32Size), engine)
	loop.SetDebug(s.config.Debug)

	err = loop.Run(ctx)
	switch {
	case err == nil:
		log.Printf("Session %s: speech stream %d finished (%d chunks, %d bytes)", s.id, n, loop.Chunks(), loop.Bytes())
	case errors.Is(err, context.Canceled):
		log.Printf("Session %s: speech stream %d cancelled", s.id, n)
	default:
		s.notifyError(fmt.Errorf("speech stream %d: %w", n, err))
	}
}

// SpeechURL returns the HTTP endpoint speech streams are fetched from
func (s *Session) SpeechURL() string {
	scheme := "http"
	if s.config.Secure {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: s.config.ServerAddr, Path: protocol.PathSpeech}
	return u.String()
}

// openSpeech requests the pending speech stream
func (s *Session) openSpeech(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.SpeechURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch speech: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("speech endpoint returned %s", resp.Status)
	}
	return resp.Body, nil
}

// Render fills out with the current stream's audio, duplicating mono
// across channels. It is the render lane entry point and never blocks.
func (s *Session) Render(out []float32, channels int) {
	engine := s.engine.Load()
	if engine == nil {
		clear(out)
		return
	}
	engine.RenderInterleaved(out, channels)
}

// SendCapture encodes one microphone block and sends it to the server
func (s *Session) SendCapture(block []float32) error {
	if !s.connected.Load() {
		return ErrNotConnected
	}
	if err := s.client.SendFrame(capture.Encode(block, s.config.CaptureRate)); err != nil {
		s.captureErrors.Add(1)
		if errors.Is(err, protocol.ErrNotConnected) {
			return ErrNotConnected
		}
		return err
	}
	s.framesSent.Add(1)
	return nil
}

// RunCapture forwards blocks until ctx ends, blocks closes, or the
// connection goes away
func (s *Session) RunCapture(ctx context.Context, blocks <-chan []float32) error {
	for {
		select {
		case block, ok := <-blocks:
			if !ok {
				return nil
			}
			err := s.SendCapture(block)
			if errors.Is(err, ErrNotConnected) {
				return err
			}
			if err != nil {
				s.notifyError(fmt.Errorf("capture send: %w", err))
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Stats returns a snapshot of session counters
func (s *Session) Stats() SessionStats {
	s.streamMu.Lock()
	totals := s.retired
	engine := s.engine.Load()
	s.streamMu.Unlock()

	stats := SessionStats{
		Connected:     s.connected.Load(),
		Streaming:     s.active.Load() > 0,
		Streams:       s.streamsStarted.Load(),
		Capacity:      s.config.Capacity,
		CapacityMs:    s.config.Capacity * 1000 / s.config.SampleRate,
		FramesSent:    s.framesSent.Load(),
		CaptureErrors: s.captureErrors.Load(),
		Events:        s.events.Load(),
		LastEvent:     s.lastEvent.Load().(string),
	}

	if engine != nil {
		cur := engine.Stats()
		stats.Started = cur.Started
		stats.Buffered = cur.Available
		totals.Chunks += cur.Chunks
		totals.BytesIngested += cur.BytesIngested
		totals.TruncatedBytes += cur.TruncatedBytes
		totals.Dropped += cur.Dropped
		totals.Underrun += cur.Underrun
	}
	stats.BufferedMs = stats.Buffered * 1000 / s.config.SampleRate
	stats.ChunksReceived = totals.Chunks
	stats.BytesReceived = totals.BytesIngested
	stats.TruncatedBytes = totals.TruncatedBytes
	stats.Dropped = totals.Dropped
	stats.Underrun = totals.Underrun
	return stats
}

// Close tears the session down and waits for its goroutines
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.client.Close()

		s.streamMu.Lock()
		if s.streamCancel != nil {
			s.streamCancel()
		}
		s.streamMu.Unlock()
		s.streams.Wait()

		if s.group != nil {
			if err := s.group.Wait(); err != nil {
				log.Printf("Session %s: lane error: %v", s.id, err)
			}
		}
		s.connected.Store(false)
		log.Printf("Session %s closed", s.id)
	})
	return nil
}

// notifyStateChange calls the state change callback if set
func (s *Session) notifyStateChange() {
	if s.config.OnStateChange != nil {
		s.config.OnStateChange(SessionState{
			Connected: s.connected.Load(),
			Streaming: s.active.Load() > 0,
		})
	}
}

// notifyError logs and reports an asynchronous error
func (s *Session) notifyError(err error) {
	log.Printf("Session %s error: %v", s.id, err)
	if s.config.OnError != nil {
		s.config.OnError(err)
	}
}
