// ABOUTME: Voicelink server: capture ingest over websocket and paced speech streaming
// ABOUTME: Serves /ws, /tts and /disconnect and broadcasts text events to clients
package voicelink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/linguflex/voicelink/internal/discovery"
	"github.com/linguflex/voicelink/internal/server"
	"github.com/linguflex/voicelink/pkg/audio"
	"github.com/linguflex/voicelink/pkg/audio/resample"
	"github.com/linguflex/voicelink/pkg/capture"
	"github.com/linguflex/voicelink/pkg/protocol"
)

const (
	// DefaultCaptureRate is the rate capture audio is normalized to
	DefaultCaptureRate = 16000

	// DefaultChunkDuration is the amount of speech sent per paced write
	DefaultChunkDuration = 20 * time.Millisecond

	// DefaultBufferAhead is the speech sent unpaced at the start of a stream
	DefaultBufferAhead = 500 * time.Millisecond

	// retryAfterSeconds is advertised when no speech is pending
	retryAfterSeconds = 10

	pingInterval  = 30 * time.Second
	writeDeadline = 10 * time.Second
	sendQueueSize = 100
)

var (
	// ErrSpeaking is returned by Speak while another utterance is pending or streaming
	ErrSpeaking = errors.New("server is already speaking")

	// ErrServerStopped is returned when operating on a stopped server
	ErrServerStopped = errors.New("server stopped")
)

// ServerConfig holds server configuration
type ServerConfig struct {
	// Addr is the listen address (default: ":8001")
	Addr string

	// Name is advertised over mDNS
	Name string

	// StreamRate is the sample rate of /tts streams (default: 48000)
	StreamRate int

	// CaptureRate is the rate capture audio is resampled to (default: 16000)
	CaptureRate int

	// ChunkDuration and BufferAhead control /tts pacing
	ChunkDuration time.Duration
	BufferAhead   time.Duration

	// EnableMDNS advertises the server on the local network
	EnableMDNS bool

	// RecordDir, when set, receives one WAV file of capture audio per client
	RecordDir string

	// TLSCertFile and TLSKeyFile enable TLS when both are set
	TLSCertFile string
	TLSKeyFile  string

	Debug bool

	// OnConnect is called when a client connects or disconnects
	OnConnect func(clientID string, connected bool)

	// OnCapture receives capture audio resampled to CaptureRate
	OnCapture func(clientID string, samples []int16)
}

// ServerStats contains server counters
type ServerStats struct {
	Clients         int
	Speaking        bool
	Utterances      uint64
	BytesStreamed   uint64
	FramesReceived  uint64
	BadFrames       uint64
	SamplesCaptured uint64
	EventsSent      uint64
}

// Server accepts voicelink clients
type Server struct {
	config   ServerConfig
	serverID string
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	httpServer *http.Server
	listenAddr atomic.Value // string
	mdns       *discovery.Manager

	clients   map[string]*serverClient
	clientsMu sync.RWMutex

	// speech state: at most one utterance pending or streaming
	speechMu     sync.Mutex
	pending      AudioSource
	streaming    bool
	speechCancel context.CancelFunc

	utterances      atomic.Uint64
	bytesStreamed   atomic.Uint64
	framesReceived  atomic.Uint64
	badFrames       atomic.Uint64
	samplesCaptured atomic.Uint64
	eventsSent      atomic.Uint64

	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// serverClient is one connected websocket client
type serverClient struct {
	id         string
	remoteAddr string
	conn       *websocket.Conn
	sendChan   chan []byte
	done       chan struct{}

	// capture state, touched only by the connection's read loop
	resampler *resample.Resampler
	inputRate int
	recorder  *server.Recorder
}

// NewServer creates a server with the given configuration
func NewServer(config ServerConfig) (*Server, error) {
	if config.Addr == "" {
		config.Addr = ":8001"
	}
	if config.Name == "" {
		config.Name = "voicelink"
	}
	if config.StreamRate == 0 {
		config.StreamRate = DefaultSampleRate
	}
	if config.CaptureRate == 0 {
		config.CaptureRate = DefaultCaptureRate
	}
	if config.ChunkDuration == 0 {
		config.ChunkDuration = DefaultChunkDuration
	}
	if config.BufferAhead == 0 {
		config.BufferAhead = DefaultBufferAhead
	}
	if config.StreamRate < 0 || config.CaptureRate < 0 {
		return nil, fmt.Errorf("invalid sample rates: stream %d, capture %d", config.StreamRate, config.CaptureRate)
	}
	if (config.TLSCertFile == "") != (config.TLSKeyFile == "") {
		return nil, fmt.Errorf("tls needs both a certificate and a key")
	}
	if config.RecordDir != "" {
		if err := os.MkdirAll(config.RecordDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create record dir: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local network deployment; browsers on any origin may connect
				return true
			},
		},
		clients:  make(map[string]*serverClient),
		ctx:      ctx,
		cancel:   cancel,
		stopChan: make(chan struct{}),
	}
	s.listenAddr.Store("")

	s.mux.HandleFunc("GET "+protocol.PathWebSocket, s.handleWebSocket)
	s.mux.HandleFunc("GET "+protocol.PathSpeech, s.handleSpeech)
	s.mux.HandleFunc("POST "+protocol.PathDisconnect, s.handleDisconnect)
	return s, nil
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Addr returns the bound listen address once Start is running
func (s *Server) Addr() string {
	return s.listenAddr.Load().(string)
}

// Start listens and serves until Stop is called or the listener fails
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listenAddr.Store(ln.Addr().String())
	log.Printf("Server starting: %s (ID: %s) on %s", s.config.Name, s.serverID, ln.Addr())

	if s.config.EnableMDNS {
		port := ln.Addr().(*net.TCPAddr).Port
		s.mdns = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        port,
			TXT:         []string{"path=" + protocol.PathWebSocket},
		})
		if err := s.mdns.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	s.httpServer = &http.Server{Handler: s.mux}

	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.config.TLSCertFile != "" {
			err = s.httpServer.ServeTLS(ln, s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// shutdown cancels speech, disconnects clients and withdraws mDNS
func (s *Server) shutdown() {
	s.cancel()
	s.StopSpeaking()
	s.DisconnectAll()
	if s.mdns != nil {
		s.mdns.Stop()
	}
}

// Speak queues src as the next utterance and tells every client a stream
// is ready. The source is consumed by the first /tts request.
func (s *Server) Speak(src AudioSource) error {
	if s.ctx.Err() != nil {
		return ErrServerStopped
	}

	s.speechMu.Lock()
	if s.pending != nil || s.streaming {
		s.speechMu.Unlock()
		return ErrSpeaking
	}
	s.pending = src
	s.speechMu.Unlock()

	n := s.SendEvent(protocol.Event{Type: protocol.EventAudioStreamReady})
	log.Printf("Speech queued (%d Hz), announced to %d clients", src.SampleRate(), n)
	return nil
}

// StopSpeaking drops any pending utterance and cancels the active stream
func (s *Server) StopSpeaking() {
	s.speechMu.Lock()
	defer s.speechMu.Unlock()

	if s.pending != nil {
		s.pending.Close()
		s.pending = nil
	}
	if s.speechCancel != nil {
		s.speechCancel()
	}
}

// Speaking reports whether an utterance is pending or streaming
func (s *Server) Speaking() bool {
	s.speechMu.Lock()
	defer s.speechMu.Unlock()
	return s.pending != nil || s.streaming
}

// claimSpeech takes the pending utterance for one /tts request
func (s *Server) claimSpeech(parent context.Context) (AudioSource, context.Context, bool) {
	s.speechMu.Lock()
	defer s.speechMu.Unlock()

	if s.pending == nil {
		return nil, nil, false
	}
	src := s.pending
	s.pending = nil
	s.streaming = true

	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	s.speechCancel = func() {
		stop()
		cancel()
	}
	return src, ctx, true
}

// releaseSpeech marks the active stream finished
func (s *Server) releaseSpeech() {
	s.speechMu.Lock()
	defer s.speechMu.Unlock()

	if s.speechCancel != nil {
		s.speechCancel()
		s.speechCancel = nil
	}
	s.streaming = false
}

// handleSpeech streams the pending utterance as float32 LE mono samples
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	src, ctx, ok := s.claimSpeech(r.Context())
	if !ok {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		http.Error(w, "no speech pending, try again shortly", http.StatusServiceUnavailable)
		return
	}
	defer s.releaseSpeech()
	defer src.Close()

	n := s.utterances.Add(1)
	log.Printf("Streaming utterance %d to %s", n, r.RemoteAddr)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Sample-Rate", strconv.Itoa(s.config.StreamRate))
	w.WriteHeader(http.StatusOK)

	sent, err := s.streamSpeech(ctx, w, src)
	switch {
	case err == nil:
		log.Printf("Utterance %d complete (%d bytes)", n, sent)
	case ctx.Err() != nil:
		log.Printf("Utterance %d cancelled after %d bytes", n, sent)
	default:
		log.Printf("Utterance %d failed after %d bytes: %v", n, sent, err)
	}
}

// streamSpeech sends BufferAhead of audio immediately, then paces one
// chunk per ChunkDuration until the source ends
func (s *Server) streamSpeech(ctx context.Context, w http.ResponseWriter, src AudioSource) (int, error) {
	rc := http.NewResponseController(w)

	srcRate := src.SampleRate()
	if srcRate <= 0 {
		return 0, fmt.Errorf("invalid source sample rate %d", srcRate)
	}
	rs := resample.New(srcRate, s.config.StreamRate, 1)

	in := make([]float32, srcRate*int(s.config.ChunkDuration/time.Millisecond)/1000)
	if len(in) == 0 {
		in = make([]float32, 1)
	}
	lead := int(s.config.BufferAhead / s.config.ChunkDuration)

	ticker := time.NewTicker(s.config.ChunkDuration)
	defer ticker.Stop()

	var payload []byte
	sent := 0
	for chunk := 0; ; chunk++ {
		n, err := src.Read(in)
		if n > 0 {
			if chunk >= lead {
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return sent, ctx.Err()
				}
			}

			payload = audio.AppendFloat32LE(payload[:0], rs.Process(in[:n]))
			if _, werr := w.Write(payload); werr != nil {
				return sent, fmt.Errorf("write failed: %w", werr)
			}
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return sent, fmt.Errorf("flush failed: %w", ferr)
			}
			sent += len(payload)
			s.bytesStreamed.Add(uint64(len(payload)))

			if s.config.Debug && chunk%50 == 0 {
				log.Printf("[DEBUG] Speech chunk %d: %d bytes, %d total", chunk, len(payload), sent)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sent, nil
			}
			return sent, fmt.Errorf("source read failed: %w", err)
		}
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
	}
}

// handleDisconnect closes every websocket connection
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	n := s.DisconnectAll()
	log.Printf("Disconnect requested by %s, closed %d clients", r.RemoteAddr, n)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Disconnected successfully"})
}

// DisconnectAll closes every client connection and returns how many were closed
func (s *Server) DisconnectAll() int {
	s.clientsMu.RLock()
	clients := make([]*serverClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range clients {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "disconnect")
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.conn.Close()
	}
	return len(clients)
}

// SendEvent queues ev for every connected client and returns how many accepted it
func (s *Server) SendEvent(ev protocol.Event) int {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return 0
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	queued := 0
	for _, c := range s.clients {
		select {
		case c.sendChan <- data:
			queued++
		case <-c.done:
		default:
			log.Printf("Warning: dropping %s event for %s (send buffer full)", ev.Type, c.id)
		}
	}
	s.eventsSent.Add(uint64(queued))
	return queued
}

// Clients returns the IDs of connected clients
func (s *Server) Clients() []string {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns a snapshot of server counters
func (s *Server) Stats() ServerStats {
	s.clientsMu.RLock()
	clients := len(s.clients)
	s.clientsMu.RUnlock()

	return ServerStats{
		Clients:         clients,
		Speaking:        s.Speaking(),
		Utterances:      s.utterances.Load(),
		BytesStreamed:   s.bytesStreamed.Load(),
		FramesReceived:  s.framesReceived.Load(),
		BadFrames:       s.badFrames.Load(),
		SamplesCaptured: s.samplesCaptured.Load(),
		EventsSent:      s.eventsSent.Load(),
	}
}

// handleWebSocket upgrades and serves one client connection
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &serverClient{
		id:         uuid.New().String(),
		remoteAddr: r.RemoteAddr,
		conn:       conn,
		sendChan:   make(chan []byte, sendQueueSize),
		done:       make(chan struct{}),
	}
	log.Printf("Client connected: %s from %s", client.id, client.remoteAddr)

	s.handleConnection(client)
}

// handleConnection runs the read loop until the connection closes
func (s *Server) handleConnection(client *serverClient) {
	s.clientsMu.Lock()
	s.clients[client.id] = client
	s.clientsMu.Unlock()
	s.notifyConnect(client.id, true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	defer func() {
		if client.recorder != nil {
			if err := client.recorder.Close(); err != nil {
				log.Printf("Error closing recording for %s: %v", client.id, err)
			} else {
				log.Printf("Recorded %d samples to %s", client.recorder.Samples(), client.recorder.Path())
			}
		}

		s.clientsMu.Lock()
		delete(s.clients, client.id)
		s.clientsMu.Unlock()
		close(client.done)
		client.conn.Close()
		log.Printf("Client disconnected: %s", client.id)
		s.notifyConnect(client.id, false)
	}()

	for {
		msgType, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			s.handleFrame(client, data)
		case websocket.TextMessage:
			if s.config.Debug {
				log.Printf("[DEBUG] Ignoring text message from %s: %q", client.id, data)
			}
		}
	}
}

// clientWriter sends queued events and keepalive pings
func (s *Server) clientWriter(client *serverClient) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-client.sendChan:
			client.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Error writing event to %s: %v", client.id, err)
				return
			}

		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}

		case <-client.done:
			return
		}
	}
}

// handleFrame decodes one capture frame and delivers it at CaptureRate
func (s *Server) handleFrame(client *serverClient, data []byte) {
	frame, err := capture.Decode(data)
	if err != nil {
		s.badFrames.Add(1)
		if s.config.Debug {
			log.Printf("[DEBUG] Bad capture frame from %s: %v", client.id, err)
		}
		return
	}
	s.framesReceived.Add(1)

	samples := frame.Samples
	if rate := frame.Metadata.SampleRate; rate != s.config.CaptureRate {
		if client.resampler == nil || client.inputRate != rate {
			client.resampler = resample.New(rate, s.config.CaptureRate, 1)
			client.inputRate = rate
			log.Printf("Client %s captures at %d Hz, resampling to %d Hz", client.id, rate, s.config.CaptureRate)
		}
		out := client.resampler.Process(frame.Float32())
		samples = make([]int16, len(out))
		for i, v := range out {
			samples[i] = audio.QuantizeInt16(v)
		}
	}
	s.samplesCaptured.Add(uint64(len(samples)))

	if s.config.RecordDir != "" {
		s.record(client, samples)
	}
	if s.config.OnCapture != nil {
		s.config.OnCapture(client.id, samples)
	}
}

// record appends samples to the client's WAV file, opening it on first use
func (s *Server) record(client *serverClient, samples []int16) {
	if client.recorder == nil {
		path := filepath.Join(s.config.RecordDir, client.id+".wav")
		rec, err := server.NewRecorder(path, s.config.CaptureRate)
		if err != nil {
			log.Printf("Failed to start recording for %s: %v", client.id, err)
			return
		}
		client.recorder = rec
	}
	if err := client.recorder.Write(samples); err != nil {
		log.Printf("Recording error for %s: %v", client.id, err)
	}
}

func (s *Server) notifyConnect(clientID string, connected bool) {
	if s.config.OnConnect != nil {
		s.config.OnConnect(clientID, connected)
	}
}
