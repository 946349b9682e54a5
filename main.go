// ABOUTME: Entry point for the voicelink client
// ABOUTME: Plays server speech through a render host and streams the microphone
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linguflex/voicelink/internal/config"
	"github.com/linguflex/voicelink/internal/discovery"
	"github.com/linguflex/voicelink/internal/metrics"
	"github.com/linguflex/voicelink/internal/ui"
	"github.com/linguflex/voicelink/internal/version"
	"github.com/linguflex/voicelink/pkg/audio/input"
	"github.com/linguflex/voicelink/pkg/audio/output"
	"github.com/linguflex/voicelink/pkg/protocol"
	"github.com/linguflex/voicelink/pkg/voicelink"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

var (
	configPath    = flag.String("config", "", "YAML config file")
	serverAddr    = flag.String("server", "", "Server address host:port (skip mDNS)")
	secure        = flag.Bool("secure", false, "Connect with wss/https")
	insecure      = flag.Bool("insecure", false, "Accept self-signed TLS certificates")
	outputName    = flag.String("output", "malgo", "Audio output: malgo, oto or portaudio")
	noMic         = flag.Bool("no-mic", false, "Disable microphone capture")
	startMs       = flag.Int("start-ms", 500, "Buffered speech required before playback starts")
	bufferSeconds = flag.Int("buffer-seconds", 60, "Playback buffer capacity in seconds")
	blockSize     = flag.Int("block-size", input.DefaultBlockSize, "Microphone samples per capture frame")
	logFile       = flag.String("log-file", "voicelink.log", "Log file path")
	noTUI         = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	metricsAddr   = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	debug         = flag.Bool("debug", false, "Enable debug logging")
)

// errQuit ends the lane group on a user or server initiated shutdown
var errQuit = errors.New("quit")

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	useTUI := !*noTUI

	f, err := os.OpenFile(cfg.Logging.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	log.Printf("Starting %s", version.String())

	var tuiProg *tea.Program
	var controls *ui.Controls
	if useTUI {
		controls = ui.NewControls()
		tuiProg = ui.Run(controls)
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}
	updateTUI := func(msg tea.Msg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := cfg.Client.Server
	if addr == "" {
		addr, err = discoverServer(ctx)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}

	session, err := voicelink.NewSession(voicelink.SessionConfig{
		ServerAddr:         addr,
		Secure:             cfg.Client.Secure,
		InsecureSkipVerify: cfg.Client.Insecure,
		SampleRate:         cfg.Playback.SampleRate,
		Capacity:           cfg.Playback.Capacity(),
		StartThreshold:     cfg.Playback.StartThreshold(),
		ReadSize:           cfg.Playback.ReadSize,
		Debug:              cfg.Logging.Debug,
		OnEvent: func(ev protocol.Event) {
			updateTUI(ui.EventMsg(ev))
			if !useTUI && ev.Type == protocol.EventFinalUserText {
				log.Printf("You said: %s", ev.Text)
			}
		},
		OnStateChange: func(state voicelink.SessionState) {
			connected := state.Connected
			updateTUI(ui.StatusMsg{Connected: &connected, ServerAddr: addr})
		},
		OnError: func(err error) {
			log.Printf("Session error: %v", err)
		},
	})
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer session.Close()

	if err := session.Connect(ctx); err != nil {
		log.Fatalf("%v", err)
	}

	out, err := output.New(output.Backend(cfg.Client.Output))
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := out.Open(cfg.Playback.SampleRate, cfg.Playback.Channels, session); err != nil {
		log.Fatalf("Failed to open audio output: %v", err)
	}
	defer out.Close()

	var mic input.Input
	if cfg.Client.Mic {
		mic = input.NewMalgo()
		if err := mic.Open(cfg.Playback.SampleRate, cfg.Client.BlockSize); err != nil {
			log.Printf("Microphone unavailable, continuing playback only: %v", err)
			mic = nil
		} else {
			defer mic.Close()
		}
	}

	reg := prometheus.NewRegistry()
	metrics.RegisterSession(reg, session)

	var micMuted atomic.Bool
	g, gctx := errgroup.WithContext(ctx)

	if mic != nil {
		g.Go(func() error {
			return captureLane(gctx, session, mic, &micMuted)
		})
	}

	g.Go(func() error {
		statsLane(gctx, session, mic, updateTUI, useTUI)
		return nil
	})

	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Metrics.Addr, cfg.Metrics.Path, reg)
		})
	}

	g.Go(func() error {
		var quit <-chan struct{}
		var mute <-chan bool
		if controls != nil {
			quit = controls.Quit
			mute = controls.MicMuted
		}
		for {
			select {
			case <-gctx.Done():
				log.Printf("Shutdown signal received")
				return nil
			case <-session.Done():
				log.Printf("Server closed the connection")
				return errQuit
			case <-quit:
				log.Printf("Received quit signal from TUI")
				return errQuit
			case muted := <-mute:
				micMuted.Store(muted)
				log.Printf("Microphone muted=%v", muted)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		log.Printf("Client error: %v", err)
	}

	if tuiProg != nil {
		tuiProg.Quit()
	}
	log.Printf("Client stopped")
}

// loadConfig reads the config file and applies flags given on the command line
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.Client.Server = *serverAddr
		case "secure":
			cfg.Client.Secure = *secure
		case "insecure":
			cfg.Client.Insecure = *insecure
		case "output":
			cfg.Client.Output = *outputName
		case "no-mic":
			cfg.Client.Mic = !*noMic
		case "start-ms":
			cfg.Playback.StartMs = *startMs
		case "buffer-seconds":
			cfg.Playback.BufferSeconds = *bufferSeconds
		case "block-size":
			cfg.Client.BlockSize = *blockSize
		case "log-file":
			cfg.Logging.File = *logFile
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		case "debug":
			cfg.Logging.Debug = *debug
		}
	})

	return cfg, cfg.Validate()
}

// discoverServer browses mDNS for up to ten seconds
func discoverServer(ctx context.Context) (string, error) {
	log.Printf("Starting server discovery...")
	disc := discovery.NewManager(discovery.Config{})
	defer disc.Stop()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	server, err := disc.WaitForServer(ctx)
	if err != nil {
		return "", err
	}
	log.Printf("Discovered server %s at %s", server.Name, server.Addr())
	return server.Addr(), nil
}

// captureLane forwards microphone blocks to the server while unmuted
func captureLane(ctx context.Context, session *voicelink.Session, mic input.Input, muted *atomic.Bool) error {
	blocks := mic.Blocks()
	for {
		select {
		case block, ok := <-blocks:
			if !ok {
				return nil
			}
			if muted.Load() {
				continue
			}
			if err := session.SendCapture(block); err != nil {
				if errors.Is(err, voicelink.ErrNotConnected) {
					return nil
				}
				log.Printf("Capture send error: %v", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// statsLane periodically pushes session statistics to the TUI
func statsLane(ctx context.Context, session *voicelink.Session, mic input.Input, updateTUI func(tea.Msg), useTUI bool) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var ticks int
	for {
		select {
		case <-ticker.C:
			stats := session.Stats()
			var micDropped uint64
			if mic != nil {
				micDropped = mic.Dropped()
			}
			updateTUI(ui.StatusMsg{Stats: &stats, MicDropped: micDropped})

			ticks++
			if !useTUI && ticks%20 == 0 {
				log.Printf("Stats: streams=%d buffered=%dms underrun=%d dropped=%d sent=%d",
					stats.Streams, stats.BufferedMs, stats.Underrun, stats.Dropped, stats.FramesSent)
			}
		case <-ctx.Done():
			return
		}
	}
}
