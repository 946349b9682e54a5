// ABOUTME: Entry point for the voicelink server
// ABOUTME: Parses CLI flags and config, then serves capture ingest and speech streams
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linguflex/voicelink/internal/config"
	"github.com/linguflex/voicelink/internal/metrics"
	"github.com/linguflex/voicelink/internal/ui"
	"github.com/linguflex/voicelink/internal/version"
	"github.com/linguflex/voicelink/pkg/voicelink"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	configPath  = flag.String("config", "", "YAML config file")
	addr        = flag.String("addr", ":8001", "Listen address")
	name        = flag.String("name", "", "Server friendly name (default: hostname-voicelink)")
	speak       = flag.String("speak", "tone", "Speech for each new client: tone, an MP3/FLAC path, an HTTP MP3 URL, or none")
	recordDir   = flag.String("record-dir", "", "Write each client's capture audio to a WAV file in this directory")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	logFile     = flag.String("log-file", "voicelink-server.log", "Log file path")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	tlsCert     = flag.String("tls-cert", "", "TLS certificate file")
	tlsKey      = flag.String("tls-key", "", "TLS key file")
	useTUI      = flag.Bool("tui", false, "Show a live status TUI instead of streaming logs")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if *useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	serverName := cfg.Server.Name
	if serverName == "" || serverName == config.Default().Server.Name {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-voicelink", hostname)
	}

	log.Printf("Starting %s server: %s on %s", version.String(), serverName, cfg.Server.Addr)
	if cfg.Logging.Debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)

	var srv *voicelink.Server
	srv, err = voicelink.NewServer(voicelink.ServerConfig{
		Addr:          cfg.Server.Addr,
		Name:          serverName,
		StreamRate:    cfg.Server.StreamRate,
		CaptureRate:   cfg.Server.CaptureRate,
		ChunkDuration: cfg.Server.ChunkDuration,
		BufferAhead:   cfg.Server.BufferAhead,
		EnableMDNS:    cfg.Server.MDNS,
		RecordDir:     cfg.Server.RecordDir,
		TLSCertFile:   cfg.Server.TLSCert,
		TLSKeyFile:    cfg.Server.TLSKey,
		Debug:         cfg.Logging.Debug,
		OnConnect: func(clientID string, connected bool) {
			if connected && cfg.Server.Speak != "none" {
				greet(srv, cfg.Server.Speak, cfg.Server.StreamRate)
			}
		},
		OnCapture: func(clientID string, samples []int16) {
			if cfg.Logging.Debug {
				log.Printf("[DEBUG] %d capture samples from %s", len(samples), clientID)
			}
		},
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		metrics.RegisterServer(reg, srv)
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, cfg.Metrics.Path, reg); err != nil {
				log.Printf("Metrics error: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if *useTUI {
		tui := ui.NewServerTUI()
		go func() {
			if err := tui.Start(ui.ServerStatus{Name: serverName, Addr: cfg.Server.Addr}); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
		go tuiLoop(ctx, srv, tui, serverName)
		defer tui.Stop()
	} else {
		log.Printf("Press Ctrl-C to stop")
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}

// loadConfig reads the config file and applies flags given on the command line
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Addr = *addr
		case "name":
			cfg.Server.Name = *name
		case "speak":
			cfg.Server.Speak = *speak
		case "record-dir":
			cfg.Server.RecordDir = *recordDir
		case "no-mdns":
			cfg.Server.MDNS = !*noMDNS
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		case "debug":
			cfg.Logging.Debug = *debug
		case "tls-cert":
			cfg.Server.TLSCert = *tlsCert
		case "tls-key":
			cfg.Server.TLSKey = *tlsKey
		}
	})

	return cfg, cfg.Validate()
}

// greet speaks the configured source to a newly connected client
func greet(srv *voicelink.Server, location string, rate int) {
	src, err := voicelink.NewSpeechSource(location, rate)
	if err != nil {
		log.Printf("Cannot open speech source %q: %v", location, err)
		return
	}
	if err := srv.Speak(src); err != nil {
		src.Close()
		log.Printf("Greeting skipped: %v", err)
	}
}

// tuiLoop feeds server state to the TUI and stops the server when it quits
func tuiLoop(ctx context.Context, srv *voicelink.Server, tui *ui.ServerTUI, serverName string) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tui.Update(ui.ServerStatus{
				Name:    serverName,
				Addr:    srv.Addr(),
				Clients: srv.Clients(),
				Stats:   srv.Stats(),
			})
		case <-tui.QuitChan():
			srv.Stop()
			return
		case <-ctx.Done():
			return
		}
	}
}
