// ABOUTME: WebSocket client for the voicelink protocol
// ABOUTME: Sends binary capture frames and routes server text events
package protocol

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned when sending on a closed client
var ErrNotConnected = errors.New("not connected")

const writeTimeout = 5 * time.Second

// Config holds client configuration
type Config struct {
	ServerAddr         string // host:port
	Secure             bool   // use wss
	InsecureSkipVerify bool   // accept self-signed server certificates
	Debug              bool
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex
	wmu    sync.Mutex // gorilla allows one concurrent writer

	events chan Event
	done   chan struct{}

	// State
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config: config,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// URL returns the websocket endpoint URL for the configured server
func (c *Client) URL() string {
	scheme := "ws"
	if c.config.Secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: c.config.ServerAddr, Path: PathWebSocket}
	return u.String()
}

// Connect dials the server and starts the read loop
func (c *Client) Connect(ctx context.Context) error {
	target := c.URL()
	log.Printf("Connecting to %s", target)

	dialer := *websocket.DefaultDialer
	if c.config.Secure && c.config.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readMessages()

	return nil
}

// Events returns the channel of server events. It is closed when the
// connection ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed once the read loop has exited
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// SendFrame sends one binary capture frame
func (c *Client) SendFrame(frame []byte) error {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer close(c.done)
	defer close(c.events)
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				log.Printf("Read error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.handleEvent(data)
		case websocket.BinaryMessage:
			log.Printf("Ignoring unexpected binary message (%d bytes)", len(data))
		default:
			log.Printf("Unknown WebSocket message type: %d", messageType)
		}
	}
}

// handleEvent parses one text message and forwards it
func (c *Client) handleEvent(data []byte) {
	ev, err := ParseEvent(data)
	if err != nil {
		log.Printf("Failed to parse event: %v", err)
		return
	}
	if !ev.Known() {
		log.Printf("Unknown event type: %s", ev.Type)
	}
	if c.config.Debug {
		log.Printf("Received event: %s", ev.Type)
	}

	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()

		c.wmu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.wmu.Unlock()

		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
