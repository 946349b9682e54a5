// ABOUTME: mDNS service discovery for voicelink servers
// ABOUTME: Servers advertise _voicelink._tcp and clients browse for them
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the DNS-SD service type voicelink servers register
const ServiceType = "_voicelink._tcp"

// queryTimeout bounds one browse round
const queryTimeout = 3 * time.Second

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	TXT         []string // extra TXT records such as path=/ws
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered server
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// Addr returns host:port for dialing
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Advertise announces this server via mDNS until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.config.TXT,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse starts searching for voicelink servers in the background
func (m *Manager) Browse() {
	go m.browseLoop()
}

// browseLoop continuously browses for servers
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				if entry.AddrV4 == nil {
					continue
				}
				server := &ServerInfo{
					Name: entry.Name,
					Host: entry.AddrV4.String(),
					Port: entry.Port,
				}

				log.Printf("Discovered server: %s at %s", server.Name, server.Addr())

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: ServiceType,
			Domain:  "local",
			Timeout: queryTimeout,
			Entries: entries,
		}

		if err := mdns.Query(params); err != nil {
			log.Printf("mDNS query error: %v", err)
		}
		close(entries)
		<-done
	}
}

// Servers returns the channel of discovered servers
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// WaitForServer browses until the first server appears or ctx ends
func (m *Manager) WaitForServer(ctx context.Context) (*ServerInfo, error) {
	m.Browse()
	select {
	case server := <-m.servers:
		return server, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no voicelink server found: %w", ctx.Err())
	}
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
