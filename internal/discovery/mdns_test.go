// ABOUTME: Tests for mDNS discovery
// ABOUTME: Tests manager lifecycle without touching the network
package discovery

import (
	"context"
	"testing"
	"time"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Test Server", Port: 8001})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	if mgr.Servers() == nil {
		t.Error("expected servers channel")
	}
	mgr.Stop()
}

func TestServerInfoAddr(t *testing.T) {
	tests := []struct {
		info ServerInfo
		want string
	}{
		{ServerInfo{Host: "192.168.1.20", Port: 8001}, "192.168.1.20:8001"},
		{ServerInfo{Host: "fe80::1", Port: 443}, "[fe80::1]:443"},
	}
	for _, tt := range tests {
		if got := tt.info.Addr(); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}

func TestWaitForServerHonorsContext(t *testing.T) {
	mgr := NewManager(Config{})
	defer mgr.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if _, err := mgr.WaitForServer(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if time.Since(start) > time.Second {
		t.Error("WaitForServer did not return promptly")
	}
}
