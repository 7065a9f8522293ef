package util

import (
	"net"
	"testing"
	"time"
)

func TestFormatAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"example.com", 53333, "example.com:53333"},
		{"127.0.0.1", 80, "127.0.0.1:80"},
		{"::1", 8080, "[::1]:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatAddr(tt.host, tt.port); got != tt.want {
				t.Errorf("FormatAddr(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
			}
		})
	}
}

func TestListenAddr(t *testing.T) {
	if got := ListenAddr(53333); got != ":53333" {
		t.Errorf("ListenAddr(53333) = %q", got)
	}
}

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	if port < 1 || port > 65535 {
		t.Fatalf("port %d out of range", port)
	}

	// The port should be bindable right after.
	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("bind %d: %v", port, err)
	}
	l.SetDeadline(time.Now().Add(time.Millisecond))
	l.Close()
}
