// Package config defines the runtime configuration for gochat and
// provides helpers for parsing ports and tunnel specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"gochat/internal/errors"
)

// Config holds every tuneable for a single gochat run, server or client.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Host      string
	Port      int // destination port (client mode)
	LocalPort int // -p: server bind port
	Listen    bool
	Timeout   time.Duration // client dial timeout
	Retries   int           // client dial attempts

	// ── Server ───────────────────────────────────────────────────────
	MaxClients       int           // admission bound / worker pool size
	HandshakeTimeout time.Duration // idle-read timeout before login
	IdleTimeout      time.Duration // idle-read timeout after login

	// ── SSH tunnel (client only) ─────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// ── Port helper ──────────────────────────────────────────────────────

// ParsePort accepts a single numeric port in 1-65535.
func ParsePort(spec string) (int, error) {
	port, err := strconv.Atoi(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Failures come back as [errors.ConfigError] naming the offending
// flag or argument.
func (c *Config) Validate() error {
	if c.Listen {
		if c.LocalPort == 0 {
			return &errors.ConfigError{
				Field:   "--port",
				Message: "listen mode requires a bind port",
				Hint:    fmt.Sprintf("gochat -l -p %d", DefaultPort),
			}
		}
		if c.TunnelEnabled {
			return &errors.ConfigError{
				Field:   "--tunnel",
				Message: "listen mode through an SSH tunnel is not supported",
			}
		}
		if c.MaxClients < 1 {
			return &errors.ConfigError{
				Field:   "--max-clients",
				Value:   c.MaxClients,
				Message: "must be at least 1",
			}
		}
		if c.HandshakeTimeout <= 0 || c.IdleTimeout <= 0 {
			return &errors.ConfigError{
				Field:   "--handshake-timeout",
				Message: "timeouts must be positive",
			}
		}
		if c.HandshakeTimeout > c.IdleTimeout {
			return &errors.ConfigError{
				Field:   "--handshake-timeout",
				Value:   c.HandshakeTimeout,
				Message: fmt.Sprintf("exceeds the idle timeout (%v)", c.IdleTimeout),
				Hint:    "the pre-login window is meant to be the short one",
			}
		}
	} else {
		if c.Host == "" {
			return &errors.ConfigError{
				Field:   "host",
				Message: "server hostname is required",
				Hint:    "use --help for usage",
			}
		}
		if c.Port == 0 {
			return &errors.ConfigError{
				Field:   "port",
				Message: "server port is required",
			}
		}
		if c.TunnelEnabled && c.TunnelHost == "" {
			return &errors.ConfigError{
				Field:   "--tunnel",
				Message: "tunnel host is required",
			}
		}
	}

	if c.Retries < 0 {
		return &errors.ConfigError{
			Field:   "--retries",
			Value:   c.Retries,
			Message: "must not be negative",
		}
	}

	return nil
}
