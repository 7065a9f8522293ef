package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultPort is the port the server binds and the client dials
	// when none is given.
	DefaultPort = 53333

	// DefaultMaxClients bounds the number of concurrent sessions.
	// The (N+1)-th connection is rejected before a session exists.
	DefaultMaxClients = 10

	// DefaultHandshakeTimeout is how long an unauthenticated
	// connection may idle before it is evicted.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultIdleTimeout is how long a logged-in session may sit
	// silent before it is evicted.
	DefaultIdleTimeout = 5 * time.Minute

	// DefaultDialTimeout is the client's TCP/SSH connection timeout.
	DefaultDialTimeout = 30 * time.Second

	// DefaultDialRetries is how many connection attempts the client
	// makes before giving up.
	DefaultDialRetries = 3

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22
)
