// Package chat implements the two operational modes: the server
// (listener, admission control, session relay) and the interactive
// client.
package chat

import (
	"context"
	"fmt"

	"gochat/config"
	"gochat/tunnel"
	"gochat/util"
)

// Chat orchestrates a single run, server or client.
type Chat struct {
	Config *config.Config
	Tunnel tunnel.Tunnel
	Logger *util.Logger
}

// New returns a ready-to-run Chat.
func New(cfg *config.Config, tun tunnel.Tunnel, logger *util.Logger) *Chat {
	return &Chat{Config: cfg, Tunnel: tun, Logger: logger}
}

// Run connects the tunnel (if any) and dispatches to the right mode.
func (c *Chat) Run(ctx context.Context) error {
	if c.Tunnel != nil {
		c.Logger.Verbose("establishing SSH tunnel to %s@%s:%d",
			c.Config.TunnelUser, c.Config.TunnelHost, c.Config.TunnelPort)
		if err := c.Tunnel.Connect(ctx); err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		defer c.Tunnel.Close()
		c.Logger.Verbose("SSH tunnel established")
	}

	if c.Config.Listen {
		return NewServer(c.Config, c.Logger).Run(ctx)
	}
	return NewClient(c.Config, c.Tunnel, c.Logger).Run(ctx)
}
