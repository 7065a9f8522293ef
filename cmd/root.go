// Package cmd wires up the CLI flags and dispatches to the chat core.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"gochat/chat"
	"gochat/config"
	"gochat/tunnel"
	"gochat/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X gochat/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the appropriate gochat mode.
func Execute(ctx context.Context, args []string) error {
	cfg := &config.Config{
		MaxClients:       config.DefaultMaxClients,
		HandshakeTimeout: config.DefaultHandshakeTimeout,
		IdleTimeout:      config.DefaultIdleTimeout,
		Timeout:          config.DefaultDialTimeout,
		Retries:          config.DefaultDialRetries,
	}
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("gochat", flag.ContinueOnError)

	// ── connection ───────────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Run as server")
	fs.IntVarP(&cfg.LocalPort, "port", "p", cfg.LocalPort, "Server bind port")

	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Connect timeout in seconds")
	fs.IntVarP(&cfg.Retries, "retries", "r", cfg.Retries, "Connect attempts before giving up")

	// ── server ───────────────────────────────────────────────────
	fs.IntVarP(&cfg.MaxClients, "max-clients", "m", cfg.MaxClients, "Maximum concurrent sessions")

	handshakeSec := int(cfg.HandshakeTimeout / time.Second)
	idleSec := int(cfg.IdleTimeout / time.Second)
	fs.IntVar(&handshakeSec, "handshake-timeout", handshakeSec, "Pre-login idle limit in seconds")
	fs.IntVar(&idleSec, "idle-timeout", idleSec, "Post-login idle limit in seconds")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate configuration and exit")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("gochat %s\n", version)
		return nil
	}

	cfg.Timeout = time.Duration(timeoutSec) * time.Second
	cfg.HandshakeTimeout = time.Duration(handshakeSec) * time.Second
	cfg.IdleTimeout = time.Duration(idleSec) * time.Second

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dryRun {
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	var tun tunnel.Tunnel
	if cfg.TunnelEnabled {
		tun = tunnel.NewSSHTunnel(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
		}, logger)
	}

	return chat.New(cfg, tun, logger).Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		if len(remaining) > 0 {
			return fmt.Errorf("listen mode takes no positional arguments")
		}
		return nil
	}

	// Client mode: host port
	if len(remaining) < 1 {
		return fmt.Errorf("server hostname required (use --help for usage)")
	}
	cfg.Host = remaining[0]

	cfg.Port = config.DefaultPort
	if len(remaining) >= 2 {
		port, err := config.ParsePort(remaining[1])
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = port
	}
	if len(remaining) > 2 {
		return fmt.Errorf("too many arguments")
	}
	return nil
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `gochat – Line-Based Chat Tool v%s

A TCP chat server and interactive client with SSH tunneling.

Usage:
  gochat [options] <host> [port]              Connect to a server
  gochat -l -p <port> [options]               Run a server
  gochat -T user@gateway <host> <port>        Connect through SSH

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  gochat -l -p %d                          Serve on %d
  gochat chat.example.com %d               Join a chat room
  gochat -l -p %d -m 50 --idle-timeout 600 Bigger, lazier room
  gochat -T admin@bastion chat-internal %d Reach a private server
`, config.DefaultPort, config.DefaultPort, config.DefaultPort,
		config.DefaultPort, config.DefaultPort)
}
