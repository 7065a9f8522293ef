package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"gochat/config"
	"gochat/internal/errors"
	"gochat/internal/retry"
	"gochat/protocol"
	"gochat/tunnel"
	"gochat/util"
)

const welcomeBanner = "Welcome to Chat Server!\n" +
	"Type 'user <username>' to register in the chat. Type 'bye' to close the program."

// Client connects to a chat server, registers interactively, and
// relays console lines to the server while printing server output
// verbatim.
type Client struct {
	cfg    *config.Config
	tun    tunnel.Tunnel
	logger *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer

	// connected tells the console loop to stop reading input once
	// the server side is gone.
	connected atomic.Bool
}

// NewClient builds a client from the config.
func NewClient(cfg *config.Config, tun tunnel.Tunnel, logger *util.Logger) *Client {
	return &Client{cfg: cfg, tun: tun, logger: logger}
}

func (c *Client) stdin() io.Reader {
	if c.Stdin != nil {
		return c.Stdin
	}
	return os.Stdin
}

func (c *Client) stdout() io.Writer {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

// Run dials the server, performs the registration handshake, and
// relays lines until quit or disconnect.  It always returns control
// to the caller; a server-side disconnect only releases this client's
// resources.
func (c *Client) Run(ctx context.Context) error {
	addr := util.FormatAddr(c.cfg.Host, c.cfg.Port)

	conn, err := c.dialRetry(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.connected.Store(true)

	c.logger.Verbose("connected to %s", conn.RemoteAddr())

	// Drop the connection when the context is cancelled so both
	// pumps unblock.
	go func() {
		<-ctx.Done()
		c.connected.Store(false)
		conn.Close()
	}()

	serverSc, release := util.NewLineScanner(conn)
	defer release()
	consoleSc, crelease := util.NewLineScanner(c.stdin())
	defer crelease()

	fmt.Fprintln(c.stdout(), welcomeBanner)

	loggedOn, err := c.register(conn, serverSc, consoleSc)
	if err != nil {
		return err
	}
	if !loggedOn {
		fmt.Fprintln(c.stdout(), "Program closed. :)")
		return nil
	}

	return c.relay(conn, serverSc, consoleSc)
}

// dialRetry dials the server, through the tunnel when one is
// configured, with exponential backoff between attempts.
func (c *Client) dialRetry(ctx context.Context, addr string) (net.Conn, error) {
	attempts := c.cfg.Retries
	if attempts == 0 {
		attempts = config.DefaultDialRetries
	}
	backoff := &retry.Backoff{MaxAttempts: attempts, Jitter: true}

	var conn net.Conn
	err := backoff.Do(ctx, func(attempt int) error {
		c.logger.Verbose("connecting to %s (attempt %d/%d)", addr, attempt, attempts)

		var derr error
		conn, derr = c.dial(ctx, addr)
		if derr == nil {
			return nil
		}
		if c.tun != nil && !c.tun.IsAlive() {
			// A dead tunnel will not come back by retrying the dial.
			return retry.Permanent(derr)
		}
		return derr
	})
	if err != nil {
		return nil, errors.Wrap("dial", addr, err)
	}
	return conn, nil
}

func (c *Client) dial(ctx context.Context, addr string) (net.Conn, error) {
	if c.tun != nil {
		return c.tun.Dial(ctx, "tcp", addr)
	}
	d := net.Dialer{Timeout: c.cfg.Timeout}
	return d.DialContext(ctx, "tcp", addr)
}

// register runs the interactive handshake: console lines are checked
// against the handshake grammar locally (nothing malformed is sent),
// and server replies are classified through the protocol regexes.
// Returns false when the user quit or the console closed before
// logging on.
func (c *Client) register(conn net.Conn, serverSc, consoleSc *bufio.Scanner) (bool, error) {
	for consoleSc.Scan() {
		line := consoleSc.Text()

		tag, err := protocol.Classify(line, protocol.PhaseHandshake)
		if err != nil {
			fmt.Fprintln(c.stdout(), protocol.RespInvalid+" "+protocol.Hint(protocol.PhaseHandshake))
			continue
		}

		if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
			return false, errors.Wrap("write", conn.RemoteAddr().String(), err)
		}
		if tag == protocol.CmdQuit {
			return false, nil
		}

		if !serverSc.Scan() {
			return false, errors.ErrNotConnected
		}
		reply := serverSc.Text()
		switch {
		case protocol.IsRegisterOK(reply):
			fmt.Fprintln(c.stdout(), reply)
			return true, nil
		case protocol.IsRegisterErr(reply) || protocol.IsInvalid(reply):
			fmt.Fprintln(c.stdout(), reply)
			// prompt again
		default:
			return false, fmt.Errorf("unexpected server reply %q: disconnecting", reply)
		}
	}
	return false, nil
}

// relay is the active phase: one goroutine prints server lines
// verbatim, the console loop validates and forwards input, and the
// shared connected flag stops both.
func (c *Client) relay(conn net.Conn, serverSc, consoleSc *bufio.Scanner) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Server lines go to the console verbatim; the teardown
		// notice ends the pump.
		util.PumpScanner(c.stdout(), serverSc, protocol.IsDisconnect) //nolint:errcheck
		c.connected.Store(false)
	}()

	for c.connected.Load() && consoleSc.Scan() {
		line := consoleSc.Text()

		tag, err := protocol.Classify(line, protocol.PhaseActive)
		if err != nil {
			fmt.Fprintln(c.stdout(), protocol.RespInvalid+" "+protocol.Hint(protocol.PhaseActive))
			continue
		}
		if !c.connected.Load() {
			break
		}

		if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
			if util.IsHarmless(err) {
				break
			}
			return errors.Wrap("write", conn.RemoteAddr().String(), err)
		}
		if tag == protocol.CmdQuit {
			break
		}
	}

	// Half-close the write side so the server runs our teardown and
	// its disconnect notice can drain; tunnelled connections just get
	// the grace period.
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite() //nolint:errcheck
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	conn.Close()
	<-done

	c.connected.Store(false)
	c.logger.Verbose("disconnected")
	return nil
}
