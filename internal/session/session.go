// Package session holds the server-side state for one connected
// client: the connection, its line-oriented I/O, the phase machine
// (handshake → active → closed), and idempotent teardown.
//
// A session owns the byte stream but not the shared directory of
// users; registry membership is mutated through teardown hooks and
// the command executor, which keeps lock ordering in one place.
package session

import (
	"bufio"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"gochat/internal/errors"
	"gochat/protocol"
	"gochat/util"
)

// Phase is the session lifecycle state.  A session only ever moves
// forward: Handshake → Active → Closed.
type Phase int32

const (
	PhaseHandshake Phase = iota
	PhaseActive
	PhaseClosed
)

// Executor runs classified commands with the issuing session's
// identity bound.  Implemented by the chat package; the indirection
// keeps the state machine free of registry knowledge.
type Executor interface {
	// Register attempts to reserve name for the session.  False
	// means the name is already taken.
	Register(name string) bool
	// SendAll broadcasts the line's message body.
	SendAll(line string)
	// SendTo delivers the line's message body to its recipient.
	SendTo(line string)
	// List sends the current user listing to the caller.
	List()
	// Help sends the static usage listing to the caller.
	Help()
}

var nextID atomic.Uint64

// Session is the server-side state and resources for one connection.
type Session struct {
	id        uint64
	startTime time.Time
	conn      net.Conn
	logger    *util.Logger

	scanner *bufio.Scanner
	release func()
	readTO  time.Duration // refreshed deadline applied before each read

	writeMu sync.Mutex

	mu       sync.Mutex
	username string
	loggedIn bool
	phase    Phase

	connected atomic.Bool
	closeOnce sync.Once
	teardown  []func() // run in order on Close, each best-effort
}

// New wraps an accepted connection in a Session.  The session starts
// in the handshake phase, unnamed, with no read timeout set.
func New(conn net.Conn, logger *util.Logger) *Session {
	sc, release := util.NewLineScanner(conn)
	s := &Session{
		id:        nextID.Add(1),
		startTime: time.Now(),
		conn:      conn,
		logger:    logger,
		scanner:   sc,
		release:   release,
	}
	s.connected.Store(true)
	return s
}

// ID returns the unique session id.
func (s *Session) ID() uint64 { return s.id }

// StartTime returns when the connection was accepted.
func (s *Session) StartTime() time.Time { return s.startTime }

// RemoteAddr returns the peer address, or nil after close.
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Connected reports whether teardown has not run yet.
func (s *Session) Connected() bool { return s.connected.Load() }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// Username returns the registered name, or "" before login.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// SetUsername attaches the registered name.  It may succeed at most
// once per session; the registry calls it under its own lock, which
// makes name reservation and attachment one atomic step.
func (s *Session) SetUsername(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loggedIn {
		return errors.New("username already set")
	}
	s.username = name
	s.loggedIn = true
	return nil
}

// LoggedIn reports whether the session holds a registered name.
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

// ── Line I/O ─────────────────────────────────────────────────────────

// SetIdleTimeout sets the idle-read allowance applied before each
// subsequent ReadLine.
func (s *Session) SetIdleTimeout(d time.Duration) { s.readTO = d }

// ReadLine blocks for the next input line, bounded by the idle
// timeout.  End-of-stream surfaces as io.EOF; an expired deadline
// surfaces as a net.Error with Timeout() == true.
func (s *Session) ReadLine() (string, error) {
	if s.readTO > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTO)); err != nil {
			return "", errors.Wrap("read", s.conn.RemoteAddr().String(), err)
		}
	}
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// WriteLine sends one line to the client.  Safe for concurrent use:
// broadcasts from other sessions and replies from this session's own
// loop interleave at line granularity, never mid-line.
func (s *Session) WriteLine(line string) error {
	if !s.connected.Load() {
		return errors.ErrSessionClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write(append([]byte(line), '\n'))
	return err
}

// ── State machine ────────────────────────────────────────────────────

// Run drives the session through handshake and active phases until
// quit, timeout, or stream failure.  The returned error is the
// terminal read error (nil after an explicit quit); the caller owns
// Close.
func (s *Session) Run(exec Executor, handshakeTimeout, idleTimeout time.Duration) error {
	registered, err := s.handshake(exec, handshakeTimeout)
	if !registered {
		return err
	}

	s.setPhase(PhaseActive)
	s.SetIdleTimeout(idleTimeout)
	return s.active(exec)
}

// handshake reads lines until the session registers (true), quits, or
// the stream dies.  Ill-formed lines get one error response and the
// phase is kept.
func (s *Session) handshake(exec Executor, timeout time.Duration) (bool, error) {
	s.SetIdleTimeout(timeout)

	for {
		line, err := s.ReadLine()
		if err != nil {
			s.logReadEnd("handshake", err)
			return false, err
		}

		tag, cerr := protocol.Classify(line, protocol.PhaseHandshake)
		if cerr != nil {
			s.logger.Debug("session %d: %v", s.id, cerr)
			s.WriteLine(protocol.RespInvalid) //nolint:errcheck
			continue
		}

		switch tag {
		case protocol.CmdQuit:
			return false, nil
		case protocol.CmdRegister:
			name, nerr := protocol.RegisterName(line)
			if nerr != nil {
				s.WriteLine(protocol.RespInvalid) //nolint:errcheck
				continue
			}
			if !exec.Register(name) {
				s.WriteLine(protocol.RegisterTaken(name)) //nolint:errcheck
				continue
			}
			s.WriteLine(protocol.RegisterOK(name)) //nolint:errcheck
			return true, nil
		}
	}
}

// active dispatches chat commands until quit or stream failure.
func (s *Session) active(exec Executor) error {
	for {
		line, err := s.ReadLine()
		if err != nil {
			s.logReadEnd("active", err)
			return err
		}

		tag, cerr := protocol.Classify(line, protocol.PhaseActive)
		if cerr != nil {
			s.logger.Debug("session %d: %v", s.id, cerr)
			s.WriteLine(protocol.RespInvalid) //nolint:errcheck
			continue
		}

		switch tag {
		case protocol.CmdQuit:
			return nil
		case protocol.CmdSendAll:
			exec.SendAll(line)
		case protocol.CmdSendTo:
			exec.SendTo(line)
		case protocol.CmdList:
			exec.List()
		case protocol.CmdHelp:
			exec.Help()
		}
	}
}

func (s *Session) logReadEnd(phase string, err error) {
	switch {
	case errors.IsTimeout(err):
		s.logger.Verbose("session %d: %s idle timeout, evicting", s.id, phase)
	case errors.Is(err, io.EOF) || util.IsHarmless(err):
		s.logger.Debug("session %d: peer closed during %s", s.id, phase)
	default:
		s.logger.Verbose("session %d: read failed during %s: %v", s.id, phase, err)
	}
}

// ── Teardown ─────────────────────────────────────────────────────────

// OnClose registers a teardown step.  Steps run in registration order
// when Close fires; each is attempted regardless of earlier failures.
func (s *Session) OnClose(fn func()) {
	s.teardown = append(s.teardown, fn)
}

// Close tears the session down exactly once: runs the registered
// hooks, sends the best-effort disconnect notice, and releases the
// stream and scanner buffer.  Safe to call concurrently; quit,
// timeout, and server shutdown may race here.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.setPhase(PhaseClosed)

		for _, fn := range s.teardown {
			fn()
		}

		s.WriteLine(protocol.RespDisconnect) //nolint:errcheck

		s.connected.Store(false)
		if err := s.conn.Close(); err != nil && !util.IsHarmless(err) {
			s.logger.Debug("session %d: closing conn: %v", s.id, err)
		}
		s.release()
	})
}
