package chat

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"gochat/config"
	"gochat/internal/errors"
	"gochat/internal/metrics"
	"gochat/internal/registry"
	"gochat/internal/session"
	"gochat/protocol"
	"gochat/util"
)

// Server owns the bound socket, admits connections up to the
// configured bound, and runs one session worker per admitted
// connection.
type Server struct {
	cfg     *config.Config
	logger  *util.Logger
	metrics *metrics.Collector
	reg     *registry.Registry

	ln       net.Listener
	active   atomic.Int64 // admission counter, independent of the registry lock
	wg       sync.WaitGroup
	closed   atomic.Bool
	shutOnce sync.Once
}

// NewServer builds a server from the config.  Nothing is bound until
// Run.
func NewServer(cfg *config.Config, logger *util.Logger) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		reg:     registry.New(),
	}
}

// Run binds the port and accepts connections until the context is
// cancelled or the listener fails.  A bind failure is fatal and
// nothing else is started.
func (s *Server) Run(ctx context.Context) error {
	addr := util.ListenAddr(s.cfg.LocalPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap("listen", addr, err)
	}
	s.ln = ln

	s.logger.Info("chat server listening on %s (max %d clients)", ln.Addr(), s.cfg.MaxClients)

	// Cancellation closes the listener, which unblocks Accept.
	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.Shutdown()
			s.wg.Wait()
			s.logger.Verbose("final stats:\n%s", s.metrics.JSON())
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// Accept failed while we were supposed to keep running:
			// fatal, after the shutdown above.
			s.metrics.RecordError(err.Error())
			return errors.Wrap("accept", addr, err)
		}
		s.admit(conn)
	}
}

// admit applies the admission bound.  At capacity the raw connection
// gets the room-full notice and is closed; no session, registry
// entry, or worker ever exists for it.
func (s *Server) admit(conn net.Conn) {
	if s.active.Load() >= int64(s.cfg.MaxClients) {
		s.metrics.ConnectionRejected()
		s.logger.Verbose("rejecting %s: room full", conn.RemoteAddr())
		fmt.Fprintln(conn, protocol.RespRoomFull) //nolint:errcheck
		conn.Close()
		return
	}

	s.active.Add(1)
	s.metrics.SessionOpened()

	sess := session.New(conn, s.logger)
	sess.OnClose(func() { s.reg.Remove(sess) })
	s.reg.AddPending(sess)

	s.logger.Verbose("session %d: connection from %s", sess.ID(), conn.RemoteAddr())

	s.wg.Add(1)
	go s.serve(sess)
}

// serve is the per-session worker.  Teardown always runs, in order:
// session close (registry removal, disconnect notice, stream
// release), then the admission slot is returned.
func (s *Server) serve(sess *session.Session) {
	defer s.wg.Done()
	defer func() {
		sess.Close()
		s.active.Add(-1)
		s.metrics.SessionClosed()
	}()

	exec := NewExecutor(sess, s.reg, s.logger, s.metrics)
	err := sess.Run(exec, s.cfg.HandshakeTimeout, s.cfg.IdleTimeout)
	switch {
	case err == nil:
		s.logger.Verbose("session %d: quit", sess.ID())
	case errors.IsTimeout(err):
		s.metrics.SessionTimedOut()
	case !util.IsHarmless(err):
		s.metrics.RecordError(err.Error())
	}
}

// Shutdown stops accepting, closes the listener, and tears down every
// live session.  Idempotent; safe to call from any goroutine.
func (s *Server) Shutdown() {
	s.shutOnce.Do(func() {
		s.closed.Store(true)
		s.logger.Info("chat server shutting down")
		if s.ln != nil {
			s.ln.Close()
		}
		s.reg.CloseAll()
	})
}

// Stats returns a snapshot of the server's runtime counters.
func (s *Server) Stats() metrics.Snapshot {
	return s.metrics.Snapshot()
}

// ActiveSessions returns the current admission count.
func (s *Server) ActiveSessions() int64 { return s.active.Load() }
