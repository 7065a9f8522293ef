package chat

import (
	"gochat/internal/errors"
	"gochat/internal/metrics"
	"gochat/internal/registry"
	"gochat/internal/session"
	"gochat/protocol"
	"gochat/util"
)

// Executor runs chat commands with one session's identity bound.  All
// registry access goes through the registry's atomic operations, so
// every command sees a consistent view of who is logged in.
type Executor struct {
	sess    *session.Session
	reg     *registry.Registry
	logger  *util.Logger
	metrics *metrics.Collector
}

// NewExecutor binds an executor to the issuing session.
func NewExecutor(sess *session.Session, reg *registry.Registry, logger *util.Logger, m *metrics.Collector) *Executor {
	return &Executor{sess: sess, reg: reg, logger: logger, metrics: m}
}

// Register reserves name for the session.  False means the name is
// taken; the session stays in the handshake phase and may retry.
func (e *Executor) Register(name string) bool {
	if err := e.reg.Register(name, e.sess); err != nil {
		e.logger.Verbose("session %d: name %q refused: %v", e.sess.ID(), name, err)
		return false
	}
	e.metrics.UserRegistered()
	e.logger.Info("session %d registered as %q", e.sess.ID(), name)
	return true
}

// SendAll broadcasts the line's message body to every other logged-in
// user.  An empty registry makes it a silent no-op; the sender gets
// no error for talking into the void.
func (e *Executor) SendAll(line string) {
	body, err := protocol.Body(protocol.CmdSendAll, line)
	if err != nil {
		e.sess.WriteLine(protocol.RespInvalid) //nolint:errcheck
		return
	}
	msg := protocol.FormatBroadcast(e.sess.Username(), body)
	if e.reg.Broadcast(e.sess, msg) {
		e.metrics.BroadcastSent()
	}
}

// SendTo delivers the line's message body to its recipient and
// confirms to the sender, or reports the unknown recipient.
func (e *Executor) SendTo(line string) {
	recipient, err := protocol.Recipient(line)
	if err != nil {
		e.sess.WriteLine(protocol.RespInvalid) //nolint:errcheck
		return
	}
	body, err := protocol.Body(protocol.CmdSendTo, line)
	if err != nil {
		e.sess.WriteLine(protocol.RespInvalid) //nolint:errcheck
		return
	}

	msg := protocol.FormatDirect(e.sess.Username(), body)
	switch err := e.reg.SendTo(recipient, msg); {
	case errors.Is(err, errors.ErrUnknownRecipient):
		e.sess.WriteLine(protocol.SendToMissing(recipient)) //nolint:errcheck
	case err != nil:
		// Recipient exists but its stream is dying; its own read
		// loop will evict it.  The message is gone either way.
		e.logger.Debug("session %d: delivery to %q failed: %v", e.sess.ID(), recipient, err)
		e.sess.WriteLine(protocol.SendToMissing(recipient)) //nolint:errcheck
	default:
		e.metrics.DirectSent()
		e.sess.WriteLine(protocol.SendToOK(recipient)) //nolint:errcheck
	}
}

// List sends the caller a consistent snapshot of registered names.
func (e *Executor) List() {
	e.sess.WriteLine(protocol.ListReply(e.reg.Usernames())) //nolint:errcheck
}

// Help sends the static command usage listing.  No registry access.
func (e *Executor) Help() {
	e.sess.WriteLine(protocol.Help()) //nolint:errcheck
}
