// Package registry is the shared directory of sessions: the one
// source of truth for who can receive messages.
//
// Every operation runs its entire check-then-act sequence inside the
// single registry lock, so two simultaneous registrations of the same
// name cannot both win and a broadcast cannot interleave with a
// concurrent removal.  Callers get the right granularity of mutual
// exclusion by construction; there is no way to touch the maps
// directly.
package registry

import (
	"sort"
	"sync"

	"gochat/internal/errors"
	"gochat/internal/session"
)

// Registry maps registered usernames to their sessions and tracks
// admitted-but-unnamed sessions.  A connected session is in exactly
// one of the two collections.
type Registry struct {
	mu      sync.Mutex
	named   map[string]*session.Session
	pending []*session.Session
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{named: make(map[string]*session.Session)}
}

// AddPending records a freshly admitted session that has not yet
// registered a name.
func (r *Registry) AddPending(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, s)
}

// Register atomically reserves name for s: the check and the insert
// happen under one lock, and this is the sole place usernames are
// reserved.  On success the session moves from the pending list to
// the named map and carries the name for the rest of its life.
func (r *Registry) Register(name string, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.named[name]; taken {
		return errors.ErrNameTaken
	}
	if err := s.SetUsername(name); err != nil {
		return err
	}
	r.named[name] = s
	r.dropPending(s)
	return nil
}

// Remove detaches s from the registry, wherever it currently lives.
// Safe to call for sessions that were never registered and safe to
// call twice; teardown races (timeout vs explicit quit) both end up
// here.
func (r *Registry) Remove(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name := s.Username(); name != "" && r.named[name] == s {
		delete(r.named, name)
		return
	}
	r.dropPending(s)
}

// dropPending removes s from the pending list.  Caller holds r.mu.
func (r *Registry) dropPending(s *session.Session) {
	for i, p := range r.pending {
		if p == s {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return
		}
	}
}

// Usernames returns a sorted snapshot of the registered names.
func (r *Registry) Usernames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.named))
	for name := range r.named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.named)
}

// Broadcast delivers line to every registered session except the
// sender.  Returns false without delivering when nobody is
// registered.  Per-recipient write failures are ignored here; a dead
// recipient's own read loop notices and tears it down.
func (r *Registry) Broadcast(sender *session.Session, line string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.named) == 0 {
		return false
	}
	for _, s := range r.named {
		if s == sender {
			continue
		}
		s.WriteLine(line) //nolint:errcheck
	}
	return true
}

// SendTo delivers line to the named recipient.  The lookup and the
// delivery share the lock, so the recipient cannot be concurrently
// removed in between.
func (r *Registry) SendTo(recipient, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.named[recipient]
	if !ok {
		return errors.ErrUnknownRecipient
	}
	return s.WriteLine(line)
}

// CloseAll tears down every tracked session, named and pending.  Used
// on server shutdown.  Sessions are snapshotted first because each
// Close re-enters Remove.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*session.Session, 0, len(r.named)+len(r.pending))
	for _, s := range r.named {
		all = append(all, s)
	}
	all = append(all, r.pending...)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
