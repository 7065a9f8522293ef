package registry

import (
	"bufio"
	"io"
	"net"
	"reflect"
	"sync"
	"testing"
	"time"

	"gochat/internal/errors"
	"gochat/internal/session"
	"gochat/util"
)

// newTestSession wraps one end of an in-memory pipe in a Session and
// returns the peer end for observing writes.
func newTestSession(t *testing.T) (*session.Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	s := session.New(server, util.NewLogger(0))
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return s, client
}

// drain discards everything the session writes so synchronous pipe
// writes cannot block the code under test.
func drain(peer net.Conn) {
	go io.Copy(io.Discard, peer) //nolint:errcheck
}

// readLine reads a single newline-terminated line from peer.  On any
// error it returns the error text, which no assertion will match.
func readLine(peer net.Conn) string {
	peer.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	line, err := bufio.NewReader(peer).ReadString('\n')
	if err != nil {
		return "read error: " + err.Error()
	}
	return line[:len(line)-1]
}

func TestRegister_ReservesName(t *testing.T) {
	r := New()
	a, peerA := newTestSession(t)
	b, peerB := newTestSession(t)
	drain(peerA)
	drain(peerB)

	if err := r.Register("alice", a); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.Register("alice", b); !errors.Is(err, errors.ErrNameTaken) {
		t.Fatalf("duplicate registration: got %v, want ErrNameTaken", err)
	}
	if a.Username() != "alice" {
		t.Errorf("winner username = %q, want alice", a.Username())
	}
	if b.Username() != "" {
		t.Errorf("loser username = %q, want empty", b.Username())
	}
}

// TestRegister_Concurrent races many sessions for one name; exactly
// one may win.
func TestRegister_Concurrent(t *testing.T) {
	r := New()
	const n = 32

	var wg sync.WaitGroup
	var wins sync.Map
	for i := 0; i < n; i++ {
		s, peer := newTestSession(t)
		drain(peer)
		wg.Add(1)
		go func(s *session.Session) {
			defer wg.Done()
			if err := r.Register("alice", s); err == nil {
				wins.Store(s, true)
			}
		}(s)
	}
	wg.Wait()

	count := 0
	wins.Range(func(_, _ any) bool { count++; return true })
	if count != 1 {
		t.Fatalf("winners = %d, want exactly 1", count)
	}
	if r.Len() != 1 {
		t.Errorf("registry size = %d, want 1", r.Len())
	}
}

func TestRemove(t *testing.T) {
	r := New()
	a, peerA := newTestSession(t)
	drain(peerA)

	if err := r.Register("alice", a); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Remove(a)
	if r.Len() != 0 {
		t.Errorf("registry size after remove = %d, want 0", r.Len())
	}
	r.Remove(a) // safe to repeat

	// The freed name is available again.
	b, peerB := newTestSession(t)
	drain(peerB)
	if err := r.Register("alice", b); err != nil {
		t.Errorf("re-registering freed name: %v", err)
	}
}

func TestRemove_KeepsSameNameNewSession(t *testing.T) {
	r := New()
	a, peerA := newTestSession(t)
	b, peerB := newTestSession(t)
	drain(peerA)
	drain(peerB)

	if err := r.Register("alice", a); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Remove(a)
	if err := r.Register("alice", b); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	// A late Remove for the old session must not evict the new one.
	r.Remove(a)
	if r.Len() != 1 {
		t.Errorf("registry size = %d, want 1", r.Len())
	}
}

func TestUsernames_Sorted(t *testing.T) {
	r := New()
	for _, name := range []string{"carol", "alice", "bob"} {
		s, peer := newTestSession(t)
		drain(peer)
		if err := r.Register(name, s); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	got := r.Usernames()
	want := []string{"alice", "bob", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Usernames() = %v, want %v", got, want)
	}
}

func TestBroadcast(t *testing.T) {
	r := New()
	alice, peerAlice := newTestSession(t)
	bob, peerBob := newTestSession(t)
	carol, peerCarol := newTestSession(t)

	for name, s := range map[string]*session.Session{
		"alice": alice, "bob": bob, "carol": carol,
	} {
		if err := r.Register(name, s); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	got := make(chan string, 2)
	for _, peer := range []net.Conn{peerBob, peerCarol} {
		go func(p net.Conn) { got <- readLine(p) }(peer)
	}

	if !r.Broadcast(alice, "300 msg_fromalicehello") {
		t.Fatal("Broadcast returned false with registered users")
	}

	for i := 0; i < 2; i++ {
		select {
		case line := <-got:
			if line != "300 msg_fromalicehello" {
				t.Errorf("recipient got %q", line)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("recipient never received the broadcast")
		}
	}

	// The sender must not receive its own broadcast.
	peerAlice.SetReadDeadline(time.Now().Add(50 * time.Millisecond)) //nolint:errcheck
	buf := make([]byte, 1)
	if _, err := peerAlice.Read(buf); err == nil {
		t.Error("sender received its own broadcast")
	}
}

func TestBroadcast_EmptyRoom(t *testing.T) {
	r := New()
	s, peer := newTestSession(t)
	drain(peer)
	r.AddPending(s) // admitted but not registered

	if r.Broadcast(s, "300 msg_fromnobodyhi") {
		t.Error("Broadcast returned true with no registered users")
	}
}

func TestSendTo(t *testing.T) {
	r := New()
	alice, peerAlice := newTestSession(t)
	bob, peerBob := newTestSession(t)
	drain(peerAlice)

	if err := r.Register("alice", alice); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("bob", bob); err != nil {
		t.Fatalf("register: %v", err)
	}

	got := make(chan string, 1)
	go func() { got <- readLine(peerBob) }()

	if err := r.SendTo("bob", "300 msg_fromalicepsst"); err != nil {
		t.Fatalf("SendTo: %v", err)
	}
	select {
	case line := <-got:
		if line != "300 msg_fromalicepsst" {
			t.Errorf("recipient got %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recipient never received the message")
	}

	if err := r.SendTo("mallory", "x"); !errors.Is(err, errors.ErrUnknownRecipient) {
		t.Errorf("unknown recipient: got %v, want ErrUnknownRecipient", err)
	}
}

func TestCloseAll(t *testing.T) {
	r := New()
	named, peerNamed := newTestSession(t)
	pending, peerPending := newTestSession(t)
	drain(peerNamed)
	drain(peerPending)

	if err := r.Register("alice", named); err != nil {
		t.Fatalf("register: %v", err)
	}
	named.OnClose(func() { r.Remove(named) })
	pending.OnClose(func() { r.Remove(pending) })
	r.AddPending(pending)

	r.CloseAll()

	if named.Connected() || pending.Connected() {
		t.Error("sessions still connected after CloseAll")
	}
	if r.Len() != 0 {
		t.Errorf("registry size after CloseAll = %d, want 0", r.Len())
	}
}
