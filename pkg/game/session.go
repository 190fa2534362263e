package game

import (
	"net"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gaia-mud/gaia/pkg/account"
	"github.com/gaia-mud/gaia/pkg/events"
	"github.com/gaia-mud/gaia/pkg/g"
)

// SessionState tracks the login state machine.
type SessionState int

const (
	StateLogin    SessionState = iota // awaiting connect <user> <password>
	StateAuthed                       // authenticated, unembodied
	StateEmbodied                     // driving a character
)

// outboundDepth bounds the per-session output queue; senders block when
// it fills, which is the backpressure the interpreter observes.
const outboundDepth = 256

// Session is one client connection: telnet or WebSocket. It implements
// events.Subscriber for its user object and character.
type Session struct {
	ID        int
	Addr      string
	Transport string // "telnet" or "websocket"

	conn net.Conn
	out  chan string

	// SendFunc overrides the default writer (used by the WebSocket
	// transport). ReceiveFunc overrides event encoding.
	SendFunc    func(msg string)
	ReceiveFunc func(ev events.Event)

	gm *Game

	mu        sync.Mutex
	state     SessionState
	acct      *account.Account
	userID    string // transient user object, "" before auth
	character string // embodied character, "" when unembodied
	retries   int
	connTime  time.Time
	lastCmd   time.Time
	closed    bool
	inflight  *g.Invocation
}

// NewSession wraps a net.Conn. The caller starts the writer with Run.
func NewSession(gm *Game, id int, conn net.Conn) *Session {
	now := time.Now()
	addr := "internal"
	if conn != nil {
		addr = conn.RemoteAddr().String()
	}
	return &Session{
		ID:        id,
		Addr:      addr,
		Transport: "telnet",
		conn:      conn,
		out:       make(chan string, outboundDepth),
		gm:        gm,
		connTime:  now,
		lastCmd:   now,
	}
}

// Run starts the outbound writer goroutine.
func (s *Session) Run() {
	go s.writer()
}

// writer drains the outbound channel; one goroutine per session keeps
// client writes from interleaving mid-message.
func (s *Session) writer() {
	for msg := range s.out {
		if s.SendFunc != nil {
			s.SendFunc(msg)
			continue
		}
		if !strings.HasSuffix(msg, "\n") {
			msg += "\r\n"
		}
		s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if _, err := s.conn.Write([]byte(msg)); err != nil {
			s.Close()
			return
		}
	}
}

// Send queues a line for the client. Blocks when the outbound queue is
// full; drops only after close.
func (s *Session) Send(msg string) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	defer func() {
		// The channel races with Close; a send on the closed channel is
		// a dropped line, not a crash.
		_ = recover()
	}()
	s.out <- msg
}

// Receive implements events.Subscriber.
func (s *Session) Receive(ev events.Event) {
	if s.ReceiveFunc != nil {
		s.ReceiveFunc(ev)
		return
	}
	if ev.Text != "" {
		s.Send(ev.Text)
	}
}

// Closed implements events.Subscriber.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ events.Subscriber = (*Session)(nil)

// Close shuts the connection down and cancels in-flight G work.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	inflight := s.inflight
	s.mu.Unlock()

	if inflight != nil {
		inflight.Cancel()
	}
	close(s.out)
	if s.conn != nil {
		s.conn.Close()
	}
}

// BeginInvocation registers the invocation so a disconnect can cancel
// it.
func (s *Session) BeginInvocation(inv *g.Invocation) {
	s.mu.Lock()
	s.inflight = inv
	s.mu.Unlock()
}

// EndInvocation clears the in-flight registration.
func (s *Session) EndInvocation() {
	s.mu.Lock()
	s.inflight = nil
	s.mu.Unlock()
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Account() *account.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acct
}

// UserID is the transient user object for this session, empty before
// authentication.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// CharacterID is the embodied character, empty when unembodied.
func (s *Session) CharacterID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.character
}

// ActorID is the object commands act as: the character when embodied,
// otherwise the transient user object.
func (s *Session) ActorID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.character != "" {
		return s.character
	}
	return s.userID
}

// IsAdmin reports whether the session's account carries an admin role.
func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acct != nil && s.acct.IsAdmin()
}

func (s *Session) Idle() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastCmd)
}

func (s *Session) Age() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.connTime)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastCmd = time.Now()
	s.mu.Unlock()
}

// decodeLine interprets raw input as UTF-8, falling back to Latin-1 for
// clients that never heard of Unicode.
func decodeLine(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}
