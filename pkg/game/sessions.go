package game

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gaia-mud/gaia/pkg/account"
	"github.com/gaia-mud/gaia/pkg/events"
	"github.com/gaia-mud/gaia/pkg/world"
)

// SessionManager tracks live sessions and enforces the one-session-per-
// character invariant.
type SessionManager struct {
	gm *Game

	mu       sync.RWMutex
	sessions map[int]*Session
	byActor  map[string]*Session // user object or character -> session
	nextID   int
}

func NewSessionManager(gm *Game) *SessionManager {
	return &SessionManager{
		gm:       gm,
		sessions: make(map[int]*Session),
		byActor:  make(map[string]*Session),
		nextID:   1,
	}
}

// NextID allocates a session ID.
func (sm *SessionManager) NextID() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	id := sm.nextID
	sm.nextID++
	return id
}

// Add registers a session.
func (sm *SessionManager) Add(s *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[s.ID] = s
}

// Remove unregisters a session, evicts its transient user object and
// unsubscribes it from the bus.
func (sm *SessionManager) Remove(s *Session) {
	sm.mu.Lock()
	delete(sm.sessions, s.ID)
	for id, sess := range sm.byActor {
		if sess == s {
			delete(sm.byActor, id)
		}
	}
	sm.mu.Unlock()

	if userID := s.UserID(); userID != "" {
		sm.gm.Bus.Unsubscribe(userID, s)
		sm.gm.Cache.Evict(userID)
	}
	if charID := s.CharacterID(); charID != "" {
		sm.gm.Bus.Unsubscribe(charID, s)
		sm.gm.Recency.Forget(charID)
	}
}

// All snapshots the live sessions.
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	return out
}

// ByActor finds the session driving an object, nil when none.
func (sm *SessionManager) ByActor(objectID string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.byActor[objectID]
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Authenticate moves a session to the authenticated state: it gains a
// transient user object (a cache-only child of #user) and a bus
// subscription for it.
func (sm *SessionManager) Authenticate(s *Session, acct *account.Account) error {
	userID := fmt.Sprintf("#user-%s", uuid.NewString())
	obj := world.NewObject(userID, UserParentID)
	obj.Name = acct.Login
	obj.OwnerID = acct.ID
	if err := sm.gm.Cache.PutTransient(obj); err != nil {
		return fmt.Errorf("game: transient user object: %w", err)
	}

	s.mu.Lock()
	s.state = StateAuthed
	s.acct = acct
	s.userID = userID
	s.mu.Unlock()

	sm.mu.Lock()
	sm.byActor[userID] = s
	sm.mu.Unlock()

	sm.gm.Bus.Subscribe(userID, s)
	sm.gm.Logf("[%d] authenticated as %s (%s)", s.ID, acct.Login, userID)
	return nil
}

// Embody binds a character to the session. A character already driven
// by another session displaces that session's embodiment first.
func (sm *SessionManager) Embody(s *Session, charID string) {
	sm.mu.Lock()
	prev := sm.byActor[charID]
	sm.mu.Unlock()

	if prev != nil && prev != s {
		prev.Send("*** Your character has been taken over by another connection. ***")
		sm.Unembody(prev)
	}

	s.mu.Lock()
	s.state = StateEmbodied
	s.character = charID
	s.mu.Unlock()

	sm.mu.Lock()
	sm.byActor[charID] = s
	sm.mu.Unlock()

	sm.gm.Bus.Subscribe(charID, s)
	sm.gm.Bus.Emit(events.Event{Type: events.EvEmbody, Target: charID, Source: charID})
	sm.gm.Logf("[%d] embodied %s", s.ID, charID)
}

// Unembody detaches the session's character, returning it to the
// authenticated-unembodied state.
func (sm *SessionManager) Unembody(s *Session) {
	s.mu.Lock()
	charID := s.character
	s.character = ""
	if s.state == StateEmbodied {
		s.state = StateAuthed
	}
	s.mu.Unlock()

	if charID == "" {
		return
	}
	sm.gm.Bus.Unsubscribe(charID, s)
	sm.mu.Lock()
	if sm.byActor[charID] == s {
		delete(sm.byActor, charID)
	}
	sm.mu.Unlock()
}

// FindCharacter resolves a character name among the account's attached
// characters, case-insensitively.
func (sm *SessionManager) FindCharacter(acct *account.Account, name string) (string, error) {
	want := strings.ToLower(name)
	for _, id := range acct.CharacterIDs {
		obj, err := sm.gm.Cache.Get(id)
		if err != nil {
			continue
		}
		if strings.ToLower(obj.Name) == want {
			return id, nil
		}
	}
	return "", fmt.Errorf("game: no character named %q: %w", name, world.ErrNotFound)
}
