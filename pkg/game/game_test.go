package game

import (
	"strings"
	"testing"

	"github.com/gaia-mud/gaia/pkg/account"
	"github.com/gaia-mud/gaia/pkg/parse"
	"github.com/gaia-mud/gaia/pkg/world"
)

// memAccounts is an in-memory account.Store for game tests.
type memAccounts struct {
	byID    map[string]*account.Account
	byLogin map[string]string
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: make(map[string]*account.Account), byLogin: make(map[string]string)}
}

func (m *memAccounts) Fetch(id string) (*account.Account, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) FetchByLogin(login string) (*account.Account, error) {
	id, ok := m.byLogin[strings.ToLower(login)]
	if !ok {
		return nil, account.ErrNotFound
	}
	return m.Fetch(id)
}

func (m *memAccounts) Store(a *account.Account) error {
	if prev, ok := m.byID[a.ID]; ok {
		delete(m.byLogin, strings.ToLower(prev.Login))
	}
	cp := *a
	m.byID[a.ID] = &cp
	m.byLogin[strings.ToLower(a.Login)] = a.ID
	return nil
}

func (m *memAccounts) Delete(id string) error {
	a, ok := m.byID[id]
	if !ok {
		return account.ErrNotFound
	}
	delete(m.byLogin, strings.ToLower(a.Login))
	delete(m.byID, id)
	return nil
}

func (m *memAccounts) ListByRole(role string) ([]string, error) {
	var out []string
	for id, a := range m.byID {
		if a.HasRole(account.Role(role)) {
			out = append(out, id)
		}
	}
	return out, nil
}

// newTestGame builds a game over in-memory stores with a bootstrapped
// admin account.
func newTestGame(t *testing.T) *Game {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AdminPassword = "xyzzy"
	cache := world.NewCache(world.NewMemStore())
	accounts := account.NewManager(newMemAccounts())
	gm := NewGame(cfg, cache, accounts)
	if err := gm.Bootstrap(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return gm
}

// newTestSession returns a session whose output can be read back with
// drain; the writer goroutine stays unstarted so delivery is in-order
// and synchronous.
func newTestSession(t *testing.T, gm *Game) *Session {
	t.Helper()
	s := NewSession(gm, gm.Sessions.NextID(), nil)
	gm.Sessions.Add(s)
	return s
}

// drain empties the session's outbound queue.
func drain(s *Session) []string {
	var out []string
	for {
		select {
		case msg, ok := <-s.out:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func contains(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// login runs the connect handshake for the bootstrapped admin.
func login(t *testing.T, gm *Game, s *Session) {
	t.Helper()
	gm.HandleLine(s, "connect admin xyzzy")
	if s.State() != StateAuthed {
		t.Fatalf("state after login = %v, want StateAuthed: %v", s.State(), drain(s))
	}
	drain(s)
}

// makeCharacter creates a character object attached to the account and
// standing in a fresh room.
func makeCharacter(t *testing.T, gm *Game, s *Session, name string) (charID, roomID string) {
	t.Helper()
	roomID = "#room-" + name
	room := world.NewObject(roomID, world.RootID)
	room.Name = "quiet room"
	room.Description = "A quiet room."
	if err := gm.Cache.Put(room); err != nil {
		t.Fatalf("put room: %v", err)
	}

	charID = "#char-" + name
	ch := world.NewObject(charID, world.RootID)
	ch.Name = name
	ch.LocationID = roomID
	if err := gm.Cache.Put(ch); err != nil {
		t.Fatalf("put character: %v", err)
	}

	room = room.Clone()
	room.ContentIDs = append(room.ContentIDs, charID)
	if err := gm.Cache.Put(room); err != nil {
		t.Fatalf("update room: %v", err)
	}

	if err := gm.Accounts.AttachCharacter(s.Account().ID, charID); err != nil {
		t.Fatalf("attach: %v", err)
	}
	// The session's account snapshot predates the attach.
	acct, _ := gm.Accounts.Get(s.Account().ID)
	s.mu.Lock()
	s.acct = acct
	s.mu.Unlock()
	return charID, roomID
}

func TestLoginRetryLimit(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)

	gm.HandleLine(s, "connect admin nope")
	gm.HandleLine(s, "connect admin nope")
	if s.Closed() {
		t.Fatal("closed before third failure")
	}
	gm.HandleLine(s, "connect admin nope")
	if !s.Closed() {
		t.Fatal("session survived three failed logins")
	}
	if !contains(drain(s), "Too many failed logins.") {
		t.Error("missing disconnect notice")
	}
}

func TestLoginSuccess(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)

	gm.HandleLine(s, "connect admin xyzzy")
	lines := drain(s)
	if s.State() != StateAuthed {
		t.Fatalf("state = %v, want StateAuthed: %v", s.State(), lines)
	}
	if !contains(lines, "Welcome, admin.") {
		t.Errorf("missing welcome: %v", lines)
	}
	if !strings.HasPrefix(s.UserID(), "#user-") {
		t.Errorf("user object = %q", s.UserID())
	}
	if _, err := gm.Cache.Get(s.UserID()); err != nil {
		t.Errorf("transient user object missing: %v", err)
	}
}

func TestPreAuthWhoAndQuit(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)

	gm.HandleLine(s, "WHO")
	if !contains(drain(s), "connected.") {
		t.Error("WHO refused before login")
	}

	gm.HandleLine(s, "gibberish here")
	if !contains(drain(s), "connect <user> <password>") {
		t.Error("missing login usage hint")
	}

	gm.HandleLine(s, "QUIT")
	if !s.Closed() {
		t.Error("QUIT did not close the session")
	}
}

func TestCreateAccountAtLoginPrompt(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)

	gm.HandleLine(s, "create newbie secret")
	lines := drain(s)
	if s.State() != StateAuthed {
		t.Fatalf("state = %v, want StateAuthed: %v", s.State(), lines)
	}
	if !contains(lines, "Account created. Welcome, newbie.") {
		t.Errorf("missing creation welcome: %v", lines)
	}
	if _, err := gm.Accounts.Authenticate("newbie", "secret"); err != nil {
		t.Errorf("created account does not authenticate: %v", err)
	}

	// The name is now taken.
	s2 := newTestSession(t, gm)
	gm.HandleLine(s2, "create NEWBIE other")
	if !contains(drain(s2), "That user name is taken.") {
		t.Error("duplicate login accepted at the prompt")
	}
	if s2.State() != StateLogin {
		t.Errorf("state = %v, want StateLogin", s2.State())
	}
}

func TestVerbSynonym(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)
	login(t, gm, s)
	_, roomID := makeCharacter(t, gm, s, "hero")
	gm.HandleLine(s, "connect character hero")
	drain(s)

	if err := gm.Cache.SetAttribute(roomID, "cmd_look", `"You look around."`); err != nil {
		t.Fatalf("set handler: %v", err)
	}

	// "l" is a stock synonym for look; the handler name stays cmd_look.
	gm.Dispatch(s, "l")
	if !contains(drain(s), "You look around.") {
		t.Error("synonym did not reach the canonical handler")
	}

	gm.AddVerbSynonym("peer", "look")
	gm.Dispatch(s, "peer")
	if !contains(drain(s), "You look around.") {
		t.Error("registered synonym did not reach the canonical handler")
	}
}

func TestConnectCharacterAndDisplacement(t *testing.T) {
	gm := newTestGame(t)
	s1 := newTestSession(t, gm)
	login(t, gm, s1)
	charID, _ := makeCharacter(t, gm, s1, "hero")

	gm.HandleLine(s1, "connect character hero")
	if s1.State() != StateEmbodied || s1.CharacterID() != charID {
		t.Fatalf("embodiment failed: state=%v char=%q: %v", s1.State(), s1.CharacterID(), drain(s1))
	}
	drain(s1)

	// A second connection takes the character over.
	s2 := newTestSession(t, gm)
	login(t, gm, s2)
	gm.HandleLine(s2, "connect character hero")

	if s2.State() != StateEmbodied {
		t.Fatalf("second session not embodied: %v", drain(s2))
	}
	if s1.State() != StateAuthed || s1.CharacterID() != "" {
		t.Errorf("first session still embodied: state=%v char=%q", s1.State(), s1.CharacterID())
	}
	if !contains(drain(s1), "taken over by another connection") {
		t.Error("displaced session got no takeover notice")
	}
}

// An on_message handler that sends to its own object must not wedge
// the send path: the reply queues and goes out after the handler
// returns.
func TestOnMessageSelfSendQueues(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)
	login(t, gm, s)
	charID, roomID := makeCharacter(t, gm, s, "echo")
	gm.HandleLine(s, "connect character echo")
	drain(s)

	handler := `[if [equals arg0 "ping"] [send this "pong"]]`
	if err := gm.Cache.SetAttribute(charID, "on_message", handler); err != nil {
		t.Fatalf("set handler: %v", err)
	}

	if err := gm.World().Send(charID, "ping", roomID); err != nil {
		t.Fatalf("send: %v", err)
	}

	lines := drain(s)
	pingAt, pongAt := -1, -1
	for i, l := range lines {
		if pingAt == -1 && strings.Contains(l, "ping") {
			pingAt = i
		}
		if strings.Contains(l, "pong") {
			pongAt = i
		}
	}
	if pingAt == -1 || pongAt == -1 || pongAt < pingAt {
		t.Fatalf("delivered %v, want ping then pong", lines)
	}
}

func TestConnectUnknownCharacter(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)
	login(t, gm, s)

	gm.HandleLine(s, "connect character nobody")
	if !contains(drain(s), "no character named") {
		t.Error("missing unknown-character notice")
	}
	if s.State() != StateAuthed {
		t.Errorf("state = %v, want StateAuthed", s.State())
	}
}

// A look handler on the room, found via the binder's search order, runs
// with the room as executor and reports its description to the actor.
func TestDispatchRoomLook(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)
	login(t, gm, s)
	_, roomID := makeCharacter(t, gm, s, "hero")
	gm.HandleLine(s, "connect character hero")
	drain(s)

	err := gm.Cache.SetAttribute(roomID, "cmd_look",
		`[send @actor [get_attr @executor "description"]]`)
	if err != nil {
		t.Fatalf("set handler: %v", err)
	}

	gm.Dispatch(s, "look")
	if !contains(drain(s), "A quiet room.") {
		t.Error("look did not report the room description")
	}
}

// An inherited handler resolves through the direct object's parents and
// makes the direct object the executor.
func TestDispatchInheritedHandlerOnDirectObject(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)
	login(t, gm, s)
	_, roomID := makeCharacter(t, gm, s, "hero")
	gm.HandleLine(s, "connect character hero")
	drain(s)

	err := gm.Cache.SetAttribute(world.RootID, "cmd_look",
		`[send @actor [get_attr @executor "description"]]`)
	if err != nil {
		t.Fatalf("set handler: %v", err)
	}

	sword := world.NewObject("#sword", world.RootID)
	sword.Name = "rusty sword"
	sword.Description = "More rust than sword."
	sword.LocationID = roomID
	if err := gm.Cache.Put(sword); err != nil {
		t.Fatalf("put sword: %v", err)
	}
	room, _ := gm.Cache.Get(roomID)
	room = room.Clone()
	room.ContentIDs = append(room.ContentIDs, "#sword")
	if err := gm.Cache.Put(room); err != nil {
		t.Fatalf("update room: %v", err)
	}

	gm.Dispatch(s, "look sword")
	if !contains(drain(s), "More rust than sword.") {
		t.Error("look sword did not use the sword as executor")
	}
}

func TestDispatchFallbackToCommandsObject(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)
	login(t, gm, s)
	makeCharacter(t, gm, s, "hero")
	gm.HandleLine(s, "connect character hero")
	drain(s)

	gm.Dict.Add("ponder", parse.TagVerb)
	if err := gm.Cache.SetAttribute(CommandsID, "cmd_ponder", `"You ponder."`); err != nil {
		t.Fatalf("set handler: %v", err)
	}

	gm.Dispatch(s, "ponder")
	if !contains(drain(s), "You ponder.") {
		t.Error("global handler did not run")
	}
}

func TestDispatchUnknownVerb(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)
	login(t, gm, s)
	makeCharacter(t, gm, s, "hero")
	gm.HandleLine(s, "connect character hero")
	drain(s)

	gm.Dispatch(s, "defenestrate everything")
	if !contains(drain(s), "I don't understand") {
		t.Error("missing default rejection")
	}
}

// The recognizer stack tries Admin, then User, then Game.
func TestStackSelection(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)
	login(t, gm, s)
	_, roomID := makeCharacter(t, gm, s, "hero")
	gm.HandleLine(s, "connect character hero")
	drain(s)

	// Slash prefix reaches the admin layer.
	gm.Dispatch(s, "/who")
	if !contains(drain(s), "connected.") {
		t.Error("/who did not reach the admin recognizer")
	}

	// A plain verb falls through to the game layer.
	if err := gm.Cache.SetAttribute(roomID, "cmd_look", `"You look around."`); err != nil {
		t.Fatalf("set handler: %v", err)
	}
	gm.Dispatch(s, "look")
	if !contains(drain(s), "You look around.") {
		t.Error("look did not reach the game recognizer")
	}

	// User keywords work while embodied.
	gm.Dispatch(s, "WHO")
	if !contains(drain(s), "connected.") {
		t.Error("WHO did not reach the user recognizer")
	}
}

func TestAdminEvalDiagnostic(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)
	login(t, gm, s)

	gm.Dispatch(s, "/eval [+ 1 2]")
	if !contains(drain(s), "=> 3") {
		t.Error("eval result missing")
	}

	gm.Dispatch(s, "/eval [no_such_fn 1]")
	if !contains(drain(s), "G error: unresolved callee") {
		t.Error("eval failure diagnostic missing")
	}
}

func TestAdminCreateDelete(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)
	login(t, gm, s)

	gm.Dispatch(s, "/create widget")
	lines := drain(s)
	if !contains(lines, "Created #o-") {
		t.Fatalf("create output: %v", lines)
	}

	var id string
	for _, l := range lines {
		if strings.HasPrefix(l, "Created ") {
			id = strings.Fields(l)[1]
		}
	}
	obj, err := gm.Cache.Get(id)
	if err != nil {
		t.Fatalf("created object missing: %v", err)
	}
	if obj.Name != "widget" || obj.ParentIDs[0] != world.RootID {
		t.Errorf("object = %+v", obj)
	}

	gm.Dispatch(s, "/delete "+id)
	drain(s)
	if _, err := gm.Cache.Get(id); err == nil {
		t.Error("object survived /delete")
	}
}

func TestAdminCommandsDeniedToPlayers(t *testing.T) {
	gm := newTestGame(t)
	if _, err := gm.Accounts.Create("mortal", "pw", ""); err != nil {
		t.Fatalf("create account: %v", err)
	}
	s := newTestSession(t, gm)
	gm.HandleLine(s, "connect mortal pw")
	drain(s)

	gm.Dispatch(s, "/shutdown")
	if !contains(drain(s), "I don't understand") {
		t.Error("admin command leaked to a player")
	}
	select {
	case <-gm.ShutdownCh:
		t.Fatal("player triggered shutdown")
	default:
	}
}

func TestSessionRemoveEvictsUserObject(t *testing.T) {
	gm := newTestGame(t)
	s := newTestSession(t, gm)
	login(t, gm, s)
	userID := s.UserID()

	gm.Sessions.Remove(s)
	if gm.Cache.Contains(userID) {
		t.Error("transient user object survived disconnect")
	}
	if gm.Sessions.ByActor(userID) != nil {
		t.Error("actor mapping survived disconnect")
	}
}

func TestSyncConfigObject(t *testing.T) {
	gm := newTestGame(t)

	if err := gm.SyncConfigObject(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	v, ok, _ := gm.Cache.GetAttribute(ConfigID, "telnet_port")
	if !ok || v != float64(gm.Cfg.TelnetPort) {
		t.Errorf("telnet_port = %v ok=%v", v, ok)
	}

	// A world-side override wins over the file value.
	if err := gm.Cache.SetAttribute(ConfigID, "depth_limit", float64(32)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := gm.SyncConfigObject(); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if gm.Cfg.DepthLimit != 32 {
		t.Errorf("depth limit = %d, want 32", gm.Cfg.DepthLimit)
	}
}

func TestWhoListsAuthenticatedSessions(t *testing.T) {
	gm := newTestGame(t)
	pre := newTestSession(t, gm) // never logs in
	_ = pre
	s := newTestSession(t, gm)
	login(t, gm, s)

	lines := gm.Who()
	if len(lines) != 1 {
		t.Fatalf("who lines = %d, want 1", len(lines))
	}
	if lines[0].Login != "admin" {
		t.Errorf("login = %q", lines[0].Login)
	}
	if !strings.Contains(gm.FormatWho(), "1 connected.") {
		t.Errorf("format = %q", gm.FormatWho())
	}
}
