// Package game ties the world cache, the G interpreter, the parser
// stack and the session transports into a running server.
package game

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gaia-mud/gaia/pkg/account"
	"github.com/gaia-mud/gaia/pkg/events"
	"github.com/gaia-mud/gaia/pkg/g"
	"github.com/gaia-mud/gaia/pkg/parse"
	"github.com/gaia-mud/gaia/pkg/world"
)

// Well-known object IDs.
const (
	UserParentID  = "#user"     // parent of every transient session object
	CommandsID    = "#commands" // global command dispatch object
	ConfigID      = "#config"   // configuration readable from G
)

// Game is the assembled server state shared by all sessions.
type Game struct {
	Cfg      *Config
	Cache    *world.Cache
	Accounts *account.Manager
	Bus      *events.Bus
	Sessions *SessionManager

	AdminCommands *parse.Table
	UserKeywords  *parse.Table
	Dict          *parse.Dictionary
	Recency       *parse.Recency

	Texts      *TextFiles
	Scrollback *Scrollback
	Metrics    *Metrics
	Auth       *AuthService

	StartTime time.Time

	// sendQueues serializes on_message delivery per target object.
	sendMu     sync.Mutex
	sendQueues map[string]*sendQueue

	// verbSyn maps alias verbs to the canonical verb whose cmd_ handler
	// serves them.
	verbMu  sync.RWMutex
	verbSyn map[string]string

	shutdownOnce sync.Once
	ShutdownCh   chan struct{}
}

// NewGame assembles a Game over an opened cache and account store.
func NewGame(cfg *Config, cache *world.Cache, accounts *account.Manager) *Game {
	gm := &Game{
		Cfg:           cfg,
		Cache:         cache,
		Accounts:      accounts,
		Bus:           events.NewBus(),
		AdminCommands: parse.NewTable(),
		UserKeywords:  parse.NewTable(),
		Dict:          parse.NewDictionary(),
		Recency:       parse.NewRecency(),
		Texts:         NewTextFiles(),
		StartTime:     time.Now(),
		sendQueues:    make(map[string]*sendQueue),
		verbSyn:       make(map[string]string),
		ShutdownCh:    make(chan struct{}),
	}
	gm.Sessions = NewSessionManager(gm)
	registerAdminCommands(gm.AdminCommands)
	registerUserKeywords(gm.UserKeywords)
	gm.Dict.Add("look", parse.TagVerb)
	gm.Dict.Add("say", parse.TagVerb)
	gm.Dict.Add("get", parse.TagVerb)
	gm.Dict.Add("drop", parse.TagVerb)
	gm.Dict.Add("go", parse.TagVerb)
	gm.AddVerbSynonym("l", "look")
	gm.AddVerbSynonym("take", "get")
	return gm
}

// AddVerbSynonym registers an alias verb served by the canonical verb's
// cmd_ handler. The alias is tagged as a verb for the Game recognizer.
func (gm *Game) AddVerbSynonym(alias, canonical string) {
	alias = strings.ToLower(alias)
	gm.verbMu.Lock()
	gm.verbSyn[alias] = strings.ToLower(canonical)
	gm.verbMu.Unlock()
	gm.Dict.Add(alias, parse.TagVerb)
}

// CanonicalVerb resolves a recognized verb through the synonym table.
func (gm *Game) CanonicalVerb(verb string) string {
	gm.verbMu.RLock()
	defer gm.verbMu.RUnlock()
	if c, ok := gm.verbSyn[strings.ToLower(verb)]; ok {
		return c
	}
	return verb
}

// RequestShutdown asks the server loops to wind down. Safe to call more
// than once.
func (gm *Game) RequestShutdown() {
	gm.shutdownOnce.Do(func() { close(gm.ShutdownCh) })
}

// World returns the interpreter-facing view of the game.
func (gm *Game) World() g.World { return &gameWorld{gm: gm} }

// NewContext builds an interpreter context with the configured bounds.
func (gm *Game) NewContext(actorID string) *g.Context {
	ctx := g.NewContext(gm.World(), actorID)
	if gm.Cfg != nil {
		if gm.Cfg.DepthLimit > 0 {
			ctx.Inv.DepthLimit = gm.Cfg.DepthLimit
		}
		if gm.Cfg.BudgetMillis > 0 {
			ctx.Inv.Deadline = time.Now().Add(time.Duration(gm.Cfg.BudgetMillis) * time.Millisecond)
		}
	}
	return ctx
}

// sendQueue orders message delivery to one target. The draining
// goroutine never holds the mutex while handler code runs, so an
// on_message handler may send to its own object; the message queues
// and delivers after the handler returns.
type sendQueue struct {
	mu      sync.Mutex
	busy    bool
	pending []queuedSend
}

type queuedSend struct {
	msg  world.Value
	from string
}

func (gm *Game) sendQueue(targetID string) *sendQueue {
	gm.sendMu.Lock()
	defer gm.sendMu.Unlock()
	q, ok := gm.sendQueues[targetID]
	if !ok {
		q = &sendQueue{}
		gm.sendQueues[targetID] = q
	}
	return q
}

// NewObjectID mints a world-unique object ID.
func NewObjectID() string {
	return "#o-" + uuid.NewString()
}

// gameWorld adapts Game to the interpreter's World interface.
type gameWorld struct {
	gm *Game
}

var _ g.World = (*gameWorld)(nil)

func (w *gameWorld) GetAttribute(id, name string) (world.Value, bool, error) {
	return w.gm.Cache.GetAttribute(id, name)
}

func (w *gameWorld) SetAttribute(id, name string, v world.Value) error {
	return w.gm.Cache.SetAttribute(id, name, v)
}

func (w *gameWorld) GetObject(id string) (*world.Object, error) {
	return w.gm.Cache.Get(id)
}

func (w *gameWorld) CreateObject(name string, parents []string) (*world.Object, error) {
	if len(parents) == 0 {
		parents = []string{world.RootID}
	}
	obj := world.NewObject(NewObjectID(), parents...)
	obj.Name = name
	if err := w.gm.Cache.Put(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (w *gameWorld) DestroyObject(id string) error {
	return w.gm.Cache.Delete(id)
}

// Send delivers a message to targetID: sessions subscribed to the
// target receive it over the bus, and the target's on_message handler
// (inherited resolution included) runs to completion. Deliveries to
// one target never interleave; whichever caller finds the queue idle
// drains it, and anything enqueued mid-handler goes out afterwards.
func (w *gameWorld) Send(targetID string, msg world.Value, fromID string) error {
	q := w.gm.sendQueue(targetID)
	q.mu.Lock()
	q.pending = append(q.pending, queuedSend{msg: msg, from: fromID})
	if q.busy {
		q.mu.Unlock()
		return nil
	}
	q.busy = true
	for len(q.pending) > 0 {
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()
		w.deliver(targetID, next.msg, next.from)
		q.mu.Lock()
	}
	q.busy = false
	q.mu.Unlock()
	return nil
}

func (w *gameWorld) deliver(targetID string, msg world.Value, fromID string) {
	w.gm.Bus.Emit(events.Event{
		Type:    events.EvMessage,
		Target:  targetID,
		Source:  fromID,
		Payload: msg,
		Text:    world.ToString(msg),
	})

	v, ok, err := w.gm.Cache.GetAttribute(targetID, "on_message")
	if err != nil {
		w.gm.Logf("send: on_message lookup for %s: %v", targetID, err)
		return
	}
	if !ok {
		return
	}
	src, isString := v.(string)
	if !isString {
		return
	}
	ctx := w.gm.NewContext(targetID)
	if _, err := g.Invoke(ctx, src, []world.Value{msg, world.Ref(fromID)}); err != nil {
		w.gm.Logf("send: on_message for %s: %v", targetID, err)
	}
}

// LoadSource reads named G source from the configured source directory.
func (w *gameWorld) LoadSource(name string) (string, error) {
	return w.gm.readSource(name)
}

// HasRole consults the account behind the acting object. Objects with
// no session (tick handlers, world code) hold no roles.
func (w *gameWorld) HasRole(actorID, role string) bool {
	s := w.gm.Sessions.ByActor(actorID)
	if s == nil || s.Account() == nil {
		return false
	}
	return s.Account().HasRole(account.Role(role))
}

func (w *gameWorld) Logf(format string, args ...any) {
	w.gm.Logf(format, args...)
}

// Logf writes a server log line.
func (gm *Game) Logf(format string, args ...any) {
	log.Printf(format, args...)
}

// Debugf logs only when debug logging is configured.
func (gm *Game) Debugf(format string, args ...any) {
	if gm.Cfg != nil && gm.Cfg.Debug {
		log.Printf(format, args...)
	}
}

// WhoLine summarizes one connected session for WHO listings.
type WhoLine struct {
	SessionID int
	Login     string
	Character string
	Idle      time.Duration
	Connected time.Duration
}

// Who lists connected, authenticated sessions.
func (gm *Game) Who() []WhoLine {
	var out []WhoLine
	for _, s := range gm.Sessions.All() {
		if s.State() == StateLogin {
			continue
		}
		login := ""
		if a := s.Account(); a != nil {
			login = a.Login
		}
		charName := ""
		if id := s.CharacterID(); id != "" {
			if obj, err := gm.Cache.Get(id); err == nil {
				charName = obj.Name
			}
		}
		out = append(out, WhoLine{
			SessionID: s.ID,
			Login:     login,
			Character: charName,
			Idle:      s.Idle(),
			Connected: s.Age(),
		})
	}
	return out
}

// FormatWho renders a WHO table as text.
func (gm *Game) FormatWho() string {
	lines := gm.Who()
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %-16s %8s %8s\n", "Login", "Character", "Idle", "On")
	for _, l := range lines {
		char := l.Character
		if char == "" {
			char = "-"
		}
		fmt.Fprintf(&b, "%-16s %-16s %8s %8s\n",
			l.Login, char, shortDuration(l.Idle), shortDuration(l.Connected))
	}
	fmt.Fprintf(&b, "%d connected.", len(lines))
	return b.String()
}

func shortDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
