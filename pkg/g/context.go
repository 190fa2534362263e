package g

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gaia-mud/gaia/pkg/world"
)

// Defaults for a top-level invocation.
const (
	DefaultDepthLimit = 128
	DefaultBudget     = 500 * time.Millisecond
)

// World is the surface the interpreter needs from the hosting server.
// Implemented by pkg/game, and by test fixtures.
type World interface {
	// GetAttribute resolves name on the object's inheritance graph. The
	// bool distinguishes an absent attribute from a stored null.
	GetAttribute(id, name string) (world.Value, bool, error)
	SetAttribute(id, name string, v world.Value) error
	GetObject(id string) (*world.Object, error)
	CreateObject(name string, parents []string) (*world.Object, error)
	DestroyObject(id string) error
	// Send delivers a message to the target, running its on_message
	// handler if one resolves.
	Send(targetID string, msg world.Value, fromID string) error
	// LoadSource fetches named G source for the load builtin.
	LoadSource(name string) (string, error)
	// HasRole reports whether the acting account holds the role.
	HasRole(actorID, role string) bool
	Logf(format string, args ...any)
}

// Invocation is the per-top-level-call state shared by all nested
// evaluation: the time budget, the cancel flag, and the depth limit.
type Invocation struct {
	Deadline   time.Time
	DepthLimit int
	cancelled  atomic.Bool
}

// NewInvocation starts the clock on a top-level call.
func NewInvocation() *Invocation {
	return &Invocation{
		Deadline:   time.Now().Add(DefaultBudget),
		DepthLimit: DefaultDepthLimit,
	}
}

// Cancel requests cooperative termination; the interpreter checks the
// flag at every evaluation step.
func (inv *Invocation) Cancel() { inv.cancelled.Store(true) }

func (inv *Invocation) expired() bool {
	return inv.cancelled.Load() || time.Now().After(inv.Deadline)
}

// Frame holds symbol bindings for one attribute invocation. define
// writes into the innermost frame; lookup walks outward.
type Frame struct {
	vars   map[string]world.Value
	parent *Frame
}

// NewFrame creates a child frame.
func NewFrame(parent *Frame) *Frame {
	return &Frame{vars: make(map[string]world.Value), parent: parent}
}

func (f *Frame) lookup(name string) (world.Value, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		if v, ok := fr.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (f *Frame) define(name string, v world.Value) {
	f.vars[name] = v
}

// Context is the evaluation environment for one expression: who is
// acting, which object's code is running, and the invocation budget.
type Context struct {
	World    World
	Executor string // object whose attribute is executing
	Actor    string // object that initiated the top-level call
	This     string // alias target for the `this` symbol, usually Executor

	Frame *Frame
	Inv   *Invocation

	depth int
}

// NewContext builds a top-level evaluation context. Executor, actor and
// this all start at the same object.
func NewContext(w World, actorID string) *Context {
	return &Context{
		World:    w,
		Executor: actorID,
		Actor:    actorID,
		This:     actorID,
		Frame:    NewFrame(nil),
		Inv:      NewInvocation(),
	}
}

// child derives a nested context, sharing the invocation and counting
// depth.
func (c *Context) child(executor string, frame *Frame) *Context {
	return &Context{
		World:    c.World,
		Executor: executor,
		Actor:    c.Actor,
		This:     executor,
		Frame:    frame,
		Inv:      c.Inv,
		depth:    c.depth + 1,
	}
}

// parseCache memoizes parsed attribute source per invocation group. The
// cache is process-wide and keyed by source text, so re-running an
// unchanged attribute skips the parser.
var parseCache sync.Map // string -> []Node

func parseCached(src string) ([]Node, error) {
	if v, ok := parseCache.Load(src); ok {
		return v.([]Node), nil
	}
	nodes, err := ParseProgram(src)
	if err != nil {
		return nil, err
	}
	parseCache.Store(src, nodes)
	return nodes, nil
}
