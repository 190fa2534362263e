package events

import (
	"sync"
)

// Subscriber receives events from the bus.
type Subscriber interface {
	Receive(ev Event)
	Closed() bool
}

// Bus is a per-object pub/sub event bus with support for global
// subscribers. Game code emits structured events; each subscriber
// (session, scrollback writer, logger) encodes them per-transport.
//
// Delivery to the subscribers of one target is serialized: a Receive
// for target X completes before the next Emit to X begins.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
	global      []Subscriber

	targetMu sync.Mutex
	targets  map[string]*sync.Mutex
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]Subscriber),
		targets:     make(map[string]*sync.Mutex),
	}
}

// Subscribe registers a subscriber for one object's events.
func (b *Bus) Subscribe(objectID string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[objectID] = append(b.subscribers[objectID], sub)
}

// Unsubscribe removes a subscriber for one object.
func (b *Bus) Unsubscribe(objectID string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[objectID]
	for i, s := range subs {
		if s == sub {
			b.subscribers[objectID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[objectID]) == 0 {
		delete(b.subscribers, objectID)
	}
}

// SubscribeGlobal registers a subscriber that receives all events.
func (b *Bus) SubscribeGlobal(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, sub)
}

// targetLock returns the per-target delivery lock, creating it on
// first use.
func (b *Bus) targetLock(objectID string) *sync.Mutex {
	b.targetMu.Lock()
	defer b.targetMu.Unlock()
	l, ok := b.targets[objectID]
	if !ok {
		l = &sync.Mutex{}
		b.targets[objectID] = l
	}
	return l
}

// Emit sends an event to the target's subscribers and all global
// subscribers. Targeted delivery holds the per-target lock so
// deliveries to one object never interleave.
func (b *Bus) Emit(ev Event) {
	if ev.Target != "" {
		l := b.targetLock(ev.Target)
		l.Lock()
		defer l.Unlock()
	}

	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subscribers[ev.Target]...)
	globals := append([]Subscriber(nil), b.global...)
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
	for _, s := range globals {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
}

// EmitTo sends an event to one object, overriding ev.Target.
func (b *Bus) EmitTo(objectID string, ev Event) {
	ev.Target = objectID
	b.Emit(ev)
}

// EmitToAll sends an event to several objects in turn.
func (b *Bus) EmitToAll(objectIDs []string, ev Event) {
	for _, id := range objectIDs {
		b.EmitTo(id, ev)
	}
}

// Prune drops closed subscribers and unused target locks.
func (b *Bus) Prune() {
	b.mu.Lock()
	for id, subs := range b.subscribers {
		kept := subs[:0]
		for _, s := range subs {
			if !s.Closed() {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(b.subscribers, id)
		} else {
			b.subscribers[id] = kept
		}
	}
	keptGlobal := b.global[:0]
	for _, s := range b.global {
		if !s.Closed() {
			keptGlobal = append(keptGlobal, s)
		}
	}
	b.global = keptGlobal
	live := make(map[string]bool, len(b.subscribers))
	for id := range b.subscribers {
		live[id] = true
	}
	b.mu.Unlock()

	b.targetMu.Lock()
	for id := range b.targets {
		if !live[id] {
			delete(b.targets, id)
		}
	}
	b.targetMu.Unlock()
}
