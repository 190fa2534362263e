package world

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Write-back defaults.
const (
	DefaultFlushInterval  = 60 * time.Second
	DefaultDirtyThreshold = 200
)

// entry is one cached object. Readers load the snapshot pointer without
// locking; writers take mu around read-modify-write and swap in a fresh
// snapshot.
type entry struct {
	mu        sync.Mutex
	snap      atomic.Pointer[Object]
	rev       Revision
	transient bool // cache-only, never written back
}

// Cache is the in-memory, write-through view of the world. It is the only
// authoritative copy for in-process reads; writes update it synchronously
// and are flushed to the Store periodically or when the dirty set grows
// past the threshold.
type Cache struct {
	store Store

	mu      sync.RWMutex
	entries map[string]*entry

	dirtyMu sync.Mutex
	dirty   map[string]struct{}

	tickMu  sync.Mutex
	tickSet map[string]struct{}

	FlushInterval  time.Duration
	DirtyThreshold int

	flushReq chan struct{}
	stop     chan struct{}
	stopped  sync.Once
}

// NewCache creates a cache over the given store.
func NewCache(store Store) *Cache {
	return &Cache{
		store:          store,
		entries:        make(map[string]*entry),
		dirty:          make(map[string]struct{}),
		tickSet:        make(map[string]struct{}),
		FlushInterval:  DefaultFlushInterval,
		DirtyThreshold: DefaultDirtyThreshold,
		flushReq:       make(chan struct{}, 1),
		stop:           make(chan struct{}),
	}
}

// lookup returns the entry for id, or nil.
func (c *Cache) lookup(id string) *entry {
	c.mu.RLock()
	e := c.entries[id]
	c.mu.RUnlock()
	return e
}

// install returns the entry for id, creating it if needed.
func (c *Cache) install(id string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{}
		c.entries[id] = e
	}
	return e
}

// Get returns the cached object, fetching from the store on a miss.
// The returned object is a snapshot; callers must not mutate it and
// should write changes back through Put or MutateAttr.
func (c *Cache) Get(id string) (*Object, error) {
	if e := c.lookup(id); e != nil {
		if obj := e.snap.Load(); obj != nil {
			return obj, nil
		}
	}

	obj, rev, err := c.store.Fetch(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("world: object %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("world: fetch %s: %w", id, err)
	}

	e := c.install(id)
	e.mu.Lock()
	if cur := e.snap.Load(); cur != nil {
		// Raced with another fetch or a write; the cached copy wins.
		e.mu.Unlock()
		return cur, nil
	}
	e.rev = rev
	e.snap.Store(obj)
	e.mu.Unlock()
	c.noteTick(obj)
	return obj, nil
}

// Contains reports whether the object is currently cached.
func (c *Cache) Contains(id string) bool {
	e := c.lookup(id)
	return e != nil && e.snap.Load() != nil
}

// Put installs an object in the cache and marks it dirty. Parent cycles
// are rejected here, at write time.
func (c *Cache) Put(obj *Object) error {
	return c.put(obj, false)
}

// PutTransient installs a cache-only object that is never written back
// (session-scoped user objects).
func (c *Cache) PutTransient(obj *Object) error {
	return c.put(obj, true)
}

func (c *Cache) put(obj *Object, transient bool) error {
	if obj.ID == "" {
		return fmt.Errorf("world: put: object has no ID")
	}
	if err := c.checkParentCycle(obj); err != nil {
		return err
	}

	e := c.install(obj.ID)
	e.mu.Lock()
	e.transient = transient
	e.snap.Store(obj.Clone())
	e.mu.Unlock()

	c.noteTick(obj)
	if !transient {
		c.markDirty(obj.ID)
	}
	return nil
}

// checkParentCycle walks the parent closure of obj's listed parents and
// fails if it reaches obj itself.
func (c *Cache) checkParentCycle(obj *Object) error {
	seen := map[string]bool{}
	queue := append([]string(nil), obj.ParentIDs...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == obj.ID {
			return fmt.Errorf("world: put %s: parent cycle", obj.ID)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		parent, err := c.Get(id)
		if err != nil {
			// Missing parents are tolerated at write time; resolution
			// simply skips them.
			continue
		}
		queue = append(queue, parent.ParentIDs...)
	}
	return nil
}

// Delete removes an object from the cache and the store.
func (c *Cache) Delete(id string) error {
	var rev Revision
	if e := c.lookup(id); e != nil {
		e.mu.Lock()
		rev = e.rev
		transient := e.transient
		e.mu.Unlock()
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		c.dirtyMu.Lock()
		delete(c.dirty, id)
		c.dirtyMu.Unlock()
		c.tickMu.Lock()
		delete(c.tickSet, id)
		c.tickMu.Unlock()
		if transient {
			return nil
		}
	}

	err := c.store.DeleteByID(id, rev)
	if errors.Is(err, ErrConflict) {
		// Someone else revised it; refetch the revision and retry once.
		if _, newRev, ferr := c.store.Fetch(id); ferr == nil {
			err = c.store.DeleteByID(id, newRev)
		}
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("world: delete %s: %w", id, err)
	}
	return nil
}

// Evict drops an object from the cache without touching the store.
func (c *Cache) Evict(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
	c.dirtyMu.Lock()
	delete(c.dirty, id)
	c.dirtyMu.Unlock()
	c.tickMu.Lock()
	delete(c.tickSet, id)
	c.tickMu.Unlock()
}

// GetAttribute resolves an attribute across the inheritance graph:
// breadth-first from the object, parents enqueued left-to-right, first
// definition wins. The boolean distinguishes absence from a stored null.
func (c *Cache) GetAttribute(id, name string) (Value, bool, error) {
	visited := map[string]bool{}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true

		obj, err := c.Get(cur)
		if err != nil {
			if cur == id {
				return nil, false, err
			}
			// A missing ancestor does not fail resolution.
			continue
		}
		if v, ok := obj.GetOwn(name); ok {
			return v, true, nil
		}
		queue = append(queue, obj.ParentIDs...)
	}
	return nil, false, nil
}

// MutateAttr performs a serialized read-modify-write of one attribute.
// Two concurrent writes to the same (object, name) are ordered by the
// per-object lock.
func (c *Cache) MutateAttr(id, name string, fn func(old Value, present bool) Value) error {
	if _, err := c.Get(id); err != nil {
		return err
	}
	e := c.lookup(id)
	if e == nil {
		return fmt.Errorf("world: object %s: %w", id, ErrNotFound)
	}

	e.mu.Lock()
	obj := e.snap.Load()
	if obj == nil {
		e.mu.Unlock()
		return fmt.Errorf("world: object %s: %w", id, ErrNotFound)
	}
	next := obj.Clone()
	old, present := next.GetOwn(name)
	next.SetAttr(name, fn(old, present))
	e.snap.Store(next)
	transient := e.transient
	e.mu.Unlock()

	c.noteTick(next)
	if !transient {
		c.markDirty(id)
	}
	return nil
}

// SetAttribute writes an attribute on the identified object (never on a
// parent) and queues the object for write-back.
func (c *Cache) SetAttribute(id, name string, v Value) error {
	return c.MutateAttr(id, name, func(Value, bool) Value { return v })
}

// markDirty records a pending write-back and pokes the flush worker when
// the dirty set passes the threshold.
func (c *Cache) markDirty(id string) {
	c.dirtyMu.Lock()
	c.dirty[id] = struct{}{}
	n := len(c.dirty)
	c.dirtyMu.Unlock()
	if n >= c.DirtyThreshold {
		select {
		case c.flushReq <- struct{}{}:
		default:
		}
	}
}

// noteTick keeps the tick registry in sync with the object's own
// attribute map. Inherited on_tick does not auto-schedule.
func (c *Cache) noteTick(obj *Object) {
	_, has := obj.Attributes["on_tick"]
	c.tickMu.Lock()
	if has {
		c.tickSet[obj.ID] = struct{}{}
	} else {
		delete(c.tickSet, obj.ID)
	}
	c.tickMu.Unlock()
}

// TickSet returns the IDs of objects whose own attribute map contains
// on_tick, in stable order.
func (c *Cache) TickSet() []string {
	c.tickMu.Lock()
	ids := make([]string, 0, len(c.tickSet))
	for id := range c.tickSet {
		ids = append(ids, id)
	}
	c.tickMu.Unlock()
	sort.Strings(ids)
	return ids
}

// DirtyCount returns the number of objects awaiting write-back.
func (c *Cache) DirtyCount() int {
	c.dirtyMu.Lock()
	defer c.dirtyMu.Unlock()
	return len(c.dirty)
}

// Size returns the number of cached objects.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Flush writes every dirty object to the store. A conflicting write is
// refetched, merged (the cached copy wins attribute-wise) and retried
// once; a second conflict is surfaced.
func (c *Cache) Flush() error {
	c.dirtyMu.Lock()
	ids := make([]string, 0, len(c.dirty))
	for id := range c.dirty {
		ids = append(ids, id)
	}
	c.dirty = make(map[string]struct{})
	c.dirtyMu.Unlock()
	sort.Strings(ids)

	var firstErr error
	for _, id := range ids {
		if err := c.flushOne(id); err != nil {
			log.Printf("world: write-back %s: %v", id, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (c *Cache) flushOne(id string) error {
	e := c.lookup(id)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	obj := e.snap.Load()
	rev := e.rev
	transient := e.transient
	e.mu.Unlock()
	if obj == nil || transient {
		return nil
	}

	newRev, err := c.store.Store(obj, rev)
	if errors.Is(err, ErrConflict) {
		// Stale revision: refetch, keep our attributes, retry once.
		_, freshRev, ferr := c.store.Fetch(id)
		if ferr != nil {
			return fmt.Errorf("refetch after conflict: %w", ferr)
		}
		newRev, err = c.store.Store(obj, freshRev)
	}
	if err != nil {
		// Leave it dirty for the next pass.
		c.dirtyMu.Lock()
		c.dirty[id] = struct{}{}
		c.dirtyMu.Unlock()
		return err
	}

	e.mu.Lock()
	e.rev = newRev
	e.mu.Unlock()
	return nil
}

// StartWriteback launches the background flush worker.
func (c *Cache) StartWriteback() {
	go func() {
		ticker := time.NewTicker(c.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Flush()
			case <-c.flushReq:
				c.Flush()
			case <-c.stop:
				return
			}
		}
	}()
}

// StopWriteback stops the worker and performs a final flush.
func (c *Cache) StopWriteback() {
	c.stopped.Do(func() { close(c.stop) })
	c.Flush()
}
