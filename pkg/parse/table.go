package parse

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Table is a dynamically registered command set with lock-free,
// case-insensitive lookup. Registration swaps a fresh snapshot so
// recognizers never block on a writer.
type Table struct {
	mu   sync.Mutex
	snap atomic.Pointer[map[string]string]
}

// NewTable seeds a table with initial command names.
func NewTable(names ...string) *Table {
	t := &Table{}
	empty := map[string]string{}
	t.snap.Store(&empty)
	t.Register(names...)
	return t
}

// Register adds command names, preserving their registered casing for
// listings.
func (t *Table) Register(names ...string) {
	if len(names) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	old := *t.snap.Load()
	next := make(map[string]string, len(old)+len(names))
	for k, v := range old {
		next[k] = v
	}
	for _, n := range names {
		next[strings.ToLower(n)] = n
	}
	t.snap.Store(&next)
}

// Unregister removes command names.
func (t *Table) Unregister(names ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := *t.snap.Load()
	next := make(map[string]string, len(old))
	for k, v := range old {
		next[k] = v
	}
	for _, n := range names {
		delete(next, strings.ToLower(n))
	}
	t.snap.Store(&next)
}

// Has reports whether name is registered, ignoring case.
func (t *Table) Has(name string) bool {
	_, ok := (*t.snap.Load())[strings.ToLower(name)]
	return ok
}

// Names lists registered commands in their original casing.
func (t *Table) Names() []string {
	snap := *t.snap.Load()
	out := make([]string, 0, len(snap))
	for _, v := range snap {
		out = append(out, v)
	}
	return out
}

// WordTag classifies a dictionary word for the Game recognizer.
type WordTag int

const (
	TagVerb WordTag = 1 << iota
	TagNoun
	TagPreposition
	TagArticle
	TagPronoun
)

// Dictionary maps words to grammatical tags. G code extends it at
// runtime via registered verbs and nouns; lookups are lock-free
// snapshot reads.
type Dictionary struct {
	mu   sync.Mutex
	snap atomic.Pointer[map[string]WordTag]
}

// NewDictionary builds a dictionary with the built-in closed word
// classes.
func NewDictionary() *Dictionary {
	d := &Dictionary{}
	empty := map[string]WordTag{}
	d.snap.Store(&empty)
	for _, w := range []string{"a", "an", "the"} {
		d.Add(w, TagArticle)
	}
	for _, w := range []string{"it", "them", "him", "her"} {
		d.Add(w, TagPronoun)
	}
	for _, w := range []string{"with", "to", "at", "in", "on", "from", "under", "behind"} {
		d.Add(w, TagPreposition)
	}
	return d
}

// Add tags a word, merging with existing tags.
func (d *Dictionary) Add(word string, tag WordTag) {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := *d.snap.Load()
	next := make(map[string]WordTag, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[strings.ToLower(word)] |= tag
	d.snap.Store(&next)
}

// Tags returns the word's tag set; an unknown word reads as a noun so
// object names need no registration.
func (d *Dictionary) Tags(word string) WordTag {
	if t, ok := (*d.snap.Load())[strings.ToLower(word)]; ok {
		return t
	}
	return TagNoun
}
