package world

import "errors"

// Revision is an opaque optimistic-concurrency token supplied by the store.
// The empty revision means "no prior version" (used for creates).
type Revision string

// Store errors. Callers compare with errors.Is.
var (
	// ErrNotFound means the document does not exist.
	ErrNotFound = errors.New("world: not found")
	// ErrConflict means the supplied prior revision is stale.
	ErrConflict = errors.New("world: revision conflict")
)

// Store is the document-store contract the cache writes through to.
// Implementations must be safe for concurrent use.
type Store interface {
	// Fetch loads an object and its current revision.
	Fetch(id string) (*Object, Revision, error)
	// Store writes an object. prior must match the stored revision (or be
	// empty for a create); a mismatch returns ErrConflict.
	Store(obj *Object, prior Revision) (Revision, error)
	// DeleteByID removes an object, honoring optimistic revisions.
	DeleteByID(id string, prior Revision) error
	// ListByIndex returns the IDs under a named secondary index key.
	ListByIndex(name, key string) ([]string, error)
}
