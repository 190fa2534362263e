// Package boltstore persists the two GAIA document collections — world
// objects and accounts — in a bbolt file, with opaque optimistic
// revisions and secondary indexes.
package boltstore

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"strconv"

	bbolt "go.etcd.io/bbolt"

	"github.com/gaia-mud/gaia/pkg/world"
)

// Bucket names.
var (
	bucketWorld        = []byte("world")
	bucketAccounts     = []byte("accounts")
	bucketIdxLocation  = []byte("idx:world:location")
	bucketIdxOwner     = []byte("idx:world:owner")
	bucketIdxLogin     = []byte("idx:accounts:login")
	bucketIdxRole      = []byte("idx:accounts:role")
)

// DB wraps a bbolt database holding both collections.
type DB struct {
	bolt *bbolt.DB
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketWorld, bucketAccounts, bucketIdxLocation, bucketIdxOwner, bucketIdxLogin, bucketIdxRole} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}

	return &DB{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (d *DB) Close() error {
	if d.bolt != nil {
		return d.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (d *DB) Path() string {
	if d.bolt != nil {
		return d.bolt.Path()
	}
	return ""
}

// Backup creates a hot snapshot of the database using tx.WriteTo().
func (d *DB) Backup(path string) error {
	return d.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("boltstore: create backup %s: %w", path, err)
		}
		defer f.Close()
		if _, err := tx.WriteTo(f); err != nil {
			return fmt.Errorf("boltstore: write backup: %w", err)
		}
		log.Printf("boltstore: backup written to %s", path)
		return nil
	})
}

// Documents are stored as an 8-byte big-endian revision counter followed
// by the JSON body. The revision surfaces to callers as its decimal string.

func encodeDoc(rev uint64, body []byte) []byte {
	buf := make([]byte, 8+len(body))
	binary.BigEndian.PutUint64(buf, rev)
	copy(buf[8:], body)
	return buf
}

func decodeDoc(data []byte) (uint64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("boltstore: short document (%d bytes)", len(data))
	}
	return binary.BigEndian.Uint64(data), data[8:], nil
}

func revString(rev uint64) world.Revision {
	return world.Revision(strconv.FormatUint(rev, 10))
}

func revValue(rev world.Revision) (uint64, error) {
	if rev == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(rev), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("boltstore: bad revision %q: %w", rev, err)
	}
	return n, nil
}

// checkPrior validates an optimistic write against the stored document.
// Returns the stored revision (0 when absent).
func checkPrior(existing []byte, prior world.Revision) (uint64, error) {
	want, err := revValue(prior)
	if err != nil {
		return 0, err
	}
	if existing == nil {
		if prior != "" {
			return 0, world.ErrConflict
		}
		return 0, nil
	}
	have, _, err := decodeDoc(existing)
	if err != nil {
		return 0, err
	}
	if prior == "" || have != want {
		return 0, world.ErrConflict
	}
	return have, nil
}
