package boltstore

import (
	"encoding/json"
	"fmt"
	"strings"

	bbolt "go.etcd.io/bbolt"

	"github.com/gaia-mud/gaia/pkg/world"
)

// WorldStore implements world.Store over the world bucket, maintaining
// location and owner secondary indexes.
type WorldStore struct {
	db *DB
}

// World returns the world-collection view of the database.
func (d *DB) World() *WorldStore {
	return &WorldStore{db: d}
}

var _ world.Store = (*WorldStore)(nil)

// idxKey builds an index entry key "key\x00id" so one index key can hold
// many IDs with prefix scans.
func idxKey(key, id string) []byte {
	return []byte(key + "\x00" + id)
}

// Fetch implements world.Store.
func (ws *WorldStore) Fetch(id string) (*world.Object, world.Revision, error) {
	var obj *world.Object
	var rev uint64
	err := ws.db.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketWorld).Get([]byte(id))
		if data == nil {
			return world.ErrNotFound
		}
		r, body, err := decodeDoc(data)
		if err != nil {
			return err
		}
		rev = r
		obj = &world.Object{}
		if err := json.Unmarshal(body, obj); err != nil {
			return fmt.Errorf("boltstore: decode object %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return obj, revString(rev), nil
}

// Store implements world.Store.
func (ws *WorldStore) Store(obj *world.Object, prior world.Revision) (world.Revision, error) {
	body, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("boltstore: encode object %s: %w", obj.ID, err)
	}

	var newRev uint64
	err = ws.db.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketWorld)
		key := []byte(obj.ID)
		existing := b.Get(key)
		have, err := checkPrior(existing, prior)
		if err != nil {
			return err
		}

		// Refresh secondary indexes.
		if existing != nil {
			_, oldBody, derr := decodeDoc(existing)
			if derr == nil {
				var old world.Object
				if json.Unmarshal(oldBody, &old) == nil {
					ws.dropIndexes(tx, &old)
				}
			}
		}
		ws.addIndexes(tx, obj)

		newRev = have + 1
		return b.Put(key, encodeDoc(newRev, body))
	})
	if err != nil {
		return "", err
	}
	return revString(newRev), nil
}

// DeleteByID implements world.Store.
func (ws *WorldStore) DeleteByID(id string, prior world.Revision) error {
	return ws.db.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketWorld)
		key := []byte(id)
		existing := b.Get(key)
		if existing == nil {
			return world.ErrNotFound
		}
		if _, err := checkPrior(existing, prior); err != nil {
			return err
		}
		_, body, derr := decodeDoc(existing)
		if derr == nil {
			var old world.Object
			if json.Unmarshal(body, &old) == nil {
				ws.dropIndexes(tx, &old)
			}
		}
		return b.Delete(key)
	})
}

// ListByIndex implements world.Store. Supported indexes: "location"
// (objects by location ID) and "owner" (objects by owner ID).
func (ws *WorldStore) ListByIndex(name, key string) ([]string, error) {
	var bucket []byte
	switch name {
	case "location":
		bucket = bucketIdxLocation
	case "owner":
		bucket = bucketIdxOwner
	default:
		return nil, fmt.Errorf("boltstore: unknown world index %q", name)
	}

	var ids []string
	prefix := []byte(key + "\x00")
	err := ws.db.bolt.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
			ids = append(ids, string(k[len(prefix):]))
		}
		return nil
	})
	return ids, err
}

func (ws *WorldStore) addIndexes(tx *bbolt.Tx, obj *world.Object) {
	if obj.LocationID != "" {
		tx.Bucket(bucketIdxLocation).Put(idxKey(obj.LocationID, obj.ID), nil)
	}
	if obj.OwnerID != "" {
		tx.Bucket(bucketIdxOwner).Put(idxKey(obj.OwnerID, obj.ID), nil)
	}
}

func (ws *WorldStore) dropIndexes(tx *bbolt.Tx, obj *world.Object) {
	if obj.LocationID != "" {
		tx.Bucket(bucketIdxLocation).Delete(idxKey(obj.LocationID, obj.ID))
	}
	if obj.OwnerID != "" {
		tx.Bucket(bucketIdxOwner).Delete(idxKey(obj.OwnerID, obj.ID))
	}
}

// Count returns the number of stored world objects.
func (ws *WorldStore) Count() int {
	n := 0
	ws.db.bolt.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketWorld).Stats().KeyN
		return nil
	})
	return n
}

// ForEach visits every stored world object. Used by bulk import tooling
// and startup preloading.
func (ws *WorldStore) ForEach(fn func(obj *world.Object, rev world.Revision) error) error {
	return ws.db.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketWorld).ForEach(func(k, v []byte) error {
			rev, body, err := decodeDoc(v)
			if err != nil {
				return fmt.Errorf("boltstore: decode object %s: %w", string(k), err)
			}
			var obj world.Object
			if err := json.Unmarshal(body, &obj); err != nil {
				return fmt.Errorf("boltstore: decode object %s: %w", string(k), err)
			}
			return fn(&obj, revString(rev))
		})
	})
}
