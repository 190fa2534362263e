package boltstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	bbolt "go.etcd.io/bbolt"

	"github.com/gaia-mud/gaia/pkg/account"
	"github.com/gaia-mud/gaia/pkg/world"
)

// AccountStore implements account.Store over the accounts bucket with
// login and role secondary indexes.
type AccountStore struct {
	db *DB
}

// Accounts returns the account-collection view of the database.
func (d *DB) Accounts() *AccountStore {
	return &AccountStore{db: d}
}

var _ account.Store = (*AccountStore)(nil)

func loginKey(login string) []byte {
	return []byte(strings.ToLower(login))
}

// Fetch implements account.Store.
func (as *AccountStore) Fetch(id string) (*account.Account, error) {
	var a *account.Account
	err := as.db.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAccounts).Get([]byte(id))
		if data == nil {
			return account.ErrNotFound
		}
		rev, body, err := decodeDoc(data)
		if err != nil {
			return err
		}
		a = &account.Account{}
		if err := json.Unmarshal(body, a); err != nil {
			return fmt.Errorf("boltstore: decode account %s: %w", id, err)
		}
		a.Revision = revString(rev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// FetchByLogin implements account.Store via the login index.
func (as *AccountStore) FetchByLogin(login string) (*account.Account, error) {
	var id string
	err := as.db.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketIdxLogin).Get(loginKey(login))
		if v == nil {
			return account.ErrNotFound
		}
		id = string(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return as.Fetch(id)
}

// Store implements account.Store. The account's Revision field is used as
// the optimistic prior and refreshed on success.
func (as *AccountStore) Store(a *account.Account) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("boltstore: encode account %s: %w", a.ID, err)
	}

	err = as.db.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		key := []byte(a.ID)
		existing := b.Get(key)
		have, err := checkPrior(existing, a.Revision)
		if err != nil {
			return err
		}

		// Refresh indexes against the prior document.
		if existing != nil {
			_, oldBody, derr := decodeDoc(existing)
			if derr == nil {
				var old account.Account
				if json.Unmarshal(oldBody, &old) == nil {
					dropAccountIndexes(tx, &old)
				}
			}
		} else {
			// Creating: the login must be unclaimed.
			if tx.Bucket(bucketIdxLogin).Get(loginKey(a.Login)) != nil {
				return account.ErrExists
			}
		}
		addAccountIndexes(tx, a)

		newRev := have + 1
		a.Revision = revString(newRev)
		return b.Put(key, encodeDoc(newRev, body))
	})
	if errors.Is(err, world.ErrConflict) {
		return fmt.Errorf("boltstore: account %s: %w", a.ID, world.ErrConflict)
	}
	return err
}

// Delete implements account.Store.
func (as *AccountStore) Delete(id string) error {
	return as.db.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		key := []byte(id)
		existing := b.Get(key)
		if existing == nil {
			return account.ErrNotFound
		}
		_, body, derr := decodeDoc(existing)
		if derr == nil {
			var old account.Account
			if json.Unmarshal(body, &old) == nil {
				dropAccountIndexes(tx, &old)
			}
		}
		return b.Delete(key)
	})
}

// ListByRole implements account.Store via the role index.
func (as *AccountStore) ListByRole(role string) ([]string, error) {
	var ids []string
	prefix := []byte(role + "\x00")
	err := as.db.bolt.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketIdxRole).Cursor()
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
			ids = append(ids, string(k[len(prefix):]))
		}
		return nil
	})
	return ids, err
}

func addAccountIndexes(tx *bbolt.Tx, a *account.Account) {
	tx.Bucket(bucketIdxLogin).Put(loginKey(a.Login), []byte(a.ID))
	for _, r := range a.Roles {
		tx.Bucket(bucketIdxRole).Put(idxKey(r, a.ID), nil)
	}
}

func dropAccountIndexes(tx *bbolt.Tx, a *account.Account) {
	tx.Bucket(bucketIdxLogin).Delete(loginKey(a.Login))
	for _, r := range a.Roles {
		tx.Bucket(bucketIdxRole).Delete(idxKey(r, a.ID))
	}
}
