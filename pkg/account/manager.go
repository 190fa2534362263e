package account

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Manager provides the account operations the session layer needs:
// create, authenticate, role edits, character attachment. It owns no
// in-memory cache; accounts are low-traffic and read through the store,
// so the login path never contends with the game loop.
type Manager struct {
	store Store
}

// NewManager creates a Manager over a store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Create makes a new account with the player role.
func (m *Manager) Create(login, password, email string) (*Account, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, fmt.Errorf("account: empty login")
	}
	if _, err := m.store.FetchByLogin(login); err == nil {
		return nil, ErrExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	a := &Account{
		ID:          uuid.NewString(),
		Login:       login,
		Email:       email,
		DisplayName: login,
		Roles:       []string{string(RolePlayer)},
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.SetPassword(password); err != nil {
		return nil, err
	}
	if err := m.store.Store(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Authenticate verifies credentials and stamps LastLoginAt. Legacy
// crypt(3) hashes are upgraded to bcrypt on first success.
func (m *Manager) Authenticate(login, password string) (*Account, error) {
	a, err := m.store.FetchByLogin(login)
	if err != nil {
		return nil, err
	}
	ok, legacy := a.CheckPassword(password)
	if !ok {
		return nil, fmt.Errorf("account: bad credentials for %q", login)
	}
	if legacy {
		if err := a.SetPassword(password); err == nil {
			log.Printf("account: upgraded legacy password hash for %s", a.Login)
		}
	}
	a.LastLoginAt = time.Now().UTC()
	if err := m.store.Store(a); err != nil {
		// A stamp failure should not block login.
		log.Printf("account: stamp last-login for %s: %v", a.Login, err)
	}
	return a, nil
}

// Get fetches an account by ID.
func (m *Manager) Get(id string) (*Account, error) {
	return m.store.Fetch(id)
}

// GetByLogin fetches an account by login ID.
func (m *Manager) GetByLogin(login string) (*Account, error) {
	return m.store.FetchByLogin(login)
}

// SetPassword resets an account's password (admin surface).
func (m *Manager) SetPassword(login, password string) error {
	a, err := m.store.FetchByLogin(login)
	if err != nil {
		return err
	}
	if err := a.SetPassword(password); err != nil {
		return err
	}
	return m.store.Store(a)
}

// EditRoles applies +role/-role edits to an account.
func (m *Manager) EditRoles(login string, add, remove []string) (*Account, error) {
	a, err := m.store.FetchByLogin(login)
	if err != nil {
		return nil, err
	}
	for _, r := range add {
		if !ValidRole(r) {
			return nil, fmt.Errorf("account: unknown role %q", r)
		}
		if !a.HasRole(Role(r)) {
			a.Roles = append(a.Roles, r)
		}
	}
	for _, r := range remove {
		for i, have := range a.Roles {
			if have == r {
				a.Roles = append(a.Roles[:i], a.Roles[i+1:]...)
				break
			}
		}
	}
	if err := m.store.Store(a); err != nil {
		return nil, err
	}
	return a, nil
}

// AttachCharacter links a character object ID to an account.
func (m *Manager) AttachCharacter(accountID, charID string) error {
	a, err := m.store.Fetch(accountID)
	if err != nil {
		return err
	}
	if a.HasCharacter(charID) {
		return nil
	}
	a.CharacterIDs = append(a.CharacterIDs, charID)
	return m.store.Store(a)
}

// Bootstrap ensures a default admin account exists. Called once at
// startup when credentials are configured; an existing account is left
// untouched.
func (m *Manager) Bootstrap(login, password string) error {
	if login == "" || password == "" {
		return nil
	}
	if _, err := m.store.FetchByLogin(login); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	a, err := m.Create(login, password, "")
	if err != nil {
		return err
	}
	a.Roles = []string{string(RolePlayer), string(RoleAdmin)}
	if err := m.store.Store(a); err != nil {
		return err
	}
	log.Printf("account: bootstrapped default admin %q", login)
	return nil
}
