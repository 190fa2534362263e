package account

import (
	"errors"
	"strings"
	"testing"

	descrypt "github.com/digitive/crypt"
)

// memStore is an in-memory account.Store for manager tests.
type memStore struct {
	byID    map[string]*Account
	byLogin map[string]string
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[string]*Account), byLogin: make(map[string]string)}
}

func (m *memStore) Fetch(id string) (*Account, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) FetchByLogin(login string) (*Account, error) {
	id, ok := m.byLogin[strings.ToLower(login)]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Fetch(id)
}

func (m *memStore) Store(a *Account) error {
	if prev, ok := m.byID[a.ID]; ok {
		delete(m.byLogin, strings.ToLower(prev.Login))
	} else if _, taken := m.byLogin[strings.ToLower(a.Login)]; taken {
		return ErrExists
	}
	cp := *a
	m.byID[a.ID] = &cp
	m.byLogin[strings.ToLower(a.Login)] = a.ID
	return nil
}

func (m *memStore) Delete(id string) error {
	a, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byLogin, strings.ToLower(a.Login))
	delete(m.byID, id)
	return nil
}

func (m *memStore) ListByRole(role string) ([]string, error) {
	var out []string
	for id, a := range m.byID {
		if a.HasRole(Role(role)) {
			out = append(out, id)
		}
	}
	return out, nil
}

func TestCreateAndAuthenticate(t *testing.T) {
	m := NewManager(newMemStore())

	a, err := m.Create("alice", "hunter2", "alice@example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !a.HasRole(RolePlayer) {
		t.Error("new account missing player role")
	}

	got, err := m.Authenticate("alice", "hunter2")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.LastLoginAt.IsZero() {
		t.Error("authenticate did not stamp LastLoginAt")
	}

	if _, err := m.Authenticate("alice", "wrong"); err == nil {
		t.Error("bad password accepted")
	}
	if _, err := m.Authenticate("nobody", "hunter2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown login: err = %v, want ErrNotFound", err)
	}
}

func TestCreateDuplicateLogin(t *testing.T) {
	m := NewManager(newMemStore())
	if _, err := m.Create("bob", "pw", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Create("bob", "pw2", ""); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate: err = %v, want ErrExists", err)
	}
	if _, err := m.Create("  ", "pw", ""); err == nil {
		t.Error("blank login accepted")
	}
}

func TestLegacyHashUpgrade(t *testing.T) {
	store := newMemStore()
	m := NewManager(store)

	// A crypt(3)-hashed import: salt "XX", password "secret".
	legacy, err := descrypt.Crypt("secret", "XX")
	if err != nil {
		t.Fatalf("crypt: %v", err)
	}
	a := &Account{ID: "legacy-1", Login: "gandalf", PasswordHash: legacy}
	if err := store.Store(a); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := m.Authenticate("gandalf", "secret")
	if err != nil {
		t.Fatalf("legacy authenticate: %v", err)
	}
	if !strings.HasPrefix(got.PasswordHash, "$2") {
		t.Errorf("hash not upgraded to bcrypt: %q", got.PasswordHash)
	}
	if _, err := m.Authenticate("gandalf", "secret"); err != nil {
		t.Errorf("authenticate after upgrade: %v", err)
	}
}

func TestEditRoles(t *testing.T) {
	m := NewManager(newMemStore())
	if _, err := m.Create("carol", "pw", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	a, err := m.EditRoles("carol", []string{"admin"}, nil)
	if err != nil {
		t.Fatalf("add role: %v", err)
	}
	if !a.IsAdmin() {
		t.Error("admin role not applied")
	}

	a, err = m.EditRoles("carol", nil, []string{"admin"})
	if err != nil {
		t.Fatalf("remove role: %v", err)
	}
	if a.IsAdmin() {
		t.Error("admin role not removed")
	}

	if _, err := m.EditRoles("carol", []string{"demigod"}, nil); err == nil {
		t.Error("unknown role accepted")
	}
}

func TestAttachCharacter(t *testing.T) {
	m := NewManager(newMemStore())
	a, err := m.Create("dave", "pw", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := m.AttachCharacter(a.ID, "#hero"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	// Idempotent.
	if err := m.AttachCharacter(a.ID, "#hero"); err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	got, _ := m.Get(a.ID)
	if len(got.CharacterIDs) != 1 || got.CharacterIDs[0] != "#hero" {
		t.Errorf("characters = %v", got.CharacterIDs)
	}
}

func TestBootstrap(t *testing.T) {
	m := NewManager(newMemStore())
	if err := m.Bootstrap("admin", "letmein"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	a, err := m.Authenticate("admin", "letmein")
	if err != nil {
		t.Fatalf("authenticate bootstrapped admin: %v", err)
	}
	if !a.IsAdmin() {
		t.Error("bootstrapped account is not admin")
	}

	// Second bootstrap leaves the account alone.
	if err := m.Bootstrap("admin", "different"); err != nil {
		t.Fatalf("re-bootstrap: %v", err)
	}
	if _, err := m.Authenticate("admin", "letmein"); err != nil {
		t.Error("re-bootstrap clobbered the existing password")
	}

	// Empty credentials are a no-op.
	if err := m.Bootstrap("", ""); err != nil {
		t.Errorf("empty bootstrap: %v", err)
	}
}
