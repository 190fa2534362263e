// Package account manages durable player accounts: credentials, display
// identity, character lists and roles. Accounts live in their own document
// collection and are never referenced from world objects.
package account

import (
	"errors"
	"fmt"
	"strings"
	"time"

	descrypt "github.com/digitive/crypt"
	"golang.org/x/crypto/bcrypt"

	"github.com/gaia-mud/gaia/pkg/world"
)

// Role is a permission tier granted to an account.
type Role string

const (
	RolePlayer  Role = "player"
	RoleBuilder Role = "builder"
	RoleWizard  Role = "wizard"
	RoleAdmin   Role = "admin"
)

// ValidRole reports whether the string names a known role.
func ValidRole(r string) bool {
	switch Role(r) {
	case RolePlayer, RoleBuilder, RoleWizard, RoleAdmin:
		return true
	}
	return false
}

// Account is a durable login identity. Characters are world objects listed
// by ID; the reverse link (character attribute -> account) is the only tie
// between the two collections.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email,omitempty"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"passwordHash"`
	DisplayName  string    `json:"displayName,omitempty"`
	CharacterIDs []string  `json:"characterIds,omitempty"`
	Roles        []string  `json:"roles,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
	LastLoginAt  time.Time `json:"lastLoginAt,omitzero"`

	// Revision is the store's optimistic token for this document.
	Revision world.Revision `json:"-"`
}

// HasRole reports whether the account holds the given role.
func (a *Account) HasRole(r Role) bool {
	for _, have := range a.Roles {
		if Role(have) == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the account may use Admin-mode commands.
func (a *Account) IsAdmin() bool {
	return a.HasRole(RoleAdmin) || a.HasRole(RoleWizard)
}

// HasCharacter reports whether the character ID belongs to this account.
func (a *Account) HasCharacter(id string) bool {
	for _, c := range a.CharacterIDs {
		if c == id {
			return true
		}
	}
	return false
}

// SetPassword stores a bcrypt hash of the password.
func (a *Account) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("account: hash password: %w", err)
	}
	a.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a password. bcrypt hashes are the native format;
// legacy crypt(3) hashes (from imported databases) are accepted and should
// be upgraded to bcrypt by the caller on success.
func (a *Account) CheckPassword(password string) (ok, legacy bool) {
	if strings.HasPrefix(a.PasswordHash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil, false
	}
	// Legacy DES crypt: the first two characters are the salt.
	if len(a.PasswordHash) >= 2 {
		computed, err := descrypt.Crypt(password, a.PasswordHash[:2])
		if err == nil && computed == a.PasswordHash {
			return true, true
		}
	}
	return false, false
}

// Store errors.
var (
	ErrNotFound = errors.New("account: not found")
	ErrExists   = errors.New("account: login already taken")
)

// Store is the accounts document collection contract, with indexes on
// login ID and role.
type Store interface {
	Fetch(id string) (*Account, error)
	FetchByLogin(login string) (*Account, error)
	Store(a *Account) error
	Delete(id string) error
	ListByRole(role string) ([]string, error)
}
