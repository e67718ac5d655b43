// Package identity models site users and the credential directory that signs
// them in.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleVisitor Role = "visitor"
	RoleRegular Role = "regular"
	RoleAdmin   Role = "admin"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// RoleOf treats a nil user as an anonymous visitor.
func RoleOf(u *User) Role {
	if u == nil {
		return RoleVisitor
	}
	return u.Role
}

// CanPurchase reports whether the user may book packages through the
// assistant. Only signed-in regular users can.
func CanPurchase(u *User) bool {
	return RoleOf(u) == RoleRegular
}

// Account is a directory entry with a plain password, only used for seeding.
type Account struct {
	User     User
	Password string
}

// DefaultAccounts are the demo users the site ships with.
func DefaultAccounts() []Account {
	return []Account{
		{
			User:     User{ID: "1", Name: "Usuario Regular", Email: "usuario@example.com", Role: RoleRegular},
			Password: "password123",
		},
		{
			User:     User{ID: "2", Name: "Administrador", Email: "admin@exploracolombia.com", Role: RoleAdmin},
			Password: "admin123",
		},
	}
}

type entry struct {
	user User
	hash []byte
}

// Directory verifies email/password pairs against bcrypt hashes.
type Directory struct {
	mu      sync.RWMutex
	byEmail map[string]entry
}

func NewDirectory(accounts []Account, cost int) (*Directory, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	d := &Directory{byEmail: make(map[string]entry, len(accounts))}
	for _, a := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", a.User.Email, err)
		}
		d.byEmail[normalizeEmail(a.User.Email)] = entry{user: a.User, hash: hash}
	}
	return d, nil
}

func (d *Directory) Authenticate(email, password string) (User, error) {
	d.mu.RLock()
	e, ok := d.byEmail[normalizeEmail(email)]
	d.mu.RUnlock()
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(e.hash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return e.user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
