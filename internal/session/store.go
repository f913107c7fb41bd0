// Package session defines how sessions are identified, stored and
// serialized per key.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/paris/internal/profile"
)

// DefaultID is the conversation id used when the caller supplies none. With
// it, a key reduces to the role alone.
const DefaultID = "default"

// ErrNotFound is returned by Get when no session exists for a key.
var ErrNotFound = errors.New("session not found")

// Key identifies a session. Language is not part of the key; it is pinned
// on the session when it is created.
type Key struct {
	ID   string
	Role profile.Role
}

// NewKey builds a Key, substituting DefaultID for a blank id.
func NewKey(id string, role profile.Role) Key {
	id = strings.TrimSpace(id)
	if id == "" {
		id = DefaultID
	}
	return Key{ID: id, Role: role}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Role, k.ID)
}

// Record is a stored session together with its key.
type Record struct {
	Key     Key
	Session profile.Session
}

// Store owns session records. Implementations return copies: mutating a
// returned session never affects the store until Upsert.
type Store interface {
	// Get returns the session for key, or ErrNotFound.
	Get(ctx context.Context, key Key) (profile.Session, error)

	// Upsert creates or replaces the session for key. History is
	// append-only: stored turns are never rewritten.
	Upsert(ctx context.Context, key Key, s profile.Session) error

	// List returns every stored session.
	List(ctx context.Context) ([]Record, error)
}
