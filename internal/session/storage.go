// Package session manages per-phone conversational sessions.
package session

import (
	"context"
	"errors"
)

// ErrNotFound indicates that no session exists for the phone.
var ErrNotFound = errors.New("session not found")

// Store defines the persistence contract for sessions.
type Store interface {
	// Load returns the session, ErrNotFound when absent or an ErrCorrupt-wrapped
	// error when the record cannot be decoded.
	Load(ctx context.Context, phone string) (*Session, error)
	// Save persists the session.
	Save(ctx context.Context, s *Session) error
	// Delete removes the session.
	Delete(ctx context.Context, phone string) error
	// List returns every phone with a stored session.
	List(ctx context.Context) ([]string, error)
}
