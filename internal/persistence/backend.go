// Package persistence moves the record store to and from durable storage.
//
// Both backends rewrite everything on every Save; the last write wins.
package persistence

import (
	"context"
	"errors"

	"citylibrary/internal/store"
)

// ErrIO wraps every failure to create, read or write durable storage.
var ErrIO = errors.New("storage failure")

// Backend loads and saves a complete store.
type Backend interface {
	// Load replaces the contents of s with what is in storage.
	Load(ctx context.Context, s *store.Store) error
	// Save overwrites storage with the contents of s.
	Save(ctx context.Context, s *store.Store) error
	Close() error
}
