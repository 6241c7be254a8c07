package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a row, attribute or cache entry is absent or expired.
var ErrNotFound = errors.New("not found")

// AttributeStore persists named values scoped to an authenticated user.
//
// Attributes never expire on their own. They live until overwritten or deleted.
type AttributeStore interface {
	// GetAttribute returns the raw value or ErrNotFound.
	GetAttribute(ctx context.Context, userID string, name string) ([]byte, error)

	// SetAttribute overwrites the value.
	SetAttribute(ctx context.Context, userID string, name string, value []byte) error

	// DeleteAttribute removes the value. Deleting a missing attribute is not an error.
	DeleteAttribute(ctx context.Context, userID string, name string) error
}

// Cache is a key-value store whose entries expire a fixed duration after
// their last write.
//
// Expiry is passive: an expired entry behaves exactly like a missing one on
// read, whether or not it has been physically removed yet.
type Cache interface {
	// Get returns the value or ErrNotFound when missing or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes the value and restarts its ttl from now.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, key string) error
}

// OptionStore holds site-wide named settings such as installed version markers.
type OptionStore interface {
	// GetOption returns the value or ErrNotFound.
	GetOption(ctx context.Context, name string) (string, error)

	// AddOption inserts the option only when absent and reports whether it did.
	AddOption(ctx context.Context, name string, value string) (bool, error)

	// UpdateOption upserts the option.
	UpdateOption(ctx context.Context, name string, value string) error

	// DeleteOption removes the option. Deleting a missing option is not an error.
	DeleteOption(ctx context.Context, name string) error
}
