package storage

import (
	"context"
	"time"
)

// NonceStore defines the interface for nonce management
type NonceStore interface {
	// CheckAndStore atomically checks if nonce is used and stores it
	CheckAndStore(ctx context.Context, nonce string, sessionID string, expiresAt time.Time) error

	// IsUsed checks if a nonce has been used
	IsUsed(ctx context.Context, nonce string) (bool, error)

	// DeleteExpired deletes all expired nonces
	DeleteExpired(ctx context.Context) (int64, error)

	// Count returns the total number of stored nonces
	Count(ctx context.Context) (int64, error)
}

// Store combines all storage interfaces
type Store interface {
	NonceStore() NonceStore

	// Close closes the storage connection
	Close() error

	// Ping checks the storage connection
	Ping(ctx context.Context) error
}
