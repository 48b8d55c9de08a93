package backend

import (
	"context"

	firebase "firebase.google.com/go/v4"

	"giftregistry/internal/amqp"
	"giftregistry/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and the optional collaborators created
// alongside it.
type BackendResult struct {
	Store store.Store

	// Refresher is set when the store must be told about changes made by
	// other processes (sqlite). Firestore streams them itself.
	Refresher interface{ Refresh() }

	// Events is nil when AMQP is not configured or unreachable.
	Events *amqp.Client

	// Firebase is set for the firestore backend and for token auth.
	Firebase *firebase.App

	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory specific
	SeedFile string

	// SQLite specific
	SQLiteDBPath string

	// Firebase specific
	FirebaseCredentialsFile string
	FirebaseProjectID       string
	FirestoreCollection     string
	// FirebaseAuth requests a Firebase app even when the store is not Firestore.
	FirebaseAuth bool

	// Change events, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend    BackendType = "memory"
	SQLiteBackend    BackendType = "sqlite"
	FirestoreBackend BackendType = "firestore"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, FirestoreBackend:
		return true
	default:
		return false
	}
}
