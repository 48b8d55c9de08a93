package backend

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"

	"giftregistry/internal/amqp"
	"giftregistry/internal/log"
	"giftregistry/internal/store"
	"giftregistry/internal/store/firestore"
	"giftregistry/internal/store/memory"
	"giftregistry/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var app *firebase.App
	if config.Type == FirestoreBackend || config.FirebaseAuth {
		var err error
		app, err = firestore.NewApp(ctx, config.FirebaseCredentialsFile, config.FirebaseProjectID)
		if err != nil {
			return nil, err
		}
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case FirestoreBackend:
		result, err = f.createFirestoreBackend(ctx, app, config)
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	result.Firebase = app
	result.Events = f.connectEvents(config)
	result.Cleanup = closeAll(result.Store, result.Events)
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := sqlite.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:     repo,
		Refresher: repo,
	}, nil
}

func (f *DefaultFactory) createFirestoreBackend(ctx context.Context, app *firebase.App, config Config) (*BackendResult, error) {
	fs, err := firestore.New(ctx, app, config.FirestoreCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firestore store: %w", err)
	}

	f.logger.Info("Initialized Firestore backend",
		"project_id", config.FirebaseProjectID,
		"collection", config.FirestoreCollection)

	return &BackendResult{Store: fs}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	mem, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{Store: mem}, nil
}

// connectEvents dials the broker when one is configured. A broker that cannot
// be reached leaves the backend running without change events.
func (f *DefaultFactory) connectEvents(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

func closeAll(st store.Store, events *amqp.Client) CleanupFunc {
	return func() error {
		var errs []error
		if events != nil {
			if err := events.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close amqp: %w", err))
			}
		}
		if st != nil {
			if err := st.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close store: %w", err))
			}
		}
		return errors.Join(errs...)
	}
}
