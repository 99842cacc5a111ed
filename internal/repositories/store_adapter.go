package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"courier/app/config"
	"courier/internal/ports"

	"github.com/dgraph-io/badger/v4"
)

// StoreAdapter aggregates the queue store and the group registry behind one
// lifecycle. The redis backend is wired separately in the container because
// it shares the redis client with the rest of the app.
type StoreAdapter struct {
	Queue  ports.IQueueStore
	Groups ports.IGroupRegistry

	db *badger.DB
}

func NewStoreAdapter(cfg config.QueueConfig, logger *slog.Logger) (*StoreAdapter, error) {
	switch cfg.Backend {
	case "memory":
		logger.Info("queue store initialized", "backend", "memory")
		return &StoreAdapter{
			Queue:  NewMemoryQueueRepository(),
			Groups: NewMemoryGroupRegistry(),
		}, nil

	case "badger":
		options := badger.DefaultOptions(cfg.BadgerPath).WithLogger(nil)
		db, err := badger.Open(options)
		if err != nil {
			return nil, fmt.Errorf("badger open failed: %w", err)
		}

		logger.Info("queue store initialized", "backend", "badger", "path", cfg.BadgerPath)
		return &StoreAdapter{
			Queue:  NewBadgerQueueRepository(db, logger),
			Groups: NewBadgerGroupRegistry(db),
			db:     db,
		}, nil

	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

func (s *StoreAdapter) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *StoreAdapter) HealthCheck(ctx context.Context) error {
	if s.db != nil && s.db.IsClosed() {
		return fmt.Errorf("badger database is closed")
	}
	return nil
}
