package docstore

import (
	"context"
	"fmt"
	"io"

	"github.com/invictusops/invictus/config"
	"github.com/invictusops/invictus/pkg/database"
	"github.com/invictusops/invictus/pkg/logger"
	"github.com/invictusops/invictus/pkg/migration"
)

// Open builds the Store selected by STORE_DRIVER. The whole bootstrap,
// including the first ping, must finish within STORE_CONNECT_TIMEOUT or the
// store is reported unavailable.
func Open(ctx context.Context) (Store, error) {
	timeout := config.StoreConnectTimeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	driver := config.StoreDriver()
	log := logger.Component("docstore").With("driver", driver)

	var (
		store Store
		err   error
	)
	switch driver {
	case "mongo":
		store, err = NewMongo(ctx, MongoOptions{
			URI:          config.MongoURI(),
			Database:     config.MongoDatabase(),
			PollInterval: config.StorePollInterval(),
		})
	case "sql":
		store, err = openSQL(ctx)
	default:
		store = NewMemory()
	}
	if err != nil {
		log.Error("store unavailable", "timeout", timeout, "error", err)
		return nil, err
	}

	if err := store.Ping(ctx); err != nil {
		_ = store.Close(context.Background())
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	log.Info("store ready")
	return store, nil
}

func openSQL(ctx context.Context) (Store, error) {
	db, err := database.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := migration.New(db).WithOutput(io.Discard).Run(); err != nil {
		return nil, fmt.Errorf("docstore: migrate: %w", err)
	}
	return NewSQL(db), nil
}
