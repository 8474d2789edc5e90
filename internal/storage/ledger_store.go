package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/household-ledger/internal/config"
	interfaces "github.com/sheikh-saqib/household-ledger/internal/interfaces"
	"github.com/sheikh-saqib/household-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/household-ledger/internal/storage/postgres"
)

// Open builds the store selected by cfg.Driver. The returned close func
// releases whatever the store holds and is never nil on success.
func Open(ctx context.Context, cfg config.Store, log logrus.FieldLogger) (interfaces.Store, func() error, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		return memory.NewMemoryLedgerStore(), func() error { return nil }, nil

	case "postgres":
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewPostgresLedgerStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("connected to postgres")
		return store, db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
