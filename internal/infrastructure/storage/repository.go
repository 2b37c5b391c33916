package storage

import (
	"context"
	"fmt"
	"strings"

	"encwallet/internal/application"
	"encwallet/internal/domain"
	"encwallet/internal/infrastructure/mysql"
	"encwallet/internal/infrastructure/sqlite"
)

// StateStore is a checkpoint repository the process owns and must close.
type StateStore interface {
	application.StateRepository
	ListCheckpoints(ctx context.Context) ([]domain.Checkpoint, error)
	Ping(ctx context.Context) error
	Close() error
}

// OpenStateStore opens the checkpoint backend named by driver: "sqlite" takes
// a file path, "mysql" a go-sql-driver DSN.
func OpenStateStore(driver, dsn string) (StateStore, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		if dsn == "" {
			dsn = "encwallet-state.db"
		}
		repo, err := sqlite.NewRepository(dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite state: %w", err)
		}
		return repo, nil
	case "mysql":
		repo, err := mysql.NewRepository(dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql state: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("%w: unknown state db driver %q", domain.ErrConfiguration, driver)
	}
}
