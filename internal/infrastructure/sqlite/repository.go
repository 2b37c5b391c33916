package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"encwallet/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository persists watcher checkpoints in a local SQLite file.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS checkpoints (
		key TEXT PRIMARY KEY,
		block_number INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`)
	return err
}

func (r *Repository) LastProcessedBlock(ctx context.Context, key string) (uint64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var block int64
	if err := r.db.QueryRowContext(ctx, `SELECT block_number FROM checkpoints WHERE key = ?`, key).Scan(&block); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

func (r *Repository) SetLastProcessedBlock(ctx context.Context, key string, block uint64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO checkpoints (key, block_number, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET block_number = excluded.block_number, updated_at = excluded.updated_at`,
		key, int64(block), time.Now().Unix())
	return err
}

func (r *Repository) ClearLastProcessedBlock(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE key = ?`, key)
	return err
}

// ListCheckpoints returns every stored checkpoint ordered by key.
func (r *Repository) ListCheckpoints(ctx context.Context) ([]domain.Checkpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT key, block_number, updated_at FROM checkpoints ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Checkpoint
	for rows.Next() {
		var (
			cp        domain.Checkpoint
			block     int64
			updatedAt int64
		)
		if err := rows.Scan(&cp.Key, &block, &updatedAt); err != nil {
			return nil, err
		}
		cp.Block = uint64(block)
		cp.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}
