package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"encwallet/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Repository persists watcher checkpoints in MySQL so several watcher
// replicas can share progress.
type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS checkpoints (
		checkpoint_key VARCHAR(128) NOT NULL,
		block_number BIGINT UNSIGNED NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (checkpoint_key)
	)`)
	return err
}

func (r *Repository) LastProcessedBlock(ctx context.Context, key string) (uint64, bool, error) {
	ctx, span := startDBSpan(ctx, "mysql.LastProcessedBlock", attribute.String("checkpoint.key", key))
	defer span.End()

	var block uint64
	err := r.db.QueryRowContext(ctx, `SELECT block_number FROM checkpoints WHERE checkpoint_key = ?`, key).Scan(&block)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, false, err
	}
	return block, true, nil
}

func (r *Repository) SetLastProcessedBlock(ctx context.Context, key string, block uint64) error {
	ctx, span := startDBSpan(ctx, "mysql.SetLastProcessedBlock",
		attribute.String("checkpoint.key", key),
		attribute.Int64("block.number", int64(block)),
	)
	defer span.End()
	_, err := r.db.ExecContext(ctx, `INSERT INTO checkpoints (checkpoint_key, block_number) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE block_number = VALUES(block_number)`, key, block)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) ClearLastProcessedBlock(ctx context.Context, key string) error {
	ctx, span := startDBSpan(ctx, "mysql.ClearLastProcessedBlock", attribute.String("checkpoint.key", key))
	defer span.End()
	_, err := r.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE checkpoint_key = ?`, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) ListCheckpoints(ctx context.Context) ([]domain.Checkpoint, error) {
	ctx, span := startDBSpan(ctx, "mysql.ListCheckpoints")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `SELECT checkpoint_key, block_number, UNIX_TIMESTAMP(updated_at)
		FROM checkpoints ORDER BY checkpoint_key`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer rows.Close()

	var out []domain.Checkpoint
	for rows.Next() {
		var (
			cp        domain.Checkpoint
			updatedAt int64
		)
		if err := rows.Scan(&cp.Key, &cp.Block, &updatedAt); err != nil {
			span.RecordError(err)
			return nil, err
		}
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

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("encwallet/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}
