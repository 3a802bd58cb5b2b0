package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/waveform-labs/trackduel/internal/tracing"
)

// PostgresRepository implements Repository backed by the idempotency_keys table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed idempotency key repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get retrieves an idempotency key by its key value.
func (r *PostgresRepository) Get(key string) (rec *IdempotencyKey, err error) {
	ctx, endSpan := tracing.StartDBSpan(context.Background(), "idempotency_keys", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rec = &IdempotencyKey{}
	err = r.db.QueryRowContext(ctx, `
		SELECT key, method, route, created_at,
		       response_hash, status, response_body, response_status_code
		FROM idempotency_keys
		WHERE key = $1`, key,
	).Scan(
		&rec.Key, &rec.Method, &rec.Route, &rec.CreatedAt,
		&rec.ResponseHash, &rec.Status, &rec.ResponseBody, &rec.ResponseStatusCode,
	)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrKeyNotFound
		return nil, err
	}
	if err != nil {
		err = fmt.Errorf("get idempotency key: %w", err)
		return nil, err
	}
	return rec, nil
}

// Store saves a new idempotency key.
func (r *PostgresRepository) Store(record *IdempotencyKey) (err error) {
	if err = ValidateKey(record.Key); err != nil {
		return err
	}

	ctx, endSpan := tracing.StartDBSpan(context.Background(), "idempotency_keys", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys
			(key, method, route, created_at,
			 response_hash, status, response_body, response_status_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.Key, record.Method, record.Route, record.CreatedAt,
		record.ResponseHash, record.Status, record.ResponseBody, record.ResponseStatusCode,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			err = ErrKeyExists
			return err
		}
		err = fmt.Errorf("store idempotency key: %w", err)
		return err
	}
	return nil
}

// DeleteOlderThan removes idempotency keys older than the specified duration.
func (r *PostgresRepository) DeleteOlderThan(duration time.Duration) (deleted int64, err error) {
	ctx, endSpan := tracing.StartDBSpan(context.Background(), "idempotency_keys", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM idempotency_keys
		WHERE created_at < $1`, time.Now().Add(-duration),
	)
	if err != nil {
		err = fmt.Errorf("delete old idempotency keys: %w", err)
		return 0, err
	}
	return res.RowsAffected()
}
