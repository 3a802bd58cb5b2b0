package comparison

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/waveform-labs/trackduel/internal/rating"
	"github.com/waveform-labs/trackduel/internal/song"
	"github.com/waveform-labs/trackduel/internal/tracing"
)

// PostgresStore implements Store and Ledger using PostgreSQL with full
// transaction support.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Apply records one comparison atomically. Both song rows are locked with
// SELECT ... FOR UPDATE in ascending id order so two recordings sharing a
// song cannot deadlock and cannot both read a stale rating. The rating
// updates and the ledger insert commit together or not at all.
func (s *PostgresStore) Apply(ctx context.Context, winnerID, loserID string, formID *string, update UpdateFunc) (res *Result, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "comparisons", tracing.DBOperationExec)
	defer func() { end(err) }()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	// No-op after a successful commit.
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("failed to rollback comparison transaction", "error", rbErr)
		}
	}()

	// Lock in ascending id order regardless of which side won.
	first, second := winnerID, loserID
	if second < first {
		first, second = second, first
	}

	ratings := make(map[string]int, 2)
	const lockQuery = `SELECT id, elo FROM songs WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, lockQuery, pq.Array([]string{first, second}))
	if err != nil {
		return nil, classify(err)
	}
	for rows.Next() {
		var id string
		var elo int
		if err = rows.Scan(&id, &elo); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan locked song: %w", err)
		}
		ratings[id] = elo
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, classify(err)
	}
	rows.Close()

	winnerElo, ok := ratings[winnerID]
	if !ok {
		return nil, song.ErrSongNotFound
	}
	loserElo, ok := ratings[loserID]
	if !ok {
		return nil, song.ErrSongNotFound
	}

	newWinner, newLoser := update(rating.Normalize(winnerElo), rating.Normalize(loserElo))

	const updateQuery = `UPDATE songs SET elo = $2 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, winnerID, newWinner); err != nil {
		return nil, classify(err)
	}
	if _, err = tx.ExecContext(ctx, updateQuery, loserID, newLoser); err != nil {
		return nil, classify(err)
	}

	const insertQuery = `
		INSERT INTO comparisons (id, winner_id, loser_id, form_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err = tx.ExecContext(ctx, insertQuery, uuid.New().String(), winnerID, loserID, formID, time.Now()); err != nil {
		return nil, classify(err)
	}

	if err = tx.Commit(); err != nil {
		return nil, classify(err)
	}

	return &Result{
		WinnerID:     winnerID,
		LoserID:      loserID,
		WinnerRating: newWinner,
		LoserRating:  newLoser,
	}, nil
}

// Count returns the total number of recorded comparisons.
func (s *PostgresStore) Count(ctx context.Context) (n int64, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "comparisons", tracing.DBOperationQuery)
	defer func() { end(err) }()

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comparisons`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count comparisons: %w", err)
	}
	return n, nil
}

// ListBySong returns comparisons in which the song appears, newest first.
func (s *PostgresStore) ListBySong(ctx context.Context, songID string) (out []*Comparison, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "comparisons", tracing.DBOperationQuery)
	defer func() { end(err) }()

	const q = `
		SELECT id, winner_id, loser_id, form_id, created_at
		FROM comparisons
		WHERE winner_id = $1 OR loser_id = $1
		ORDER BY created_at DESC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, q, songID)
	if err != nil {
		return nil, fmt.Errorf("select comparisons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c := &Comparison{}
		if err = rows.Scan(&c.ID, &c.WinnerID, &c.LoserID, &c.FormID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comparison: %w", err)
		}
		out = append(out, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comparisons: %w", err)
	}
	return out, nil
}

// classify maps serialization and deadlock failures to ErrTransient so
// the recorder retries them; everything else is wrapped as-is.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return fmt.Errorf("apply comparison: %w", err)
}
