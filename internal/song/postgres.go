package song

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/waveform-labs/trackduel/internal/rating"
	"github.com/waveform-labs/trackduel/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new song, assigning an ID when empty.
func (r *PostgresRepository) Create(ctx context.Context, s *Song) (err error) {
	ctx, end := tracing.StartDBSpan(ctx, "songs", tracing.DBOperationInsert)
	defer func() { end(err) }()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Elo == 0 {
		s.Elo = rating.Default
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	const q = `
		INSERT INTO songs (id, artist_id, name, file_path, elo, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err = r.db.ExecContext(ctx, q, s.ID, s.ArtistID, s.Name, s.FilePath, s.Elo, s.CreatedAt); err != nil {
		return fmt.Errorf("insert song: %w", err)
	}
	return nil
}

// GetByID retrieves a song by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (s *Song, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "songs", tracing.DBOperationQuery)
	defer func() { end(err) }()

	const q = `
		SELECT id, artist_id, name, file_path, elo, created_at
		FROM songs WHERE id = $1
	`
	s = &Song{}
	err = r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.ArtistID, &s.Name, &s.FilePath, &s.Elo, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select song: %w", err)
	}
	return s, nil
}

// GetByIDs retrieves the songs for the given ids, in input order.
func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []string) (out []*Song, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "songs", tracing.DBOperationQuery)
	defer func() { end(err) }()

	const q = `
		SELECT id, artist_id, name, file_path, elo, created_at
		FROM songs WHERE id = ANY($1)
	`
	rows, err := r.db.QueryContext(ctx, q, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("select songs: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Song, len(ids))
	for rows.Next() {
		s := &Song{}
		if err = rows.Scan(&s.ID, &s.ArtistID, &s.Name, &s.FilePath, &s.Elo, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		byID[s.ID] = s
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}

	out = make([]*Song, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, ErrSongNotFound
		}
		out = append(out, s)
	}
	return out, nil
}

// ListByArtist retrieves all songs owned by the artist.
func (r *PostgresRepository) ListByArtist(ctx context.Context, artistID string) (out []*Song, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "songs", tracing.DBOperationQuery)
	defer func() { end(err) }()

	const q = `
		SELECT id, artist_id, name, file_path, elo, created_at
		FROM songs WHERE artist_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, q, artistID)
	if err != nil {
		return nil, fmt.Errorf("select songs by artist: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s := &Song{}
		if err = rows.Scan(&s.ID, &s.ArtistID, &s.Name, &s.FilePath, &s.Elo, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		out = append(out, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}
	return out, nil
}

// Delete removes a song row.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := tracing.StartDBSpan(ctx, "songs", tracing.DBOperationDelete)
	defer func() { end(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM songs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete song: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete song: %w", err)
	}
	if n == 0 {
		return ErrSongNotFound
	}
	return nil
}
