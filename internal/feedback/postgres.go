package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/waveform-labs/trackduel/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL. Pair
// sequences are stored as a jsonb column, matching the migration.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new form, assigning an ID when empty.
func (r *PostgresRepository) Create(ctx context.Context, f *Form) (err error) {
	ctx, end := tracing.StartDBSpan(ctx, "feedback_forms", tracing.DBOperationInsert)
	defer func() { end(err) }()

	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	pairs, err := json.Marshal(f.Pairs)
	if err != nil {
		return fmt.Errorf("marshal song pairs: %w", err)
	}

	const q = `
		INSERT INTO feedback_forms (id, artist_id, name, song_pairs, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err = r.db.ExecContext(ctx, q, f.ID, f.ArtistID, f.Name, pairs, f.CreatedAt); err != nil {
		return fmt.Errorf("insert feedback form: %w", err)
	}
	return nil
}

// GetByID retrieves a form by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (f *Form, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "feedback_forms", tracing.DBOperationQuery)
	defer func() { end(err) }()

	const q = `
		SELECT id, artist_id, name, song_pairs, created_at
		FROM feedback_forms WHERE id = $1
	`
	f = &Form{}
	var pairs []byte
	err = r.db.QueryRowContext(ctx, q, id).Scan(&f.ID, &f.ArtistID, &f.Name, &pairs, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrFormNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select feedback form: %w", err)
	}
	if err = json.Unmarshal(pairs, &f.Pairs); err != nil {
		return nil, fmt.Errorf("unmarshal song pairs: %w", err)
	}
	return f, nil
}

// ListByArtist retrieves all forms owned by the artist, newest first.
func (r *PostgresRepository) ListByArtist(ctx context.Context, artistID string) (out []*Form, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "feedback_forms", tracing.DBOperationQuery)
	defer func() { end(err) }()

	const q = `
		SELECT id, artist_id, name, song_pairs, created_at
		FROM feedback_forms WHERE artist_id = $1
		ORDER BY created_at DESC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, q, artistID)
	if err != nil {
		return nil, fmt.Errorf("select feedback forms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		f := &Form{}
		var pairs []byte
		if err = rows.Scan(&f.ID, &f.ArtistID, &f.Name, &pairs, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback form: %w", err)
		}
		if err = json.Unmarshal(pairs, &f.Pairs); err != nil {
			return nil, fmt.Errorf("unmarshal song pairs: %w", err)
		}
		out = append(out, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback forms: %w", err)
	}
	return out, nil
}
