package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/shared"
)

const sessionColumns = `id, sequence, source, tracks, cache_dir, created_at, updated_at, deleted_at`

// SessionRepository implements models.Repository[*models.SessionRecord] for separation history.
//
// Delete is a soft delete: it records that the backend files are gone and keeps the row for history.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session with the next sequence number
func (r *SessionRepository) Create(session *models.SessionRecord) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	session.SetSequence(sequence)

	tracks, err := session.TracksJSON()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (id, sequence, source, tracks, cache_dir, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		session.ID(),
		sequence,
		session.Source(),
		tracks,
		session.CacheDir(),
		session.CreatedAt(),
		session.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID, including sessions whose files were already deleted
func (r *SessionRepository) Get(id string) (*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	session, err := scanSession(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return session, err
}

// Update stores the source, tracks and cache directory of a session
func (r *SessionRepository) Update(session *models.SessionRecord) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tracks, err := session.TracksJSON()
	if err != nil {
		return err
	}

	now := time.Now()
	session.SetUpdatedAt(now)

	query := `
		UPDATE sessions
		SET source = ?, tracks = ?, cache_dir = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, session.Source(), tracks, session.CacheDir(), now, session.ID())
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return expectRow(result, session.ID())
}

// Delete marks the backend files of a session as deleted
func (r *SessionRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE sessions
		SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return expectRow(result, id)
}

// List returns sessions in creation order.
//
// Criteria: "pending" (bool) keeps only sessions whose files were not deleted, "limit" (int) keeps the most recent n.
func (r *SessionRepository) List(criteria map[string]any) ([]*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1 = 1`
	args := []any{}

	if pending, ok := criteria["pending"].(bool); ok && pending {
		query += " AND deleted_at IS NULL"
	}

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query = `SELECT * FROM (` + query + ` ORDER BY sequence DESC LIMIT ?)`
		args = append(args, limit)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.SessionRecord
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}

// Pending lists sessions whose backend files have not been deleted yet.
func (r *SessionRepository) Pending() ([]*models.SessionRecord, error) {
	return r.List(map[string]any{"pending": true})
}

// Record stores a processed session, replacing the tracks of a known one.
func (r *SessionRepository) Record(_ context.Context, id, source string, tracks models.TrackSet) error {
	if id == "" {
		return shared.ErrNoSessionID
	}

	existing, err := r.Get(id)
	if err == nil {
		existing.SetTracks(tracks)
		return r.Update(existing)
	}

	return r.Create(models.NewSessionRecord(id, source, tracks))
}

// SetCacheDir records where the stems of a session were fetched to.
func (r *SessionRepository) SetCacheDir(id, dir string) error {
	result, err := r.db.Exec(`UPDATE sessions SET cache_dir = ?, updated_at = ? WHERE id = ?`, dir, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return expectRow(result, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.SessionRecord, error) {
	var (
		id        string
		sequence  int
		source    string
		tracks    string
		cacheDir  string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &source, &tracks, &cacheDir, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	set, err := models.DecodeTracks(tracks)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}

	var deleted *time.Time
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}

	return models.RestoreSessionRecord(id, sequence, source, set, cacheDir, createdAt, updatedAt, deleted), nil
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return nil
}

var _ models.Repository[*models.SessionRecord] = (*SessionRepository)(nil)
