package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dubalign/dubalign-agent/internal/reconcile"
)

type Repository interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context) ([]*Session, error)
	DeleteSession(ctx context.Context, id string) error
	UpdateSessionLayout(ctx context.Context, id string, layout []reconcile.Track) error
	UpdateSessionStatus(ctx context.Context, id, status string) error
	CountSessions(ctx context.Context) (int, error)

	CreateAttempt(ctx context.Context, a *Attempt) error
	GetAttempt(ctx context.Context, id string) (*Attempt, error)
	ListAttempts(ctx context.Context, sessionID string, limit int) ([]*Attempt, error)
	FinalizeAttempt(ctx context.Context, a *Attempt) error
	LatestAttempt(ctx context.Context) (*Attempt, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sessionColumns = `id, name, master_path, dub_path, sample_rate, frame_rate, keep_duration,
	output_path, sync_json, layout_json, status, created_at, updated_at`

func (r *SQLiteRepository) CreateSession(ctx context.Context, s *Session) error {
	syncJSON, err := marshalNullable(s.Sync)
	if err != nil {
		return fmt.Errorf("marshal sync data: %w", err)
	}
	layoutJSON, err := marshalNullable(s.Layout)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Name, s.MasterPath, s.DubPath, s.SampleRate, s.FrameRate, boolToInt(s.KeepDuration),
		nullString(s.OutputPath), syncJSON, layoutJSON, s.Status,
		s.CreatedAt.Format(time.RFC3339), s.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row.Scan)
}

func (r *SQLiteRepository) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func scanSession(scan func(dest ...any) error) (*Session, error) {
	var s Session
	var keepDuration int
	var outputPath, syncJSON, layoutJSON sql.NullString
	var createdAt, updatedAt string

	err := scan(&s.ID, &s.Name, &s.MasterPath, &s.DubPath, &s.SampleRate, &s.FrameRate, &keepDuration,
		&outputPath, &syncJSON, &layoutJSON, &s.Status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.KeepDuration = keepDuration == 1
	s.OutputPath = outputPath.String
	if syncJSON.Valid && syncJSON.String != "" {
		var sync reconcile.SyncData
		if err := json.Unmarshal([]byte(syncJSON.String), &sync); err != nil {
			return nil, fmt.Errorf("decode sync data: %w", err)
		}
		s.Sync = &sync
	}
	if layoutJSON.Valid && layoutJSON.String != "" {
		if err := json.Unmarshal([]byte(layoutJSON.String), &s.Layout); err != nil {
			return nil, fmt.Errorf("decode layout: %w", err)
		}
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &s, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) UpdateSessionLayout(ctx context.Context, id string, layout []reconcile.Track) error {
	layoutJSON, err := marshalNullable(layout)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE sessions SET layout_json = ?, updated_at = datetime('now') WHERE id = ?
	`, layoutJSON, id)
	return err
}

func (r *SQLiteRepository) UpdateSessionStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, updated_at = datetime('now') WHERE id = ?
	`, status, id)
	return err
}

func (r *SQLiteRepository) CountSessions(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count)
	return count, err
}

const attemptColumns = `id, session_id, mode, status, request_json, success, output_file, output_size, error, created_at, updated_at`

func (r *SQLiteRepository) CreateAttempt(ctx context.Context, a *Attempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attempts (`+attemptColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.SessionID, a.Mode, a.Status, a.RequestJSON, boolToInt(a.Success),
		nullString(a.OutputFile), a.OutputSize, nullString(a.Error),
		a.CreatedAt.Format(time.RFC3339), a.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetAttempt(ctx context.Context, id string) (*Attempt, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = ?`, id)
	return scanAttempt(row.Scan)
}

func (r *SQLiteRepository) ListAttempts(ctx context.Context, sessionID string, limit int) ([]*Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+attemptColumns+` FROM attempts WHERE session_id = ? ORDER BY created_at DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		a, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (r *SQLiteRepository) LatestAttempt(ctx context.Context) (*Attempt, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+attemptColumns+` FROM attempts ORDER BY created_at DESC LIMIT 1
	`)
	return scanAttempt(row.Scan)
}

func scanAttempt(scan func(dest ...any) error) (*Attempt, error) {
	var a Attempt
	var success int
	var outputFile, errMsg sql.NullString
	var createdAt, updatedAt string

	err := scan(&a.ID, &a.SessionID, &a.Mode, &a.Status, &a.RequestJSON, &success,
		&outputFile, &a.OutputSize, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a.Success = success == 1
	a.OutputFile = outputFile.String
	a.Error = errMsg.String
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}

func (r *SQLiteRepository) FinalizeAttempt(ctx context.Context, a *Attempt) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attempts SET status = ?, success = ?, output_file = ?, output_size = ?, error = ?,
			updated_at = datetime('now')
		WHERE id = ?
	`, a.Status, boolToInt(a.Success), nullString(a.OutputFile), a.OutputSize, nullString(a.Error), a.ID)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func marshalNullable(v interface{}) (sql.NullString, error) {
	switch val := v.(type) {
	case *reconcile.SyncData:
		if val == nil {
			return sql.NullString{}, nil
		}
	case []reconcile.Track:
		if val == nil {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
