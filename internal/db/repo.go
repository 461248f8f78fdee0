package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"reco-chatbot/internal/core"
	"reco-chatbot/pkg"
)

// Repository persists patients, sessions, turns and summaries.  It serves
// both as the core.Registry and the durable core.MessageStore.  Queries are
// written with ? placeholders and rebound for Postgres.
type Repository struct {
	DB     *sql.DB
	Driver string
	now    func() time.Time
}

// NewRepository constructs a Repository over an open database.  The caller
// owns the connection.
func NewRepository(db *sql.DB, driverName string) *Repository {
	return &Repository{DB: db, Driver: driverName, now: time.Now}
}

func (r *Repository) q(query string) string { return rebind(r.Driver, query) }

// CreatePatient inserts p and fills its ID.  Usernames and e-mail addresses
// are unique.
func (r *Repository) CreatePatient(ctx context.Context, p *pkg.Patient) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	err = tx.QueryRowContext(ctx,
		r.q(`SELECT COUNT(*) FROM patients WHERE username = ? OR email = ?`),
		p.Username, p.Email,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("check patient: %w", err)
	}
	if n > 0 {
		return core.ErrPatientExists
	}
	err = tx.QueryRowContext(ctx,
		r.q(`INSERT INTO patients (username, first_name, last_name, email, created_at)
         VALUES (?, ?, ?, ?, ?)
         RETURNING id`),
		p.Username, p.FirstName, p.LastName, p.Email, p.CreatedAt.UnixNano(),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return tx.Commit()
}

// GetPatient looks a patient up by ID.
func (r *Repository) GetPatient(ctx context.Context, id int64) (*pkg.Patient, error) {
	var p pkg.Patient
	var created int64
	err := r.DB.QueryRowContext(ctx,
		r.q(`SELECT id, username, first_name, last_name, email, created_at
         FROM patients WHERE id = ?`), id,
	).Scan(&p.ID, &p.Username, &p.FirstName, &p.LastName, &p.Email, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %d: %w", id, err)
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	return &p, nil
}

// CreateSession inserts a new session.
func (r *Repository) CreateSession(ctx context.Context, s *pkg.Session) error {
	now := r.now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
	_, err := r.DB.ExecContext(ctx,
		r.q(`INSERT INTO sessions (id, patient_id, completed, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`),
		s.ID, s.PatientID, s.Completed, s.CreatedAt.UnixNano(), s.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const sessionColumns = `id, patient_id, completed, created_at, updated_at`

func scanSession(row *sql.Row) (*pkg.Session, error) {
	var s pkg.Session
	var created, updated int64
	if err := row.Scan(&s.ID, &s.PatientID, &s.Completed, &created, &updated); err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(0, created).UTC()
	s.UpdatedAt = time.Unix(0, updated).UTC()
	return &s, nil
}

// GetSession looks a session up by ID.
func (r *Repository) GetSession(ctx context.Context, id string) (*pkg.Session, error) {
	s, err := scanSession(r.DB.QueryRowContext(ctx,
		r.q(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return s, nil
}

// LatestSession returns the patient's most recent open session, or nil.
func (r *Repository) LatestSession(ctx context.Context, patientID int64) (*pkg.Session, error) {
	s, err := scanSession(r.DB.QueryRowContext(ctx,
		r.q(`SELECT `+sessionColumns+` FROM sessions
         WHERE patient_id = ? AND completed = ?
         ORDER BY created_at DESC
         LIMIT 1`), patientID, false))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest session of patient %d: %w", patientID, err)
	}
	return s, nil
}

// MarkCompleted closes a session.
func (r *Repository) MarkCompleted(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx,
		r.q(`UPDATE sessions SET completed = ?, updated_at = ? WHERE id = ?`),
		true, r.now().UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("complete session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

// GetSummary returns the stored summary of a session, or nil if it has not
// been summarised yet.
func (r *Repository) GetSummary(ctx context.Context, sessionID string) (*pkg.SummaryRecord, error) {
	var summary, meta []byte
	err := r.DB.QueryRowContext(ctx,
		r.q(`SELECT summary, response_metadata FROM summaries WHERE session_id = ?`), sessionID,
	).Scan(&summary, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary %s: %w", sessionID, err)
	}
	var rec pkg.SummaryRecord
	if err := json.Unmarshal(summary, &rec.Summary); err != nil {
		return nil, fmt.Errorf("decode summary %s: %w", sessionID, err)
	}
	if err := json.Unmarshal(meta, &rec.ResponseMetadata); err != nil {
		return nil, fmt.Errorf("decode summary metadata %s: %w", sessionID, err)
	}
	return &rec, nil
}

// SaveSummary stores or replaces the summary of a session.
func (r *Repository) SaveSummary(ctx context.Context, sessionID string, rec *pkg.SummaryRecord) error {
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(rec.ResponseMetadata)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		r.q(`INSERT INTO summaries (session_id, summary, response_metadata, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (session_id) DO UPDATE
         SET summary = excluded.summary, response_metadata = excluded.response_metadata`),
		sessionID, string(summary), string(meta), r.now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save summary %s: %w", sessionID, err)
	}
	return nil
}

// ListSessions returns previews of all sessions, most recently active
// first.
func (r *Repository) ListSessions(ctx context.Context) ([]pkg.SessionPreview, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT s.id, s.patient_id, p.first_name, p.last_name, s.completed, s.updated_at,
                (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id),
                EXISTS (SELECT 1 FROM summaries x WHERE x.session_id = s.id)
         FROM sessions s
         JOIN patients p ON p.id = s.patient_id
         ORDER BY s.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []pkg.SessionPreview
	for rows.Next() {
		var sp pkg.SessionPreview
		var first, last string
		var updated int64
		if err := rows.Scan(&sp.SessionID, &sp.PatientID, &first, &last, &sp.Completed, &updated, &sp.Turns, &sp.HasSummary); err != nil {
			return nil, err
		}
		sp.PatientName = strings.TrimSpace(first + " " + last)
		sp.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, sp)
	}
	return out, rows.Err()
}

// Append stores a turn and bumps the session's activity time.
func (r *Repository) Append(ctx context.Context, sessionID string, turn pkg.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = r.now().UTC()
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		r.q(`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`),
		sessionID, string(turn.Role), turn.Content, turn.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		r.q(`UPDATE sessions SET updated_at = ? WHERE id = ?`),
		turn.CreatedAt.UnixNano(), sessionID,
	); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return tx.Commit()
}

// List returns the turns of a session in the order they were appended.
func (r *Repository) List(ctx context.Context, sessionID string) ([]pkg.Turn, error) {
	rows, err := r.DB.QueryContext(ctx,
		r.q(`SELECT role, content, created_at FROM messages WHERE session_id = ? ORDER BY id ASC`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var turns []pkg.Turn
	for rows.Next() {
		var t pkg.Turn
		var role string
		var created int64
		if err := rows.Scan(&role, &t.Content, &created); err != nil {
			return nil, err
		}
		t.Role = pkg.Role(role)
		t.CreatedAt = time.Unix(0, created).UTC()
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Clear deletes every turn of a session.
func (r *Repository) Clear(ctx context.Context, sessionID string) error {
	_, err := r.DB.ExecContext(ctx, r.q(`DELETE FROM messages WHERE session_id = ?`), sessionID)
	return err
}

var (
	_ core.Registry     = (*Repository)(nil)
	_ core.MessageStore = (*Repository)(nil)
)
