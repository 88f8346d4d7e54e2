package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	domain "github.com/userlens/sessionlens/internal/domain/sessions"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) GetSession(ctx context.Context, tenant string, id domain.SessionID) (*domain.Session, error) {
	const q = `
SELECT id, tenant_id, title, problem_statement, hypothesis, objectives_json, created_at
FROM sessions
WHERE tenant_id=$1 AND id=$2;
`
	var s domain.Session
	var objectives sql.NullString
	var created time.Time
	err := r.db.QueryRowContext(ctx, q, tenant, id).Scan(
		&s.ID, &s.TenantID, &s.Title, &s.ProblemStatement, &s.Hypothesis, &objectives, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if objectives.Valid && objectives.String != "" {
		if err := json.Unmarshal([]byte(objectives.String), &s.Objectives); err != nil {
			return nil, err
		}
	}
	s.CreatedAt = created
	return &s, nil
}

func (r *SessionRepository) ListTranscripts(ctx context.Context, tenant string, id domain.SessionID) ([]*domain.Transcript, error) {
	const q = `
SELECT id, session_id, kind, segments_json, created_at
FROM session_transcripts
WHERE tenant_id=$1 AND session_id=$2
ORDER BY created_at ASC, id ASC;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Transcript
	for rows.Next() {
		var t domain.Transcript
		var segments string
		var created time.Time
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Kind, &segments, &created); err != nil {
			return nil, err
		}
		if segments != "" {
			if err := json.Unmarshal([]byte(segments), &t.Segments); err != nil {
				return nil, err
			}
		}
		t.CreatedAt = created
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *SessionRepository) ListNotes(ctx context.Context, tenant string, id domain.SessionID) ([]*domain.Note, error) {
	const q = `
SELECT id, session_id, author_id, body, created_at
FROM session_notes
WHERE tenant_id=$1 AND session_id=$2
ORDER BY created_at ASC, id ASC;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Note
	for rows.Next() {
		var n domain.Note
		var created time.Time
		if err := rows.Scan(&n.ID, &n.SessionID, &n.AuthorID, &n.Text, &created); err != nil {
			return nil, err
		}
		n.CreatedAt = created
		out = append(out, &n)
	}
	return out, rows.Err()
}
