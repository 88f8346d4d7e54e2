package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/userlens/sessionlens/internal/domain/analysis"
)

// InsightRepository persists the derived best-effort rows.
type InsightRepository struct {
	db *sql.DB
}

func NewInsightRepository(db *sql.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

func (r *InsightRepository) SaveInsight(ctx context.Context, rec *domain.InsightRecord) error {
	const q = `
INSERT INTO analysis_insights
  (id, run_id, tenant_id, session_id, summary, payload_json, created_at)
VALUES (?,?,?,?,?,?,?);
`
	payload := rec.PayloadJSON
	if strings.TrimSpace(payload) == "" {
		// payload_json column requires valid JSON; use empty object
		payload = "{}"
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, rec.ID, rec.RunID, rec.TenantID, rec.SessionID, rec.Summary, payload, created)
	return err
}

func (r *InsightRepository) SavePainPoint(ctx context.Context, rec *domain.PainPointRecord) error {
	const q = `
INSERT INTO analysis_pain_points
  (run_id, tenant_id, session_id, category_id, example, transcript_id, start_ms, end_ms, created_at)
VALUES (?,?,?,?,?,?,?,?,?);
`
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, rec.RunID, rec.TenantID, rec.SessionID, rec.CategoryID, rec.Example, rec.TranscriptID, rec.StartMs, rec.EndMs, created)
	return err
}

func (r *InsightRepository) SaveProfile(ctx context.Context, rec *domain.ProfileRecord) error {
	const q = `
INSERT INTO analysis_profiles
  (run_id, tenant_id, participant_id, category_id, value, confidence, reasons_json, created_at)
VALUES (?,?,?,?,?,?,?,?);
`
	reasons := rec.ReasonsJSON
	if strings.TrimSpace(reasons) == "" {
		reasons = "[]"
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, rec.RunID, rec.TenantID, rec.ParticipantID, rec.CategoryID, rec.Value, rec.Confidence, reasons, created)
	return err
}

// Paginate returns a page of insight rows ordered by created_at desc
func (r *InsightRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.InsightRecord, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, run_id, tenant_id, session_id, summary, payload_json, created_at
FROM analysis_insights
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.InsightRecord
	for rows.Next() {
		var rec domain.InsightRecord
		var created time.Time
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.TenantID, &rec.SessionID, &rec.Summary, &rec.PayloadJSON, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = created
		out = append(out, &rec)
	}
	return out, rows.Err()
}
