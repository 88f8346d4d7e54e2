package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/userlens/sessionlens/internal/domain/analysis"
)

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
VALUES ($1,$2,$3,$4,$5,$6,$7);
`
	payload := rec.PayloadJSON
	if strings.TrimSpace(payload) == "" {
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
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);
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
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);
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
WHERE tenant_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;
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
