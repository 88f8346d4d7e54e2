package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/userlens/sessionlens/internal/domain/analysis"
)

// RunRepository is the audit trail plus idempotency ledger. The ledger
// relies on a unique index over (tenant_id, idempotency_key); the first
// committer wins and later commits observe the stored row.
type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const insertRunQ = `
INSERT %s INTO analysis_runs
  (id, tenant_id, user_id, session_id, tool, provider, model, latency_ms, cost_cents, status, input_json, result_json, idempotency_key, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?);
`

// Insert writes a run without idempotency semantics.
func (r *RunRepository) Insert(ctx context.Context, run *domain.RunRecord) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(insertRunQ, ""), runArgs(run)...)
	return err
}

// InsertIfAbsent is the atomic insert-if-absent commit. INSERT IGNORE
// reports zero affected rows when the key already holds a run; the
// stored winner is then read back and returned.
func (r *RunRepository) InsertIfAbsent(ctx context.Context, run *domain.RunRecord) (*domain.RunRecord, bool, error) {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(insertRunQ, "IGNORE"), runArgs(run)...)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		winner, err := r.GetByKey(ctx, run.TenantID, run.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if winner == nil {
			return nil, false, fmt.Errorf("idempotency conflict but winner not found: %s", run.IdempotencyKey)
		}
		return winner, false, nil
	}
	return run, true, nil
}

func (r *RunRepository) GetByKey(ctx context.Context, tenant, key string) (*domain.RunRecord, error) {
	const q = selectRunQ + ` WHERE tenant_id=? AND idempotency_key=?;`
	return r.scanOne(r.db.QueryRowContext(ctx, q, tenant, key))
}

func (r *RunRepository) Get(ctx context.Context, tenant string, id domain.RunID) (*domain.RunRecord, error) {
	const q = selectRunQ + ` WHERE tenant_id=? AND id=?;`
	return r.scanOne(r.db.QueryRowContext(ctx, q, tenant, id))
}

func (r *RunRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = selectRunQ + `
 WHERE tenant_id=?
 ORDER BY created_at DESC, id DESC
 LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

const selectRunQ = `
SELECT id, tenant_id, user_id, session_id, tool, provider, model, latency_ms, cost_cents, status, input_json, result_json, idempotency_key, created_at
FROM analysis_runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RunRepository) scanOne(row *sql.Row) (*domain.RunRecord, error) {
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func scanRun(row rowScanner) (*domain.RunRecord, error) {
	var run domain.RunRecord
	var key sql.NullString
	var created time.Time
	if err := row.Scan(
		&run.ID, &run.TenantID, &run.UserID, &run.SessionID, &run.Tool,
		&run.Provider, &run.Model, &run.LatencyMs, &run.CostCents, &run.Status,
		&run.InputJSON, &run.ResultJSON, &key, &created,
	); err != nil {
		return nil, err
	}
	run.IdempotencyKey = key.String
	run.CreatedAt = created
	return &run, nil
}

func runArgs(run *domain.RunRecord) []any {
	key := sql.NullString{String: run.IdempotencyKey, Valid: run.IdempotencyKey != ""}
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return []any{
		run.ID, run.TenantID, run.UserID, run.SessionID, run.Tool,
		run.Provider, run.Model, run.LatencyMs, run.CostCents, run.Status,
		run.InputJSON, run.ResultJSON, key, created,
	}
}
