package analysis

import "context"

// RunRepository is the audit trail and idempotency ledger port.
type RunRepository interface {
	// Insert writes a run unconditionally (no idempotency key).
	Insert(ctx context.Context, run *RunRecord) error
	// InsertIfAbsent commits run under its idempotency key atomically.
	// When a concurrent call already committed the same key, the stored
	// winner is returned with inserted=false and run is discarded.
	InsertIfAbsent(ctx context.Context, run *RunRecord) (winner *RunRecord, inserted bool, err error)
	// GetByKey returns nil without error when no run holds the key.
	GetByKey(ctx context.Context, tenant, key string) (*RunRecord, error)
	Get(ctx context.Context, tenant string, id RunID) (*RunRecord, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*RunRecord, error)
}

// InsightRepository persists the derived best-effort rows.
type InsightRepository interface {
	SaveInsight(ctx context.Context, rec *InsightRecord) error
	SavePainPoint(ctx context.Context, rec *PainPointRecord) error
	SaveProfile(ctx context.Context, rec *ProfileRecord) error
	Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*InsightRecord, error)
}

// Invocation is the outcome of a successful provider call. Payload is
// the raw JSON body; it is validated downstream, never trusted here.
type Invocation struct {
	Payload   string
	Provider  string
	Model     string
	CostCents int
}

// Inference is the external model router port. Transport failures must
// be reported as (wrapped) ErrProviderUnreachable; provider-reported
// failures as any other error.
type Inference interface {
	Invoke(ctx context.Context, prompt string, pol Policy) (*Invocation, error)
}

// Redactor scrubs personally identifying content from free text before
// it reaches the prompt. Redaction internals are external to this core.
type Redactor interface {
	Redact(s string) string
}

// ArtifactStore archives run artifacts (rendered prompt, raw provider
// payload) for audit. Strictly best-effort.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
