package analysis

import "time"

// RunID identifier type
type RunID string

// Status enum for a finished run
type Status string

const (
	StatusCompleted Status = "completed"
	StatusDegraded  Status = "degraded"
)

// ProviderFallback tags results produced by the deterministic fallback
// generator instead of a real inference provider.
const ProviderFallback = "fallback"

// Policy constrains how the inference call may execute.
type Policy struct {
	AllowPaid         bool     `json:"allow_paid"`
	PreferredProvider string   `json:"preferred_provider,omitempty"`
	MaxLatencyMs      int      `json:"max_latency_ms,omitempty"`
	BudgetCents       int      `json:"budget_cents,omitempty"`
	Region            string   `json:"region,omitempty"`
	Capabilities      []string `json:"capabilities,omitempty"`
}

// Catalogs are caller-supplied sets of valid categorical IDs. The
// pipeline never owns these; the caller fetches them and passes them in.
type Catalogs struct {
	PainCategories    []string `json:"pain_categories"`
	ProfileCategories []string `json:"profile_categories"`
}

// CallContext carries caller identity plus the catalogs.
type CallContext struct {
	TenantID      string   `json:"tenant_id"`
	UserID        string   `json:"user_id"`
	ParticipantID string   `json:"participant_id,omitempty"`
	Catalogs      Catalogs `json:"catalogs"`
}

// Input for the analyze_session tool
type Input struct {
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
}

// Request is one inbound analyze call. Constructed per call, immutable.
type Request struct {
	Tool           string
	Input          Input
	Context        CallContext
	Policy         Policy
	IdempotencyKey string
}

// Evidence is a symbolic segment reference emitted by the provider.
// Symbolic IDs are only valid within the lifetime of one request.
type Evidence struct {
	SegID string `json:"seg_id"`
}

// Span anchors a claim to a concrete moment in a transcript.
type Span struct {
	TranscriptID string `json:"transcript_id"`
	StartMs      int64  `json:"start_ms"`
	EndMs        int64  `json:"end_ms"`
}

// Insight as emitted by the provider. Evidence may be absent, never malformed.
type Insight struct {
	Text     string    `json:"text"`
	Evidence *Evidence `json:"evidence,omitempty"`
}

// PainPoint references a pain category from the caller-supplied catalog.
type PainPoint struct {
	CategoryID string    `json:"category_id"`
	Example    string    `json:"example"`
	Evidence   *Evidence `json:"evidence,omitempty"`
}

// SuggestedProfile is the provider's participant classification.
type SuggestedProfile struct {
	CategoryID string   `json:"category_id"`
	Value      string   `json:"value"`
	Reasons    []string `json:"reasons"`
	Confidence float64  `json:"confidence"`
}

// Result is the provider output shape, validated before any use.
type Result struct {
	Summary          string            `json:"summary"`
	Insights         []Insight         `json:"insights"`
	PainPoints       []PainPoint       `json:"pain_points"`
	SuggestedProfile *SuggestedProfile `json:"suggested_profile,omitempty"`
}

// ResolvedInsight carries a concrete transcript span instead of a
// symbolic reference.
type ResolvedInsight struct {
	Text     string `json:"text"`
	Evidence *Span  `json:"evidence,omitempty"`
}

type ResolvedPainPoint struct {
	CategoryID string `json:"category_id"`
	Example    string `json:"example"`
	Evidence   *Span  `json:"evidence,omitempty"`
}

// ResolvedResult is the only form ever persisted or returned to callers.
type ResolvedResult struct {
	Summary          string              `json:"summary"`
	Insights         []ResolvedInsight   `json:"insights"`
	PainPoints       []ResolvedPainPoint `json:"pain_points"`
	SuggestedProfile *SuggestedProfile   `json:"suggested_profile,omitempty"`
}

// RunRecord is the audit row, created exactly once per distinct
// idempotency key and never mutated afterward.
type RunRecord struct {
	ID             RunID     `json:"id"`
	TenantID       string    `json:"tenant_id"`
	UserID         string    `json:"user_id"`
	SessionID      string    `json:"session_id"`
	Tool           string    `json:"tool"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	LatencyMs      int64     `json:"latency_ms"`
	CostCents      int       `json:"cost_cents"`
	Status         Status    `json:"status"`
	InputJSON      string    `json:"input_json"`
	ResultJSON     string    `json:"result_json"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Meta describes how a response was produced.
type Meta struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	LatencyMs int64  `json:"latency_ms"`
	CostCents int    `json:"cost_cents"`
	FromCache bool   `json:"from_cache"`
}

// Response is the caller-visible envelope. Status is the literal "ok"
// on every successful call, degraded ones included; failures surface as
// a PipelineError instead. Degraded runs are recognizable by
// Meta.Provider == ProviderFallback.
type Response struct {
	Status string         `json:"status"`
	Result ResolvedResult `json:"result"`
	Meta   Meta           `json:"meta"`
}
