package analysis

import "time"

// InsightRecord is the derived convenience row linked to a run.
// Best-effort: a missed write never blocks the caller.
type InsightRecord struct {
	ID          string    `json:"id"`
	RunID       RunID     `json:"run_id"`
	TenantID    string    `json:"tenant_id"`
	SessionID   string    `json:"session_id"`
	Summary     string    `json:"summary"`
	PayloadJSON string    `json:"payload_json"`
	CreatedAt   time.Time `json:"created_at"`
}

// PainPointRecord is one derived row per resolved pain point.
type PainPointRecord struct {
	ID           int64     `json:"id"`
	RunID        RunID     `json:"run_id"`
	TenantID     string    `json:"tenant_id"`
	SessionID    string    `json:"session_id"`
	CategoryID   string    `json:"category_id"`
	Example      string    `json:"example"`
	TranscriptID string    `json:"transcript_id,omitempty"`
	StartMs      int64     `json:"start_ms"`
	EndMs        int64     `json:"end_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProfileRecord is the derived participant-profile row, at most one per run.
type ProfileRecord struct {
	ID            int64     `json:"id"`
	RunID         RunID     `json:"run_id"`
	TenantID      string    `json:"tenant_id"`
	ParticipantID string    `json:"participant_id,omitempty"`
	CategoryID    string    `json:"category_id"`
	Value         string    `json:"value"`
	Confidence    float64   `json:"confidence"`
	ReasonsJSON   string    `json:"reasons_json"`
	CreatedAt     time.Time `json:"created_at"`
}
