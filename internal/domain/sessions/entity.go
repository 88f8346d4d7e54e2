package sessions

import "time"

// SessionID identifier type
type SessionID string

// Session is a recorded interview plus its research script fields.
type Session struct {
	ID               SessionID `json:"id"`
	TenantID         string    `json:"tenant_id"`
	Title            string    `json:"title"`
	ProblemStatement string    `json:"problem_statement,omitempty"`
	Hypothesis       string    `json:"hypothesis,omitempty"`
	Objectives       []string  `json:"objectives,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Segment is one time-coded slice of a transcript.
type Segment struct {
	Speaker string `json:"speaker,omitempty"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// Transcript of one recording. A session may own several (e.g. a
// primary and a support session), ordered by creation time.
type Transcript struct {
	ID        string    `json:"id"`
	SessionID SessionID `json:"session_id"`
	Kind      string    `json:"kind,omitempty"` // primary | support
	Segments  []Segment `json:"segments"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is a manually authored observation attached to a session.
type Note struct {
	ID        string    `json:"id"`
	SessionID SessionID `json:"session_id"`
	AuthorID  string    `json:"author_id,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryKind enum
type CategoryKind string

const (
	CategoryPain    CategoryKind = "pain"
	CategoryProfile CategoryKind = "profile"
)

// Category is one entry of a caller-owned catalog.
type Category struct {
	ID    string       `json:"id"`
	Kind  CategoryKind `json:"kind"`
	Label string       `json:"label"`
}
