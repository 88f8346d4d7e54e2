package sessions

import "context"

// Repository port for session reads consumed by the pipeline.
type Repository interface {
	// GetSession returns nil without error when the session is absent;
	// the pipeline decides whether that is fatal.
	GetSession(ctx context.Context, tenant string, id SessionID) (*Session, error)
	// ListTranscripts returns transcripts in load order (creation time).
	ListTranscripts(ctx context.Context, tenant string, id SessionID) ([]*Transcript, error)
	// ListNotes returns notes ordered by creation time.
	ListNotes(ctx context.Context, tenant string, id SessionID) ([]*Note, error)
}

// CatalogRepository serves the categorical catalogs the caller passes
// into the pipeline context.
type CatalogRepository interface {
	ListCategories(ctx context.Context, tenant string, kind CategoryKind) ([]*Category, error)
}
