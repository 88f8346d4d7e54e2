package analysis

import (
	"context"

	domain "github.com/userlens/sessionlens/internal/domain/analysis"
	"github.com/userlens/sessionlens/internal/domain/prompt"
	"github.com/userlens/sessionlens/internal/domain/sessions"
)

const placeholderSegmentText = "[no transcript available]"

// Assembly is the per-request context: loaded records plus the
// request-scoped segment index. The index holds raw text; everything
// that goes into the prompt is sanitized.
type Assembly struct {
	Session  *sessions.Session // nil in degraded mode
	Degraded bool
	Index    *domain.SegmentIndex
	Notes    []string
	Script   prompt.Script
}

// assemble loads the session, its transcripts and notes, builds the
// global seg_<n> index across the concatenation of transcripts in load
// order, and sanitizes all free text. A missing session switches to
// degraded mode instead of failing: the index is seeded with one
// synthetic placeholder segment so fallback evidence stays resolvable.
func (s *Service) assemble(ctx context.Context, req domain.Request) (*Assembly, error) {
	tenant := req.Context.TenantID
	id := sessions.SessionID(req.Input.SessionID)

	sess, err := s.Sessions.GetSession(ctx, tenant, id)
	if err != nil {
		return nil, domain.NewError(StageAssemble, domain.CodePersistence, err.Error())
	}

	asm := &Assembly{Index: domain.NewSegmentIndex()}
	if sess == nil {
		asm.Degraded = true
		asm.Index.Add("synthetic", 0, 0, placeholderSegmentText, placeholderSegmentText)
		return asm, nil
	}
	asm.Session = sess

	asm.Script = prompt.Script{
		ProblemStatement: s.Redactor.Redact(sess.ProblemStatement),
		Hypothesis:       s.Redactor.Redact(sess.Hypothesis),
	}
	for _, o := range sess.Objectives {
		asm.Script.Objectives = append(asm.Script.Objectives, s.Redactor.Redact(o))
	}

	transcripts, err := s.Sessions.ListTranscripts(ctx, tenant, id)
	if err != nil {
		return nil, domain.NewError(StageAssemble, domain.CodePersistence, err.Error())
	}
	for _, tr := range transcripts {
		for _, seg := range tr.Segments {
			asm.Index.Add(tr.ID, seg.StartMs, seg.EndMs, seg.Text, s.Redactor.Redact(seg.Text))
		}
	}

	notes, err := s.Sessions.ListNotes(ctx, tenant, id)
	if err != nil {
		return nil, domain.NewError(StageAssemble, domain.CodePersistence, err.Error())
	}
	for _, n := range notes {
		asm.Notes = append(asm.Notes, s.Redactor.Redact(n.Text))
	}

	return asm, nil
}
