package analysis

import (
	domain "github.com/userlens/sessionlens/internal/domain/analysis"
)

// ResolveEvidence rewrites every symbolic segment reference into the
// concrete transcript span recorded in the index. A reference with no
// index entry fails the pipeline; spans are never nulled out or passed
// through unresolved.
func ResolveEvidence(res *domain.Result, index *domain.SegmentIndex) (*domain.ResolvedResult, error) {
	var missing []string
	resolve := func(ev *domain.Evidence) *domain.Span {
		if ev == nil {
			return nil
		}
		span, ok := index.Resolve(ev.SegID)
		if !ok {
			missing = append(missing, ev.SegID)
			return nil
		}
		return &span
	}

	out := &domain.ResolvedResult{Summary: res.Summary}
	for _, in := range res.Insights {
		out.Insights = append(out.Insights, domain.ResolvedInsight{
			Text:     in.Text,
			Evidence: resolve(in.Evidence),
		})
	}
	for _, p := range res.PainPoints {
		out.PainPoints = append(out.PainPoints, domain.ResolvedPainPoint{
			CategoryID: p.CategoryID,
			Example:    p.Example,
			Evidence:   resolve(p.Evidence),
		})
	}
	if res.SuggestedProfile != nil {
		cp := *res.SuggestedProfile
		out.SuggestedProfile = &cp
	}

	if len(missing) > 0 {
		return nil, domain.NewError(StageEvidence, domain.CodeUnresolvableEvidence, missing...)
	}
	return out, nil
}
