package analysis

import (
	"encoding/json"
	"fmt"

	domain "github.com/userlens/sessionlens/internal/domain/analysis"
)

const fallbackInsightLimit = 3

// FallbackInvocation produces the deterministic placeholder result used
// when the provider is unreachable or absent. The payload is clearly
// labeled, references the first segments of the index, and still passes
// through output, category and evidence validation downstream.
func FallbackInvocation(index *domain.SegmentIndex) *domain.Invocation {
	payload, _ := json.Marshal(FallbackResult(index))
	return &domain.Invocation{
		Payload:  string(payload),
		Provider: domain.ProviderFallback,
		Model:    domain.ProviderFallback,
	}
}

// FallbackResult builds the fixed placeholder analysis. No pain points
// and no profile, so catalog cross-validation passes trivially.
func FallbackResult(index *domain.SegmentIndex) *domain.Result {
	res := &domain.Result{
		Summary: "[fallback] inference provider unavailable; placeholder analysis generated without model output",
	}
	segs := index.Segments()
	if len(segs) == 0 {
		res.Insights = append(res.Insights, domain.Insight{
			Text: "[fallback] no transcript segments were available for this session",
		})
		return res
	}
	limit := fallbackInsightLimit
	if len(segs) < limit {
		limit = len(segs)
	}
	for i := 0; i < limit; i++ {
		res.Insights = append(res.Insights, domain.Insight{
			Text:     fmt.Sprintf("[fallback] placeholder insight referencing %s", segs[i].SymbolicID),
			Evidence: &domain.Evidence{SegID: segs[i].SymbolicID},
		})
	}
	return res
}
