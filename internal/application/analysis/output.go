package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	domain "github.com/userlens/sessionlens/internal/domain/analysis"
)

// ParseResult decodes the provider payload and checks it against the
// result contract. Violations are collected into one error; the payload
// is never repaired or partially accepted.
func ParseResult(payload string) (*domain.Result, error) {
	var res domain.Result
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, domain.NewError(StageOutput, domain.CodeInvalidModelOutput, "payload is not valid JSON for schema: "+err.Error())
	}
	if v := validateResult(&res); len(v) > 0 {
		return nil, domain.NewError(StageOutput, domain.CodeInvalidModelOutput, v...)
	}
	return &res, nil
}

func validateResult(res *domain.Result) []string {
	var v []string
	if strings.TrimSpace(res.Summary) == "" {
		v = append(v, "summary is required")
	}
	for i, in := range res.Insights {
		if strings.TrimSpace(in.Text) == "" {
			v = append(v, fmt.Sprintf("insights[%d].text is required", i))
		}
		if in.Evidence != nil && in.Evidence.SegID == "" {
			v = append(v, fmt.Sprintf("insights[%d].evidence.seg_id is required", i))
		}
	}
	for i, p := range res.PainPoints {
		if p.CategoryID == "" {
			v = append(v, fmt.Sprintf("pain_points[%d].category_id is required", i))
		}
		if strings.TrimSpace(p.Example) == "" {
			v = append(v, fmt.Sprintf("pain_points[%d].example is required", i))
		}
		if p.Evidence != nil && p.Evidence.SegID == "" {
			v = append(v, fmt.Sprintf("pain_points[%d].evidence.seg_id is required", i))
		}
	}
	if sp := res.SuggestedProfile; sp != nil {
		if sp.CategoryID == "" {
			v = append(v, "suggested_profile.category_id is required")
		}
		if sp.Confidence < 0 || sp.Confidence > 1 {
			v = append(v, fmt.Sprintf("suggested_profile.confidence %v outside [0,1]", sp.Confidence))
		}
	}
	return v
}

// CrossValidateCategories checks every categorical reference against
// the caller-supplied catalogs. All misses are collected before
// failing, so the caller sees the complete list in one response.
func CrossValidateCategories(res *domain.Result, cat domain.Catalogs) error {
	pain := toSet(cat.PainCategories)
	prof := toSet(cat.ProfileCategories)

	var unknown []string
	for _, p := range res.PainPoints {
		if !pain[p.CategoryID] {
			unknown = append(unknown, "unknown category: "+p.CategoryID)
		}
	}
	if sp := res.SuggestedProfile; sp != nil && !prof[sp.CategoryID] {
		unknown = append(unknown, "unknown category: "+sp.CategoryID)
	}
	if len(unknown) > 0 {
		return domain.NewError(StageCategories, domain.CodeInvalidCategories, unknown...)
	}
	return nil
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
