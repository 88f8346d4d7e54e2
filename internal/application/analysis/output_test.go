package analysis

import (
	"strings"
	"testing"

	domain "github.com/userlens/sessionlens/internal/domain/analysis"
)

func TestParseResultRejectsNonJSON(t *testing.T) {
	_, err := ParseResult("```json\n{}\n```")
	if domain.CodeOf(err) != domain.CodeInvalidModelOutput {
		t.Fatalf("code = %v, want invalid_model_output", domain.CodeOf(err))
	}
}

func TestParseResultCollectsAllViolations(t *testing.T) {
	payload := `{
		"summary": "",
		"insights": [{"text": ""}],
		"pain_points": [{"category_id": "", "example": ""}],
		"suggested_profile": {"category_id": "", "value": "v", "confidence": -0.1}
	}`
	_, err := ParseResult(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		"summary is required",
		"insights[0].text is required",
		"pain_points[0].category_id is required",
		"pain_points[0].example is required",
		"suggested_profile.category_id is required",
		"outside [0,1]",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error missing %q: %v", want, msg)
		}
	}
}

func TestParseResultEvidenceOptionalButNeverMalformed(t *testing.T) {
	// absent evidence is fine
	if _, err := ParseResult(`{"summary": "s", "insights": [{"text": "t"}]}`); err != nil {
		t.Fatalf("absent evidence rejected: %v", err)
	}
	// present but empty evidence is not
	_, err := ParseResult(`{"summary": "s", "insights": [{"text": "t", "evidence": {}}]}`)
	if domain.CodeOf(err) != domain.CodeInvalidModelOutput {
		t.Fatalf("empty evidence: code = %v, want invalid_model_output", domain.CodeOf(err))
	}
}

func TestCrossValidateCategories(t *testing.T) {
	cat := domain.Catalogs{
		PainCategories:    []string{"cat_a"},
		ProfileCategories: []string{"prof_a"},
	}

	ok := &domain.Result{
		Summary:          "s",
		PainPoints:       []domain.PainPoint{{CategoryID: "cat_a", Example: "e"}},
		SuggestedProfile: &domain.SuggestedProfile{CategoryID: "prof_a", Value: "v", Confidence: 0.5},
	}
	if err := CrossValidateCategories(ok, cat); err != nil {
		t.Fatalf("valid categories rejected: %v", err)
	}

	// pain IDs are not valid profile IDs and vice versa
	crossed := &domain.Result{
		Summary:          "s",
		SuggestedProfile: &domain.SuggestedProfile{CategoryID: "cat_a", Value: "v", Confidence: 0.5},
	}
	err := CrossValidateCategories(crossed, cat)
	if domain.CodeOf(err) != domain.CodeInvalidCategories {
		t.Fatalf("kind mismatch: code = %v, want invalid_categories", domain.CodeOf(err))
	}
}
