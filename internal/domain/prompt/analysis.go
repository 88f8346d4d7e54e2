package prompt

import (
	"fmt"
	"strings"
)

// Segment is a sanitized transcript slice keyed by its request-scoped
// symbolic ID.
type Segment struct {
	ID   string
	Text string
}

// Script carries the sanitized research-script fields of a session.
type Script struct {
	ProblemStatement string
	Hypothesis       string
	Objectives       []string
}

// Spec is everything the user prompt is rendered from. All free text
// must already be PII-sanitized by the caller.
type Spec struct {
	Language          string
	PainCategories    []string
	ProfileCategories []string
	Segments          []Segment
	Notes             []string
	Script            Script
}

// SystemPrompt pins the output contract. The allowed-category lists are
// rendered in the user prompt as defense in depth; membership is still
// enforced after the call, never assumed from the prompt.
func SystemPrompt() string {
	return `You are a senior user researcher. You must produce one valid JSON object only (no markdown, no commentary, no code fences) that follows the schema below.

Requirements:
- Output must be a single JSON object.
- Reference transcript segments only by the seg_<n> IDs given in the prompt.
- pain_points[].category_id and suggested_profile.category_id must come from the allowed category lists in the prompt.
- suggested_profile.confidence must be a number between 0 and 1.
- Omit evidence entirely when no segment supports a claim; never invent segment IDs.

Schema (example with empty values):
{
  "summary": "<string>",
  "insights": [
    {"text": "<string>", "evidence": {"seg_id": "seg_1"}}
  ],
  "pain_points": [
    {"category_id": "<string>", "example": "<string>", "evidence": {"seg_id": "seg_1"}}
  ],
  "suggested_profile": {"category_id": "<string>", "value": "<string>", "reasons": ["<string>"], "confidence": 0.0}
}`
}

// Build renders the user prompt. Pure and deterministic: identical
// inputs always produce byte-identical output.
func Build(spec Spec) string {
	var b strings.Builder

	b.WriteString("[LANGUAGE]\n")
	lang := spec.Language
	if lang == "" {
		lang = "en"
	}
	b.WriteString(lang + "\n\n")

	b.WriteString("[ALLOWED_PAIN_CATEGORIES]\n")
	for _, id := range spec.PainCategories {
		b.WriteString(id + "\n")
	}
	b.WriteString("\n[ALLOWED_PROFILE_CATEGORIES]\n")
	for _, id := range spec.ProfileCategories {
		b.WriteString(id + "\n")
	}

	b.WriteString("\n[SCRIPT]\n")
	if spec.Script.ProblemStatement != "" {
		b.WriteString("problem: " + spec.Script.ProblemStatement + "\n")
	}
	if spec.Script.Hypothesis != "" {
		b.WriteString("hypothesis: " + spec.Script.Hypothesis + "\n")
	}
	for _, o := range spec.Script.Objectives {
		b.WriteString("objective: " + o + "\n")
	}

	b.WriteString("\n[TRANSCRIPT]\n")
	for _, seg := range spec.Segments {
		fmt.Fprintf(&b, "%s: %s\n", seg.ID, seg.Text)
	}

	b.WriteString("\n[NOTES]\n")
	for _, n := range spec.Notes {
		b.WriteString("- " + n + "\n")
	}

	b.WriteString("\nRespond with the JSON per schema.")
	return b.String()
}
