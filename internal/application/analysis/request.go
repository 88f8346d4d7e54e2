package analysis

import (
	"fmt"

	domain "github.com/userlens/sessionlens/internal/domain/analysis"
)

// ToolAnalyzeSession is the only tool this pipeline serves.
const ToolAnalyzeSession = "analyze_session"

// knownCapabilities are the capability tokens the provider adapter can honor.
var knownCapabilities = map[string]bool{
	"json_output":  true,
	"long_context": true,
	"streaming":    true,
	"tools":        true,
}

// ValidateRequest gates the pipeline: request shape, policy
// well-formedness, feature availability. No side effects; every failure
// here is terminal and not retried automatically.
func ValidateRequest(req domain.Request, features map[string]bool) error {
	var missing []string
	if req.Tool == "" {
		missing = append(missing, "tool is required")
	}
	if req.Input.SessionID == "" {
		missing = append(missing, "input.session_id is required")
	}
	if req.Context.TenantID == "" {
		missing = append(missing, "context.tenant_id is required")
	}
	if len(missing) > 0 {
		return domain.NewError(StageValidate, domain.CodeInvalidRequest, missing...)
	}

	var bad []string
	if req.Policy.MaxLatencyMs < 0 {
		bad = append(bad, "policy.max_latency_ms must be non-negative")
	}
	if req.Policy.BudgetCents < 0 {
		bad = append(bad, "policy.budget_cents must be non-negative")
	}
	for _, c := range req.Policy.Capabilities {
		if !knownCapabilities[c] {
			bad = append(bad, fmt.Sprintf("unknown capability: %s", c))
		}
	}
	if len(bad) > 0 {
		return domain.NewError(StageValidate, domain.CodeInvalidPolicy, bad...)
	}

	if !features[req.Tool] {
		return domain.NewError(StageValidate, domain.CodeFeatureUnavailable, "tool not enabled: "+req.Tool)
	}
	return nil
}
