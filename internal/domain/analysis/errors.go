package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// ErrProviderUnreachable indicates a transport-level failure talking to
// the inference provider (network error, deadline). The pipeline answers
// these with the fallback generator instead of failing the call.
var ErrProviderUnreachable = errors.New("inference provider unreachable")

// Code classifies a terminal pipeline failure.
type Code string

const (
	CodeInvalidRequest       Code = "invalid_request"
	CodeInvalidPolicy        Code = "invalid_policy"
	CodeFeatureUnavailable   Code = "feature_unavailable"
	CodeInference            Code = "inference_error"
	CodeInvalidModelOutput   Code = "invalid_model_output"
	CodeInvalidCategories    Code = "invalid_categories"
	CodeUnresolvableEvidence Code = "unresolvable_evidence"
	CodePersistence          Code = "persistence_error"
)

// PipelineError is the single structured error shape the pipeline
// returns. It names the failing stage and carries every collected
// detail, so callers see the complete list of violations at once.
type PipelineError struct {
	Stage   string   `json:"stage"`
	Code    Code     `json:"code"`
	Details []string `json:"details,omitempty"`
}

func (e *PipelineError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Stage, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Code, strings.Join(e.Details, "; "))
}

func NewError(stage string, code Code, details ...string) *PipelineError {
	return &PipelineError{Stage: stage, Code: code, Details: details}
}

// CodeOf extracts the failure code, or "" for foreign errors.
func CodeOf(err error) Code {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
