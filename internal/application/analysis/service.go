package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	domain "github.com/userlens/sessionlens/internal/domain/analysis"
	"github.com/userlens/sessionlens/internal/domain/prompt"
	"github.com/userlens/sessionlens/internal/domain/sessions"
	"github.com/userlens/sessionlens/internal/logger"
)

// Stage names carried on pipeline errors.
const (
	StageValidate   = "validate"
	StageLedger     = "ledger"
	StageAssemble   = "assemble"
	StageInference  = "inference"
	StageOutput     = "output"
	StageCategories = "categories"
	StageEvidence   = "evidence"
	StagePersist    = "persist"
)

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Service implements the session-analysis pipeline use-case.
// Stages run strictly in order within one call; the only state shared
// across concurrent calls is the run ledger, so the service holds no
// locks and is safe for concurrent use.
type Service struct {
	Sessions  sessions.Repository
	Runs      domain.RunRepository
	Insights  domain.InsightRepository
	AI        domain.Inference      // nil means no provider configured; fallback path
	Redactor  domain.Redactor
	Artifacts domain.ArtifactStore // optional
	Features  map[string]bool
	Clock     Clock
	Log       *logger.Logger
}

// Analyze runs the full pipeline for one request: validate, ledger
// lookup, assemble, prompt, invoke (or fallback), validate output,
// cross-validate categories, resolve evidence, persist.
func (s *Service) Analyze(ctx context.Context, req domain.Request) (*domain.Response, error) {
	if err := ValidateRequest(req, s.Features); err != nil {
		return nil, err
	}

	tenant := req.Context.TenantID
	if req.IdempotencyKey != "" {
		prior, err := s.Runs.GetByKey(ctx, tenant, req.IdempotencyKey)
		if err != nil {
			return nil, domain.NewError(StageLedger, domain.CodePersistence, err.Error())
		}
		if prior != nil {
			return responseFromRun(prior, true)
		}
	}

	started := s.Clock.Now()

	asm, err := s.assemble(ctx, req)
	if err != nil {
		return nil, err
	}

	segs := make([]prompt.Segment, 0, asm.Index.Len())
	for _, is := range asm.Index.Segments() {
		segs = append(segs, prompt.Segment{ID: is.SymbolicID, Text: is.Sanitized})
	}
	promptText := prompt.Build(prompt.Spec{
		Language:          req.Input.Language,
		PainCategories:    req.Context.Catalogs.PainCategories,
		ProfileCategories: req.Context.Catalogs.ProfileCategories,
		Segments:          segs,
		Notes:             asm.Notes,
		Script:            asm.Script,
	})

	var inv *domain.Invocation
	if asm.Degraded {
		s.logger().WithField("session_id", req.Input.SessionID).
			Warn("session not found, running in degraded fallback mode")
		inv = FallbackInvocation(asm.Index)
	} else {
		inv, err = s.invoke(ctx, promptText, req.Policy, asm.Index)
		if err != nil {
			return nil, err
		}
	}

	result, err := ParseResult(inv.Payload)
	if err != nil {
		return nil, err
	}

	if err := CrossValidateCategories(result, req.Context.Catalogs); err != nil {
		return nil, err
	}

	resolved, err := ResolveEvidence(result, asm.Index)
	if err != nil {
		return nil, err
	}

	latency := s.Clock.Now().Sub(started).Milliseconds()

	run, fromCache, err := s.persist(ctx, req, inv, resolved, latency)
	if err != nil {
		return nil, err
	}
	if !fromCache {
		s.archive(ctx, run, promptText, inv.Payload)
	}

	return responseFromRun(run, fromCache)
}

// invoke calls the provider bounded by policy.maxLatencyMs. Transport
// failures (including the latency bound) switch to the fallback
// generator; provider-reported failures are terminal.
func (s *Service) invoke(ctx context.Context, promptText string, pol domain.Policy, index *domain.SegmentIndex) (*domain.Invocation, error) {
	if s.AI == nil {
		s.logger().Warn("no inference provider configured, using fallback result")
		return FallbackInvocation(index), nil
	}

	callCtx := ctx
	if pol.MaxLatencyMs > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(pol.MaxLatencyMs)*time.Millisecond)
		defer cancel()
	}

	inv, err := s.AI.Invoke(callCtx, promptText, pol)
	if err == nil {
		return inv, nil
	}
	if errors.Is(err, domain.ErrProviderUnreachable) || errors.Is(err, context.DeadlineExceeded) {
		s.logger().WithError(err).Warn("inference provider unreachable, using fallback result")
		return FallbackInvocation(index), nil
	}
	return nil, domain.NewError(StageInference, domain.CodeInference, err.Error())
}

// LatestRuns returns the last N audit rows for a tenant.
func (s *Service) LatestRuns(ctx context.Context, tenant string, limit int) ([]*domain.RunRecord, error) {
	return s.Runs.Latest(ctx, tenant, limit)
}

// GetRun fetches one audit row by ID.
func (s *Service) GetRun(ctx context.Context, tenant string, id domain.RunID) (*domain.RunRecord, error) {
	return s.Runs.Get(ctx, tenant, id)
}

// ListInsights returns a page of derived insight rows.
func (s *Service) ListInsights(ctx context.Context, tenant string, page, pageSize int) ([]*domain.InsightRecord, error) {
	return s.Insights.Paginate(ctx, tenant, page, pageSize)
}

func (s *Service) logger() *logger.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logger.Discard()
}

func responseFromRun(run *domain.RunRecord, fromCache bool) (*domain.Response, error) {
	var resolved domain.ResolvedResult
	if err := json.Unmarshal([]byte(run.ResultJSON), &resolved); err != nil {
		return nil, domain.NewError(StagePersist, domain.CodePersistence, "stored result not readable: "+err.Error())
	}
	return &domain.Response{
		Status: "ok",
		Result: resolved,
		Meta: domain.Meta{
			Provider:  run.Provider,
			Model:     run.Model,
			LatencyMs: run.LatencyMs,
			CostCents: run.CostCents,
			FromCache: fromCache,
		},
	}, nil
}
