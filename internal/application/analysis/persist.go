package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	domain "github.com/userlens/sessionlens/internal/domain/analysis"
)

// persist applies the tiered durability policy: the RunRecord write is
// mandatory and aborts the pipeline on failure; the derived insight,
// pain-point and profile rows are each best-effort and only logged when
// they fail. Derived rows are written only by the actual committer, so
// a lost commit race leaves no orphans.
func (s *Service) persist(ctx context.Context, req domain.Request, inv *domain.Invocation, resolved *domain.ResolvedResult, latencyMs int64) (*domain.RunRecord, bool, error) {
	resultJSON, err := json.Marshal(resolved)
	if err != nil {
		return nil, false, domain.NewError(StagePersist, domain.CodePersistence, err.Error())
	}
	inputJSON, _ := json.Marshal(req.Input)

	status := domain.StatusCompleted
	if inv.Provider == domain.ProviderFallback {
		status = domain.StatusDegraded
	}

	run := &domain.RunRecord{
		ID:             domain.RunID(uuid.New().String()),
		TenantID:       req.Context.TenantID,
		UserID:         req.Context.UserID,
		SessionID:      req.Input.SessionID,
		Tool:           req.Tool,
		Provider:       inv.Provider,
		Model:          inv.Model,
		LatencyMs:      latencyMs,
		CostCents:      inv.CostCents,
		Status:         status,
		InputJSON:      string(inputJSON),
		ResultJSON:     string(resultJSON),
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      s.Clock.Now(),
	}

	if req.IdempotencyKey != "" {
		winner, inserted, err := s.Runs.InsertIfAbsent(ctx, run)
		if err != nil {
			return nil, false, domain.NewError(StagePersist, domain.CodePersistence, err.Error())
		}
		if !inserted {
			// a concurrent call committed the same key first; discard
			// our write and hand back the winner's record
			return winner, true, nil
		}
	} else {
		if err := s.Runs.Insert(ctx, run); err != nil {
			return nil, false, domain.NewError(StagePersist, domain.CodePersistence, err.Error())
		}
	}

	s.saveDerived(ctx, req, run, resolved)
	return run, false, nil
}

func (s *Service) saveDerived(ctx context.Context, req domain.Request, run *domain.RunRecord, resolved *domain.ResolvedResult) {
	log := s.logger().WithField("run_id", string(run.ID))

	ins := &domain.InsightRecord{
		ID:          uuid.New().String(),
		RunID:       run.ID,
		TenantID:    run.TenantID,
		SessionID:   run.SessionID,
		Summary:     resolved.Summary,
		PayloadJSON: run.ResultJSON,
		CreatedAt:   run.CreatedAt,
	}
	if err := s.Insights.SaveInsight(ctx, ins); err != nil {
		log.WithField("error", err.Error()).Error("insight write failed")
	}

	for i := range resolved.PainPoints {
		p := resolved.PainPoints[i]
		rec := &domain.PainPointRecord{
			RunID:      run.ID,
			TenantID:   run.TenantID,
			SessionID:  run.SessionID,
			CategoryID: p.CategoryID,
			Example:    p.Example,
			CreatedAt:  run.CreatedAt,
		}
		if p.Evidence != nil {
			rec.TranscriptID = p.Evidence.TranscriptID
			rec.StartMs = p.Evidence.StartMs
			rec.EndMs = p.Evidence.EndMs
		}
		if err := s.Insights.SavePainPoint(ctx, rec); err != nil {
			log.WithField("error", err.Error()).Error("pain point write failed")
		}
	}

	if sp := resolved.SuggestedProfile; sp != nil {
		reasons, _ := json.Marshal(sp.Reasons)
		rec := &domain.ProfileRecord{
			RunID:         run.ID,
			TenantID:      run.TenantID,
			ParticipantID: req.Context.ParticipantID,
			CategoryID:    sp.CategoryID,
			Value:         sp.Value,
			Confidence:    sp.Confidence,
			ReasonsJSON:   string(reasons),
			CreatedAt:     run.CreatedAt,
		}
		if err := s.Insights.SaveProfile(ctx, rec); err != nil {
			log.WithField("error", err.Error()).Error("profile write failed")
		}
	}
}

// archive stores the rendered prompt and raw provider payload for
// audit. Best-effort: never fails the call.
func (s *Service) archive(ctx context.Context, run *domain.RunRecord, promptText, payload string) {
	if s.Artifacts == nil {
		return
	}
	doc, err := json.Marshal(map[string]string{
		"prompt":  promptText,
		"payload": payload,
	})
	if err != nil {
		return
	}
	key := fmt.Sprintf("%s/%s/run.json", run.TenantID, run.ID)
	if _, err := s.Artifacts.Put(ctx, key, doc, "application/json"); err != nil {
		s.logger().WithError(err).Warn("artifact archive failed")
	}
}
