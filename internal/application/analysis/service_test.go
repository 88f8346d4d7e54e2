package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/userlens/sessionlens/internal/domain/analysis"
	"github.com/userlens/sessionlens/internal/domain/sessions"
	"github.com/userlens/sessionlens/internal/logger"
)

// --- fakes ---

type fakeSessions struct {
	session     *sessions.Session
	transcripts []*sessions.Transcript
	notes       []*sessions.Note
	err         error
}

func (f *fakeSessions) GetSession(ctx context.Context, tenant string, id sessions.SessionID) (*sessions.Session, error) {
	return f.session, f.err
}

func (f *fakeSessions) ListTranscripts(ctx context.Context, tenant string, id sessions.SessionID) ([]*sessions.Transcript, error) {
	return f.transcripts, nil
}

func (f *fakeSessions) ListNotes(ctx context.Context, tenant string, id sessions.SessionID) ([]*sessions.Note, error) {
	return f.notes, nil
}

type fakeRuns struct {
	mu         sync.Mutex
	byKey      map[string]*domain.RunRecord
	all        []*domain.RunRecord
	failInsert bool
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{byKey: make(map[string]*domain.RunRecord)}
}

func (f *fakeRuns) Insert(ctx context.Context, run *domain.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		return errors.New("disk full")
	}
	f.all = append(f.all, run)
	return nil
}

func (f *fakeRuns) InsertIfAbsent(ctx context.Context, run *domain.RunRecord) (*domain.RunRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		return nil, false, errors.New("disk full")
	}
	key := run.TenantID + "|" + run.IdempotencyKey
	if prior, ok := f.byKey[key]; ok {
		return prior, false, nil
	}
	f.byKey[key] = run
	f.all = append(f.all, run)
	return run, true, nil
}

func (f *fakeRuns) GetByKey(ctx context.Context, tenant, key string) (*domain.RunRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byKey[tenant+"|"+key], nil
}

func (f *fakeRuns) Get(ctx context.Context, tenant string, id domain.RunID) (*domain.RunRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.all {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRuns) Latest(ctx context.Context, tenant string, limit int) ([]*domain.RunRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.all, nil
}

func (f *fakeRuns) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.all)
}

type fakeInsights struct {
	mu          sync.Mutex
	insights    []*domain.InsightRecord
	painPoints  []*domain.PainPointRecord
	profiles    []*domain.ProfileRecord
	failInsight bool
	failPain    bool
	failProfile bool
}

func (f *fakeInsights) SaveInsight(ctx context.Context, rec *domain.InsightRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsight {
		return errors.New("insight table unavailable")
	}
	f.insights = append(f.insights, rec)
	return nil
}

func (f *fakeInsights) SavePainPoint(ctx context.Context, rec *domain.PainPointRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPain {
		return errors.New("pain table unavailable")
	}
	f.painPoints = append(f.painPoints, rec)
	return nil
}

func (f *fakeInsights) SaveProfile(ctx context.Context, rec *domain.ProfileRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failProfile {
		return errors.New("profile table unavailable")
	}
	f.profiles = append(f.profiles, rec)
	return nil
}

func (f *fakeInsights) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.InsightRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insights, nil
}

type fakeAI struct {
	mu      sync.Mutex
	calls   int
	payload string
	err     error
}

func (f *fakeAI) Invoke(ctx context.Context, prompt string, pol domain.Policy) (*domain.Invocation, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Invocation{Payload: f.payload, Provider: "openai", Model: "gpt-test", CostCents: 1}, nil
}

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type identityRedactor struct{}

func (identityRedactor) Redact(s string) string { return s }

// --- fixtures ---

func goodPayload() string {
	res := domain.Result{
		Summary: "participant struggles with exports",
		Insights: []domain.Insight{
			{Text: "exports are slow", Evidence: &domain.Evidence{SegID: "seg_1"}},
			{Text: "general frustration"},
		},
		PainPoints: []domain.PainPoint{
			{CategoryID: "cat_speed", Example: "waited ten minutes", Evidence: &domain.Evidence{SegID: "seg_2"}},
		},
		SuggestedProfile: &domain.SuggestedProfile{
			CategoryID: "prof_power",
			Value:      "power_user",
			Reasons:    []string{"uses advanced features"},
			Confidence: 0.8,
		},
	}
	b, _ := json.Marshal(res)
	return string(b)
}

func testSession() *sessions.Session {
	return &sessions.Session{
		ID:               "sess-1",
		TenantID:         "acme",
		Title:            "Export flow interview",
		ProblemStatement: "exports feel slow",
		Objectives:       []string{"find friction"},
	}
}

func testTranscripts() []*sessions.Transcript {
	return []*sessions.Transcript{
		{
			ID: "tr-1",
			Segments: []sessions.Segment{
				{StartMs: 0, EndMs: 4000, Text: "I tried to export the report"},
				{StartMs: 4000, EndMs: 9000, Text: "it took forever"},
			},
		},
	}
}

func testRequest() domain.Request {
	return domain.Request{
		Tool:  ToolAnalyzeSession,
		Input: domain.Input{SessionID: "sess-1", Language: "en"},
		Context: domain.CallContext{
			TenantID: "acme",
			UserID:   "user-1",
			Catalogs: domain.Catalogs{
				PainCategories:    []string{"cat_speed", "cat_confusion"},
				ProfileCategories: []string{"prof_power", "prof_novice"},
			},
		},
	}
}

func newTestService(ai domain.Inference) (*Service, *fakeRuns, *fakeInsights, *fakeAI) {
	var fa *fakeAI
	if ai == nil {
		fa = &fakeAI{payload: goodPayload()}
		ai = fa
	}
	runs := newFakeRuns()
	insights := &fakeInsights{}
	svc := &Service{
		Sessions: &fakeSessions{session: testSession(), transcripts: testTranscripts()},
		Runs:     runs,
		Insights: insights,
		AI:       ai,
		Redactor: identityRedactor{},
		Features: map[string]bool{ToolAnalyzeSession: true},
		Clock:    SystemClock{},
		Log:      logger.Discard(),
	}
	return svc, runs, insights, fa
}

// --- tests ---

func TestAnalyzeHappyPath(t *testing.T) {
	svc, runs, insights, _ := newTestService(nil)

	resp, err := svc.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("envelope status = %q, want ok", resp.Status)
	}
	if resp.Meta.FromCache {
		t.Fatal("fresh run should not be from cache")
	}
	if got := len(resp.Result.Insights); got != 2 {
		t.Fatalf("insights = %d, want 2", got)
	}
	ev := resp.Result.Insights[0].Evidence
	if ev == nil || ev.TranscriptID != "tr-1" || ev.StartMs != 0 || ev.EndMs != 4000 {
		t.Fatalf("seg_1 resolved to %+v, want tr-1 0..4000", ev)
	}
	if runs.count() != 1 {
		t.Fatalf("run records = %d, want 1", runs.count())
	}
	if len(insights.insights) != 1 || len(insights.painPoints) != 1 || len(insights.profiles) != 1 {
		t.Fatalf("derived rows = %d/%d/%d, want 1/1/1",
			len(insights.insights), len(insights.painPoints), len(insights.profiles))
	}
}

func TestAnalyzeWithoutKeyRunsIndependently(t *testing.T) {
	svc, runs, _, ai := newTestService(nil)
	req := testRequest()

	for i := 0; i < 2; i++ {
		if _, err := svc.Analyze(context.Background(), req); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if runs.count() != 2 {
		t.Fatalf("run records = %d, want 2 (no key means no caching)", runs.count())
	}
	if ai.callCount() != 2 {
		t.Fatalf("provider calls = %d, want 2", ai.callCount())
	}
}

func TestAnalyzeIdempotencyKeyServesCachedRun(t *testing.T) {
	svc, runs, _, ai := newTestService(nil)
	req := testRequest()
	req.IdempotencyKey = "key-1"

	first, err := svc.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.Meta.FromCache {
		t.Fatal("first call must not be cached")
	}

	second, err := svc.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !second.Meta.FromCache {
		t.Fatal("second call with same key must come from cache")
	}
	if runs.count() != 1 {
		t.Fatalf("run records = %d, want 1", runs.count())
	}
	if ai.callCount() != 1 {
		t.Fatalf("provider calls = %d, want 1", ai.callCount())
	}
	if second.Result.Summary != first.Result.Summary {
		t.Fatal("cached result drifted from original")
	}
}

func TestAnalyzeConcurrentSameKeyCommitsOnce(t *testing.T) {
	svc, runs, _, _ := newTestService(nil)
	req := testRequest()
	req.IdempotencyKey = "key-race"

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Analyze(context.Background(), req)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	if runs.count() != 1 {
		t.Fatalf("run records = %d, want exactly 1 for %d racing calls", runs.count(), n)
	}
}

func TestAnalyzeUnresolvableEvidence(t *testing.T) {
	res := domain.Result{
		Summary:  "summary",
		Insights: []domain.Insight{{Text: "ghost", Evidence: &domain.Evidence{SegID: "seg_99"}}},
	}
	b, _ := json.Marshal(res)
	svc, runs, insights, _ := newTestService(&fakeAI{payload: string(b)})

	_, err := svc.Analyze(context.Background(), testRequest())
	if domain.CodeOf(err) != domain.CodeUnresolvableEvidence {
		t.Fatalf("code = %v, want unresolvable_evidence (err=%v)", domain.CodeOf(err), err)
	}
	if !strings.Contains(err.Error(), "seg_99") {
		t.Fatalf("error should name the missing segment: %v", err)
	}
	if runs.count() != 0 || len(insights.insights) != 0 {
		t.Fatal("failed run must persist nothing")
	}
}

func TestAnalyzeUnknownCategoriesAllListed(t *testing.T) {
	res := domain.Result{
		Summary: "summary",
		PainPoints: []domain.PainPoint{
			{CategoryID: "bogus_a", Example: "x"},
			{CategoryID: "bogus_b", Example: "y"},
		},
		SuggestedProfile: &domain.SuggestedProfile{CategoryID: "bogus_c", Value: "v", Confidence: 0.5},
	}
	b, _ := json.Marshal(res)
	svc, runs, _, _ := newTestService(&fakeAI{payload: string(b)})

	_, err := svc.Analyze(context.Background(), testRequest())
	if domain.CodeOf(err) != domain.CodeInvalidCategories {
		t.Fatalf("code = %v, want invalid_categories", domain.CodeOf(err))
	}
	for _, id := range []string{"bogus_a", "bogus_b", "bogus_c"} {
		if !strings.Contains(err.Error(), id) {
			t.Fatalf("error should list %s: %v", id, err)
		}
	}
	if runs.count() != 0 {
		t.Fatal("failed run must persist nothing")
	}
}

func TestAnalyzeConfidenceOutOfRange(t *testing.T) {
	res := domain.Result{
		Summary:          "summary",
		SuggestedProfile: &domain.SuggestedProfile{CategoryID: "prof_power", Value: "v", Confidence: 1.4},
	}
	b, _ := json.Marshal(res)
	svc, runs, insights, _ := newTestService(&fakeAI{payload: string(b)})

	_, err := svc.Analyze(context.Background(), testRequest())
	if domain.CodeOf(err) != domain.CodeInvalidModelOutput {
		t.Fatalf("code = %v, want invalid_model_output", domain.CodeOf(err))
	}
	if runs.count() != 0 || len(insights.profiles) != 0 {
		t.Fatal("invalid output must persist nothing")
	}
}

func TestAnalyzeMalformedPayload(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeAI{payload: "this is not json"})

	_, err := svc.Analyze(context.Background(), testRequest())
	if domain.CodeOf(err) != domain.CodeInvalidModelOutput {
		t.Fatalf("code = %v, want invalid_model_output", domain.CodeOf(err))
	}
}

func TestAnalyzeTransportFailureFallsBack(t *testing.T) {
	ai := &fakeAI{err: fmt.Errorf("dial tcp: %w", domain.ErrProviderUnreachable)}
	svc, runs, _, _ := newTestService(ai)

	resp, err := svc.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("fallback path must not fail: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("envelope status = %q, want ok even when degraded", resp.Status)
	}
	if resp.Meta.Provider != domain.ProviderFallback {
		t.Fatalf("provider = %q, want fallback", resp.Meta.Provider)
	}
	if runs.count() != 1 {
		t.Fatal("degraded run must still be persisted")
	}
	if got := runs.all[0].Status; got != domain.StatusDegraded {
		t.Fatalf("run status = %q, want degraded", got)
	}
	// fallback evidence references real segments and resolves to spans
	for _, in := range resp.Result.Insights {
		if in.Evidence != nil && in.Evidence.TranscriptID == "" {
			t.Fatalf("fallback evidence not resolved: %+v", in.Evidence)
		}
	}
}

func TestAnalyzeProviderErrorIsTerminal(t *testing.T) {
	ai := &fakeAI{err: errors.New("provider error: model overloaded")}
	svc, runs, _, _ := newTestService(ai)

	_, err := svc.Analyze(context.Background(), testRequest())
	if domain.CodeOf(err) != domain.CodeInference {
		t.Fatalf("code = %v, want inference_error", domain.CodeOf(err))
	}
	if runs.count() != 0 {
		t.Fatal("terminal inference error must persist nothing")
	}
}

func TestAnalyzeRunInsertFailureLeavesNoOrphans(t *testing.T) {
	svc, runs, insights, _ := newTestService(nil)
	runs.failInsert = true

	_, err := svc.Analyze(context.Background(), testRequest())
	if domain.CodeOf(err) != domain.CodePersistence {
		t.Fatalf("code = %v, want persistence_error", domain.CodeOf(err))
	}
	if len(insights.insights)+len(insights.painPoints)+len(insights.profiles) != 0 {
		t.Fatal("derived rows written despite run insert failure")
	}
}

func TestAnalyzeDerivedWriteFailureStillSucceeds(t *testing.T) {
	svc, runs, insights, _ := newTestService(nil)
	insights.failInsight = true
	insights.failPain = true
	insights.failProfile = true

	resp, err := svc.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("derived write failures must not fail the call: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("envelope status = %q, want ok", resp.Status)
	}
	if runs.count() != 1 {
		t.Fatal("run record missing")
	}
}

func TestAnalyzeMissingSessionDegrades(t *testing.T) {
	svc, runs, _, ai := newTestService(nil)
	svc.Sessions = &fakeSessions{session: nil}

	resp, err := svc.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("missing session must degrade, not fail: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("envelope status = %q, want ok even when degraded", resp.Status)
	}
	if resp.Meta.Provider != domain.ProviderFallback {
		t.Fatalf("provider = %q, want fallback", resp.Meta.Provider)
	}
	if ai.callCount() != 0 {
		t.Fatalf("provider calls = %d, want 0 in degraded mode", ai.callCount())
	}
	// the placeholder segment anchors fallback evidence
	for _, in := range resp.Result.Insights {
		if in.Evidence != nil && in.Evidence.TranscriptID != "synthetic" {
			t.Fatalf("evidence transcript = %q, want synthetic", in.Evidence.TranscriptID)
		}
	}
	if runs.count() != 1 {
		t.Fatal("degraded run must still be persisted")
	}
}

func TestAnalyzeGlobalIndexSpansTranscripts(t *testing.T) {
	// 5 segments in transcript one, 3 in transcript two: seg_6 is the
	// first segment of transcript two.
	tr1 := &sessions.Transcript{ID: "tr-1"}
	for i := 0; i < 5; i++ {
		tr1.Segments = append(tr1.Segments, sessions.Segment{
			StartMs: int64(i * 1000), EndMs: int64(i*1000 + 900), Text: fmt.Sprintf("line %d", i),
		})
	}
	tr2 := &sessions.Transcript{ID: "tr-2"}
	for i := 0; i < 3; i++ {
		tr2.Segments = append(tr2.Segments, sessions.Segment{
			StartMs: int64(i * 500), EndMs: int64(i*500 + 400), Text: fmt.Sprintf("support %d", i),
		})
	}

	res := domain.Result{
		Summary:  "summary",
		Insights: []domain.Insight{{Text: "cross-transcript claim", Evidence: &domain.Evidence{SegID: "seg_6"}}},
	}
	b, _ := json.Marshal(res)

	svc, _, _, _ := newTestService(&fakeAI{payload: string(b)})
	svc.Sessions = &fakeSessions{session: testSession(), transcripts: []*sessions.Transcript{tr1, tr2}}

	resp, err := svc.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ev := resp.Result.Insights[0].Evidence
	if ev == nil || ev.TranscriptID != "tr-2" || ev.StartMs != 0 || ev.EndMs != 400 {
		t.Fatalf("seg_6 resolved to %+v, want tr-2 0..400", ev)
	}
}

func TestValidateRequestGate(t *testing.T) {
	svc, runs, _, ai := newTestService(nil)

	req := testRequest()
	req.Input.SessionID = ""
	if _, err := svc.Analyze(context.Background(), req); domain.CodeOf(err) != domain.CodeInvalidRequest {
		t.Fatalf("missing session_id: code = %v, want invalid_request", domain.CodeOf(err))
	}

	req = testRequest()
	req.Policy.Capabilities = []string{"telepathy"}
	if _, err := svc.Analyze(context.Background(), req); domain.CodeOf(err) != domain.CodeInvalidPolicy {
		t.Fatalf("unknown capability: code = %v, want invalid_policy", domain.CodeOf(err))
	}

	req = testRequest()
	req.Tool = "summarize_everything"
	if _, err := svc.Analyze(context.Background(), req); domain.CodeOf(err) != domain.CodeFeatureUnavailable {
		t.Fatalf("unknown tool: code = %v, want feature_unavailable", domain.CodeOf(err))
	}

	if ai.callCount() != 0 || runs.count() != 0 {
		t.Fatal("validation failures must have no side effects")
	}
}

func TestAnalyzeMaxLatencyTimeoutFallsBack(t *testing.T) {
	slow := &slowAI{delay: 200 * time.Millisecond, payload: goodPayload()}
	svc, _, _, _ := newTestService(slow)
	svc.AI = slow

	req := testRequest()
	req.Policy.MaxLatencyMs = 10

	resp, err := svc.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("latency-bound timeout must fall back, not fail: %v", err)
	}
	if resp.Meta.Provider != domain.ProviderFallback {
		t.Fatalf("provider = %q, want fallback", resp.Meta.Provider)
	}
}

type slowAI struct {
	delay   time.Duration
	payload string
}

func (s *slowAI) Invoke(ctx context.Context, prompt string, pol domain.Policy) (*domain.Invocation, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
		return &domain.Invocation{Payload: s.payload, Provider: "openai", Model: "gpt-test"}, nil
	}
}
