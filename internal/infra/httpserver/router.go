package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appanalysis "github.com/userlens/sessionlens/internal/application/analysis"
	domain "github.com/userlens/sessionlens/internal/domain/analysis"
	"github.com/userlens/sessionlens/internal/domain/sessions"
	"github.com/userlens/sessionlens/internal/middleware"
)

type Router struct {
	svc      *appanalysis.Service
	catalogs sessions.CatalogRepository
}

func NewRouter(svc *appanalysis.Service, catalogs sessions.CatalogRepository) http.Handler {
	r := &Router{svc: svc, catalogs: catalogs}
	mux := chi.NewRouter()

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Post("/sessions/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/runs/latest", r.wrap(r.handleLatestRuns))
		rt.Get("/runs/{id}", r.wrap(r.handleGetRun))
		rt.Get("/insights", r.wrap(r.handleListInsights))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errorBody is the wire shape for failed requests.
type errorBody struct {
	Stage   string   `json:"stage,omitempty"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		var pe *domain.PipelineError
		if errors.As(err, &pe) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(statusFor(pe.Code))
			_ = json.NewEncoder(w).Encode(errorBody{
				Stage:   pe.Stage,
				Code:    string(pe.Code),
				Details: pe.Details,
			})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeInvalidRequest, domain.CodeInvalidPolicy:
		return http.StatusBadRequest
	case domain.CodeFeatureUnavailable:
		return http.StatusForbidden
	case domain.CodeInvalidModelOutput, domain.CodeInvalidCategories, domain.CodeUnresolvableEvidence:
		return http.StatusUnprocessableEntity
	case domain.CodeInference:
		return http.StatusBadGateway
	case domain.CodePersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// POST /v1/{tenant}/sessions/analyze
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	if err := middleware.ValidateTenantID(tenant); err != nil {
		return domain.NewError("http", domain.CodeInvalidRequest, err.Error())
	}

	var body struct {
		SessionID      string        `json:"session_id"`
		Language       string        `json:"language"`
		ParticipantID  string        `json:"participant_id"`
		Policy         domain.Policy `json:"policy"`
		IdempotencyKey string        `json:"idempotency_key"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return domain.NewError("http", domain.CodeInvalidRequest, "body is not valid JSON")
	}
	if err := middleware.ValidateSessionID(body.SessionID); err != nil {
		return domain.NewError("http", domain.CodeInvalidRequest, err.Error())
	}

	cats, err := r.loadCatalogs(req, tenant)
	if err != nil {
		return err
	}

	resp, err := r.svc.Analyze(req.Context(), domain.Request{
		Tool:  appanalysis.ToolAnalyzeSession,
		Input: domain.Input{SessionID: body.SessionID, Language: body.Language},
		Context: domain.CallContext{
			TenantID:      tenant,
			UserID:        req.Header.Get("X-User-ID"),
			ParticipantID: body.ParticipantID,
			Catalogs:      cats,
		},
		Policy:         body.Policy,
		IdempotencyKey: body.IdempotencyKey,
	})
	if err != nil {
		middleware.IncrementAnalysesFailed()
		return err
	}

	middleware.IncrementAnalyses()
	if resp.Meta.Provider == domain.ProviderFallback {
		middleware.IncrementAnalysesFallback()
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}

// loadCatalogs fetches the tenant's category IDs for both kinds so the
// pipeline can cross-validate provider output against them.
func (r *Router) loadCatalogs(req *http.Request, tenant string) (domain.Catalogs, error) {
	var cats domain.Catalogs
	pain, err := r.catalogs.ListCategories(req.Context(), tenant, sessions.CategoryPain)
	if err != nil {
		return cats, domain.NewError("http", domain.CodePersistence, err.Error())
	}
	profile, err := r.catalogs.ListCategories(req.Context(), tenant, sessions.CategoryProfile)
	if err != nil {
		return cats, domain.NewError("http", domain.CodePersistence, err.Error())
	}
	for _, c := range pain {
		cats.PainCategories = append(cats.PainCategories, c.ID)
	}
	for _, c := range profile {
		cats.ProfileCategories = append(cats.ProfileCategories, c.ID)
	}
	return cats, nil
}

// GET /v1/{tenant}/runs/latest?limit=20
func (r *Router) handleLatestRuns(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, err := middleware.ValidateLimit(req.URL.Query().Get("limit"), 20, 100)
	if err != nil {
		return domain.NewError("http", domain.CodeInvalidRequest, err.Error())
	}

	list, err := r.svc.LatestRuns(req.Context(), tenant, limit)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/runs/{id}
func (r *Router) handleGetRun(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	run, err := r.svc.GetRun(req.Context(), tenant, domain.RunID(id))
	if err != nil {
		return err
	}
	if run == nil {
		return sql.ErrNoRows
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(run)
}

// GET /v1/{tenant}/insights?page=&page_size=
func (r *Router) handleListInsights(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.svc.ListInsights(req.Context(), tenant, page, size)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}
