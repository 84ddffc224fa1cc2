package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/careforward/aco-insights/pkg/common/logger"
	"github.com/careforward/aco-insights/pkg/common/models"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
	authMW  func(http.Handler) http.Handler
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// WithAuth guards the settings write route with the given middleware.
func (h *Handler) WithAuth(mw func(http.Handler) http.Handler) *Handler {
	h.authMW = mw
	return h
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/periods", h.handlePeriods).Methods(http.MethodGet)
	r.HandleFunc("/cost-categories", h.handleCostCategories).Methods(http.MethodGet)
	r.HandleFunc("/cost-categories/{slug}/doctors", h.handleCategoryDoctors).Methods(http.MethodGet)
	r.HandleFunc("/cost-categories/{slug}/patients", h.handleCategoryPatients).Methods(http.MethodGet)
	r.HandleFunc("/rankings/doctors", h.handleDoctorRankings).Methods(http.MethodGet)
	r.HandleFunc("/rankings/patients", h.handlePatientRankings).Methods(http.MethodGet)
	r.HandleFunc("/opportunities", h.handleOpportunities).Methods(http.MethodGet)
	r.HandleFunc("/kpis", h.handleKPIs).Methods(http.MethodGet)
	r.HandleFunc("/suggestions", h.handleSuggestions).Methods(http.MethodGet)
	r.HandleFunc("/care-gaps", h.handleCareGaps).Methods(http.MethodGet)
	r.HandleFunc("/recommendations", h.handleRecommendations).Methods(http.MethodGet)
	r.HandleFunc("/summary", h.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/settings", h.handleGetSettings).Methods(http.MethodGet)

	var update http.Handler = http.HandlerFunc(h.handleUpdateSettings)
	if h.authMW != nil {
		update = h.authMW(update)
	}
	r.Handle("/settings", update).Methods(http.MethodPut)
}

func (h *Handler) handlePeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.service.Periods(r.Context())
	if err != nil {
		h.fail(w, err, "failed to list reporting periods")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": periods})
}

func (h *Handler) handleCostCategories(w http.ResponseWriter, r *http.Request) {
	if slug := r.URL.Query().Get("slug"); slug != "" {
		category, err := h.service.CostCategory(r.Context(), slug)
		if err != nil {
			h.fail(w, err, "failed to get cost category")
			return
		}
		writeJSON(w, http.StatusOK, category)
		return
	}

	categories, err := h.service.CostCategories(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		h.fail(w, err, "failed to list cost categories")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": categories})
}

func (h *Handler) handleCategoryDoctors(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	groups, err := h.service.DoctorRankings(r.Context(), slug)
	if err != nil {
		h.fail(w, err, "failed to list doctor rankings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": groups})
}

func (h *Handler) handleCategoryPatients(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	groups, err := h.service.PatientRankings(r.Context(), slug)
	if err != nil {
		h.fail(w, err, "failed to list patient rankings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": groups})
}

func (h *Handler) handleDoctorRankings(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.DoctorRankings(r.Context(), r.URL.Query().Get("slug"))
	if err != nil {
		h.fail(w, err, "failed to list doctor rankings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": groups})
}

func (h *Handler) handlePatientRankings(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.PatientRankings(r.Context(), r.URL.Query().Get("slug"))
	if err != nil {
		h.fail(w, err, "failed to list patient rankings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": groups})
}

func (h *Handler) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("summary") == "true" {
		summary, err := h.service.OpportunitySummary(r.Context())
		if err != nil {
			h.fail(w, err, "failed to summarize opportunities")
			return
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}

	board, err := h.service.Opportunities(r.Context())
	if err != nil {
		h.fail(w, err, "failed to build opportunity board")
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *Handler) handleKPIs(w http.ResponseWriter, r *http.Request) {
	if slug := r.URL.Query().Get("slug"); slug != "" {
		kpi, err := h.service.KPI(r.Context(), slug)
		if err != nil {
			h.fail(w, err, "failed to get kpi")
			return
		}
		writeJSON(w, http.StatusOK, kpi)
		return
	}

	kpis, err := h.service.KPIs(r.Context())
	if err != nil {
		h.fail(w, err, "failed to list kpis")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": kpis})
}

func (h *Handler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.Suggestions(r.Context())
	if err != nil {
		h.fail(w, err, "failed to list suggestions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": groups})
}

func (h *Handler) handleCareGaps(w http.ResponseWriter, r *http.Request) {
	gapType := r.URL.Query().Get("gapType")
	gaps, err := h.service.CareGaps(r.Context(), gapType)
	if err != nil {
		h.fail(w, err, "failed to list care gaps")
		return
	}
	if gapType != "" && len(gaps) == 1 {
		writeJSON(w, http.StatusOK, gaps[0])
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": gaps})
}

func (h *Handler) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.service.Recommendations(r.Context())
	if err != nil {
		h.fail(w, err, "failed to list recommendations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": recs})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.fail(w, err, "failed to build dashboard summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context())
	if err != nil {
		h.fail(w, err, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PanelSize == nil && req.TotalQualityBonus == nil {
		writeError(w, http.StatusBadRequest, "no settings supplied")
		return
	}
	settings, err := h.service.UpdateSettings(r.Context(), req)
	if err != nil {
		h.fail(w, err, "failed to update settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// fail maps the error taxonomy onto the wire contract: NotFound becomes a
// 404 with the entity-specific message, Validation a 400 with the
// field-specific message, anything else is a collaborator failure logged
// here and surfaced as a generic 500.
func (h *Handler) fail(w http.ResponseWriter, err error, message string) {
	if IsNotFound(err) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if IsValidation(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Log.WithError(err).Error(message)
	writeError(w, http.StatusInternalServerError, message)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
