package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"energy-analytics/internal/models"
	"energy-analytics/internal/repository"
	"energy-analytics/internal/services"
	"energy-analytics/pkg/logging"
	"energy-analytics/pkg/metrics"
)

// EnergyHandler serves the latest analysis snapshot to the presentation renderer
type EnergyHandler struct {
	summary *services.SummaryService
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewEnergyHandler creates a new energy handler
func NewEnergyHandler(summary *services.SummaryService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *EnergyHandler {
	return &EnergyHandler{
		summary: summary,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// SnapshotResponse wraps a section of the snapshot with the run it came from
type SnapshotResponse struct {
	RunID      string      `json:"run_id"`
	FinishedAt time.Time   `json:"finished_at"`
	Data       interface{} `json:"data"`
}

// CoverageResponse lists the countries priced in every required category
type CoverageResponse struct {
	CompleteKeys []string `json:"complete_keys"`
	Count        int      `json:"count"`
}

// FocusResponse is the focus selection with the activity value that ranked each key
type FocusResponse struct {
	models.FocusSelection
	Activity []models.RankedValue `json:"activity"`
}

// SourcesResponse reports what happened to every LCOE source and every warning of the run
type SourcesResponse struct {
	Sources  []models.SourceReport `json:"sources"`
	Warnings []models.Warning      `json:"warnings"`
}

// RefreshResponse summarizes a refresh
type RefreshResponse struct {
	RunID        string           `json:"run_id"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	RecordCount  int              `json:"record_count"`
	Focus        []string         `json:"focus"`
	Warnings     []models.Warning `json:"warnings"`
	PersistError string           `json:"persist_error,omitempty"`
}

// section picks part of a snapshot. ok is false when the section was not produced.
type section func(r *http.Request, result *models.AnalysisResult) (data interface{}, ok bool)

// serveSection wraps a section picker with timing, snapshot lookup and error mapping
func (h *EnergyHandler) serveSection(endpoint string, pick section) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		defer func() {
			h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
		}()

		result, err := h.summary.Latest()
		if errors.Is(err, services.ErrNoSnapshot) {
			h.metrics.RecordAPIError("no_snapshot", endpoint)
			h.sendError(w, r, "no analysis has completed yet, POST /api/analysis/refresh first", http.StatusServiceUnavailable)
			return
		}

		data, ok := pick(r, result)
		if !ok {
			h.metrics.RecordAPIError("not_found", endpoint)
			h.sendError(w, r, "section not available in the latest analysis", http.StatusNotFound)
			return
		}

		h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
		h.sendJSON(w, SnapshotResponse{
			RunID:      result.RunID,
			FinishedAt: result.FinishedAt,
			Data:       data,
		}, http.StatusOK)
	}
}

func categoryMeans(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.LCOE == nil {
		return nil, false
	}
	return nonNil(result.LCOE.CategoryMeans), true
}

func countryMeans(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.LCOE == nil {
		return nil, false
	}
	country := strings.TrimSpace(r.URL.Query().Get("country"))
	if country == "" {
		return nonNil(result.LCOE.FocusMeans), true
	}
	rows := []models.SummaryRecord{}
	for _, row := range result.LCOE.FocusMeans {
		if strings.EqualFold(row.Key, country) {
			rows = append(rows, row)
		}
	}
	return rows, len(rows) > 0
}

func coverage(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.LCOE == nil {
		return nil, false
	}
	return CoverageResponse{
		CompleteKeys: nonNil(result.LCOE.CompleteKeys),
		Count:        len(result.LCOE.CompleteKeys),
	}, true
}

func focus(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.LCOE == nil {
		return nil, false
	}
	resp := FocusResponse{FocusSelection: result.LCOE.Focus, Activity: []models.RankedValue{}}
	for _, k := range result.LCOE.Focus.Keys {
		if v, ok := result.LCOE.Activity[k]; ok {
			resp.Activity = append(resp.Activity, models.RankedValue{Entity: k, Value: v})
		}
	}
	return resp, true
}

func sources(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	resp := SourcesResponse{Sources: []models.SourceReport{}, Warnings: []models.Warning{}}
	if result.LCOE != nil {
		resp.Sources = append(resp.Sources, result.LCOE.Sources...)
	}
	if result.Mortality != nil {
		resp.Sources = append(resp.Sources, result.Mortality.Source)
	}
	resp.Warnings = append(resp.Warnings, result.Warnings...)
	return resp, true
}

func hourlyPrices(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.EUPrices == nil {
		return nil, false
	}
	return nonNil(result.EUPrices.Hourly), true
}

func priceGaps(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.EUPrices == nil {
		return nil, false
	}
	return nonNil(result.EUPrices.Gaps), true
}

func priceCandles(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.EUPrices == nil {
		return nil, false
	}
	return nonNil(result.EUPrices.Candles), true
}

func mortality(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.Mortality == nil {
		return nil, false
	}
	return nonNil(result.Mortality.Rates), true
}

func energyMixTotals(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.EnergyMix == nil {
		return nil, false
	}
	return map[string]interface{}{
		"totals":         nonNil(result.EnergyMix.Totals),
		"first_year":     result.EnergyMix.FirstYear,
		"first_year_mix": nonNil(result.EnergyMix.FirstYearMix),
		"last_year":      result.EnergyMix.LastYear,
		"last_year_mix":  nonNil(result.EnergyMix.LastYearMix),
	}, true
}

func energyMixSeries(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.EnergyMix == nil {
		return nil, false
	}
	return nonNil(result.EnergyMix.Series), true
}

func energyMixRenewables(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.EnergyMix == nil {
		return nil, false
	}
	return nonNil(result.EnergyMix.Renewables), true
}

// energyMixFrames returns every yearly mix, or one year when ?year= is given
func energyMixFrames(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.EnergyMix == nil {
		return nil, false
	}
	raw := strings.TrimSpace(r.URL.Query().Get("year"))
	if raw == "" {
		return nonNil(result.EnergyMix.Frames), true
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	frame, ok := services.MixFrameForYear(result.EnergyMix.Frames, year)
	if !ok {
		return nil, false
	}
	frame.Mix = nonNil(frame.Mix)
	return frame, true
}

func sustainableLatest(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.Sustainable == nil {
		return nil, false
	}
	return map[string]interface{}{
		"year":     result.Sustainable.LatestYear,
		"entities": nonNil(result.Sustainable.Latest),
	}, true
}

func sustainableGlobal(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.Sustainable == nil {
		return nil, false
	}
	return nonNil(result.Sustainable.Global), true
}

func sustainableScatter(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.Sustainable == nil {
		return nil, false
	}
	return nonNil(result.Sustainable.Scatter), true
}

// sustainableAdoption returns renewable share against emissions, optionally for one ?year=
func sustainableAdoption(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.Sustainable == nil {
		return nil, false
	}
	raw := strings.TrimSpace(r.URL.Query().Get("year"))
	if raw == "" {
		return nonNil(result.Sustainable.Adoption), true
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	points := services.AdoptionForYear(result.Sustainable.Adoption, year)
	return nonNil(points), len(points) > 0
}

// requestedEntities reads repeated or comma-separated ?entity= values
func requestedEntities(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["entity"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func sustainableTransitions(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.Sustainable == nil {
		return nil, false
	}
	entities := requestedEntities(r)
	if len(entities) == 0 {
		entities = services.DefaultTransitionEntities
	}
	rows := services.EntityTransitions(result.Sustainable, entities...)
	return nonNil(rows), len(rows) > 0
}

func sustainableComparison(r *http.Request, result *models.AnalysisResult) (interface{}, bool) {
	if result.Sustainable == nil {
		return nil, false
	}
	entity := services.DefaultComparisonEntity
	if requested := requestedEntities(r); len(requested) > 0 {
		entity = requested[0]
	}
	rows := services.TransitionComparison(result.Sustainable, entity)
	return nonNil(rows), len(rows) > 0
}

// ListRuns handles GET /api/runs
func (h *EnergyHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/runs").Observe(duration.Seconds())
	}()

	page, limit := parsePagination(r)
	offset := (page - 1) * limit

	runs, total, err := h.summary.History(ctx, limit, offset)
	if errors.Is(err, services.ErrPersistenceDisabled) {
		h.metrics.RecordAPIError("persistence_disabled", "/api/runs")
		h.sendError(w, r, "run history requires DB_ENABLED=true", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		h.logger.Error(ctx, "[API_LIST_RUNS_ERROR] Failed to list runs", logging.Fields{
			"page":  page,
			"limit": limit,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/runs")
		h.sendError(w, r, "failed to retrieve runs", http.StatusInternalServerError)
		return
	}

	totalPages := (total + limit - 1) / limit

	response := PaginatedResponse{
		Data:       runs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}

	h.metrics.RecordAPIRequest("/api/runs", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// LatestRun handles GET /api/runs/latest
func (h *EnergyHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/runs/latest").Observe(time.Since(startTime).Seconds())
	}()

	detail, err := h.summary.LatestRun(ctx)
	var notFound *repository.NotFoundError
	switch {
	case errors.Is(err, services.ErrPersistenceDisabled):
		h.metrics.RecordAPIError("persistence_disabled", "/api/runs/latest")
		h.sendError(w, r, "run history requires DB_ENABLED=true", http.StatusServiceUnavailable)
		return
	case errors.As(err, &notFound):
		h.metrics.RecordAPIError("not_found", "/api/runs/latest")
		h.sendError(w, r, "no analysis run has been persisted yet", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error(ctx, "[API_LATEST_RUN_ERROR] Failed to read latest run", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/runs/latest")
		h.sendError(w, r, "failed to retrieve latest run", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/runs/latest", "GET", "200")
	h.sendJSON(w, detail, http.StatusOK)
}

// Refresh handles POST /api/analysis/refresh
func (h *EnergyHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/analysis/refresh").Observe(duration.Seconds())
	}()

	result, err := h.summary.Refresh(ctx)
	if result == nil {
		h.logger.Error(ctx, "[API_REFRESH_ERROR] Analysis run failed", logging.Fields{}, err)
		h.metrics.RecordAPIError("analysis_failed", "/api/analysis/refresh")
		h.sendError(w, r, err.Error(), http.StatusInternalServerError)
		return
	}

	response := RefreshResponse{
		RunID:      result.RunID,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Focus:      []string{},
		Warnings:   nonNil(result.Warnings),
	}
	if result.LCOE != nil {
		response.RecordCount = result.LCOE.RecordCount
		response.Focus = nonNil(result.LCOE.Focus.Keys)
	}
	if err != nil {
		response.PersistError = err.Error()
	}

	h.metrics.RecordAPIRequest("/api/analysis/refresh", "POST", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *EnergyHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, snapshotErr := h.summary.Latest()
	status := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"snapshot":    snapshotErr == nil,
		"persistence": h.summary.PersistenceEnabled(),
	}

	code := http.StatusOK
	if err := h.summary.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Repository unhealthy", logging.Fields{"error": err.Error()})
		status["status"] = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

// parsePagination reads page and limit, falling back to 1 and 20
func parsePagination(r *http.Request) (page, limit int) {
	page, limit = 1, 20

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	return page, limit
}

// nonNil keeps empty tables encoded as [] rather than null
func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}

// sendJSON sends a JSON response
func (h *EnergyHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *EnergyHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all energy API routes
func (h *EnergyHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/lcoe/categories", h.serveSection("/api/lcoe/categories", categoryMeans)).Methods("GET")
	router.HandleFunc("/api/lcoe/countries", h.serveSection("/api/lcoe/countries", countryMeans)).Methods("GET")
	router.HandleFunc("/api/lcoe/coverage", h.serveSection("/api/lcoe/coverage", coverage)).Methods("GET")
	router.HandleFunc("/api/lcoe/focus", h.serveSection("/api/lcoe/focus", focus)).Methods("GET")
	router.HandleFunc("/api/sources", h.serveSection("/api/sources", sources)).Methods("GET")

	router.HandleFunc("/api/eu-prices/hourly", h.serveSection("/api/eu-prices/hourly", hourlyPrices)).Methods("GET")
	router.HandleFunc("/api/eu-prices/gaps", h.serveSection("/api/eu-prices/gaps", priceGaps)).Methods("GET")
	router.HandleFunc("/api/eu-prices/candles", h.serveSection("/api/eu-prices/candles", priceCandles)).Methods("GET")
	router.HandleFunc("/api/mortality", h.serveSection("/api/mortality", mortality)).Methods("GET")
	router.HandleFunc("/api/energy-mix/totals", h.serveSection("/api/energy-mix/totals", energyMixTotals)).Methods("GET")
	router.HandleFunc("/api/energy-mix/series", h.serveSection("/api/energy-mix/series", energyMixSeries)).Methods("GET")
	router.HandleFunc("/api/energy-mix/renewables", h.serveSection("/api/energy-mix/renewables", energyMixRenewables)).Methods("GET")
	router.HandleFunc("/api/energy-mix/frames", h.serveSection("/api/energy-mix/frames", energyMixFrames)).Methods("GET")
	router.HandleFunc("/api/sustainable/latest", h.serveSection("/api/sustainable/latest", sustainableLatest)).Methods("GET")
	router.HandleFunc("/api/sustainable/global", h.serveSection("/api/sustainable/global", sustainableGlobal)).Methods("GET")
	router.HandleFunc("/api/sustainable/scatter", h.serveSection("/api/sustainable/scatter", sustainableScatter)).Methods("GET")
	router.HandleFunc("/api/sustainable/adoption", h.serveSection("/api/sustainable/adoption", sustainableAdoption)).Methods("GET")
	router.HandleFunc("/api/sustainable/transitions", h.serveSection("/api/sustainable/transitions", sustainableTransitions)).Methods("GET")
	router.HandleFunc("/api/sustainable/comparison", h.serveSection("/api/sustainable/comparison", sustainableComparison)).Methods("GET")

	router.HandleFunc("/api/runs", h.ListRuns).Methods("GET")
	router.HandleFunc("/api/runs/latest", h.LatestRun).Methods("GET")
	router.HandleFunc("/api/analysis/refresh", h.Refresh).Methods("POST")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	router.HandleFunc(openAPIPath, OpenAPISpec).Methods("GET")
	router.HandleFunc("/docs", SwaggerUI).Methods("GET")
}
