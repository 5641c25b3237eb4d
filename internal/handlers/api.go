package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"salesdash/internal/errors"
	"salesdash/internal/observability"
	"salesdash/internal/services"
)

const maxHorizon = 365

var cacheHeaders = map[string]string{
	"Cache-Control": "public, max-age=300",
}

type APIHandlers struct {
	analytics      *services.Analytics
	logger         *slog.Logger
	defaultHorizon int
	uploadMaxBytes int64
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger, defaultHorizon int, uploadMaxBytes int64) *APIHandlers {
	return &APIHandlers{
		analytics:      analytics,
		logger:         logger,
		defaultHorizon: defaultHorizon,
		uploadMaxBytes: uploadMaxBytes,
	}
}

func (h *APIHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	f, appErr := parseFilter(r)
	if appErr != nil {
		errors.WriteError(w, h.logger, appErr, observability.GetRequestID(r.Context()))
		return
	}

	summary := h.analytics.Summary(f)
	if summary.Deals == 0 {
		errors.WriteSuccessNotice(w, summary, errors.NoticeEmptySelection)
		return
	}

	errors.WriteSuccessWithHeaders(w, summary, cacheHeaders)
}

func (h *APIHandlers) HandleStageBreakdown(w http.ResponseWriter, r *http.Request) {
	f, appErr := parseFilter(r)
	if appErr != nil {
		errors.WriteError(w, h.logger, appErr, observability.GetRequestID(r.Context()))
		return
	}

	data := h.analytics.StageBreakdown(f)
	if len(data) == 0 {
		errors.WriteSuccessNotice(w, data, errors.NoticeEmptySelection)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, cacheHeaders)
}

func (h *APIHandlers) HandleResponsiblePerformance(w http.ResponseWriter, r *http.Request) {
	f, appErr := parseFilter(r)
	if appErr != nil {
		errors.WriteError(w, h.logger, appErr, observability.GetRequestID(r.Context()))
		return
	}

	data := h.analytics.ResponsiblePerformance(f)
	if len(data) == 0 {
		errors.WriteSuccessNotice(w, data, errors.NoticeEmptySelection)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, cacheHeaders)
}

func (h *APIHandlers) HandleRevenueSeries(w http.ResponseWriter, r *http.Request) {
	f, appErr := parseFilter(r)
	if appErr != nil {
		errors.WriteError(w, h.logger, appErr, observability.GetRequestID(r.Context()))
		return
	}

	data := h.analytics.RevenueSeries(f)
	if len(data) == 0 {
		errors.WriteSuccessNotice(w, data, errors.NoticeEmptySelection)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, cacheHeaders)
}

func (h *APIHandlers) HandleRisk(w http.ResponseWriter, r *http.Request) {
	f, appErr := parseFilter(r)
	if appErr != nil {
		errors.WriteError(w, h.logger, appErr, observability.GetRequestID(r.Context()))
		return
	}

	data := h.analytics.RiskTable(f)

	empty := true
	for _, band := range data {
		if band.Deals > 0 {
			empty = false
			break
		}
	}
	if empty {
		errors.WriteSuccessNotice(w, data, errors.NoticeEmptySelection)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, cacheHeaders)
}

// HandleTransactions returns the filtered rows themselves, the raw-data view
// behind the dashboard table.
func (h *APIHandlers) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	f, appErr := parseFilter(r)
	if appErr != nil {
		errors.WriteError(w, h.logger, appErr, observability.GetRequestID(r.Context()))
		return
	}

	data := h.analytics.Transactions(f)
	if len(data) == 0 {
		errors.WriteSuccessNotice(w, data, errors.NoticeEmptySelection)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, cacheHeaders)
}

func (h *APIHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	f, appErr := parseFilter(r)
	if appErr != nil {
		errors.WriteError(w, h.logger, appErr, requestID)
		return
	}

	horizon := h.defaultHorizon
	if v := r.URL.Query().Get("horizon"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHorizon {
			errors.WriteError(w, h.logger,
				errors.Validation(fmt.Sprintf("horizon must be an integer between 1 and %d", maxHorizon)), requestID)
			return
		}
		horizon = n
	}

	data, err := h.analytics.Forecast(f, horizon)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteSuccess(w, data)
}

func (h *APIHandlers) HandleResponsibles(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.Responsibles(), cacheHeaders)
}

// HandleUpload replaces the loaded dataset with an uploaded spreadsheet.
// Parse failures are surfaced to the user; the previous dataset stays in
// place.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		errors.WriteError(w, h.logger,
			errors.Wrap(err, errors.CodeBadRequest, "expected a multipart 'file' field"), requestID)
		return
	}
	defer file.Close()

	info, err := h.analytics.LoadFromUpload(r.Context(), header.Filename, file)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteSuccess(w, info)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}
