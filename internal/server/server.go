package server

import (
	"log/slog"
	"net/http"

	"salesdash/internal/config"
	"salesdash/internal/handlers"
	"salesdash/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, cfg *config.Config, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:   analytics,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger, cfg.Analytics.ForecastHorizon, cfg.Data.UploadMaxBytes),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger, cfg.Analytics.ForecastHorizon),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("POST /api/upload", s.apiHandlers.HandleUpload)
	s.mux.HandleFunc("GET /api/kpis", s.apiHandlers.HandleKPIs)
	s.mux.HandleFunc("GET /api/stage-breakdown", s.apiHandlers.HandleStageBreakdown)
	s.mux.HandleFunc("GET /api/responsible-performance", s.apiHandlers.HandleResponsiblePerformance)
	s.mux.HandleFunc("GET /api/revenue-series", s.apiHandlers.HandleRevenueSeries)
	s.mux.HandleFunc("GET /api/risk", s.apiHandlers.HandleRisk)
	s.mux.HandleFunc("GET /api/transactions", s.apiHandlers.HandleTransactions)
	s.mux.HandleFunc("GET /api/forecast", s.apiHandlers.HandleForecast)
	s.mux.HandleFunc("GET /api/responsibles", s.apiHandlers.HandleResponsibles)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/kpis", s.sseHandlers.HandleKPIs)
	s.mux.HandleFunc("GET /sse/stage-breakdown", s.sseHandlers.HandleStageBreakdown)
	s.mux.HandleFunc("GET /sse/responsible-performance", s.sseHandlers.HandleResponsiblePerformance)
	s.mux.HandleFunc("GET /sse/revenue-series", s.sseHandlers.HandleRevenueSeries)
	s.mux.HandleFunc("GET /sse/risk", s.sseHandlers.HandleRisk)
	s.mux.HandleFunc("GET /sse/transactions", s.sseHandlers.HandleTransactions)
	s.mux.HandleFunc("GET /sse/forecast", s.sseHandlers.HandleForecast)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
