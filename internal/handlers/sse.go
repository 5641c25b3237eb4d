package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	apperrors "salesdash/internal/errors"
	"salesdash/internal/models"
	"salesdash/internal/services"
)

var kpiCardsTemplate = template.Must(template.New("kpiCards").Parse(`
<div id="kpi-cards" class="kpi-grid">
<div class="kpi-card"><span class="kpi-label">Deals</span><span class="kpi-value">{{.Deals}}</span></div>
<div class="kpi-card"><span class="kpi-label">Revenue</span><span class="kpi-value">{{.TotalRevenue}}</span></div>
<div class="kpi-card"><span class="kpi-label">Success</span><span class="kpi-value">{{.SuccessRevenue}}</span></div>
<div class="kpi-card"><span class="kpi-label">Debtors</span><span class="kpi-value">{{.DebtorsRevenue}}</span></div>
</div>`))

var riskTableTemplate = template.Must(template.New("riskTable").Parse(`
<div id="risk-content">
<table class="modern-table">
<thead><tr><th>Risk</th><th>Deals</th><th>Revenue</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.Band}}</td>
<td>{{.Deals}}</td>
<td><strong>{{.Revenue}}</strong></td>
</tr>{{end}}
</tbody>
</table>
</div>`))

// maxTableRows caps the rendered raw-data table; the JSON endpoint serves
// the full filtered set.
const maxTableRows = 200

var transactionsTableTemplate = template.Must(template.New("transactionsTable").Parse(`
<div id="transactions-content">
<table class="modern-table">
<thead><tr><th>Date</th><th>Amount</th><th>Stage</th><th>Responsible</th><th>Risk</th></tr></thead>
<tbody>
{{range .Rows}}<tr>
<td>{{.Date}}</td>
<td>{{.Amount}}</td>
<td>{{.Stage}}</td>
<td>{{.Responsible}}</td>
<td>{{.Risk}}</td>
</tr>{{end}}
</tbody>
</table>
{{if .Truncated}}<p class="notice">Showing first {{.Shown}} of {{.Total}} rows</p>{{end}}
</div>`))

type SSEHandlers struct {
	analytics      *services.Analytics
	logger         *slog.Logger
	defaultHorizon int
	printer        *message.Printer
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger, defaultHorizon int) *SSEHandlers {
	return &SSEHandlers{
		analytics:      analytics,
		logger:         logger,
		defaultHorizon: defaultHorizon,
		printer:        message.NewPrinter(language.English),
	}
}

// kpiCardsView carries locale-formatted values for the metric cards.
type kpiCardsView struct {
	Deals          string
	TotalRevenue   string
	SuccessRevenue string
	DebtorsRevenue string
}

func (h *SSEHandlers) renderKPICards(s models.Summary) (string, error) {
	view := kpiCardsView{
		Deals:          h.printer.Sprintf("%d", s.Deals),
		TotalRevenue:   h.printer.Sprintf("%.0f", s.TotalRevenue),
		SuccessRevenue: h.printer.Sprintf("%.0f", s.SuccessRevenue),
		DebtorsRevenue: h.printer.Sprintf("%.0f", s.DebtorsRevenue),
	}

	var buf strings.Builder
	err := kpiCardsTemplate.Execute(&buf, view)
	return buf.String(), err
}

type riskBandView struct {
	Band    string
	Deals   string
	Revenue string
}

func (h *SSEHandlers) renderRiskTable(bands []models.RiskBand) (string, error) {
	views := make([]riskBandView, len(bands))
	for i, band := range bands {
		views[i] = riskBandView{
			Band:    band.Band,
			Deals:   h.printer.Sprintf("%d", band.Deals),
			Revenue: h.printer.Sprintf("%.0f", band.Revenue),
		}
	}

	var buf strings.Builder
	err := riskTableTemplate.Execute(&buf, views)
	return buf.String(), err
}

type transactionRowView struct {
	Date        string
	Amount      string
	Stage       string
	Responsible string
	Risk        string
}

type transactionsTableView struct {
	Rows      []transactionRowView
	Truncated bool
	Shown     int
	Total     int
}

func (h *SSEHandlers) renderTransactionsTable(records []models.Transaction) (string, error) {
	view := transactionsTableView{Total: len(records)}
	if len(records) > maxTableRows {
		records = records[:maxTableRows]
		view.Truncated = true
	}
	view.Shown = len(records)

	view.Rows = make([]transactionRowView, len(records))
	for i, tx := range records {
		risk := models.RiskBandNormal
		if tx.AtRisk {
			risk = models.RiskBandHigh
		}
		view.Rows[i] = transactionRowView{
			Date:        tx.Date.Format("2006-01-02"),
			Amount:      h.printer.Sprintf("%.0f", tx.Amount),
			Stage:       tx.Stage,
			Responsible: tx.Responsible,
			Risk:        risk,
		}
	}

	var buf strings.Builder
	err := transactionsTableTemplate.Execute(&buf, view)
	return buf.String(), err
}

// patchFlash shows or clears the notice banner.
func patchFlash(sse *datastar.ServerSentEventGenerator, notice string) {
	if notice == "" {
		sse.PatchElements(`<div id="flash"></div>`)
		return
	}
	sse.PatchElements(fmt.Sprintf(`<div id="flash" class="notice">%s</div>`, template.HTMLEscapeString(notice)))
}

// parseSSEFilter parses the filter and, on failure, surfaces the message in
// the flash banner instead of an HTTP error.
func (h *SSEHandlers) parseSSEFilter(sse *datastar.ServerSentEventGenerator, r *http.Request) (models.Filter, bool) {
	f, appErr := parseFilter(r)
	if appErr != nil {
		patchFlash(sse, appErr.Message)
		return models.Filter{}, false
	}
	return f, true
}

func (h *SSEHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	f, ok := h.parseSSEFilter(sse, r)
	if !ok {
		return
	}

	h.patchKPIs(sse, f)

	if fl, ok := w.(http.Flusher); ok {
		fl.Flush()
	}
}

func (h *SSEHandlers) patchKPIs(sse *datastar.ServerSentEventGenerator, f models.Filter) {
	summary := h.analytics.Summary(f)

	html, err := h.renderKPICards(summary)
	if err != nil {
		h.logger.Error("render kpi cards", "error", err)
		return
	}
	sse.PatchElements(html)

	if summary.Deals == 0 {
		patchFlash(sse, apperrors.NoticeEmptySelection)
	} else {
		patchFlash(sse, "")
	}
}

func (h *SSEHandlers) HandleStageBreakdown(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	f, ok := h.parseSSEFilter(sse, r)
	if !ok {
		return
	}

	h.patchStageBreakdown(sse, f)

	if fl, ok := w.(http.Flusher); ok {
		fl.Flush()
	}
}

func (h *SSEHandlers) patchStageBreakdown(sse *datastar.ServerSentEventGenerator, f models.Filter) {
	data := h.analytics.StageBreakdown(f)

	jsonData, err := json.Marshal(map[string]any{
		"stageData": data,
	})
	if err != nil {
		h.logger.Error("marshal stage data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)
	sse.PatchElements(`<div id="stage-content">Stage chart data loaded</div>`)
}

func (h *SSEHandlers) HandleResponsiblePerformance(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	f, ok := h.parseSSEFilter(sse, r)
	if !ok {
		return
	}

	h.patchResponsiblePerformance(sse, f)

	if fl, ok := w.(http.Flusher); ok {
		fl.Flush()
	}
}

func (h *SSEHandlers) patchResponsiblePerformance(sse *datastar.ServerSentEventGenerator, f models.Filter) {
	data := h.analytics.ResponsiblePerformance(f)

	jsonData, err := json.Marshal(map[string]any{
		"responsibleData": data,
	})
	if err != nil {
		h.logger.Error("marshal responsible data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)
	sse.PatchElements(`<div id="responsible-content">Responsible chart data loaded</div>`)
}

func (h *SSEHandlers) HandleRevenueSeries(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	f, ok := h.parseSSEFilter(sse, r)
	if !ok {
		return
	}

	h.patchRevenueSeries(sse, f)

	if fl, ok := w.(http.Flusher); ok {
		fl.Flush()
	}
}

func (h *SSEHandlers) patchRevenueSeries(sse *datastar.ServerSentEventGenerator, f models.Filter) {
	data := h.analytics.RevenueSeries(f)

	jsonData, err := json.Marshal(map[string]any{
		"seriesData": data,
	})
	if err != nil {
		h.logger.Error("marshal series data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)
	sse.PatchElements(`<div id="series-content">Revenue trend data loaded</div>`)
}

func (h *SSEHandlers) HandleRisk(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	f, ok := h.parseSSEFilter(sse, r)
	if !ok {
		return
	}

	h.patchRisk(sse, f)

	if fl, ok := w.(http.Flusher); ok {
		fl.Flush()
	}
}

func (h *SSEHandlers) patchRisk(sse *datastar.ServerSentEventGenerator, f models.Filter) {
	html, err := h.renderRiskTable(h.analytics.RiskTable(f))
	if err != nil {
		h.logger.Error("render risk table", "error", err)
		return
	}
	sse.PatchElements(html)
}

func (h *SSEHandlers) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	f, ok := h.parseSSEFilter(sse, r)
	if !ok {
		return
	}

	h.patchTransactions(sse, f)

	if fl, ok := w.(http.Flusher); ok {
		fl.Flush()
	}
}

func (h *SSEHandlers) patchTransactions(sse *datastar.ServerSentEventGenerator, f models.Filter) {
	html, err := h.renderTransactionsTable(h.analytics.Transactions(f))
	if err != nil {
		h.logger.Error("render transactions table", "error", err)
		return
	}
	sse.PatchElements(html)
}

func (h *SSEHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	f, ok := h.parseSSEFilter(sse, r)
	if !ok {
		return
	}

	h.patchForecast(sse, f)

	if fl, ok := w.(http.Flusher); ok {
		fl.Flush()
	}
}

// patchForecast patches the forecast signals, or renders the shortage
// message into the forecast region when there is not enough history.
func (h *SSEHandlers) patchForecast(sse *datastar.ServerSentEventGenerator, f models.Filter) {
	data, err := h.analytics.Forecast(f, h.defaultHorizon)
	if err != nil {
		message := "forecast unavailable"
		if appErr, ok := err.(*apperrors.AppError); ok {
			message = appErr.Message
		}
		sse.PatchElements(fmt.Sprintf(`<div id="forecast-content" class="notice">%s</div>`,
			template.HTMLEscapeString(message)))
		return
	}

	jsonData, err := json.Marshal(map[string]any{
		"forecastData": data,
	})
	if err != nil {
		h.logger.Error("marshal forecast data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)
	sse.PatchElements(`<div id="forecast-content">Forecast data loaded</div>`)
}

// HandleRefreshAll recomputes every dashboard region in one stream. This is
// the endpoint the filter widgets hit.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	f, ok := h.parseSSEFilter(sse, r)
	if !ok {
		return
	}

	h.patchKPIs(sse, f)
	h.patchRisk(sse, f)
	h.patchTransactions(sse, f)

	// One signals patch for all chart regions.
	allSignals, err := json.Marshal(map[string]any{
		"stageData":       h.analytics.StageBreakdown(f),
		"responsibleData": h.analytics.ResponsiblePerformance(f),
		"seriesData":      h.analytics.RevenueSeries(f),
	})
	if err != nil {
		h.logger.Error("marshal refresh signals", "error", err)
		return
	}
	sse.PatchSignals(allSignals)

	h.patchForecast(sse, f)

	if fl, ok := w.(http.Flusher); ok {
		fl.Flush()
	}
}
