// Package templates holds the dashboard page shell, built from code-only
// templ components. The page is static: every data region is populated
// through the datastar SSE endpoints.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

const pageTop = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Sales Analytics &amp; Forecast Dashboard</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@main/bundles/datastar.js"></script>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f5f6f8;color:#1c2430}
header{padding:16px 24px;background:#fff;border-bottom:1px solid #e2e6ec}
main{padding:24px;display:grid;gap:24px}
.filters{display:flex;gap:12px;align-items:flex-end;flex-wrap:wrap}
.filters label{display:flex;flex-direction:column;font-size:13px;gap:4px}
.kpi-grid{display:grid;grid-template-columns:repeat(auto-fit,minmax(180px,1fr));gap:16px}
.kpi-card{background:#fff;border:1px solid #e2e6ec;border-radius:8px;padding:16px;display:flex;flex-direction:column;gap:4px}
.kpi-label{font-size:13px;color:#5b6573}
.kpi-value{font-size:24px;font-weight:600}
.panel{background:#fff;border:1px solid #e2e6ec;border-radius:8px;padding:16px}
.modern-table{width:100%;border-collapse:collapse}
.modern-table th,.modern-table td{text-align:left;padding:8px 12px;border-bottom:1px solid #eef1f5}
.notice{background:#fff7e0;border:1px solid #e8d48a;border-radius:6px;padding:8px 12px}
</style>
</head>
<body data-signals="{from:'',to:'',responsible:'',stageData:[],responsibleData:[],seriesData:[],forecastData:[]}"
      data-on-load="@get('/sse/refresh-all')">
<header>
<h1>Sales Analytics, Risk &amp; Forecast Dashboard</h1>
</header>
<main>
<div id="flash"></div>`

const pageBottom = `</main>
</body>
</html>`

const uploadPanel = `<section class="panel">
<form data-on-submit="@post('/api/upload', {contentType: 'form'})" enctype="multipart/form-data">
<label>Upload spreadsheet (.xlsx or .csv)
<input type="file" name="file" accept=".xlsx,.xls,.xlsm,.csv">
</label>
<button type="submit">Upload</button>
</form>
</section>`

const filtersPanel = `<section class="panel filters">
<label>From <input type="date" data-bind-from></label>
<label>To <input type="date" data-bind-to></label>
<label>Responsible <input type="text" placeholder="comma-separated" data-bind-responsible></label>
<button data-on-click="@get('/sse/refresh-all?from=' + $from + '&to=' + $to + '&responsible=' + $responsible)">Apply filters</button>
</section>`

// contentPanel is a titled panel wrapping a region the SSE handlers patch
// into.
func contentPanel(title, regionID string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<section class="panel"><h2>%s</h2><div id="%s">Waiting for data…</div></section>`,
			templ.EscapeString(title), templ.EscapeString(regionID))
		return err
	})
}

// Dashboard returns the page component rendered at GET /.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		parts := []templ.Component{
			templ.Raw(pageTop),
			templ.Raw(uploadPanel),
			templ.Raw(filtersPanel),
			templ.Raw(`<div id="kpi-cards" class="kpi-grid"></div>`),
			contentPanel("Responsible Performance", "responsible-content"),
			contentPanel("Transaction Stages", "stage-content"),
			contentPanel("Revenue Over Time", "series-content"),
			contentPanel("Risk Analysis", "risk-content"),
			contentPanel("Revenue Forecast", "forecast-content"),
			contentPanel("Filtered Transactions", "transactions-content"),
			templ.Raw(pageBottom),
		}
		for _, part := range parts {
			if err := part.Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}
