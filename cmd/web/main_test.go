package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleDashboard(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handleDashboard(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=300") {
		t.Errorf("expected cache header, got %q", cc)
	}

	body := w.Body.String()
	for _, fragment := range []string{
		"Sales Analytics",
		`id="kpi-cards"`,
		`id="forecast-content"`,
		`id="transactions-content"`,
		"/sse/refresh-all",
		"/api/upload",
	} {
		if !strings.Contains(body, fragment) {
			t.Errorf("dashboard page missing %q", fragment)
		}
	}
}
