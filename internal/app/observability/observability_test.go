package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalizedPath(t *testing.T) {
	got := normalizedPath("/api/v1/exams/0b81a5d4-44a2-4f0a-9aa4-6c9d7f3f2a11/corrections/objective")
	want := "/api/v1/exams/{id}/corrections/objective"
	if got != want {
		t.Fatalf("normalizedPath mismatch got=%s want=%s", got, want)
	}
	if got := normalizedPath("/healthz"); got != "/healthz" {
		t.Fatalf("non-uuid segments must pass through, got=%s", got)
	}
}

func TestMetricsHandlerOutput(t *testing.T) {
	c := NewCollector(nil)
	c.mu.Lock()
	c.requestStats[key{Method: "GET", Path: "/api/v1/exams", Status: 200}] = stat{Count: 3, LatencyMS: 9.0}
	c.mu.Unlock()

	w := httptest.NewRecorder()
	c.MetricsHandler(w, httptest.NewRequest("GET", "/metrics", nil))

	body := w.Body.String()
	if !strings.Contains(body, `simuladohub_http_requests_total{method="GET",path="/api/v1/exams",status="200"} 3`) {
		t.Fatalf("missing request counter:\n%s", body)
	}
	if !strings.Contains(body, `simuladohub_http_request_latency_ms_avg{method="GET",path="/api/v1/exams",status="200"} 3.000`) {
		t.Fatalf("missing latency average:\n%s", body)
	}
}
