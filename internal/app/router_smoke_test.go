package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	internaldb "simuladohub/internal/db"
)

const testAdminToken = "test-admin-token"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	conn, err := internaldb.Open(context.Background(), internaldb.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	cfg := Config{
		AppEnv:          "test",
		AdminToken:      testAdminToken,
		CORSOrigins:     []string{"http://localhost:5173"},
		RateLimitPerMin: 10000,
	}
	return NewRouter(cfg, conn)
}

type envelope struct {
	OK   bool            `json:"ok"`
	Data json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}, wantStatus int) json.RawMessage {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d (%s)", method, path, wantStatus, w.Code, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode envelope: %v", method, path, err)
	}
	return env.Data
}

func TestHealthzIsPublic(t *testing.T) {
	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAPIRequiresAdminToken(t *testing.T) {
	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/students", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestAdminFlowSmoke(t *testing.T) {
	h := newTestRouter(t)

	var st struct {
		ID string `json:"id"`
	}
	data := doJSON(t, h, http.MethodPost, "/api/v1/students", map[string]string{
		"name":        "Ana Lima",
		"cpf":         "123.456.789-09",
		"login":       "ana",
		"access_code": "segredo",
	}, http.StatusCreated)
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("decode student: %v", err)
	}

	var e struct {
		ID string `json:"id"`
	}
	data = doJSON(t, h, http.MethodPost, "/api/v1/exams", map[string]interface{}{
		"name": "Simulado 1",
		"answer_key": []map[string]interface{}{
			{"question": 1, "answer": "A", "area": "Linguagens"},
			{"question": 2, "answer": "B", "area": "Matemática"},
		},
	}, http.StatusCreated)
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("decode exam: %v", err)
	}

	var res struct {
		Score   int `json:"score"`
		Summary struct {
			Correct int `json:"correct"`
			Blank   int `json:"blank"`
		} `json:"summary"`
	}
	data = doJSON(t, h, http.MethodPost, "/api/v1/corrections/objective", map[string]interface{}{
		"exam_id":    e.ID,
		"student_id": st.ID,
		"marks":      map[string]string{"1": "A"},
	}, http.StatusOK)
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode correction: %v", err)
	}
	if res.Score != 1 || res.Summary.Correct != 1 || res.Summary.Blank != 1 {
		t.Fatalf("unexpected grading result: %+v", res)
	}

	var ranking []struct {
		Position    int    `json:"position"`
		StudentName string `json:"student_name"`
		Score       int    `json:"score"`
	}
	data = doJSON(t, h, http.MethodGet, "/api/v1/reports/exams/"+e.ID+"/ranking", nil, http.StatusOK)
	if err := json.Unmarshal(data, &ranking); err != nil {
		t.Fatalf("decode ranking: %v", err)
	}
	if len(ranking) != 1 || ranking[0].Position != 1 || ranking[0].StudentName != "Ana Lima" {
		t.Fatalf("unexpected ranking: %+v", ranking)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/exams/"+e.ID+"/export.xlsx", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheet") {
		t.Fatalf("export: unexpected content type %q", ct)
	}
}
