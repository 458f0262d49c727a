package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireMethod(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/health", nil)
	rec := httptest.NewRecorder()

	if !RequireMethod(rec, req, "GET") {
		t.Error("matching method rejected")
	}

	rec = httptest.NewRecorder()
	if RequireMethod(rec, req, "POST") {
		t.Error("mismatched method accepted")
	}
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestWriteJSONAndError(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteJSON(rec, http.StatusCreated, map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	rec = httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "bad input")
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "error" || body["error"] != "bad input" {
		t.Errorf("body = %v", body)
	}
}

func TestGetLimitParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"?limit=10", 10},
		{"?limit=0", 50},
		{"?limit=-3", 50},
		{"?limit=abc", 50},
		{"?limit=500", 200},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/api/batches"+tt.query, nil)
		if got := GetLimitParam(req, 50, 200); got != tt.want {
			t.Errorf("GetLimitParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestExtractIDs(t *testing.T) {
	tests := []struct {
		path string
		fn   func(string) string
		want string
	}{
		{"/api/batches/batch_abc", extractBatchID, "batch_abc"},
		{"/api/batches/batch_abc/", extractBatchID, "batch_abc"},
		{"/api/batches/", extractBatchID, ""},
		{"/api/other/x", extractBatchID, ""},
		{"/api/jobs/job_123", extractJobID, "job_123"},
		{"/api/jobs/", extractJobID, ""},
	}
	for _, tt := range tests {
		if got := tt.fn(tt.path); got != tt.want {
			t.Errorf("extract(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestWebhookPayloadRenderID(t *testing.T) {
	p := &renderWebhookPayload{ID: "r1", RenderID: "old"}
	if p.renderID() != "r1" {
		t.Errorf("id field should win: %q", p.renderID())
	}
	p = &renderWebhookPayload{RenderID: "old"}
	if p.renderID() != "old" {
		t.Errorf("render_id fallback: %q", p.renderID())
	}
}
