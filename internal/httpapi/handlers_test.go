package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthHandler(t *testing.T) {
	s := New(Dependencies{Invoke: func(name string) (string, string, string, error) {
		return "", "", "", nil
	}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("status = %q, want ok", body.Status)
	}
}

func TestRunHandlerSuccess(t *testing.T) {
	s := New(Dependencies{Invoke: func(name string) (string, string, string, error) {
		return "out:" + name, "", "trace-123", nil
	}})

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"name":"world"}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	raw := rec.Body.String()
	var body runResponse
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Stdout != "out:world" {
		t.Fatalf("stdout = %q, want out:world", body.Stdout)
	}
	if body.TraceID != "trace-123" {
		t.Fatalf("trace_id = %q, want trace-123", body.TraceID)
	}
	if !strings.Contains(raw, `"cost":"`) || !strings.Contains(raw, `ms"`) {
		t.Fatalf("body = %s, want cost rendered as a \"<N>ms\" string", raw)
	}
}

func TestRunHandlerMemfdHint(t *testing.T) {
	s := New(Dependencies{Invoke: func(name string) (string, string, string, error) {
		return "", "", "trace-err", &fakeErr{"cannot create a memfd: Operation not permitted"}
	}})

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"name":"world"}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "seccomp") {
		t.Fatalf("body = %s, want memfd hint mentioning seccomp", rec.Body.String())
	}
}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }
