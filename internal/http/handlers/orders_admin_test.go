package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// The status endpoint is registered as /orders/{id}/status; the handler must
// read the same parameter name or every request dies at id parsing.
func TestAdminOrderStatusUpdateReadsRouteID(t *testing.T) {
	h := &Handler{Logger: zap.NewNop()}
	r := chi.NewRouter()
	r.Put("/api/admin/orders/{id}/status", h.AdminOrderStatusUpdate)

	// A valid id must get past parameter parsing to body validation.
	req := httptest.NewRequest(http.MethodPut, "/api/admin/orders/42/status", strings.NewReader(`{"status":"BOGUS"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if strings.Contains(body, "Invalid order id") {
		t.Fatalf("valid id was rejected at parsing: %s", body)
	}
	if !strings.Contains(body, "Valid status is required") {
		t.Fatalf("expected status validation message, got: %s", body)
	}

	// Non-numeric ids still fail up front.
	req = httptest.NewRequest(http.MethodPut, "/api/admin/orders/abc/status", strings.NewReader(`{"status":"PROCESSING"}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Invalid order id") {
		t.Fatalf("expected id validation failure, got %d: %s", rec.Code, rec.Body.String())
	}
}
