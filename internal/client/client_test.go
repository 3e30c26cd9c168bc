package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mejaku-order-service/internal/cart"
)

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeEnvelopeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": code, "message": message})
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c, err := New(server.URL, Options{
		SessionPath:    filepath.Join(t.TempDir(), "session.json"),
		RetryBaseDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestLoginPersistsSession(t *testing.T) {
	sessionPath := filepath.Join(t.TempDir(), "session.json")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "dina" || body["password"] != "secret" {
			writeEnvelopeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid username or password")
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"token":     "tok-123",
			"expiresAt": time.Now().Add(time.Hour),
			"user": map[string]any{
				"id":          7,
				"username":    "dina",
				"name":        "Dina",
				"role":        "STAFF",
				"permissions": []string{"orders"},
			},
		})
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			writeEnvelopeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing token")
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"id": 7, "username": "dina", "name": "Dina", "role": "STAFF", "permissions": []string{"orders"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := New(server.URL, Options{SessionPath: sessionPath})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	profile, err := c.Login(context.Background(), "dina", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if profile.Username != "dina" || profile.Role != "STAFF" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if !c.Session().LoggedIn() {
		t.Fatal("expected session to be logged in")
	}

	// A fresh client pointed at the same file picks up the session.
	c2, err := New(server.URL, Options{SessionPath: sessionPath})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c2.Session().Token(); got != "tok-123" {
		t.Fatalf("expected persisted token, got %q", got)
	}
	if _, err := c2.Me(context.Background()); err != nil {
		t.Fatalf("Me with persisted session: %v", err)
	}
}

func TestLoginRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid username or password")
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.Login(context.Background(), "dina", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Code != "UNAUTHORIZED" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if c.Session().LoggedIn() {
		t.Fatal("session must stay empty after a failed login")
	}
}

func TestAuthedCallWithoutSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server must not be reached without a token")
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.Tables(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected local unauthorized error, got %v", err)
	}
}

func TestCreateOrderClearsCart(t *testing.T) {
	var gotRequest map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/public/orders" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotRequest)
		writeEnvelope(w, http.StatusCreated, map[string]any{
			"id":            41,
			"orderNumber":   "MEJ-20260831-0007",
			"tableCode":     "T-K7P2Q9XW",
			"status":        "PENDING",
			"totalAmount":   56000,
			"trackingToken": "tok",
			"placedAt":      time.Now(),
			"updatedAt":     time.Now(),
		})
	}))
	defer server.Close()

	store, err := cart.NewStore(&cart.MemoryStorage{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.SetTable("T-K7P2Q9XW"); err != nil {
		t.Fatalf("SetTable: %v", err)
	}
	if err := store.Add(cart.Item{
		MenuID: 3, MenuName: "Nasi Goreng", Quantity: 2, UnitPrice: 25000,
		Customizations: []cart.Customization{{GroupID: 1, GroupName: "Spice", OptionID: 4, OptionName: "Extra", ExtraPrice: 3000}},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	c := newTestClient(t, server)
	order, err := c.CreateOrder(context.Background(), store, "Budi", nil)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.OrderNumber != "MEJ-20260831-0007" || order.TrackingToken != "tok" {
		t.Fatalf("unexpected order: %+v", order)
	}
	if len(store.Items()) != 0 {
		t.Fatal("expected cart to be cleared after checkout")
	}

	items, ok := gotRequest["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one order item, got %v", gotRequest["items"])
	}
	item := items[0].(map[string]any)
	if item["menuId"].(float64) != 3 || item["quantity"].(float64) != 2 {
		t.Fatalf("unexpected item payload: %v", item)
	}
	opts := item["options"].([]any)
	if len(opts) != 1 {
		t.Fatalf("expected one option, got %v", opts)
	}
}

func TestCreateOrderEmptyCart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server must not be reached for an empty cart")
	}))
	defer server.Close()

	store, err := cart.NewStore(&cart.MemoryStorage{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	c := newTestClient(t, server)
	if _, err := c.CreateOrder(context.Background(), store, "Budi", nil); err == nil {
		t.Fatal("expected error for empty cart")
	}
}

func loginTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c := newTestClient(t, server)
	if err := c.session.set("tok-123", &Profile{ID: 7, Username: "dina", Role: "STAFF"}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return c
}

func TestUpdateOrderStatusRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/admin/orders/41/status" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if calls.Add(1) < 3 {
			writeEnvelopeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "database unavailable")
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"id": 41, "orderNumber": "MEJ-20260831-0007", "status": "PROCESSING",
			"placedAt": time.Now(), "updatedAt": time.Now(),
		})
	}))
	defer server.Close()

	c := loginTestClient(t, server)
	order, err := c.UpdateOrderStatus(context.Background(), 41, "processing")
	if err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	if order.Status != "PROCESSING" {
		t.Fatalf("unexpected status %q", order.Status)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestUpdateOrderStatusDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelopeError(w, http.StatusConflict, "INVALID_TRANSITION", "Cannot move COMPLETED to PENDING")
	}))
	defer server.Close()

	c := loginTestClient(t, server)
	_, err := c.UpdateOrderStatus(context.Background(), 41, "PENDING")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single attempt on 4xx, got %d", got)
	}
	if !strings.Contains(err.Error(), "INVALID_TRANSITION") {
		t.Fatalf("error should carry the server code: %v", err)
	}
}

func TestUpdateOrderStatusExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelopeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "bad gateway")
	}))
	defer server.Close()

	c := loginTestClient(t, server)
	_, err := c.UpdateOrderStatus(context.Background(), 41, "PROCESSING")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	msg := err.Error()
	if !strings.Contains(msg, "after 3 attempts") {
		t.Fatalf("error should name the attempt count: %v", err)
	}
	for _, marker := range []string{"attempt 1:", "attempt 2:", "attempt 3:"} {
		if !strings.Contains(msg, marker) {
			t.Fatalf("error should include %q: %v", marker, err)
		}
	}
}

func TestOrderHistoryNotFoundIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(w, http.StatusNotFound, "NOT_FOUND", "No history for this range")
	}))
	defer server.Close()

	c := loginTestClient(t, server)
	result, err := c.OrderHistory(context.Background(), "2026-08-01", "2026-08-31", time.UTC)
	if err != nil {
		t.Fatalf("OrderHistory: %v", err)
	}
	if len(result.Records) != 0 || len(result.Rejects) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestOrderHistoryReconcilesLooseRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("startDate") != "2026-08-01" {
			t.Fatalf("missing startDate, got query %q", r.URL.RawQuery)
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"history": []map[string]any{
				{
					"orderNumber":  "MEJ-20260802-0004",
					"tableCode":    "T-K7P2Q9XW",
					"customerName": "Budi",
					"totalPrice":   "Rp 56.000",
					"orderDate":    "2026-08-02 19:30:00",
					"items": []map[string]any{
						{"menuName": "Nasi Goreng", "quantity": 2, "price": "Rp 25.000"},
					},
				},
				{
					"orderNumber": "MEJ-20260803-0001",
					"tableCode":   "T-K7P2Q9XW",
					"totalPrice":  "mystery",
					"orderDate":   "2026-08-03",
				},
				{
					"orderNumber": "MEJ-20260804-0002",
					"totalAmount": 30000,
					"completedAt": "2026-08-04T12:00:00Z",
				},
			},
		})
	}))
	defer server.Close()

	c := loginTestClient(t, server)
	result, err := c.OrderHistory(context.Background(), "2026-08-01", "2026-08-31", time.UTC)
	if err != nil {
		t.Fatalf("OrderHistory: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(result.Records), result.Records)
	}
	if len(result.Rejects) != 1 {
		t.Fatalf("expected 1 reject, got %d: %+v", len(result.Rejects), result.Rejects)
	}

	first := result.Records[0]
	if first.Total != 56000 {
		t.Fatalf("expected parsed total 56000, got %d", first.Total)
	}
	if first.CompletedAt.Format("2006-01-02 15:04") != "2026-08-02 19:30" {
		t.Fatalf("unexpected completedAt %v", first.CompletedAt)
	}
	if len(first.Items) != 1 || first.Items[0].UnitPrice != 25000 {
		t.Fatalf("unexpected items: %+v", first.Items)
	}

	// The current backend's field names resolve too.
	if result.Records[1].Total != 30000 {
		t.Fatalf("expected totalAmount fallback, got %d", result.Records[1].Total)
	}

	reject := result.Rejects[0]
	if reject.OrderNumber != "MEJ-20260803-0001" {
		t.Fatalf("unexpected rejected order %q", reject.OrderNumber)
	}
	if !strings.Contains(reject.Reason, "totalPrice") {
		t.Fatalf("reject reason should name the field: %q", reject.Reason)
	}
}

func TestLogoutClearsSessionEvenOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "boom")
	}))
	defer server.Close()

	c := loginTestClient(t, server)
	if err := c.Logout(context.Background()); err == nil {
		t.Fatal("expected server error to surface")
	}
	if c.Session().LoggedIn() {
		t.Fatal("session must be cleared regardless of server response")
	}
}
