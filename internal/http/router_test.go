package httpapi

import (
	"net/http"
	"strings"
	"testing"

	"mejaku-order-service/internal/config"
	"mejaku-order-service/internal/ws"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Walks the real route tree so handler code that reads chi.URLParam cannot
// silently drift from the registered patterns.
func TestRouterRegistersExpectedRoutes(t *testing.T) {
	cfg := config.Config{Env: "test", JWTSecret: "secret"}
	logger := zap.NewNop()
	router := NewRouter(nil, logger, cfg, nil, ws.New(nil, logger, cfg))

	routes, ok := router.(chi.Routes)
	if !ok {
		t.Fatal("router does not expose its route tree")
	}

	found := make(map[string]bool)
	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		route = strings.ReplaceAll(route, "/*/", "/")
		found[method+" "+route] = true
		return nil
	})
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /api/public/menu",
		"GET /api/public/tables/{code}",
		"POST /api/public/orders",
		"GET /api/public/orders/{orderNumber}",
		"POST /api/public/orders/{orderNumber}/payment",
		"POST /api/auth/login",
		"GET /api/auth/me",
		"POST /api/auth/logout",
		"GET /api/admin/orders",
		"GET /api/admin/orders/{id}",
		"PUT /api/admin/orders/{id}/status",
		"POST /api/admin/orders/{id}/cancel",
		"DELETE /api/admin/orders/{id}",
		"GET /api/admin/order-history",
		"POST /api/admin/order-history/import",
		"GET /api/admin/order-history/quarantine",
		"GET /api/admin/menu",
		"POST /api/admin/menu/{id}/image",
		"PUT /api/admin/tables/{id}/status",
		"POST /api/admin/tables/{id}/regenerate-code",
		"GET /api/admin/analytics/sales",
		"GET /api/admin/reports/daily-sales",
		"POST /api/admin/staff",
		"POST /api/payments/midtrans/webhook",
		"GET /ws/admin/orders",
		"GET /ws/public/order",
	}
	for _, want := range expected {
		if !found[want] {
			t.Errorf("route not registered: %s", want)
		}
	}
}
