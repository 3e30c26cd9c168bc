package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"mejaku-order-service/internal/config"
	"mejaku-order-service/internal/http/handlers"
	"mejaku-order-service/internal/middleware"
	"mejaku-order-service/internal/queue"
	"mejaku-order-service/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func NewRouter(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config, queueClient *queue.Client, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
				"Pragma",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	h := &handlers.Handler{DB: db, Logger: logger, Config: cfg, Queue: queueClient}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/menu", h.PublicMenu)
		r.Get("/tables/{code}", h.PublicTableResolve)
		r.Post("/orders", h.PublicOrderCreate)
		r.Get("/orders/{orderNumber}", h.PublicOrderDetail)
		r.Post("/orders/{orderNumber}/payment", h.PublicPaymentCreate)
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", h.AuthLogin)
		r.Post("/register", h.AuthRegister)

		r.Group(func(r chi.Router) {
			r.Use(middleware.StaffAuth(db, cfg.JWTSecret))
			r.Get("/me", h.AuthMe)
			r.Post("/logout", h.AuthLogout)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.StaffAuth(db, cfg.JWTSecret))

		r.Get("/orders", h.AdminOrdersList)
		r.Get("/orders/{id}", h.AdminOrderDetail)
		r.Put("/orders/{id}/status", h.AdminOrderStatusUpdate)
		r.Post("/orders/{id}/cancel", h.AdminOrderCancel)
		r.Delete("/orders/{id}", h.AdminOrderDelete)

		r.Get("/order-history", h.AdminOrderHistoryList)
		r.Post("/order-history/import", h.AdminOrderHistoryImport)
		r.Get("/order-history/quarantine", h.AdminOrderHistoryQuarantine)

		r.Get("/menu", h.AdminMenuList)
		r.Post("/menu", h.AdminMenuCreate)
		r.Get("/menu/{id}", h.AdminMenuDetail)
		r.Put("/menu/{id}", h.AdminMenuUpdate)
		r.Delete("/menu/{id}", h.AdminMenuDelete)
		r.Post("/menu/{id}/image", h.AdminMenuUploadImage)
		r.Delete("/menu/{id}/image", h.AdminMenuDeleteImage)

		r.Get("/tables", h.AdminTablesList)
		r.Post("/tables", h.AdminTableCreate)
		r.Put("/tables/{id}", h.AdminTableUpdate)
		r.Put("/tables/{id}/status", h.AdminTableSetStatus)
		r.Post("/tables/{id}/regenerate-code", h.AdminTableRegenerateCode)
		r.Delete("/tables/{id}", h.AdminTableDelete)

		r.Get("/analytics/sales", h.AdminSalesAnalytics)
		r.Get("/reports/daily-sales", h.AdminDailySalesReportPDF)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminOnly())
			r.Get("/staff", h.AdminStaffList)
			r.Post("/staff", h.AdminStaffCreate)
			r.Put("/staff/{id}", h.AdminStaffUpdate)
			r.Delete("/staff/{id}", h.AdminStaffDelete)
		})
	})

	r.Post("/api/payments/midtrans/webhook", h.MidtransWebhook)

	if wsServer != nil {
		r.Get("/ws/admin/orders", wsServer.StaffOrdersWS)
		r.Get("/ws/public/order", wsServer.PublicOrderWS)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
