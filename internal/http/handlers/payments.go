package handlers

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"mejaku-order-service/internal/utils"
	"mejaku-order-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"go.uber.org/zap"
)

const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
	PaymentStatusExpired = "EXPIRED"
)

func (h *Handler) snapClient() *snap.Client {
	env := midtrans.Sandbox
	if h.Config.MidtransProduction {
		env = midtrans.Production
	}
	var client snap.Client
	client.New(h.Config.MidtransServerKey, env)
	return &client
}

// verifyMidtransSignature checks the SHA-512 signature Midtrans sends with
// every notification: sha512(order_id + status_code + gross_amount + serverKey).
func verifyMidtransSignature(orderID, statusCode, grossAmount, signature, serverKey string) bool {
	raw := orderID + statusCode + grossAmount + serverKey
	hash := sha512.Sum512([]byte(raw))
	return hex.EncodeToString(hash[:]) == signature
}

// PublicPaymentCreate opens a Midtrans Snap session for an order. The caller
// proves ownership with the tracking token issued at order creation.
func (h *Handler) PublicPaymentCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if strings.TrimSpace(h.Config.MidtransServerKey) == "" {
		response.Error(w, http.StatusServiceUnavailable, "PAYMENTS_DISABLED", "Online payment is not configured")
		return
	}

	orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if orderNumber == "" || token == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order number and token are required")
		return
	}

	var (
		orderID     int64
		tableCode   string
		status      string
		totalAmount int64
	)
	err := h.DB.QueryRow(ctx, `
		select o.id, t.code, o.status, o.total_amount
		from orders o
		join tables t on t.id = o.table_id
		where o.order_number = $1
	`, orderNumber).Scan(&orderID, &tableCode, &status, &totalAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		h.Logger.Error("payment order lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start payment")
		return
	}
	if !utils.VerifyOrderTrackingToken(h.Config.OrderTrackingSecret, token, tableCode, orderNumber) {
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "Invalid tracking token")
		return
	}
	if status == OrderStatusCancelled {
		response.Error(w, http.StatusConflict, "ORDER_CANCELLED", "Cancelled orders cannot be paid")
		return
	}

	// Reuse an open session if one exists so refreshing the payment page
	// does not create duplicate transactions.
	var (
		existingStatus string
		snapToken      pgtype.Text
		redirectURL    pgtype.Text
	)
	err = h.DB.QueryRow(ctx, `
		select status, snap_token, redirect_url
		from payments
		where order_id = $1
		order by id desc
		limit 1
	`, orderID).Scan(&existingStatus, &snapToken, &redirectURL)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		h.Logger.Error("payment lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start payment")
		return
	}
	if err == nil && existingStatus == PaymentStatusPaid {
		response.Error(w, http.StatusConflict, "ALREADY_PAID", "Order is already paid")
		return
	}
	if err == nil && existingStatus == PaymentStatusPending && snapToken.Valid {
		response.Success(w, map[string]any{
			"snapToken":   snapToken.String,
			"redirectUrl": textPtr(redirectURL),
		})
		return
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderNumber,
			GrossAmt: totalAmount,
		},
	}
	resp, snapErr := h.snapClient().CreateTransaction(req)
	if snapErr != nil {
		h.Logger.Error("snap transaction failed", zap.String("order_number", orderNumber), zap.Error(snapErr.RawError))
		response.Error(w, http.StatusBadGateway, "PAYMENT_GATEWAY_ERROR", "Payment gateway rejected the request")
		return
	}

	if _, err := h.DB.Exec(ctx, `
		insert into payments (order_id, provider, status, snap_token, redirect_url, gross_amount)
		values ($1, 'midtrans', $2, $3, $4, $5)
	`, orderID, PaymentStatusPending, resp.Token, resp.RedirectURL, totalAmount); err != nil {
		h.Logger.Error("payment insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record payment")
		return
	}

	response.Success(w, map[string]any{
		"snapToken":   resp.Token,
		"redirectUrl": resp.RedirectURL,
	})
}

// MidtransWebhook ingests payment notifications. It is idempotent: repeated
// notifications for a settled payment are acknowledged without changes.
func (h *Handler) MidtransWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid notification body")
		return
	}

	orderNumber, _ := payload["order_id"].(string)
	statusCode, _ := payload["status_code"].(string)
	grossAmount, _ := payload["gross_amount"].(string)
	signature, _ := payload["signature_key"].(string)
	transactionStatus, _ := payload["transaction_status"].(string)
	fraudStatus, _ := payload["fraud_status"].(string)

	if orderNumber == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing order_id")
		return
	}
	if !verifyMidtransSignature(orderNumber, statusCode, grossAmount, signature, h.Config.MidtransServerKey) {
		h.Logger.Warn("midtrans signature mismatch", zap.String("order_number", orderNumber))
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "Invalid signature")
		return
	}

	var (
		paymentID int64
		orderID   int64
		current   string
	)
	err := h.DB.QueryRow(ctx, `
		select p.id, p.order_id, p.status
		from payments p
		join orders o on o.id = p.order_id
		where o.order_number = $1
		order by p.id desc
		limit 1
	`, orderNumber).Scan(&paymentID, &orderID, &current)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "No payment recorded for this order")
		return
	}
	if err != nil {
		h.Logger.Error("webhook payment lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process notification")
		return
	}
	if current == PaymentStatusPaid {
		response.Success(w, map[string]any{"status": current})
		return
	}

	next := ""
	switch transactionStatus {
	case "settlement":
		next = PaymentStatusPaid
	case "capture":
		if fraudStatus == "accept" {
			next = PaymentStatusPaid
		}
	case "deny", "cancel":
		next = PaymentStatusFailed
	case "expire":
		next = PaymentStatusExpired
	}
	if next == "" {
		response.Success(w, map[string]any{"status": current})
		return
	}

	var paidAt *time.Time
	if next == PaymentStatusPaid {
		now := time.Now()
		paidAt = &now
	}
	if _, err := h.DB.Exec(ctx, `
		update payments set status = $1, paid_at = $2, updated_at = now() where id = $3
	`, next, paidAt, paymentID); err != nil {
		h.Logger.Error("payment status update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process notification")
		return
	}

	h.Logger.Info("midtrans notification processed",
		zap.String("order_number", orderNumber),
		zap.String("transaction_status", transactionStatus),
		zap.String("payment_status", next),
	)
	response.Success(w, map[string]any{"status": next})
}
