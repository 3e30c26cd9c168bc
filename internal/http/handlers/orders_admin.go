package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mejaku-order-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type orderListItem struct {
	ID            int64   `json:"id"`
	OrderNumber   string  `json:"orderNumber"`
	DailySequence int     `json:"dailySequence"`
	TableCode     string  `json:"tableCode"`
	TableName     string  `json:"tableName"`
	CustomerName  string  `json:"customerName"`
	Status        string  `json:"status"`
	IsProcessed   bool    `json:"isProcessed"`
	TotalAmount   int64   `json:"totalAmount"`
	ItemCount     int     `json:"itemCount"`
	PlacedAt      string  `json:"placedAt"`
	CompletedAt   *string `json:"completedAt"`
}

func (h *Handler) AdminOrdersList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	statusFilters := splitQueryList(query.Get("status"))
	for _, status := range statusFilters {
		if !isValidOrderStatus(strings.ToUpper(status)) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown order status "+status)
			return
		}
	}
	startDate := strings.TrimSpace(query.Get("startDate"))
	endDate := strings.TrimSpace(query.Get("endDate"))
	if (startDate != "" && !isValidDay(startDate)) || (endDate != "" && !isValidDay(endDate)) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Dates must be YYYY-MM-DD")
		return
	}
	page, limit, offset := parsePagination(query.Get("page"), query.Get("limit"))

	where := []string{"true"}
	args := []any{}
	argPos := 1
	if len(statusFilters) > 0 {
		upper := make([]string, 0, len(statusFilters))
		for _, s := range statusFilters {
			upper = append(upper, strings.ToUpper(s))
		}
		where = append(where, fmt.Sprintf("o.status = any($%d)", argPos))
		args = append(args, upper)
		argPos++
	}
	if startDate != "" {
		where = append(where, fmt.Sprintf("o.day_key >= $%d", argPos))
		args = append(args, startDate)
		argPos++
	}
	if endDate != "" {
		where = append(where, fmt.Sprintf("o.day_key <= $%d", argPos))
		args = append(args, endDate)
		argPos++
	}

	var total int
	countQuery := `select count(*) from orders o where ` + strings.Join(where, " and ")
	if err := h.DB.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		h.Logger.Error("orders count failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch orders")
		return
	}

	listQuery := fmt.Sprintf(`
		select o.id, o.order_number, o.daily_sequence, t.code, t.name, o.customer_name,
		  o.status, o.is_processed, o.total_amount,
		  (select count(*) from order_items i where i.order_id = o.id),
		  o.placed_at, o.completed_at
		from orders o
		join tables t on t.id = o.table_id
		where %s
		order by o.placed_at desc
		limit $%d offset $%d
	`, strings.Join(where, " and "), argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := h.DB.Query(ctx, listQuery, args...)
	if err != nil {
		h.Logger.Error("orders list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch orders")
		return
	}
	defer rows.Close()

	orders := make([]orderListItem, 0)
	for rows.Next() {
		var item orderListItem
		var placedAt pgtype.Timestamptz
		var completedAt pgtype.Timestamptz
		if err := rows.Scan(&item.ID, &item.OrderNumber, &item.DailySequence, &item.TableCode, &item.TableName, &item.CustomerName,
			&item.Status, &item.IsProcessed, &item.TotalAmount, &item.ItemCount, &placedAt, &completedAt); err != nil {
			h.Logger.Error("orders scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch orders")
			return
		}
		if placedAt.Valid {
			item.PlacedAt = placedAt.Time.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		if completedAt.Valid {
			formatted := completedAt.Time.UTC().Format("2006-01-02T15:04:05Z07:00")
			item.CompletedAt = &formatted
		}
		orders = append(orders, item)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("orders rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch orders")
		return
	}

	response.Success(w, map[string]any{
		"orders": orders,
		"pagination": map[string]any{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

func (h *Handler) AdminOrderDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	detail, err := h.loadOrderDetail(ctx, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		h.Logger.Error("order detail failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch order")
		return
	}

	response.Success(w, detail)
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// AdminOrderStatusUpdate is the single status endpoint. It validates the
// transition, and on COMPLETED writes the order_history row, marks the order
// processed, and frees the table.
func (h *Handler) AdminOrderStatusUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	var body statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	newStatus := strings.ToUpper(strings.TrimSpace(body.Status))
	if !isValidOrderStatus(newStatus) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Valid status is required (PENDING, PROCESSING, COMPLETED, CANCELLED)")
		return
	}

	detail, err := h.applyOrderStatus(ctx, orderID, newStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	var transitionErr *invalidTransitionError
	if errors.As(err, &transitionErr) {
		response.Error(w, http.StatusConflict, "INVALID_TRANSITION", transitionErr.Error())
		return
	}
	if err != nil {
		h.Logger.Error("order status update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order status")
		return
	}

	eventType := "order.status.updated"
	if newStatus == OrderStatusCompleted {
		eventType = "order.completed"
	}
	h.publishOrderEvent(ctx, eventType, detail)

	response.Success(w, detail)
}

type invalidTransitionError struct {
	From string
	To   string
}

func (e *invalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (h *Handler) applyOrderStatus(ctx context.Context, orderID int64, newStatus string) (OrderDetail, error) {
	tx, err := h.DB.Begin(ctx)
	if err != nil {
		return OrderDetail{}, err
	}
	defer tx.Rollback(ctx)

	var currentStatus string
	var tableID int64
	if err := tx.QueryRow(ctx, `select status, table_id from orders where id = $1 for update`, orderID).Scan(&currentStatus, &tableID); err != nil {
		return OrderDetail{}, err
	}
	if !canTransitionOrderStatus(currentStatus, newStatus) {
		return OrderDetail{}, &invalidTransitionError{From: currentStatus, To: newStatus}
	}

	switch newStatus {
	case OrderStatusCompleted:
		_, err = tx.Exec(ctx, `update orders set status = $1, is_processed = true, completed_at = now(), updated_at = now() where id = $2`, newStatus, orderID)
	case OrderStatusCancelled:
		_, err = tx.Exec(ctx, `update orders set status = $1, cancelled_at = now(), updated_at = now() where id = $2`, newStatus, orderID)
	default:
		_, err = tx.Exec(ctx, `update orders set status = $1, updated_at = now() where id = $2`, newStatus, orderID)
	}
	if err != nil {
		return OrderDetail{}, err
	}

	if newStatus == OrderStatusCompleted || newStatus == OrderStatusCancelled {
		// Free the table unless another live order still owns it.
		var liveOrders int
		if err := tx.QueryRow(ctx, `
			select count(*) from orders
			where table_id = $1 and id <> $2 and status in ($3, $4)
		`, tableID, orderID, OrderStatusPending, OrderStatusProcessing).Scan(&liveOrders); err != nil {
			return OrderDetail{}, err
		}
		if liveOrders == 0 {
			if _, err := tx.Exec(ctx, `update tables set status = $1, updated_at = now() where id = $2`, TableStatusAvailable, tableID); err != nil {
				return OrderDetail{}, err
			}
		}
	}

	if newStatus == OrderStatusCompleted {
		if err := h.writeOrderHistoryTx(ctx, tx, orderID); err != nil {
			return OrderDetail{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return OrderDetail{}, err
	}

	return h.loadOrderDetail(ctx, orderID)
}

func (h *Handler) writeOrderHistoryTx(ctx context.Context, tx pgx.Tx, orderID int64) error {
	var (
		orderNumber  string
		tableCode    string
		tableName    string
		customerName string
		totalAmount  int64
	)
	err := tx.QueryRow(ctx, `
		select o.order_number, t.code, t.name, o.customer_name, o.total_amount
		from orders o
		join tables t on t.id = o.table_id
		where o.id = $1
	`, orderID).Scan(&orderNumber, &tableCode, &tableName, &customerName, &totalAmount)
	if err != nil {
		return err
	}

	type historyItem struct {
		MenuName  string `json:"menuName"`
		Quantity  int32  `json:"quantity"`
		UnitPrice int64  `json:"unitPrice"`
	}
	rows, err := tx.Query(ctx, `select menu_name, quantity, unit_price from order_items where order_id = $1 order by id`, orderID)
	if err != nil {
		return err
	}
	defer rows.Close()

	items := make([]historyItem, 0)
	for rows.Next() {
		var item historyItem
		if err := rows.Scan(&item.MenuName, &item.Quantity, &item.UnitPrice); err != nil {
			return err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		insert into order_history (order_number, table_code, table_name, customer_name, items, total_amount, completed_at, source)
		values ($1, $2, $3, $4, $5, $6, now(), 'native')
		on conflict (order_number) do nothing
	`, orderNumber, tableCode, tableName, customerName, itemsJSON, totalAmount)
	return err
}

func (h *Handler) AdminOrderCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	detail, err := h.applyOrderStatus(ctx, orderID, OrderStatusCancelled)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	var transitionErr *invalidTransitionError
	if errors.As(err, &transitionErr) {
		response.Error(w, http.StatusConflict, "INVALID_TRANSITION", transitionErr.Error())
		return
	}
	if err != nil {
		h.Logger.Error("order cancel failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to cancel order")
		return
	}

	h.publishOrderEvent(ctx, "order.status.updated", detail)
	response.Success(w, detail)
}

// AdminOrderDelete removes cancelled orders only; anything else must go
// through the status flow first.
func (h *Handler) AdminOrderDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	var status string
	err := h.DB.QueryRow(ctx, `select status from orders where id = $1`, orderID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		h.Logger.Error("order delete lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete order")
		return
	}
	if status != OrderStatusCancelled {
		response.Error(w, http.StatusConflict, "ORDER_NOT_CANCELLED", "Only cancelled orders can be deleted")
		return
	}

	if _, err := h.DB.Exec(ctx, `delete from orders where id = $1`, orderID); err != nil {
		h.Logger.Error("order delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete order")
		return
	}

	response.Success(w, map[string]any{"deleted": true})
}
