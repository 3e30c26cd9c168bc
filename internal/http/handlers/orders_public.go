package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mejaku-order-service/internal/queue"
	"mejaku-order-service/internal/utils"
	"mejaku-order-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type publicOrderRequest struct {
	TableCode    string            `json:"tableCode"`
	CustomerName string            `json:"customerName"`
	Notes        *string           `json:"notes"`
	Items        []publicOrderItem `json:"items"`
}

type publicOrderItem struct {
	MenuID   int64                `json:"menuId"`
	Quantity int32                `json:"quantity"`
	Notes    *string              `json:"notes"`
	Options  []publicOrderItemOpt `json:"options"`
}

type publicOrderItemOpt struct {
	GroupID  int64 `json:"groupId"`
	OptionID int64 `json:"optionId"`
}

type publicOrderCreateResponse struct {
	OrderDetail
	TrackingToken string `json:"trackingToken"`
}

type pricedOrderItem struct {
	MenuID     int64
	MenuName   string
	Quantity   int32
	UnitPrice  int64
	ExtraPrice int64
	Notes      *string
	Options    []OrderItemOption
}

func (h *Handler) PublicOrderCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body publicOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	tableCode := strings.TrimSpace(body.TableCode)
	if tableCode == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table code is required")
		return
	}
	customerName := strings.TrimSpace(body.CustomerName)
	if customerName == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Customer name is required")
		return
	}
	if len(body.Items) == 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order must have at least one item")
		return
	}

	var tableID int64
	err := h.DB.QueryRow(ctx, `select id from tables where code = $1`, tableCode).Scan(&tableID)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusBadRequest, "TABLE_NOT_FOUND", "Unknown table code")
		return
	}
	if err != nil {
		h.Logger.Error("order table lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return
	}

	// Prices always come from the menu rows, never from the client.
	priced, subtotal, err := h.priceOrderItems(ctx, body.Items)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	detail, err := h.insertOrder(ctx, tableID, tableCode, customerName, body.Notes, priced, subtotal)
	if err != nil {
		h.Logger.Error("order insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return
	}

	h.publishOrderEvent(ctx, "order.created", detail)

	token := utils.CreateOrderTrackingToken(h.Config.OrderTrackingSecret, detail.TableCode, detail.OrderNumber)
	response.Created(w, publicOrderCreateResponse{OrderDetail: detail, TrackingToken: token})
}

type menuOptionGroupSpec struct {
	MenuID        int64
	Name          string
	SelectionType string
	IsRequired    bool
	Options       map[int64]menuOptionSpec
}

type menuOptionSpec struct {
	Name       string
	ExtraPrice int64
}

// resolveItemOptions validates one item's selections against its menu's
// option groups and prices them. Required groups must have a selection,
// SINGLE groups accept exactly one option, and repeating an option is
// rejected rather than charged twice.
func resolveItemOptions(menuID int64, menuName string, selections []publicOrderItemOpt, groups map[int64]*menuOptionGroupSpec, groupIDs []int64) ([]OrderItemOption, int64, error) {
	seen := make(map[int64]bool)
	perGroup := make(map[int64]int)
	resolved := make([]OrderItemOption, 0, len(selections))
	var extra int64

	for _, sel := range selections {
		group, ok := groups[sel.GroupID]
		if !ok || group.MenuID != menuID {
			return nil, 0, fmt.Errorf("unknown option group %d for %s", sel.GroupID, menuName)
		}
		opt, ok := group.Options[sel.OptionID]
		if !ok {
			return nil, 0, fmt.Errorf("unknown option %d for %s", sel.OptionID, menuName)
		}
		if seen[sel.OptionID] {
			return nil, 0, fmt.Errorf("option %s selected more than once for %s", opt.Name, menuName)
		}
		seen[sel.OptionID] = true
		perGroup[sel.GroupID]++
		if group.SelectionType == "SINGLE" && perGroup[sel.GroupID] > 1 {
			return nil, 0, fmt.Errorf("choose one %s for %s", group.Name, menuName)
		}
		extra += opt.ExtraPrice
		resolved = append(resolved, OrderItemOption{
			GroupName:  group.Name,
			OptionName: opt.Name,
			ExtraPrice: opt.ExtraPrice,
		})
	}

	for _, groupID := range groupIDs {
		group := groups[groupID]
		if group.IsRequired && perGroup[groupID] == 0 {
			return nil, 0, fmt.Errorf("%s requires a %s selection", menuName, group.Name)
		}
	}

	return resolved, extra, nil
}

func (h *Handler) priceOrderItems(ctx context.Context, items []publicOrderItem) ([]pricedOrderItem, int64, error) {
	menuIDs := make([]int64, 0, len(items))
	for _, item := range items {
		if item.MenuID <= 0 {
			return nil, 0, errors.New("menuId is required for every item")
		}
		if item.Quantity <= 0 {
			return nil, 0, errors.New("quantity must be at least 1")
		}
		menuIDs = append(menuIDs, item.MenuID)
	}

	type menuRow struct {
		Name      string
		Price     int64
		Available bool
	}
	menus := make(map[int64]menuRow)
	rows, err := h.DB.Query(ctx, `
		select id, name, price, is_available
		from menus
		where id = any($1) and deleted_at is null
	`, menuIDs)
	if err != nil {
		return nil, 0, errors.New("failed to load menu items")
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var row menuRow
		if err := rows.Scan(&id, &row.Name, &row.Price, &row.Available); err != nil {
			return nil, 0, errors.New("failed to load menu items")
		}
		menus[id] = row
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.New("failed to load menu items")
	}

	groups := make(map[int64]*menuOptionGroupSpec)
	menuGroupIDs := make(map[int64][]int64)
	optRows, err := h.DB.Query(ctx, `
		select g.menu_id, g.id, g.name, g.selection_type, g.is_required, o.id, o.name, o.extra_price
		from menu_option_groups g
		join menu_options o on o.group_id = g.id
		where g.menu_id = any($1)
		order by g.position, o.position
	`, menuIDs)
	if err != nil {
		return nil, 0, errors.New("failed to load menu options")
	}
	defer optRows.Close()
	for optRows.Next() {
		var menuID, groupID, optionID int64
		var groupName, selectionType, optionName string
		var isRequired bool
		var extraPrice int64
		if err := optRows.Scan(&menuID, &groupID, &groupName, &selectionType, &isRequired, &optionID, &optionName, &extraPrice); err != nil {
			return nil, 0, errors.New("failed to load menu options")
		}
		group := groups[groupID]
		if group == nil {
			group = &menuOptionGroupSpec{
				MenuID:        menuID,
				Name:          groupName,
				SelectionType: selectionType,
				IsRequired:    isRequired,
				Options:       make(map[int64]menuOptionSpec),
			}
			groups[groupID] = group
			menuGroupIDs[menuID] = append(menuGroupIDs[menuID], groupID)
		}
		group.Options[optionID] = menuOptionSpec{Name: optionName, ExtraPrice: extraPrice}
	}
	if err := optRows.Err(); err != nil {
		return nil, 0, errors.New("failed to load menu options")
	}

	priced := make([]pricedOrderItem, 0, len(items))
	var subtotal int64
	for _, item := range items {
		menu, ok := menus[item.MenuID]
		if !ok {
			return nil, 0, fmt.Errorf("menu item %d not found", item.MenuID)
		}
		if !menu.Available {
			return nil, 0, fmt.Errorf("%s is currently unavailable", menu.Name)
		}

		out := pricedOrderItem{
			MenuID:    item.MenuID,
			MenuName:  menu.Name,
			Quantity:  item.Quantity,
			UnitPrice: menu.Price,
			Notes:     item.Notes,
		}
		resolved, extra, err := resolveItemOptions(item.MenuID, menu.Name, item.Options, groups, menuGroupIDs[item.MenuID])
		if err != nil {
			return nil, 0, err
		}
		out.Options = resolved
		out.ExtraPrice = extra

		subtotal += int64(out.Quantity) * (out.UnitPrice + out.ExtraPrice)
		priced = append(priced, out)
	}

	return priced, subtotal, nil
}

func (h *Handler) insertOrder(ctx context.Context, tableID int64, tableCode, customerName string, notes *string, priced []pricedOrderItem, subtotal int64) (OrderDetail, error) {
	dayKey := utils.CurrentDateInTimezone(h.Config.RestaurantTimezone)

	// Concurrent checkouts can race on the per-day sequence; the unique
	// constraint on (day_key, daily_sequence) catches the loser, which retries.
	for attempt := 0; attempt < 3; attempt++ {
		detail, err := h.insertOrderOnce(ctx, dayKey, tableID, tableCode, customerName, notes, priced, subtotal)
		if err == nil {
			return detail, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return OrderDetail{}, err
	}
	return OrderDetail{}, errors.New("order number allocation kept colliding")
}

func (h *Handler) insertOrderOnce(ctx context.Context, dayKey string, tableID int64, tableCode, customerName string, notes *string, priced []pricedOrderItem, subtotal int64) (OrderDetail, error) {
	tx, err := h.DB.Begin(ctx)
	if err != nil {
		return OrderDetail{}, err
	}
	defer tx.Rollback(ctx)

	var sequence int
	if err := tx.QueryRow(ctx, `select coalesce(max(daily_sequence), 0) + 1 from orders where day_key = $1`, dayKey).Scan(&sequence); err != nil {
		return OrderDetail{}, err
	}
	orderNumber := fmt.Sprintf("MEJ-%s-%04d", strings.ReplaceAll(dayKey, "-", ""), sequence)

	detail := OrderDetail{
		OrderNumber:   orderNumber,
		DailySequence: sequence,
		TableID:       tableID,
		TableCode:     tableCode,
		CustomerName:  customerName,
		Status:        OrderStatusPending,
		Subtotal:      subtotal,
		TotalAmount:   subtotal,
		Notes:         notes,
	}

	err = tx.QueryRow(ctx, `
		insert into orders (order_number, day_key, daily_sequence, table_id, customer_name, status, subtotal, total_amount, notes)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning id, placed_at, updated_at
	`, orderNumber, dayKey, sequence, tableID, customerName, OrderStatusPending, subtotal, subtotal, notes).Scan(&detail.ID, &detail.PlacedAt, &detail.UpdatedAt)
	if err != nil {
		return OrderDetail{}, err
	}

	for _, item := range priced {
		lineTotal := int64(item.Quantity) * (item.UnitPrice + item.ExtraPrice)
		var itemID int64
		err = tx.QueryRow(ctx, `
			insert into order_items (order_id, menu_id, menu_name, quantity, unit_price, extra_price, line_total, notes)
			values ($1, $2, $3, $4, $5, $6, $7, $8)
			returning id
		`, detail.ID, item.MenuID, item.MenuName, item.Quantity, item.UnitPrice, item.ExtraPrice, lineTotal, item.Notes).Scan(&itemID)
		if err != nil {
			return OrderDetail{}, err
		}
		for _, opt := range item.Options {
			if _, err := tx.Exec(ctx, `
				insert into order_item_options (order_item_id, group_name, option_name, extra_price)
				values ($1, $2, $3, $4)
			`, itemID, opt.GroupName, opt.OptionName, opt.ExtraPrice); err != nil {
				return OrderDetail{}, err
			}
		}
		menuID := item.MenuID
		detail.Items = append(detail.Items, OrderItemPayload{
			ID:         itemID,
			MenuID:     &menuID,
			MenuName:   item.MenuName,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			ExtraPrice: item.ExtraPrice,
			LineTotal:  lineTotal,
			Notes:      item.Notes,
			Options:    append([]OrderItemOption{}, item.Options...),
		})
	}

	if _, err := tx.Exec(ctx, `update tables set status = $1, updated_at = now() where id = $2`, TableStatusOccupied, tableID); err != nil {
		return OrderDetail{}, err
	}
	err = tx.QueryRow(ctx, `select name from tables where id = $1`, tableID).Scan(&detail.TableName)
	if err != nil {
		return OrderDetail{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return OrderDetail{}, err
	}
	return detail, nil
}

func (h *Handler) PublicOrderDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if orderNumber == "" || token == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order number and tracking token are required")
		return
	}

	detail, err := h.loadOrderDetailByNumber(ctx, orderNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		h.Logger.Error("public order detail failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch order")
		return
	}

	if !utils.VerifyOrderTrackingToken(h.Config.OrderTrackingSecret, token, detail.TableCode, detail.OrderNumber) {
		response.Error(w, http.StatusForbidden, "INVALID_TRACKING_TOKEN", "Tracking token does not match this order")
		return
	}

	response.Success(w, detail)
}

func (h *Handler) loadOrderDetailByNumber(ctx context.Context, orderNumber string) (OrderDetail, error) {
	var id int64
	if err := h.DB.QueryRow(ctx, `select id from orders where order_number = $1`, orderNumber).Scan(&id); err != nil {
		return OrderDetail{}, err
	}
	return h.loadOrderDetail(ctx, id)
}

func (h *Handler) loadOrderDetail(ctx context.Context, orderID int64) (OrderDetail, error) {
	var detail OrderDetail
	var notes pgtype.Text
	var completedAt, cancelledAt pgtype.Timestamptz

	query := `
		select o.id, o.order_number, o.daily_sequence, o.table_id, t.code, t.name,
		  o.customer_name, o.status, o.is_processed, o.subtotal, o.total_amount, o.notes,
		  o.placed_at, o.updated_at, o.completed_at, o.cancelled_at
		from orders o
		join tables t on t.id = o.table_id
		where o.id = $1
	`
	err := h.DB.QueryRow(ctx, query, orderID).Scan(
		&detail.ID, &detail.OrderNumber, &detail.DailySequence, &detail.TableID, &detail.TableCode, &detail.TableName,
		&detail.CustomerName, &detail.Status, &detail.IsProcessed, &detail.Subtotal, &detail.TotalAmount, &notes,
		&detail.PlacedAt, &detail.UpdatedAt, &completedAt, &cancelledAt,
	)
	if err != nil {
		return OrderDetail{}, err
	}
	detail.Notes = textPtr(notes)
	detail.CompletedAt = timePtr(completedAt)
	detail.CancelledAt = timePtr(cancelledAt)
	detail.Items = []OrderItemPayload{}

	rows, err := h.DB.Query(ctx, `
		select i.id, i.menu_id, i.menu_name, i.quantity, i.unit_price, i.extra_price, i.line_total, i.notes,
		  op.group_name, op.option_name, op.extra_price
		from order_items i
		left join order_item_options op on op.order_item_id = i.id
		where i.order_id = $1
		order by i.id, op.id
	`, orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	defer rows.Close()

	index := make(map[int64]int)
	for rows.Next() {
		var (
			itemID             int64
			menuID             pgtype.Int8
			menuName           string
			quantity           int32
			unitPrice          int64
			extraPrice         int64
			lineTotal          int64
			itemNotes          pgtype.Text
			groupName, optName pgtype.Text
			optExtra           pgtype.Int8
		)
		if err := rows.Scan(&itemID, &menuID, &menuName, &quantity, &unitPrice, &extraPrice, &lineTotal, &itemNotes, &groupName, &optName, &optExtra); err != nil {
			return OrderDetail{}, err
		}
		idx, seen := index[itemID]
		if !seen {
			detail.Items = append(detail.Items, OrderItemPayload{
				ID:         itemID,
				MenuID:     int8Ptr(menuID),
				MenuName:   menuName,
				Quantity:   quantity,
				UnitPrice:  unitPrice,
				ExtraPrice: extraPrice,
				LineTotal:  lineTotal,
				Notes:      textPtr(itemNotes),
				Options:    []OrderItemOption{},
			})
			idx = len(detail.Items) - 1
			index[itemID] = idx
		}
		if groupName.Valid {
			detail.Items[idx].Options = append(detail.Items[idx].Options, OrderItemOption{
				GroupName:  groupName.String,
				OptionName: optName.String,
				ExtraPrice: optExtra.Int64,
			})
		}
	}
	return detail, rows.Err()
}

func (h *Handler) publishOrderEvent(ctx context.Context, eventType string, detail OrderDetail) {
	// Wakes up websocket subscribers on this instance and any other.
	if _, err := h.DB.Exec(ctx, `select pg_notify('order_updates', $1)`, detail.OrderNumber); err != nil {
		h.Logger.Warn("order notify failed", zapError(err))
	}
	if h.Queue == nil {
		return
	}
	now := time.Now().UTC()
	event := queue.OrderEvent{
		Type:        eventType,
		OrderID:     detail.ID,
		OrderNumber: detail.OrderNumber,
		TableCode:   detail.TableCode,
		Status:      detail.Status,
		UpdatedAt:   &now,
	}
	if err := h.Queue.PublishJSON(ctx, queue.EventsExchange, eventType, event); err != nil {
		h.Logger.Warn("order event publish failed", zapError(err))
	}
}
