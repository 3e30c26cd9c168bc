package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mejaku-order-service/internal/cart"
	"mejaku-order-service/internal/reconcile"

	"go.uber.org/zap"
)

type MenuOption struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ExtraPrice int64  `json:"extraPrice"`
}

type MenuOptionGroup struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	SelectionType string       `json:"selectionType"`
	IsRequired    bool         `json:"isRequired"`
	Options       []MenuOption `json:"options"`
}

type MenuItem struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Price        int64             `json:"price"`
	Category     string            `json:"category"`
	ImageURL     *string           `json:"imageUrl"`
	ThumbURL     *string           `json:"thumbUrl"`
	IsAvailable  bool              `json:"isAvailable"`
	OptionGroups []MenuOptionGroup `json:"optionGroups"`
}

type MenuCategory struct {
	Category string     `json:"category"`
	Items    []MenuItem `json:"items"`
}

type Table struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
}

type OrderItemOption struct {
	GroupName  string `json:"groupName"`
	OptionName string `json:"optionName"`
	ExtraPrice int64  `json:"extraPrice"`
}

type OrderItem struct {
	ID         int64             `json:"id"`
	MenuID     *int64            `json:"menuId"`
	MenuName   string            `json:"menuName"`
	Quantity   int32             `json:"quantity"`
	UnitPrice  int64             `json:"unitPrice"`
	ExtraPrice int64             `json:"extraPrice"`
	LineTotal  int64             `json:"lineTotal"`
	Notes      *string           `json:"notes"`
	Options    []OrderItemOption `json:"options"`
}

type Order struct {
	ID            int64       `json:"id"`
	OrderNumber   string      `json:"orderNumber"`
	DailySequence int         `json:"dailySequence"`
	TableCode     string      `json:"tableCode"`
	TableName     string      `json:"tableName"`
	CustomerName  string      `json:"customerName"`
	Status        string      `json:"status"`
	Subtotal      int64       `json:"subtotal"`
	TotalAmount   int64       `json:"totalAmount"`
	Notes         *string     `json:"notes"`
	Items         []OrderItem `json:"items"`
	PlacedAt      time.Time   `json:"placedAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	CompletedAt   *time.Time  `json:"completedAt"`
	TrackingToken string      `json:"trackingToken,omitempty"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*Profile, error) {
	var data struct {
		Token string  `json:"token"`
		User  Profile `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &data, false)
	if err != nil {
		return nil, err
	}
	if err := c.session.set(data.Token, &data.User); err != nil {
		return nil, fmt.Errorf("client: persist session: %w", err)
	}
	return &data.User, nil
}

func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &profile, true); err != nil {
		return nil, err
	}
	_ = c.session.set(c.session.Token(), &profile)
	return &profile, nil
}

// Logout revokes the server session. The local session is cleared even when
// the call fails; the token is useless to keep around.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, true)
	if clearErr := c.session.clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

func (c *Client) Menu(ctx context.Context) ([]MenuCategory, error) {
	var data struct {
		Categories []MenuCategory `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/public/menu", nil, &data, false); err != nil {
		return nil, err
	}
	return data.Categories, nil
}

func (c *Client) Tables(ctx context.Context) ([]Table, error) {
	var data struct {
		Tables []Table `json:"tables"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/tables", nil, &data, true); err != nil {
		return nil, err
	}
	return data.Tables, nil
}

func (c *Client) ResolveTable(ctx context.Context, code string) (*Table, error) {
	var table Table
	if err := c.do(ctx, http.MethodGet, "/api/public/tables/"+code, nil, &table, false); err != nil {
		return nil, err
	}
	return &table, nil
}

// CreateOrder submits the cart as an order and clears it on success. The
// returned order carries the tracking token needed to read it back later.
func (c *Client) CreateOrder(ctx context.Context, store *cart.Store, customerName string, notes *string) (*Order, error) {
	items := store.Items()
	if len(items) == 0 {
		return nil, errors.New("client: cart is empty")
	}
	tableCode := store.TableCode()
	if tableCode == "" {
		return nil, errors.New("client: no table selected")
	}

	type orderItemOpt struct {
		GroupID  int64 `json:"groupId"`
		OptionID int64 `json:"optionId"`
	}
	type orderItem struct {
		MenuID   int64          `json:"menuId"`
		Quantity int32          `json:"quantity"`
		Options  []orderItemOpt `json:"options,omitempty"`
	}

	payloadItems := make([]orderItem, 0, len(items))
	for _, item := range items {
		opts := make([]orderItemOpt, 0, len(item.Customizations))
		for _, custom := range item.Customizations {
			opts = append(opts, orderItemOpt{GroupID: custom.GroupID, OptionID: custom.OptionID})
		}
		payloadItems = append(payloadItems, orderItem{
			MenuID:   item.MenuID,
			Quantity: item.Quantity,
			Options:  opts,
		})
	}

	var order Order
	err := c.do(ctx, http.MethodPost, "/api/public/orders", map[string]any{
		"tableCode":    tableCode,
		"customerName": customerName,
		"notes":        notes,
		"items":        payloadItems,
	}, &order, false)
	if err != nil {
		return nil, err
	}

	if err := store.Clear(); err != nil {
		c.logger.Warn("cart clear after checkout failed", zap.Error(err))
	}
	return &order, nil
}

func (c *Client) Order(ctx context.Context, orderNumber, trackingToken string) (*Order, error) {
	var order Order
	path := fmt.Sprintf("/api/public/orders/%s?token=%s", orderNumber, trackingToken)
	if err := c.do(ctx, http.MethodGet, path, nil, &order, false); err != nil {
		return nil, err
	}
	return &order, nil
}

const statusUpdateAttempts = 3

// UpdateOrderStatus calls the status endpoint with bounded retries. Only
// transport errors and 5xx responses are retried; a 4xx means the request
// itself is wrong and repeating it cannot help.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*Order, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	path := fmt.Sprintf("/api/admin/orders/%d/status", orderID)

	var attemptErrs []string
	delay := c.retryDelay
	for attempt := 1; attempt <= statusUpdateAttempts; attempt++ {
		var order Order
		err := c.do(ctx, http.MethodPut, path, map[string]string{"status": status}, &order, true)
		if err == nil {
			return &order, nil
		}

		attemptErrs = append(attemptErrs, fmt.Sprintf("attempt %d: %v", attempt, err))

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			return nil, fmt.Errorf("client: status update failed: %s", strings.Join(attemptErrs, "; "))
		}
		if attempt == statusUpdateAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("client: status update failed after %d attempts: %s", statusUpdateAttempts, strings.Join(attemptErrs, "; "))
}

// HistoryReject is a legacy history row the reconciler refused, kept with
// enough context to fix the source data.
type HistoryReject struct {
	OrderNumber string
	Reason      string
}

type HistoryResult struct {
	Records []reconcile.HistoryRecord
	Rejects []HistoryReject
}

// historyRow tolerates both the current field names ("totalAmount",
// "unitPrice") and the ones the old backend used ("totalPrice", "price").
type historyRow struct {
	reconcile.LegacyOrder
	TotalAmount any             `json:"totalAmount"`
	RowItems    []legacyRowItem `json:"items"`
}

type legacyRowItem struct {
	MenuName  string `json:"menuName"`
	Quantity  int32  `json:"quantity"`
	Price     any    `json:"price"`
	UnitPrice any    `json:"unitPrice"`
}

// OrderHistory fetches completed orders between two YYYY-MM-DD days
// (inclusive; either may be empty). A 404 means no history exists yet and
// returns an empty result. Rows are validated through the reconciler; rows
// that fail are reported in Rejects, never patched up.
func (c *Client) OrderHistory(ctx context.Context, from, to string, loc *time.Location) (HistoryResult, error) {
	if loc == nil {
		loc = time.UTC
	}

	path := "/api/admin/order-history"
	params := make([]string, 0, 2)
	if from != "" {
		params = append(params, "startDate="+from)
	}
	if to != "" {
		params = append(params, "endDate="+to)
	}
	if len(params) > 0 {
		path += "?" + strings.Join(params, "&")
	}

	var data struct {
		History []historyRow `json:"history"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &data, true)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return HistoryResult{}, nil
		}
		return HistoryResult{}, err
	}

	var result HistoryResult
	for _, row := range data.History {
		legacy := row.LegacyOrder
		if legacy.TotalPrice == nil {
			legacy.TotalPrice = row.TotalAmount
		}
		legacy.Items = nil
		for _, item := range row.RowItems {
			price := item.Price
			if price == nil {
				price = item.UnitPrice
			}
			legacy.Items = append(legacy.Items, reconcile.LegacyItem{
				MenuName: item.MenuName,
				Quantity: item.Quantity,
				Price:    price,
			})
		}

		record, recErr := reconcile.Order(legacy, loc)
		if recErr != nil {
			result.Rejects = append(result.Rejects, HistoryReject{
				OrderNumber: strings.TrimSpace(legacy.OrderNumber),
				Reason:      recErr.Error(),
			})
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result, nil
}
