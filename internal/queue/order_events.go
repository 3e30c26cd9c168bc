package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderEvent is the envelope published to the events exchange whenever an
// order is created or its status changes.
type OrderEvent struct {
	Type        string     `json:"type"`
	OrderID     int64      `json:"orderId"`
	OrderNumber string     `json:"orderNumber"`
	TableCode   string     `json:"tableCode"`
	Status      string     `json:"status"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

// ProcessOrderEvent translates order events from the notifications queue into
// kitchen display jobs. Order creation and status changes both refresh the
// kitchen queue; anything else on the exchange is ignored.
func ProcessOrderEvent(ctx context.Context, db *pgxpool.Pool, qc *Client, body []byte) error {
	if db == nil || qc == nil {
		return nil
	}

	var evt OrderEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return err
	}
	evtType := strings.TrimSpace(evt.Type)
	if evtType == "" {
		// unknown envelope
		return nil
	}
	if evtType != "order.created" && evtType != "order.status.updated" && evtType != "order.completed" {
		return nil
	}

	var (
		orderNumber  string
		status       string
		tableName    string
		customerName string
	)
	query := `
		select o.order_number, o.status, coalesce(t.name, ''), o.customer_name
		from orders o
		left join tables t on t.id = o.table_id
		where o.id = $1
	`
	if err := db.QueryRow(ctx, query, evt.OrderID).Scan(&orderNumber, &status, &tableName, &customerName); err != nil {
		return err
	}

	stage := mapStatusToKitchenStage(status)
	if stage == "" {
		return nil
	}

	job := map[string]any{
		"kind":         "kitchen.order_update",
		"orderNumber":  orderNumber,
		"stage":        stage,
		"tableName":    tableName,
		"customerName": customerName,
		"createdAt":    time.Now().UTC().Format(time.RFC3339),
		"attempt":      1,
	}
	return qc.PublishJSON(ctx, KitchenJobsExchange, KitchenJobsRK, job)
}

func mapStatusToKitchenStage(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PENDING":
		return "QUEUED"
	case "PROCESSING":
		return "COOKING"
	case "COMPLETED":
		return "DONE"
	case "CANCELLED":
		return "CANCELLED"
	default:
		return ""
	}
}
