package handlers

import "time"

const (
	OrderStatusPending    = "PENDING"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"

	TableStatusAvailable = "AVAILABLE"
	TableStatusOccupied  = "OCCUPIED"
	TableStatusReserved  = "RESERVED"
)

type OrderItemOption struct {
	GroupName  string `json:"groupName"`
	OptionName string `json:"optionName"`
	ExtraPrice int64  `json:"extraPrice"`
}

type OrderItemPayload struct {
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

type OrderDetail struct {
	ID            int64              `json:"id"`
	OrderNumber   string             `json:"orderNumber"`
	DailySequence int                `json:"dailySequence"`
	TableID       int64              `json:"tableId"`
	TableCode     string             `json:"tableCode"`
	TableName     string             `json:"tableName"`
	CustomerName  string             `json:"customerName"`
	Status        string             `json:"status"`
	IsProcessed   bool               `json:"isProcessed"`
	Subtotal      int64              `json:"subtotal"`
	TotalAmount   int64              `json:"totalAmount"`
	Notes         *string            `json:"notes"`
	Items         []OrderItemPayload `json:"items"`
	PlacedAt      time.Time          `json:"placedAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	CompletedAt   *time.Time         `json:"completedAt"`
	CancelledAt   *time.Time         `json:"cancelledAt"`
}

func isValidOrderStatus(status string) bool {
	switch status {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

func isValidTableStatus(status string) bool {
	switch status {
	case TableStatusAvailable, TableStatusOccupied, TableStatusReserved:
		return true
	}
	return false
}

// Terminal statuses are frozen; everything else moves forward or cancels.
var orderStatusTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled},
}

func canTransitionOrderStatus(from, to string) bool {
	for _, allowed := range orderStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
