package reconcile

import (
	"fmt"
	"strings"
	"time"
)

// LegacyOrder mirrors the loosely-typed order rows the previous backend
// returned from its order-history endpoint.
type LegacyOrder struct {
	ID           any          `json:"id"`
	OrderNumber  string       `json:"orderNumber"`
	TableCode    string       `json:"tableCode"`
	TableName    string       `json:"tableName"`
	CustomerName string       `json:"customerName"`
	TotalPrice   any          `json:"totalPrice"`
	Items        []LegacyItem `json:"items"`
	OrderDate    *string      `json:"orderDate"`
	CompletedAt  *string      `json:"completedAt"`
	CreatedAt    *string      `json:"createdAt"`
}

type LegacyItem struct {
	MenuName string `json:"menuName"`
	Quantity int32  `json:"quantity"`
	Price    any    `json:"price"`
}

// HistoryRecord is the strict form a legacy order must reduce to before it is
// allowed into order_history.
type HistoryRecord struct {
	OrderNumber  string
	TableCode    string
	TableName    string
	CustomerName string
	Total        int64
	Items        []HistoryItem
	CompletedAt  time.Time
}

type HistoryItem struct {
	MenuName  string
	Quantity  int32
	UnitPrice int64
}

// Order validates a legacy order into a HistoryRecord. Any field that cannot
// be parsed deterministically fails the whole record with a *RejectError.
func Order(rec LegacyOrder, loc *time.Location) (HistoryRecord, error) {
	out := HistoryRecord{
		OrderNumber:  strings.TrimSpace(rec.OrderNumber),
		TableCode:    strings.TrimSpace(rec.TableCode),
		TableName:    strings.TrimSpace(rec.TableName),
		CustomerName: strings.TrimSpace(rec.CustomerName),
	}
	if out.OrderNumber == "" {
		if rec.ID == nil {
			return HistoryRecord{}, reject("orderNumber", "missing")
		}
		out.OrderNumber = strings.TrimSpace(fmt.Sprint(rec.ID))
		if out.OrderNumber == "" {
			return HistoryRecord{}, reject("orderNumber", "missing")
		}
	}

	total, err := ParseTotal(rec.TotalPrice)
	if err != nil {
		return HistoryRecord{}, err
	}
	out.Total = total

	completedAt, err := ResolveDate(rec.OrderDate, rec.CompletedAt, rec.CreatedAt, loc)
	if err != nil {
		return HistoryRecord{}, err
	}
	out.CompletedAt = completedAt

	for i, item := range rec.Items {
		name := strings.TrimSpace(item.MenuName)
		if name == "" {
			return HistoryRecord{}, reject("items", "item %d has no menu name", i)
		}
		if item.Quantity <= 0 {
			return HistoryRecord{}, reject("items", "item %d has quantity %d", i, item.Quantity)
		}
		price := int64(0)
		if item.Price != nil {
			price, err = ParseTotal(item.Price)
			if err != nil {
				return HistoryRecord{}, err
			}
		}
		out.Items = append(out.Items, HistoryItem{MenuName: name, Quantity: item.Quantity, UnitPrice: price})
	}

	return out, nil
}
