package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"mejaku-order-service/internal/reconcile"
	"mejaku-order-service/internal/utils"
	"mejaku-order-service/pkg/response"
)

type historyEntry struct {
	ID           int64           `json:"id"`
	OrderNumber  string          `json:"orderNumber"`
	TableCode    string          `json:"tableCode"`
	TableName    string          `json:"tableName"`
	CustomerName string          `json:"customerName"`
	Items        json.RawMessage `json:"items"`
	TotalAmount  int64           `json:"totalAmount"`
	CompletedAt  time.Time       `json:"completedAt"`
	Source       string          `json:"source"`
}

// AdminOrderHistoryList filters at day granularity in the restaurant's
// timezone, matching how completion days are shown to staff.
func (h *Handler) AdminOrderHistoryList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	startDate := strings.TrimSpace(query.Get("startDate"))
	endDate := strings.TrimSpace(query.Get("endDate"))
	if (startDate != "" && !isValidDay(startDate)) || (endDate != "" && !isValidDay(endDate)) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Dates must be YYYY-MM-DD")
		return
	}
	page, limit, offset := parsePagination(query.Get("page"), query.Get("limit"))

	rows, err := h.DB.Query(ctx, `
		select id, order_number, table_code, table_name, customer_name, items, total_amount, completed_at, source
		from order_history
		order by completed_at desc
	`)
	if err != nil {
		h.Logger.Error("order history fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch order history")
		return
	}
	defer rows.Close()

	loc := utils.LocationOrUTC(h.Config.RestaurantTimezone)
	entries := make([]historyEntry, 0)
	var totalRevenue int64
	for rows.Next() {
		var entry historyEntry
		if err := rows.Scan(&entry.ID, &entry.OrderNumber, &entry.TableCode, &entry.TableName, &entry.CustomerName,
			&entry.Items, &entry.TotalAmount, &entry.CompletedAt, &entry.Source); err != nil {
			h.Logger.Error("order history scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch order history")
			return
		}
		day := reconcile.Day(entry.CompletedAt.In(loc))
		if !reconcile.DayInRange(day, startDate, endDate) {
			continue
		}
		totalRevenue += entry.TotalAmount
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("order history rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch order history")
		return
	}

	total := len(entries)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	response.Success(w, map[string]any{
		"history":      entries[offset:end],
		"totalRevenue": totalRevenue,
		"pagination": map[string]any{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

type historyImportResult struct {
	Imported    int                   `json:"imported"`
	Skipped     int                   `json:"skipped"`
	Quarantined int                   `json:"quarantined"`
	Rejects     []historyImportReject `json:"rejects"`
}

type historyImportReject struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// AdminOrderHistoryImport ingests legacy order rows exported from the old
// backend. Each record must reduce to a strict HistoryRecord; anything that
// does not is stored in quarantine with its reject reason, never guessed at.
func (h *Handler) AdminOrderHistoryImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var records []reconcile.LegacyOrder
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body must be a JSON array of legacy orders")
		return
	}
	if len(records) == 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "No records to import")
		return
	}
	if len(records) > 1000 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Import batches are limited to 1000 records")
		return
	}

	loc := utils.LocationOrUTC(h.Config.RestaurantTimezone)
	result := historyImportResult{Rejects: []historyImportReject{}}

	for i, record := range records {
		parsed, err := reconcile.Order(record, loc)
		if err != nil {
			raw, marshalErr := json.Marshal(record)
			if marshalErr != nil {
				raw = []byte("{}")
			}
			if _, qErr := h.DB.Exec(ctx, `
				insert into order_history_quarantine (payload, reason) values ($1, $2)
			`, raw, err.Error()); qErr != nil {
				h.Logger.Error("quarantine insert failed", zapError(qErr))
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Import failed")
				return
			}
			result.Quarantined++
			result.Rejects = append(result.Rejects, historyImportReject{Index: i, Reason: err.Error()})
			continue
		}

		itemsJSON, err := json.Marshal(parsed.Items)
		if err != nil {
			h.Logger.Error("history items marshal failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Import failed")
			return
		}

		tag, err := h.DB.Exec(ctx, `
			insert into order_history (order_number, table_code, table_name, customer_name, items, total_amount, completed_at, source)
			values ($1, $2, $3, $4, $5, $6, $7, 'import')
			on conflict (order_number) do nothing
		`, parsed.OrderNumber, parsed.TableCode, parsed.TableName, parsed.CustomerName, itemsJSON, parsed.Total, parsed.CompletedAt)
		if err != nil {
			h.Logger.Error("history import insert failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Import failed")
			return
		}
		if tag.RowsAffected() == 0 {
			result.Skipped++
		} else {
			result.Imported++
		}
	}

	response.Success(w, result)
}

type quarantineEntry struct {
	ID        int64           `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	Reason    string          `json:"reason"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (h *Handler) AdminOrderHistoryQuarantine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.DB.Query(ctx, `
		select id, payload, reason, created_at
		from order_history_quarantine
		order by created_at desc
		limit 500
	`)
	if err != nil {
		h.Logger.Error("quarantine fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch quarantine")
		return
	}
	defer rows.Close()

	entries := make([]quarantineEntry, 0)
	for rows.Next() {
		var entry quarantineEntry
		if err := rows.Scan(&entry.ID, &entry.Payload, &entry.Reason, &entry.CreatedAt); err != nil {
			h.Logger.Error("quarantine scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch quarantine")
			return
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("quarantine rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch quarantine")
		return
	}

	response.Success(w, map[string]any{"quarantine": entries})
}
