package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"mejaku-order-service/internal/utils"
	"mejaku-order-service/pkg/response"
)

type salesDayBucket struct {
	Day     string `json:"day"`
	Orders  int    `json:"orders"`
	Revenue int64  `json:"revenue"`
}

type salesTopItem struct {
	MenuName string `json:"menuName"`
	Quantity int64  `json:"quantity"`
	Revenue  int64  `json:"revenue"`
}

type salesAnalyticsPayload struct {
	Period            string           `json:"period"`
	StartDate         string           `json:"startDate"`
	EndDate           string           `json:"endDate"`
	TotalRevenue      int64            `json:"totalRevenue"`
	CompletedOrders   int              `json:"completedOrders"`
	CancelledOrders   int              `json:"cancelledOrders"`
	AverageOrderValue float64          `json:"averageOrderValue"`
	Daily             []salesDayBucket `json:"daily"`
	TopItems          []salesTopItem   `json:"topItems"`
}

func (h *Handler) AdminSalesAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	period := defaultString(query.Get("period"), "month")
	customStart := strings.TrimSpace(query.Get("startDate"))
	customEnd := strings.TrimSpace(query.Get("endDate"))

	loc := utils.LocationOrUTC(h.Config.RestaurantTimezone)
	startDate, endDate, err := resolveSalesDateRange(period, customStart, customEnd, loc)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	cacheBucket := time.Now().Truncate(5 * time.Minute)
	cacheKey := analyticsCacheKey(
		"sales_analytics",
		period,
		startDate.Format(time.RFC3339),
		endDate.Format(time.RFC3339),
		cacheBucket.Format(time.RFC3339),
	)
	if cached, ok := getAnalyticsCache(cacheKey); ok {
		response.JSON(w, http.StatusOK, cached)
		return
	}

	payload := salesAnalyticsPayload{
		Period:    period,
		StartDate: startDate.In(loc).Format("2006-01-02"),
		EndDate:   endDate.In(loc).Format("2006-01-02"),
		Daily:     []salesDayBucket{},
		TopItems:  []salesTopItem{},
	}

	rows, err := h.DB.Query(ctx, `
		select o.status, o.total_amount, o.placed_at
		from orders o
		where o.placed_at >= $1 and o.placed_at <= $2 and o.status in ($3, $4)
	`, startDate, endDate, OrderStatusCompleted, OrderStatusCancelled)
	if err != nil {
		h.Logger.Error("sales analytics orders fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch sales analytics")
		return
	}
	defer rows.Close()

	buckets := make(map[string]*salesDayBucket)
	for rows.Next() {
		var status string
		var total int64
		var placedAt time.Time
		if err := rows.Scan(&status, &total, &placedAt); err != nil {
			h.Logger.Error("sales analytics scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch sales analytics")
			return
		}
		if status == OrderStatusCancelled {
			payload.CancelledOrders++
			continue
		}
		payload.CompletedOrders++
		payload.TotalRevenue += total

		day := placedAt.In(loc).Format("2006-01-02")
		bucket, ok := buckets[day]
		if !ok {
			bucket = &salesDayBucket{Day: day}
			buckets[day] = bucket
		}
		bucket.Orders++
		bucket.Revenue += total
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("sales analytics rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch sales analytics")
		return
	}

	if payload.CompletedOrders > 0 {
		payload.AverageOrderValue = float64(payload.TotalRevenue) / float64(payload.CompletedOrders)
	}
	for _, bucket := range buckets {
		payload.Daily = append(payload.Daily, *bucket)
	}
	sort.Slice(payload.Daily, func(i, j int) bool { return payload.Daily[i].Day < payload.Daily[j].Day })

	itemRows, err := h.DB.Query(ctx, `
		select i.menu_name, sum(i.quantity)::bigint, sum(i.line_total)::bigint
		from order_items i
		join orders o on o.id = i.order_id
		where o.placed_at >= $1 and o.placed_at <= $2 and o.status = $3
		group by i.menu_name
		order by sum(i.line_total) desc
		limit 10
	`, startDate, endDate, OrderStatusCompleted)
	if err != nil {
		h.Logger.Error("sales analytics items fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch sales analytics")
		return
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item salesTopItem
		if err := itemRows.Scan(&item.MenuName, &item.Quantity, &item.Revenue); err != nil {
			h.Logger.Error("sales analytics items scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch sales analytics")
			return
		}
		payload.TopItems = append(payload.TopItems, item)
	}
	if err := itemRows.Err(); err != nil {
		h.Logger.Error("sales analytics items rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch sales analytics")
		return
	}

	envelope := map[string]any{"success": true, "data": payload}
	setAnalyticsCache(cacheKey, envelope, 5*time.Minute)
	response.JSON(w, http.StatusOK, envelope)
}

func resolveSalesDateRange(period, customStart, customEnd string, loc *time.Location) (time.Time, time.Time, error) {
	now := time.Now().In(loc)
	var startDate time.Time
	endDate := now

	switch period {
	case "today":
		startDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	case "week":
		startDate = now.AddDate(0, 0, -7)
	case "month":
		startDate = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	case "year":
		startDate = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, loc)
	case "custom":
		if customStart == "" || customEnd == "" {
			return time.Time{}, time.Time{}, errors.New("custom period requires startDate and endDate")
		}
		start, err := time.ParseInLocation("2006-01-02", customStart, loc)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("startDate must be YYYY-MM-DD")
		}
		end, err := time.ParseInLocation("2006-01-02", customEnd, loc)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("endDate must be YYYY-MM-DD")
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, errors.New("endDate must not be before startDate")
		}
		return start, end.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period %q", period)
	}

	return startDate, endDate, nil
}
