package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mejaku-order-service/internal/utils"
	"mejaku-order-service/pkg/response"

	"github.com/phpdave11/gofpdf"
)

type dailyReportLine struct {
	OrderNumber  string
	CustomerName string
	TableName    string
	Status       string
	Total        int64
	PlacedAt     time.Time
}

type dailyReportItem struct {
	Name     string
	Quantity int64
	Revenue  int64
}

type dailyReportData struct {
	RestaurantName string
	Date           string
	GeneratedAt    string
	Completed      int
	Cancelled      int
	Revenue        int64
	Lines          []dailyReportLine
	TopItems       []dailyReportItem
}

// AdminDailySalesReportPDF renders the day's sales as a printable PDF. The
// date query param is YYYY-MM-DD in the restaurant timezone and defaults to
// today.
func (h *Handler) AdminDailySalesReportPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loc := utils.LocationOrUTC(h.Config.RestaurantTimezone)

	day := strings.TrimSpace(r.URL.Query().Get("date"))
	if day == "" {
		day = time.Now().In(loc).Format("2006-01-02")
	}
	if !isValidDay(day) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD")
		return
	}
	dayStart, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD")
		return
	}
	dayEnd := dayStart.AddDate(0, 0, 1)

	report := dailyReportData{
		RestaurantName: h.Config.RestaurantName,
		Date:           day,
		GeneratedAt:    time.Now().In(loc).Format("2006-01-02 15:04"),
	}

	rows, err := h.DB.Query(ctx, `
		select o.order_number, o.customer_name, t.name, o.status, o.total_amount, o.placed_at
		from orders o
		join tables t on t.id = o.table_id
		where o.placed_at >= $1 and o.placed_at < $2 and o.status in ($3, $4)
		order by o.placed_at
	`, dayStart, dayEnd, OrderStatusCompleted, OrderStatusCancelled)
	if err != nil {
		h.Logger.Error("daily report order query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var line dailyReportLine
		if err := rows.Scan(&line.OrderNumber, &line.CustomerName, &line.TableName, &line.Status, &line.Total, &line.PlacedAt); err != nil {
			h.Logger.Error("daily report scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
			return
		}
		line.PlacedAt = line.PlacedAt.In(loc)
		report.Lines = append(report.Lines, line)
		switch line.Status {
		case OrderStatusCompleted:
			report.Completed++
			report.Revenue += line.Total
		case OrderStatusCancelled:
			report.Cancelled++
		}
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("daily report rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
		return
	}

	itemRows, err := h.DB.Query(ctx, `
		select oi.menu_name, sum(oi.quantity), sum(oi.line_total)
		from order_items oi
		join orders o on o.id = oi.order_id
		where o.placed_at >= $1 and o.placed_at < $2 and o.status = $3
		group by oi.menu_name
		order by sum(oi.line_total) desc
		limit 10
	`, dayStart, dayEnd, OrderStatusCompleted)
	if err != nil {
		h.Logger.Error("daily report item query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
		return
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item dailyReportItem
		if err := itemRows.Scan(&item.Name, &item.Quantity, &item.Revenue); err != nil {
			h.Logger.Error("daily report item scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
			return
		}
		report.TopItems = append(report.TopItems, item)
	}
	if err := itemRows.Err(); err != nil {
		h.Logger.Error("daily report item rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
		return
	}

	buf, err := renderDailyReportPDF(report, h.Config.Currency)
	if err != nil {
		h.Logger.Error("daily report render failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render report")
		return
	}

	filename := fmt.Sprintf("sales_%s.pdf", sanitizeFilename(day))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func renderDailyReportPDF(data dailyReportData, currency string) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, data.RestaurantName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Daily Sales %s", data.Date), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Generated: %s", data.GeneratedAt), "", 1, "C", false, 0, "")

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Summary", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Completed orders: %d", data.Completed), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Cancelled orders: %d", data.Cancelled), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Revenue: %s", formatReportAmount(data.Revenue, currency)), "", 1, "L", false, 0, "")

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Orders", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if len(data.Lines) == 0 {
		pdf.CellFormat(0, 5, "No orders on this date", "", 1, "L", false, 0, "")
	}
	for _, line := range data.Lines {
		pdf.CellFormat(0, 5, fmt.Sprintf("%s  %s  %s", line.PlacedAt.Format("15:04"), line.OrderNumber, line.Status), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 4, fmt.Sprintf("  %s at %s: %s", line.CustomerName, line.TableName, formatReportAmount(line.Total, currency)), "", 1, "L", false, 0, "")
	}

	if len(data.TopItems) > 0 {
		pdf.Ln(3)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, "Top Items", "B", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, item := range data.TopItems {
			pdf.CellFormat(0, 5, fmt.Sprintf("%dx %s (%s)", item.Quantity, item.Name, formatReportAmount(item.Revenue, currency)), "", 1, "L", false, 0, "")
		}
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func formatReportAmount(amount int64, currency string) string {
	if strings.EqualFold(currency, "IDR") {
		return "Rp" + groupThousands(amount)
	}
	return fmt.Sprintf("%s %d", currency, amount)
}

func groupThousands(amount int64) string {
	digits := strconv.FormatInt(amount, 10)
	negative := strings.HasPrefix(digits, "-")
	if negative {
		digits = digits[1:]
	}
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	if negative {
		return "-" + b.String()
	}
	return b.String()
}

func sanitizeFilename(value string) string {
	re := regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
	clean := re.ReplaceAllString(value, "_")
	return strings.Trim(clean, "_")
}
