package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

func textPtr(v pgtype.Text) *string {
	if v.Valid {
		return &v.String
	}
	return nil
}

func int8Ptr(v pgtype.Int8) *int64 {
	if v.Valid {
		return &v.Int64
	}
	return nil
}

func timePtr(v pgtype.Timestamptz) *time.Time {
	if v.Valid {
		return &v.Time
	}
	return nil
}

func zapError(err error) zap.Field {
	return zap.Error(err)
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func splitQueryList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parsePagination(pageRaw, limitRaw string) (page int, limit int, offset int) {
	page = 1
	limit = 20
	if parsed, err := strconv.Atoi(strings.TrimSpace(pageRaw)); err == nil && parsed > 0 {
		page = parsed
	}
	if parsed, err := strconv.Atoi(strings.TrimSpace(limitRaw)); err == nil && parsed > 0 && parsed <= 100 {
		limit = parsed
	}
	offset = (page - 1) * limit
	return page, limit, offset
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseIDParam(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// isValidDay reports whether value is a YYYY-MM-DD calendar day.
func isValidDay(value string) bool {
	_, err := time.Parse("2006-01-02", value)
	return err == nil
}
