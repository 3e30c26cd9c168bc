// Package reconcile parses order records produced by the legacy ordering
// backend, whose totals arrive either as numbers or as Indonesian-formatted
// strings ("Rp 25.000") and whose completion date may live under any of
// several fields. Records that cannot be parsed deterministically are
// rejected; the package never substitutes estimated values.
package reconcile

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RejectError marks a legacy record that failed strict validation. Callers
// quarantine the raw payload together with Reason instead of dropping it.
type RejectError struct {
	Field  string
	Reason string
}

func (e *RejectError) Error() string {
	return "reconcile: " + e.Field + ": " + e.Reason
}

func reject(field, format string, args ...any) error {
	return &RejectError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ParseTotal normalizes a legacy totalPrice value to integer Rupiah.
// Numeric inputs pass through unchanged as long as they are non-negative and
// integral. String inputs may carry a currency prefix and Indonesian digit
// grouping: a dot followed by a group of exactly three digits is a thousands
// separator, so "Rp 25.000" is 25000 and "1.250.000" is 1250000. A comma (or
// a short trailing dot group) starts a decimal fraction, which must be zero.
func ParseTotal(value any) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, reject("totalPrice", "missing")
	case int:
		return checkedInt(int64(v))
	case int32:
		return checkedInt(int64(v))
	case int64:
		return checkedInt(v)
	case float64:
		return checkedFloat(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return checkedInt(i)
		}
		f, err := v.Float64()
		if err != nil {
			return 0, reject("totalPrice", "not a number: %q", v.String())
		}
		return checkedFloat(f)
	case string:
		return parseAmountString(v)
	}
	return 0, reject("totalPrice", "unsupported type %T", value)
}

func checkedInt(v int64) (int64, error) {
	if v < 0 {
		return 0, reject("totalPrice", "negative amount %d", v)
	}
	return v, nil
}

func checkedFloat(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, reject("totalPrice", "not a finite number")
	}
	if v < 0 {
		return 0, reject("totalPrice", "negative amount %v", v)
	}
	rounded := math.Round(v)
	if math.Abs(v-rounded) > 1e-6 {
		return 0, reject("totalPrice", "fractional rupiah amount %v", v)
	}
	return int64(rounded), nil
}

func parseAmountString(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, reject("totalPrice", "empty string")
	}
	if strings.Contains(s, "-") {
		return 0, reject("totalPrice", "negative amount %q", raw)
	}

	lower := strings.ToLower(s)
	for _, prefix := range []string{"rp.", "rp", "idr"} {
		if strings.HasPrefix(lower, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}

	var cleaned strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			cleaned.WriteRune(r)
		case r == ' ':
			// ignore
		default:
			return 0, reject("totalPrice", "unexpected character %q in %q", r, raw)
		}
	}
	body := cleaned.String()
	if !strings.ContainsAny(body, "0123456789") {
		return 0, reject("totalPrice", "no digits in %q", raw)
	}

	// Split off a comma decimal part ("25.000,00" style).
	intPart := body
	if i := strings.LastIndex(body, ","); i >= 0 {
		frac := body[i+1:]
		intPart = body[:i]
		if strings.ContainsAny(intPart, ",") {
			return 0, reject("totalPrice", "multiple decimal commas in %q", raw)
		}
		if frac == "" || strings.Trim(frac, "0") != "" {
			return 0, reject("totalPrice", "fractional rupiah amount in %q", raw)
		}
	}

	groups := strings.Split(intPart, ".")
	digits := groups[0]
	if len(groups) > 1 {
		last := groups[len(groups)-1]
		if len(groups) == 2 && len(last) != 3 {
			// Single dot not followed by a three-digit group: a decimal
			// point. Accept only a zero fraction.
			if last == "" || strings.Trim(last, "0") != "" {
				return 0, reject("totalPrice", "fractional rupiah amount in %q", raw)
			}
		} else {
			for _, group := range groups[1:] {
				if len(group) != 3 {
					return 0, reject("totalPrice", "inconsistent digit grouping in %q", raw)
				}
				digits += group
			}
		}
	}
	if digits == "" {
		return 0, reject("totalPrice", "no digits in %q", raw)
	}

	parsed, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, reject("totalPrice", "amount out of range in %q", raw)
	}
	return parsed, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a legacy timestamp into the location loc. Naive layouts
// (no zone offset) are interpreted in loc directly, matching how the legacy
// client treated them as wall-clock local time.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, reject("date", "empty string")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, reject("date", "unrecognized format %q", value)
}

// ResolveDate picks the first present date field in the legacy precedence
// order: orderDate, completedAt, createdAt.
func ResolveDate(orderDate, completedAt, createdAt *string, loc *time.Location) (time.Time, error) {
	for _, candidate := range []*string{orderDate, completedAt, createdAt} {
		if candidate == nil || strings.TrimSpace(*candidate) == "" {
			continue
		}
		return ParseDate(*candidate, loc)
	}
	return time.Time{}, reject("date", "no date field present")
}

// Day renders t as a calendar day for day-granularity comparisons.
func Day(t time.Time) string {
	return t.Format("2006-01-02")
}

// DayInRange reports whether the calendar day lies inside [start, end],
// inclusive on both ends. Days are compared as "2006-01-02" strings; an empty
// boundary is open.
func DayInRange(day, start, end string) bool {
	if day == "" {
		return false
	}
	if start != "" && day < start {
		return false
	}
	if end != "" && day > end {
		return false
	}
	return true
}
