package handlers

import (
	"crypto/sha512"
	"encoding/hex"
	"testing"
	"time"
)

func TestCanTransitionOrderStatus(t *testing.T) {
	cases := []struct {
		from, to string
		allowed  bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusCompleted, false},
		{OrderStatusProcessing, OrderStatusCompleted, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusProcessing, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{"UNKNOWN", OrderStatusCancelled, false},
	}
	for _, tc := range cases {
		if got := canTransitionOrderStatus(tc.from, tc.to); got != tc.allowed {
			t.Errorf("canTransitionOrderStatus(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestParsePagination(t *testing.T) {
	cases := []struct {
		name                string
		pageRaw, limitRaw   string
		page, limit, offset int
	}{
		{name: "defaults", pageRaw: "", limitRaw: "", page: 1, limit: 20, offset: 0},
		{name: "explicit", pageRaw: "3", limitRaw: "50", page: 3, limit: 50, offset: 100},
		{name: "limit capped", pageRaw: "1", limitRaw: "500", page: 1, limit: 20, offset: 0},
		{name: "garbage ignored", pageRaw: "abc", limitRaw: "-1", page: 1, limit: 20, offset: 0},
		{name: "zero page ignored", pageRaw: "0", limitRaw: "10", page: 1, limit: 10, offset: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, limit, offset := parsePagination(tc.pageRaw, tc.limitRaw)
			if page != tc.page || limit != tc.limit || offset != tc.offset {
				t.Fatalf("got (%d, %d, %d), want (%d, %d, %d)", page, limit, offset, tc.page, tc.limit, tc.offset)
			}
		})
	}
}

func TestIsValidDay(t *testing.T) {
	valid := []string{"2026-08-31", "2024-02-29", "2026-01-01"}
	for _, day := range valid {
		if !isValidDay(day) {
			t.Errorf("isValidDay(%q) = false, want true", day)
		}
	}
	invalid := []string{"", "2026-13-01", "2026-02-30", "31-08-2026", "2026-8-1", "yesterday"}
	for _, day := range invalid {
		if isValidDay(day) {
			t.Errorf("isValidDay(%q) = true, want false", day)
		}
	}
}

func TestResolveSalesDateRange(t *testing.T) {
	loc := time.UTC

	start, end, err := resolveSalesDateRange("custom", "2026-08-01", "2026-08-15", loc)
	if err != nil {
		t.Fatalf("custom range: %v", err)
	}
	if start.Format("2006-01-02") != "2026-08-01" {
		t.Fatalf("unexpected start %v", start)
	}
	// The end boundary covers the whole final day.
	if end.Format("2006-01-02") != "2026-08-15" || end.Hour() != 23 {
		t.Fatalf("unexpected end %v", end)
	}

	if _, _, err := resolveSalesDateRange("custom", "2026-08-15", "2026-08-01", loc); err == nil {
		t.Fatal("expected error for inverted custom range")
	}
	if _, _, err := resolveSalesDateRange("custom", "", "", loc); err == nil {
		t.Fatal("expected error for custom period without dates")
	}
	if _, _, err := resolveSalesDateRange("fortnight", "", "", loc); err == nil {
		t.Fatal("expected error for unknown period")
	}

	for _, period := range []string{"today", "week", "month", "year"} {
		start, end, err := resolveSalesDateRange(period, "", "", loc)
		if err != nil {
			t.Fatalf("period %q: %v", period, err)
		}
		if !start.Before(end) {
			t.Fatalf("period %q: start %v not before end %v", period, start, end)
		}
	}
}

func TestNormalizePermissions(t *testing.T) {
	got, err := normalizePermissions([]string{" Orders ", "menu", "orders", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "orders" || got[1] != "menu" {
		t.Fatalf("unexpected permissions: %v", got)
	}

	if _, err := normalizePermissions([]string{"orders", "sudo"}); err == nil {
		t.Fatal("expected error for unknown permission")
	}
	// Staff management is admin-only and never grantable.
	if _, err := normalizePermissions([]string{"staff"}); err == nil {
		t.Fatal("expected error for staff permission")
	}
}

func TestVerifyMidtransSignature(t *testing.T) {
	const (
		orderID     = "MEJ-20260831-0007"
		statusCode  = "200"
		grossAmount = "56000.00"
		serverKey   = "SB-Mid-server-test"
	)
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	signature := hex.EncodeToString(sum[:])

	if !verifyMidtransSignature(orderID, statusCode, grossAmount, signature, serverKey) {
		t.Fatal("expected valid signature to verify")
	}
	if verifyMidtransSignature(orderID, statusCode, grossAmount, signature, "other-key") {
		t.Fatal("signature must not verify under a different key")
	}
	if verifyMidtransSignature(orderID, "201", grossAmount, signature, serverKey) {
		t.Fatal("signature must not verify for altered fields")
	}
}

func TestGroupThousands(t *testing.T) {
	cases := []struct {
		amount   int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.000"},
		{25000, "25.000"},
		{1250000, "1.250.000"},
		{-56000, "-56.000"},
	}
	for _, tc := range cases {
		if got := groupThousands(tc.amount); got != tc.expected {
			t.Errorf("groupThousands(%d) = %q, want %q", tc.amount, got, tc.expected)
		}
	}
	if got := formatReportAmount(25000, "IDR"); got != "Rp25.000" {
		t.Errorf("formatReportAmount IDR = %q", got)
	}
	if got := formatReportAmount(25000, "USD"); got != "USD 25000" {
		t.Errorf("formatReportAmount USD = %q", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"daily sales 2026-08-31", "daily_sales_2026-08-31"},
		{"..//etc/passwd", "etc_passwd"},
		{"report", "report"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.out {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestNewTableCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := newTableCode()
		if err != nil {
			t.Fatalf("newTableCode: %v", err)
		}
		if len(code) != 10 || code[:2] != "T-" {
			t.Fatalf("unexpected code %q", code)
		}
		for _, r := range code[2:] {
			if r == '0' || r == 'O' || r == '1' || r == 'I' {
				t.Fatalf("code %q contains an ambiguous character", code)
			}
		}
		if seen[code] {
			t.Fatalf("duplicate code %q in 50 draws", code)
		}
		seen[code] = true
	}
}
