package reconcile

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseTotalNumeric(t *testing.T) {
	cases := []struct {
		name     string
		value    any
		expected int64
	}{
		{name: "int", value: 25000, expected: 25000},
		{name: "int64", value: int64(1250000), expected: 1250000},
		{name: "float", value: float64(25000), expected: 25000},
		{name: "json number", value: json.Number("50000"), expected: 50000},
		{name: "zero", value: 0, expected: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTotal(tc.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Fatalf("expected %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestParseTotalStrings(t *testing.T) {
	cases := []struct {
		name     string
		value    string
		expected int64
	}{
		{name: "currency prefix", value: "Rp 25.000", expected: 25000},
		{name: "prefix with dot", value: "Rp. 25.000", expected: 25000},
		{name: "idr prefix", value: "IDR 125.500", expected: 125500},
		{name: "millions grouping", value: "1.250.000", expected: 1250000},
		{name: "plain digits", value: "25000", expected: 25000},
		{name: "zero fraction comma", value: "25.000,00", expected: 25000},
		{name: "zero fraction dot", value: "25000.00", expected: 25000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTotal(tc.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Fatalf("expected %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestParseTotalRejects(t *testing.T) {
	cases := []struct {
		name  string
		value any
	}{
		{name: "nil", value: nil},
		{name: "empty string", value: ""},
		{name: "letters only", value: "gratis"},
		{name: "negative number", value: -25000},
		{name: "negative string", value: "-25.000"},
		{name: "fractional number", value: 25000.5},
		{name: "fractional string", value: "25.000,50"},
		{name: "inconsistent grouping", value: "2.50.000"},
		{name: "bool", value: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTotal(tc.value)
			if err == nil {
				t.Fatalf("expected reject for %v", tc.value)
			}
			var rejectErr *RejectError
			if !errors.As(err, &rejectErr) {
				t.Fatalf("expected *RejectError, got %T", err)
			}
		})
	}
}

func TestResolveDatePrecedence(t *testing.T) {
	loc := time.UTC
	orderDate := "2024-01-15"
	completedAt := "2024-02-01T09:30:00Z"

	got, err := ResolveDate(&orderDate, &completedAt, nil, loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Day(got) != "2024-01-15" {
		t.Fatalf("expected orderDate to win, got %s", Day(got))
	}

	got, err = ResolveDate(nil, &completedAt, nil, loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Day(got) != "2024-02-01" {
		t.Fatalf("expected completedAt fallback, got %s", Day(got))
	}

	if _, err := ResolveDate(nil, nil, nil, loc); err == nil {
		t.Fatal("expected reject when no date field present")
	}
}

func TestDayInRange(t *testing.T) {
	if !DayInRange("2024-01-15", "2024-01-01", "2024-01-31") {
		t.Fatal("expected 2024-01-15 inside january range")
	}
	if DayInRange("2024-01-15", "2024-02-01", "2024-02-28") {
		t.Fatal("expected 2024-01-15 outside february range")
	}
	if !DayInRange("2024-01-01", "2024-01-01", "2024-01-31") {
		t.Fatal("expected range to be inclusive at start")
	}
	if !DayInRange("2024-01-31", "2024-01-01", "2024-01-31") {
		t.Fatal("expected range to be inclusive at end")
	}
	if !DayInRange("2024-01-15", "", "") {
		t.Fatal("expected open range to match")
	}
}

func TestOrderReconcile(t *testing.T) {
	completedAt := "2024-01-15 18:45:00"
	rec := LegacyOrder{
		OrderNumber:  "MEJ-20240115-0012",
		TableCode:    "T-07",
		TableName:    "Meja 7",
		CustomerName: "Budi",
		TotalPrice:   "Rp 75.000",
		CompletedAt:  &completedAt,
		Items: []LegacyItem{
			{MenuName: "Nasi Goreng", Quantity: 2, Price: "25.000"},
			{MenuName: "Es Teh", Quantity: 1, Price: 25000},
		},
	}

	got, err := Order(rec, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Total != 75000 {
		t.Fatalf("expected total 75000, got %d", got.Total)
	}
	if Day(got.CompletedAt) != "2024-01-15" {
		t.Fatalf("expected day 2024-01-15, got %s", Day(got.CompletedAt))
	}
	if len(got.Items) != 2 || got.Items[0].UnitPrice != 25000 {
		t.Fatalf("unexpected items: %+v", got.Items)
	}

	rec.TotalPrice = "sekitar 25rb"
	if _, err := Order(rec, time.UTC); err == nil {
		t.Fatal("expected reject for unparseable total")
	}
}
