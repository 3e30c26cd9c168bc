package queue

import "testing"

func TestMapStatusToKitchenStage(t *testing.T) {
	cases := []struct {
		status   string
		expected string
	}{
		{status: "PENDING", expected: "QUEUED"},
		{status: "pending", expected: "QUEUED"},
		{status: " PROCESSING ", expected: "COOKING"},
		{status: "COMPLETED", expected: "DONE"},
		{status: "CANCELLED", expected: "CANCELLED"},
		{status: "UNKNOWN", expected: ""},
		{status: "", expected: ""},
	}

	for _, tc := range cases {
		if got := mapStatusToKitchenStage(tc.status); got != tc.expected {
			t.Fatalf("status %q: expected %q, got %q", tc.status, tc.expected, got)
		}
	}
}
