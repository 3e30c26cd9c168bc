package utils

import "testing"

func TestOrderTrackingTokenRoundTrip(t *testing.T) {
	secret := "test-secret"
	token := CreateOrderTrackingToken(secret, "T-07", "MEJ-20240115-0012")

	if !VerifyOrderTrackingToken(secret, token, "T-07", "MEJ-20240115-0012") {
		t.Fatal("expected token to verify")
	}
	if VerifyOrderTrackingToken(secret, token, "T-08", "MEJ-20240115-0012") {
		t.Fatal("expected mismatched table to fail")
	}
	if VerifyOrderTrackingToken(secret, token, "T-07", "MEJ-20240115-0013") {
		t.Fatal("expected mismatched order number to fail")
	}
	if VerifyOrderTrackingToken("other-secret", token, "T-07", "MEJ-20240115-0012") {
		t.Fatal("expected wrong secret to fail")
	}
	if VerifyOrderTrackingToken(secret, "not-a-token", "T-07", "MEJ-20240115-0012") {
		t.Fatal("expected malformed token to fail")
	}
}
