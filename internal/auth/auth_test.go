package auth

import (
	"testing"
	"time"
)

func TestSignAndVerifyAccessToken(t *testing.T) {
	const secret = "test-secret"
	name := "Dina"
	claims := &Claims{
		UserID:    "7",
		SessionID: "sess-1",
		Role:      RoleStaff,
		Username:  "dina",
		Name:      &name,
	}

	token, err := SignAccessToken(claims, secret, time.Hour)
	if err != nil {
		t.Fatalf("SignAccessToken: %v", err)
	}

	parsed, err := VerifyAccessToken(token, secret)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if parsed.UserID != "7" || parsed.SessionID != "sess-1" || parsed.Role != RoleStaff || parsed.Username != "dina" {
		t.Fatalf("unexpected claims: %+v", parsed)
	}
	if parsed.Name == nil || *parsed.Name != "Dina" {
		t.Fatalf("unexpected name claim: %v", parsed.Name)
	}

	if _, err := VerifyAccessToken(token, "wrong-secret"); err == nil {
		t.Fatal("expected verification to fail with the wrong secret")
	}
	if _, err := VerifyAccessToken("", secret); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestVerifyAccessTokenExpired(t *testing.T) {
	const secret = "test-secret"
	token, err := SignAccessToken(&Claims{UserID: "7", Role: RoleStaff}, secret, -time.Minute)
	if err != nil {
		t.Fatalf("SignAccessToken: %v", err)
	}
	if _, err := VerifyAccessToken(token, secret); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestSignAccessTokenRequiresSecret(t *testing.T) {
	if _, err := SignAccessToken(&Claims{UserID: "7"}, "", time.Hour); err == nil {
		t.Fatal("expected error without a secret")
	}
}

func TestParseRole(t *testing.T) {
	cases := []struct {
		in      string
		want    UserRole
		wantErr bool
	}{
		{in: "ADMIN", want: RoleAdmin},
		{in: " staff ", want: RoleStaff},
		{in: "Admin", want: RoleAdmin},
		{in: "manager", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseRole(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseRole(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRole(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ParseBearerToken(tc.header); got != tc.want {
			t.Errorf("ParseBearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestGetPermissionForAPI(t *testing.T) {
	cases := []struct {
		path   string
		method string
		want   StaffPermission
		none   bool
	}{
		{path: "/api/admin/orders", method: "GET", want: PermOrders},
		{path: "/api/admin/orders/41/status", method: "PUT", want: PermOrders},
		{path: "/api/admin/order-history", method: "GET", want: PermOrderHistory},
		{path: "/api/admin/menu/3/image", method: "POST", want: PermMenu},
		{path: "/api/admin/tables/5/regenerate-code", method: "POST", want: PermTables},
		{path: "/api/admin/analytics/sales", method: "GET", want: PermAnalytics},
		{path: "/api/admin/reports/daily-sales", method: "GET", want: PermReports},
		{path: "/api/admin/staff", method: "POST", want: PermStaff},
		{path: "/api/public/menu", method: "GET", none: true},
	}
	for _, tc := range cases {
		got := GetPermissionForAPI(tc.path, tc.method)
		if tc.none {
			if got != nil {
				t.Errorf("GetPermissionForAPI(%q): expected nil, got %q", tc.path, *got)
			}
			continue
		}
		if got == nil {
			t.Errorf("GetPermissionForAPI(%q): expected %q, got nil", tc.path, tc.want)
			continue
		}
		if *got != tc.want {
			t.Errorf("GetPermissionForAPI(%q) = %q, want %q", tc.path, *got, tc.want)
		}
	}
}

func TestOrderHistoryBeatsOrdersPrefix(t *testing.T) {
	// "/api/admin/order-history" shares a prefix with nothing shorter, but a
	// hyphenated path must never fall back to the orders permission.
	got := GetPermissionForAPI("/api/admin/order-history/quarantine", "GET")
	if got == nil || *got != PermOrderHistory {
		t.Fatalf("expected order_history permission, got %v", got)
	}
}

func TestAllStaffPermissionsExcludesStaff(t *testing.T) {
	for _, p := range AllStaffPermissions() {
		if p == string(PermStaff) {
			t.Fatal("staff management must not be grantable as a permission")
		}
	}
	if len(AllStaffPermissions()) != 6 {
		t.Fatalf("unexpected permission count: %v", AllStaffPermissions())
	}
}
