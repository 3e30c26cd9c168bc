package auth

import "strings"

type StaffPermission string

const (
	PermOrders       StaffPermission = "orders"
	PermOrderHistory StaffPermission = "order_history"
	PermMenu         StaffPermission = "menu"
	PermTables       StaffPermission = "tables"
	PermAnalytics    StaffPermission = "analytics"
	PermReports      StaffPermission = "reports"
	PermStaff        StaffPermission = "staff"
)

var apiPermissionMap = map[string]StaffPermission{
	"/api/admin/orders":        PermOrders,
	"/api/admin/order-history": PermOrderHistory,
	"/api/admin/menu":          PermMenu,
	"/api/admin/tables":        PermTables,
	"/api/admin/analytics":     PermAnalytics,
	"/api/admin/reports":       PermReports,
	"/api/admin/staff":         PermStaff,
}

// GetPermissionForAPI maps an admin API path to the staff permission guarding
// it. Longest prefix wins; method-specific keys ("PUT /api/...") beat
// method-agnostic ones at equal length.
func GetPermissionForAPI(path string, method string) *StaffPermission {
	method = strings.ToUpper(strings.TrimSpace(method))

	var bestPath string
	var bestPerm *StaffPermission
	var bestMethodSpecific bool

	for key, perm := range apiPermissionMap {
		keyMethod := ""
		keyPath := key
		methodSpecific := false
		if strings.Contains(key, " ") {
			parts := strings.SplitN(key, " ", 2)
			keyMethod = strings.ToUpper(strings.TrimSpace(parts[0]))
			keyPath = strings.TrimSpace(parts[1])
			methodSpecific = true
			if method == "" || method != keyMethod {
				continue
			}
		}

		if !strings.HasPrefix(path, keyPath) {
			continue
		}

		if bestPerm == nil || len(keyPath) > len(bestPath) || (len(keyPath) == len(bestPath) && methodSpecific && !bestMethodSpecific) {
			bestPath = keyPath
			bestMethodSpecific = methodSpecific
			permCopy := perm
			bestPerm = &permCopy
		}
	}

	return bestPerm
}

func AllStaffPermissions() []string {
	return []string{
		string(PermOrders),
		string(PermOrderHistory),
		string(PermMenu),
		string(PermTables),
		string(PermAnalytics),
		string(PermReports),
	}
}
