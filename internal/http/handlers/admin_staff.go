package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mejaku-order-service/internal/auth"
	"mejaku-order-service/internal/middleware"
	"mejaku-order-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

type StaffRecord struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	IsActive    bool     `json:"isActive"`
}

type staffWriteRequest struct {
	Username    string   `json:"username"`
	Name        string   `json:"name"`
	Password    string   `json:"password"`
	Permissions []string `json:"permissions"`
	IsActive    *bool    `json:"isActive"`
}

func normalizePermissions(raw []string) ([]string, error) {
	all := auth.AllStaffPermissions()
	valid := make(map[string]bool, len(all))
	for _, p := range all {
		valid[p] = true
	}
	seen := make(map[string]bool)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		if !valid[p] {
			return nil, fmt.Errorf("unknown permission: %s", p)
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

func (h *Handler) AdminStaffList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.DB.Query(ctx, `
		select id, username, name, role, permissions, is_active
		from users
		order by username
	`)
	if err != nil {
		h.Logger.Error("staff list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch staff")
		return
	}
	defer rows.Close()

	staff := make([]StaffRecord, 0)
	for rows.Next() {
		var rec StaffRecord
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.Name, &rec.Role, &rec.Permissions, &rec.IsActive); err != nil {
			h.Logger.Error("staff scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch staff")
			return
		}
		if rec.Permissions == nil {
			rec.Permissions = []string{}
		}
		staff = append(staff, rec)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("staff rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch staff")
		return
	}

	response.Success(w, map[string]any{"staff": staff, "total": len(staff)})
}

func (h *Handler) AdminStaffCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body staffWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	username := strings.ToLower(strings.TrimSpace(body.Username))
	if username == "" || strings.TrimSpace(body.Name) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Username and name are required")
		return
	}
	if len(body.Password) < 8 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Password must be at least 8 characters")
		return
	}
	permissions, err := normalizePermissions(body.Permissions)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), 10)
	if err != nil {
		h.Logger.Error("password hash failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create staff account")
		return
	}

	var rec StaffRecord
	err = h.DB.QueryRow(ctx, `
		insert into users (username, name, password_hash, role, permissions, is_active)
		values ($1, $2, $3, $4, $5, true)
		returning id, username, name, role, permissions, is_active
	`, username, strings.TrimSpace(body.Name), string(hash), string(auth.RoleStaff), permissions).
		Scan(&rec.ID, &rec.Username, &rec.Name, &rec.Role, &rec.Permissions, &rec.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			response.Error(w, http.StatusConflict, "USERNAME_TAKEN", "Username is already in use")
			return
		}
		h.Logger.Error("staff insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create staff account")
		return
	}
	if rec.Permissions == nil {
		rec.Permissions = []string{}
	}

	response.Created(w, rec)
}

func (h *Handler) AdminStaffUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	staffID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid staff id")
		return
	}

	var body staffWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	updates := []string{"updated_at = now()"}
	args := []any{}
	argPos := 1
	if strings.TrimSpace(body.Name) != "" {
		updates = append(updates, fmt.Sprintf("name = $%d", argPos))
		args = append(args, strings.TrimSpace(body.Name))
		argPos++
	}
	if body.Password != "" {
		if len(body.Password) < 8 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Password must be at least 8 characters")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), 10)
		if err != nil {
			h.Logger.Error("password hash failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update staff account")
			return
		}
		updates = append(updates, fmt.Sprintf("password_hash = $%d", argPos))
		args = append(args, string(hash))
		argPos++
	}
	if body.Permissions != nil {
		permissions, err := normalizePermissions(body.Permissions)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		updates = append(updates, fmt.Sprintf("permissions = $%d", argPos))
		args = append(args, permissions)
		argPos++
	}
	if body.IsActive != nil {
		if actor, ok := middleware.GetAuthContext(ctx); ok && staffID == actor.UserID && !*body.IsActive {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cannot deactivate your own account")
			return
		}
		updates = append(updates, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *body.IsActive)
		argPos++
	}
	args = append(args, staffID)

	var rec StaffRecord
	err := h.DB.QueryRow(ctx, fmt.Sprintf(`
		update users set %s where id = $%d
		returning id, username, name, role, permissions, is_active
	`, strings.Join(updates, ", "), argPos), args...).
		Scan(&rec.ID, &rec.Username, &rec.Name, &rec.Role, &rec.Permissions, &rec.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "STAFF_NOT_FOUND", "Staff account not found")
		return
	}
	if err != nil {
		h.Logger.Error("staff update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update staff account")
		return
	}
	if rec.Permissions == nil {
		rec.Permissions = []string{}
	}

	// Deactivation and permission changes should take effect immediately,
	// not at token expiry.
	if (body.IsActive != nil && !*body.IsActive) || body.Permissions != nil {
		if _, err := h.DB.Exec(ctx, `update user_sessions set revoked_at = now() where user_id = $1 and revoked_at is null`, staffID); err != nil {
			h.Logger.Error("session revoke failed", zapError(err))
		}
	}

	response.Success(w, rec)
}

func (h *Handler) AdminStaffDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	staffID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid staff id")
		return
	}
	if actor, ok := middleware.GetAuthContext(ctx); ok && staffID == actor.UserID {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cannot delete your own account")
		return
	}

	var role string
	err := h.DB.QueryRow(ctx, `select role from users where id = $1`, staffID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "STAFF_NOT_FOUND", "Staff account not found")
		return
	}
	if err != nil {
		h.Logger.Error("staff lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete staff account")
		return
	}
	if role == string(auth.RoleAdmin) {
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "Admin accounts cannot be deleted")
		return
	}

	if _, err := h.DB.Exec(ctx, `delete from users where id = $1`, staffID); err != nil {
		h.Logger.Error("staff delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete staff account")
		return
	}

	response.Success(w, map[string]any{"deleted": true})
}
