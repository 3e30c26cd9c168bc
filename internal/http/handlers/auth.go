package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"mejaku-order-service/internal/auth"
	"mejaku-order-service/internal/middleware"
	"mejaku-order-service/pkg/response"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username    string   `json:"username"`
	Name        string   `json:"name"`
	Password    string   `json:"password"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type userPayload struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      userPayload `json:"user"`
}

func (h *Handler) AuthLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	username := strings.TrimSpace(strings.ToLower(body.Username))
	if username == "" || body.Password == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Username and password are required")
		return
	}

	var (
		user         userPayload
		passwordHash string
		isActive     bool
	)
	query := `
		select id, username, name, role, permissions, password_hash, is_active
		from users
		where lower(username) = $1
	`
	err := h.DB.QueryRow(ctx, query, username).Scan(&user.ID, &user.Username, &user.Name, &user.Role, &user.Permissions, &passwordHash, &isActive)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
		return
	}
	if err != nil {
		h.Logger.Error("login user lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")
		return
	}
	if !isActive {
		response.Error(w, http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(body.Password)) != nil {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
		return
	}

	sessionID := uuid.NewString()
	ttl := time.Duration(h.Config.JWTExpirySeconds) * time.Second
	expiresAt := time.Now().Add(ttl)

	if _, err := h.DB.Exec(ctx, `insert into user_sessions (id, user_id, expires_at) values ($1, $2, $3)`, sessionID, user.ID, expiresAt); err != nil {
		h.Logger.Error("session create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")
		return
	}

	role, err := auth.ParseRole(user.Role)
	if err != nil {
		h.Logger.Error("login role parse failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")
		return
	}

	name := user.Name
	token, err := auth.SignAccessToken(&auth.Claims{
		UserID:    idString(user.ID),
		SessionID: sessionID,
		Role:      role,
		Username:  user.Username,
		Name:      &name,
	}, h.Config.JWTSecret, ttl)
	if err != nil {
		h.Logger.Error("token sign failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")
		return
	}

	response.Success(w, loginResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

// AuthRegister bootstraps the first admin account. Once any user exists the
// endpoint is closed and staff are created through the admin staff API.
func (h *Handler) AuthRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body registerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	username := strings.TrimSpace(strings.ToLower(body.Username))
	name := strings.TrimSpace(body.Name)
	if username == "" || name == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Username and name are required")
		return
	}
	if len(body.Password) < 8 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Password must be at least 8 characters")
		return
	}

	var existing int64
	if err := h.DB.QueryRow(ctx, `select count(*) from users`).Scan(&existing); err != nil {
		h.Logger.Error("register count failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Registration failed")
		return
	}
	if existing > 0 {
		response.Error(w, http.StatusForbidden, "REGISTRATION_CLOSED", "Registration is closed; ask an admin to create your account")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(body.Password), 10)
	if err != nil {
		h.Logger.Error("register password hash failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Registration failed")
		return
	}

	var user userPayload
	query := `
		insert into users (username, name, role, password_hash, permissions)
		values ($1, $2, 'ADMIN', $3, '{}')
		returning id, username, name, role, permissions
	`
	if err := h.DB.QueryRow(ctx, query, username, name, string(hashed)).Scan(&user.ID, &user.Username, &user.Name, &user.Role, &user.Permissions); err != nil {
		h.Logger.Error("register insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Registration failed")
		return
	}

	response.Created(w, user)
}

func (h *Handler) AuthMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization required")
		return
	}

	var user userPayload
	query := `select id, username, name, role, permissions from users where id = $1`
	if err := h.DB.QueryRow(ctx, query, authCtx.UserID).Scan(&user.ID, &user.Username, &user.Name, &user.Role, &user.Permissions); err != nil {
		h.Logger.Error("me lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load profile")
		return
	}

	response.Success(w, user)
}

func (h *Handler) AuthLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization required")
		return
	}

	if _, err := h.DB.Exec(ctx, `update user_sessions set revoked_at = now() where id = $1 and revoked_at is null`, authCtx.SessionID); err != nil {
		h.Logger.Error("logout failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Logout failed")
		return
	}

	response.Success(w, map[string]any{"loggedOut": true})
}
