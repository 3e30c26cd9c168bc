package handlers

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mejaku-order-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type TableRecord struct {
	ID       int64   `json:"id"`
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Capacity int     `json:"capacity"`
	Status   string  `json:"status"`
	QRURL    *string `json:"qrUrl"`
}

type tableWriteRequest struct {
	Name     string `json:"name"`
	Capacity *int   `json:"capacity"`
}

func (h *Handler) AdminTablesList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.DB.Query(ctx, `
		select id, code, name, capacity, status, qr_url
		from tables
		order by name
	`)
	if err != nil {
		h.Logger.Error("tables fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch tables")
		return
	}
	defer rows.Close()

	tables := make([]TableRecord, 0)
	for rows.Next() {
		var table TableRecord
		var qrURL pgtype.Text
		if err := rows.Scan(&table.ID, &table.Code, &table.Name, &table.Capacity, &table.Status, &qrURL); err != nil {
			h.Logger.Error("table scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch tables")
			return
		}
		table.QRURL = textPtr(qrURL)
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("table rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch tables")
		return
	}

	response.Success(w, map[string]any{"tables": tables, "total": len(tables)})
}

func (h *Handler) AdminTableCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body tableWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table name is required")
		return
	}
	capacity := 4
	if body.Capacity != nil {
		if *body.Capacity < 1 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Capacity must be at least 1")
			return
		}
		capacity = *body.Capacity
	}

	// The code is random so QR links cannot be enumerated. Collisions are
	// possible so retry on the unique constraint a few times.
	var table TableRecord
	for attempt := 0; attempt < 3; attempt++ {
		code, err := newTableCode()
		if err != nil {
			h.Logger.Error("table code generation failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create table")
			return
		}
		err = h.DB.QueryRow(ctx, `
			insert into tables (code, name, capacity, status)
			values ($1, $2, $3, $4)
			returning id, code, name, capacity, status
		`, code, strings.TrimSpace(body.Name), capacity, TableStatusAvailable).
			Scan(&table.ID, &table.Code, &table.Name, &table.Capacity, &table.Status)
		if err == nil {
			response.Created(w, table)
			return
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		h.Logger.Error("table insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create table")
		return
	}

	h.Logger.Error("table code collisions exhausted retries")
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create table")
}

func newTableCode() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = alphabet[int(buf[i])%len(alphabet)]
	}
	return "T-" + string(buf), nil
}

func (h *Handler) AdminTableUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid table id")
		return
	}

	var body tableWriteRequest
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
	if body.Capacity != nil {
		if *body.Capacity < 1 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Capacity must be at least 1")
			return
		}
		updates = append(updates, fmt.Sprintf("capacity = $%d", argPos))
		args = append(args, *body.Capacity)
		argPos++
	}
	args = append(args, tableID)

	var table TableRecord
	var qrURL pgtype.Text
	err := h.DB.QueryRow(ctx, fmt.Sprintf(`
		update tables set %s where id = $%d
		returning id, code, name, capacity, status, qr_url
	`, strings.Join(updates, ", "), argPos), args...).
		Scan(&table.ID, &table.Code, &table.Name, &table.Capacity, &table.Status, &qrURL)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "TABLE_NOT_FOUND", "Table not found")
		return
	}
	if err != nil {
		h.Logger.Error("table update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update table")
		return
	}
	table.QRURL = textPtr(qrURL)

	response.Success(w, table)
}

// AdminTableSetStatus lets staff mark a table available or occupied by hand,
// for walk-ins and cleanup between parties.
func (h *Handler) AdminTableSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid table id")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	status := strings.ToUpper(strings.TrimSpace(body.Status))
	if !isValidTableStatus(status) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Status must be AVAILABLE or OCCUPIED")
		return
	}

	tag, err := h.DB.Exec(ctx, `update tables set status = $1, updated_at = now() where id = $2`, status, tableID)
	if err != nil {
		h.Logger.Error("table status update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update table status")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "TABLE_NOT_FOUND", "Table not found")
		return
	}

	response.Success(w, map[string]any{"status": status})
}

// AdminTableRegenerateCode rotates the QR code path for a table, invalidating
// any printed QR stickers.
func (h *Handler) AdminTableRegenerateCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid table id")
		return
	}

	for attempt := 0; attempt < 3; attempt++ {
		code, err := newTableCode()
		if err != nil {
			h.Logger.Error("table code generation failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to regenerate table code")
			return
		}
		tag, err := h.DB.Exec(ctx, `update tables set code = $1, qr_url = null, updated_at = now() where id = $2`, code, tableID)
		if err == nil {
			if tag.RowsAffected() == 0 {
				response.Error(w, http.StatusNotFound, "TABLE_NOT_FOUND", "Table not found")
				return
			}
			response.Success(w, map[string]any{"code": code})
			return
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		h.Logger.Error("table code update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to regenerate table code")
		return
	}

	h.Logger.Error("table code collisions exhausted retries")
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to regenerate table code")
}

func (h *Handler) AdminTableDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid table id")
		return
	}

	var liveOrders int
	err := h.DB.QueryRow(ctx, `
		select count(*) from orders
		where table_id = $1 and status in ($2, $3)
	`, tableID, OrderStatusPending, OrderStatusProcessing).Scan(&liveOrders)
	if err != nil {
		h.Logger.Error("table live order count failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete table")
		return
	}
	if liveOrders > 0 {
		response.Error(w, http.StatusConflict, "TABLE_IN_USE", "Table has active orders")
		return
	}

	tag, err := h.DB.Exec(ctx, `delete from tables where id = $1`, tableID)
	if err != nil {
		h.Logger.Error("table delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete table")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "TABLE_NOT_FOUND", "Table not found")
		return
	}

	response.Success(w, map[string]any{"deleted": true})
}
