package handlers

import (
	"errors"
	"net/http"
	"strings"

	"mejaku-order-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

type TablePayload struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
}

// PublicTableResolve turns a scanned QR code into the table it belongs to.
func (h *Handler) PublicTableResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table code is required")
		return
	}

	var table TablePayload
	query := `select id, name, code, capacity, status from tables where code = $1`
	err := h.DB.QueryRow(ctx, query, code).Scan(&table.ID, &table.Name, &table.Code, &table.Capacity, &table.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "TABLE_NOT_FOUND", "Unknown table code")
		return
	}
	if err != nil {
		h.Logger.Error("table resolve failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve table")
		return
	}

	response.Success(w, table)
}
