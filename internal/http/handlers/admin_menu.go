package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mejaku-order-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

type menuWriteRequest struct {
	Name         string                 `json:"name"`
	Description  *string                `json:"description"`
	Price        *int64                 `json:"price"`
	Category     *string                `json:"category"`
	IsAvailable  *bool                  `json:"isAvailable"`
	OptionGroups []menuWriteOptionGroup `json:"optionGroups"`
}

type menuWriteOptionGroup struct {
	Name          string            `json:"name"`
	SelectionType string            `json:"selectionType"`
	IsRequired    bool              `json:"isRequired"`
	Options       []menuWriteOption `json:"options"`
}

type menuWriteOption struct {
	Name       string `json:"name"`
	ExtraPrice int64  `json:"extraPrice"`
}

func (r *menuWriteRequest) validate(forCreate bool) error {
	if forCreate {
		if strings.TrimSpace(r.Name) == "" {
			return errors.New("name is required")
		}
		if r.Price == nil {
			return errors.New("price is required")
		}
	}
	if r.Price != nil && *r.Price < 0 {
		return errors.New("price must not be negative")
	}
	for _, group := range r.OptionGroups {
		if strings.TrimSpace(group.Name) == "" {
			return errors.New("option group name is required")
		}
		selection := strings.ToUpper(strings.TrimSpace(group.SelectionType))
		if selection != "SINGLE" && selection != "MULTIPLE" {
			return errors.New("selectionType must be SINGLE or MULTIPLE")
		}
		if len(group.Options) == 0 {
			return fmt.Errorf("option group %s has no options", group.Name)
		}
		for _, opt := range group.Options {
			if strings.TrimSpace(opt.Name) == "" {
				return fmt.Errorf("option group %s has an unnamed option", group.Name)
			}
			if opt.ExtraPrice < 0 {
				return fmt.Errorf("option %s has a negative extra price", opt.Name)
			}
		}
	}
	return nil
}

func (h *Handler) AdminMenuList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := h.loadMenuItems(ctx, false)
	if err != nil {
		h.Logger.Error("admin menu fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch menu")
		return
	}

	response.Success(w, map[string]any{"items": items, "total": len(items)})
}

func (h *Handler) AdminMenuDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	menuID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid menu id")
		return
	}

	item, err := h.loadMenuItem(ctx, menuID)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "MENU_NOT_FOUND", "Menu item not found")
		return
	}
	if err != nil {
		h.Logger.Error("menu detail failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch menu item")
		return
	}

	response.Success(w, item)
}

func (h *Handler) loadMenuItem(ctx context.Context, menuID int64) (MenuItem, error) {
	items, err := h.loadMenuItems(ctx, false)
	if err != nil {
		return MenuItem{}, err
	}
	for _, item := range items {
		if item.ID == menuID {
			return item, nil
		}
	}
	return MenuItem{}, pgx.ErrNoRows
}

func (h *Handler) AdminMenuCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body menuWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if err := body.validate(true); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	description := ""
	if body.Description != nil {
		description = strings.TrimSpace(*body.Description)
	}
	category := ""
	if body.Category != nil {
		category = strings.TrimSpace(*body.Category)
	}
	isAvailable := true
	if body.IsAvailable != nil {
		isAvailable = *body.IsAvailable
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("menu create tx failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create menu item")
		return
	}
	defer tx.Rollback(ctx)

	var menuID int64
	err = tx.QueryRow(ctx, `
		insert into menus (name, description, price, category, is_available)
		values ($1, $2, $3, $4, $5)
		returning id
	`, strings.TrimSpace(body.Name), description, *body.Price, category, isAvailable).Scan(&menuID)
	if err != nil {
		h.Logger.Error("menu insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create menu item")
		return
	}

	if err := replaceOptionGroupsTx(ctx, tx, menuID, body.OptionGroups); err != nil {
		h.Logger.Error("menu option groups insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create menu item")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("menu create commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create menu item")
		return
	}

	item, err := h.loadMenuItem(ctx, menuID)
	if err != nil {
		h.Logger.Error("menu reload failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create menu item")
		return
	}
	response.Created(w, item)
}

func replaceOptionGroupsTx(ctx context.Context, tx pgx.Tx, menuID int64, groups []menuWriteOptionGroup) error {
	if _, err := tx.Exec(ctx, `delete from menu_option_groups where menu_id = $1`, menuID); err != nil {
		return err
	}
	for gi, group := range groups {
		var groupID int64
		err := tx.QueryRow(ctx, `
			insert into menu_option_groups (menu_id, name, selection_type, is_required, position)
			values ($1, $2, $3, $4, $5)
			returning id
		`, menuID, strings.TrimSpace(group.Name), strings.ToUpper(strings.TrimSpace(group.SelectionType)), group.IsRequired, gi).Scan(&groupID)
		if err != nil {
			return err
		}
		for oi, opt := range group.Options {
			if _, err := tx.Exec(ctx, `
				insert into menu_options (group_id, name, extra_price, position)
				values ($1, $2, $3, $4)
			`, groupID, strings.TrimSpace(opt.Name), opt.ExtraPrice, oi); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) AdminMenuUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	menuID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid menu id")
		return
	}

	var body menuWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if err := body.validate(false); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
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
	if body.Description != nil {
		updates = append(updates, fmt.Sprintf("description = $%d", argPos))
		args = append(args, strings.TrimSpace(*body.Description))
		argPos++
	}
	if body.Price != nil {
		updates = append(updates, fmt.Sprintf("price = $%d", argPos))
		args = append(args, *body.Price)
		argPos++
	}
	if body.Category != nil {
		updates = append(updates, fmt.Sprintf("category = $%d", argPos))
		args = append(args, strings.TrimSpace(*body.Category))
		argPos++
	}
	if body.IsAvailable != nil {
		updates = append(updates, fmt.Sprintf("is_available = $%d", argPos))
		args = append(args, *body.IsAvailable)
		argPos++
	}
	args = append(args, menuID)

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("menu update tx failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update menu item")
		return
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, fmt.Sprintf(`update menus set %s where id = $%d and deleted_at is null`, strings.Join(updates, ", "), argPos), args...)
	if err != nil {
		h.Logger.Error("menu update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update menu item")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "MENU_NOT_FOUND", "Menu item not found")
		return
	}

	if body.OptionGroups != nil {
		if err := replaceOptionGroupsTx(ctx, tx, menuID, body.OptionGroups); err != nil {
			h.Logger.Error("menu option groups update failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update menu item")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("menu update commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update menu item")
		return
	}

	item, err := h.loadMenuItem(ctx, menuID)
	if err != nil {
		h.Logger.Error("menu reload failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update menu item")
		return
	}
	response.Success(w, item)
}

// AdminMenuDelete soft-deletes so historical order items keep their menu
// reference.
func (h *Handler) AdminMenuDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	menuID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid menu id")
		return
	}

	tag, err := h.DB.Exec(ctx, `update menus set deleted_at = now(), is_available = false, updated_at = now() where id = $1 and deleted_at is null`, menuID)
	if err != nil {
		h.Logger.Error("menu delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete menu item")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "MENU_NOT_FOUND", "Menu item not found")
		return
	}

	response.Success(w, map[string]any{"deleted": true})
}
