package handlers

import (
	"context"
	"net/http"
	"strings"

	"mejaku-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type MenuOption struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ExtraPrice int64  `json:"extraPrice"`
}

type MenuOptionGroup struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	SelectionType string       `json:"selectionType"`
	IsRequired    bool         `json:"isRequired"`
	Options       []MenuOption `json:"options"`
}

type MenuItem struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Price        int64             `json:"price"`
	Category     string            `json:"category"`
	ImageURL     *string           `json:"imageUrl"`
	ThumbURL     *string           `json:"thumbUrl"`
	IsAvailable  bool              `json:"isAvailable"`
	OptionGroups []MenuOptionGroup `json:"optionGroups"`
}

// PublicMenu returns the available menu with customization option groups,
// grouped by category in the response payload.
func (h *Handler) PublicMenu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := h.loadMenuItems(ctx, true)
	if err != nil {
		h.Logger.Error("public menu fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch menu")
		return
	}

	categories := make(map[string][]MenuItem)
	order := make([]string, 0)
	for _, item := range items {
		category := defaultString(item.Category, "Lainnya")
		if _, seen := categories[category]; !seen {
			order = append(order, category)
		}
		categories[category] = append(categories[category], item)
	}

	grouped := make([]map[string]any, 0, len(order))
	for _, category := range order {
		grouped = append(grouped, map[string]any{
			"category": category,
			"items":    categories[category],
		})
	}

	response.Success(w, map[string]any{
		"categories": grouped,
		"total":      len(items),
	})
}

func (h *Handler) loadMenuItems(ctx context.Context, availableOnly bool) ([]MenuItem, error) {
	query := `
		select id, name, description, price, category, image_url, thumb_url, is_available
		from menus
		where deleted_at is null
	`
	if availableOnly {
		query += ` and is_available = true`
	}
	query += ` order by category, name`

	rows, err := h.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]MenuItem, 0)
	index := make(map[int64]int)
	ids := make([]int64, 0)
	for rows.Next() {
		var item MenuItem
		var imageURL, thumbURL pgtype.Text
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Price, &item.Category, &imageURL, &thumbURL, &item.IsAvailable); err != nil {
			return nil, err
		}
		item.ImageURL = textPtr(imageURL)
		item.ThumbURL = textPtr(thumbURL)
		item.OptionGroups = []MenuOptionGroup{}
		index[item.ID] = len(items)
		ids = append(ids, item.ID)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return items, nil
	}

	groupQuery := `
		select g.id, g.menu_id, g.name, g.selection_type, g.is_required, o.id, o.name, o.extra_price
		from menu_option_groups g
		left join menu_options o on o.group_id = g.id
		where g.menu_id = any($1)
		order by g.menu_id, g.position, g.id, o.position, o.id
	`
	groupRows, err := h.DB.Query(ctx, groupQuery, ids)
	if err != nil {
		return nil, err
	}
	defer groupRows.Close()

	for groupRows.Next() {
		var (
			groupID, menuID int64
			groupName       string
			selectionType   string
			isRequired      bool
			optionID        pgtype.Int8
			optionName      pgtype.Text
			extraPrice      pgtype.Int8
		)
		if err := groupRows.Scan(&groupID, &menuID, &groupName, &selectionType, &isRequired, &optionID, &optionName, &extraPrice); err != nil {
			return nil, err
		}
		itemIdx, ok := index[menuID]
		if !ok {
			continue
		}
		item := &items[itemIdx]

		var group *MenuOptionGroup
		for gi := range item.OptionGroups {
			if item.OptionGroups[gi].ID == groupID {
				group = &item.OptionGroups[gi]
				break
			}
		}
		if group == nil {
			item.OptionGroups = append(item.OptionGroups, MenuOptionGroup{
				ID:            groupID,
				Name:          groupName,
				SelectionType: strings.ToUpper(selectionType),
				IsRequired:    isRequired,
				Options:       []MenuOption{},
			})
			group = &item.OptionGroups[len(item.OptionGroups)-1]
		}
		if optionID.Valid {
			group.Options = append(group.Options, MenuOption{
				ID:         optionID.Int64,
				Name:       optionName.String,
				ExtraPrice: extraPrice.Int64,
			})
		}
	}
	return items, groupRows.Err()
}
