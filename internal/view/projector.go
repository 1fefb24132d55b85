package view

import (
	"sort"
	"strconv"
	"strings"

	"example.com/backstage/services/orderboard/internal/models"
)

// Project derives the board view for one set of parameters from a store
// snapshot. It is pure: no side effects, deterministic for a given input,
// and the input slice is not modified.
//
// Filtering precedence: a non-empty search query matches customer name or
// id substring (case-insensitive) and bypasses every other filter. Without
// a search, the done tab shows only done orders and every other tab
// excludes them; within the non-done pool the tab and type filters narrow
// by unread state and order kind.
func Project(orders []models.Order, params models.ViewParams) models.Projection {
	unread := 0
	for _, order := range orders {
		if order.IsUnread && !order.IsDone {
			unread++
		}
	}

	rows := make([]models.Order, 0, len(orders))
	for _, order := range orders {
		if matches(order, params) {
			rows = append(rows, order)
		}
	}

	sortRows(rows, params.SortOrder)

	return models.Projection{Rows: rows, UnreadCount: unread}
}

func matches(order models.Order, params models.ViewParams) bool {
	if query := strings.TrimSpace(params.SearchQuery); query != "" {
		query = strings.ToLower(query)
		if strings.Contains(strings.ToLower(order.Customer), query) {
			return true
		}
		return strings.Contains(strconv.FormatInt(order.ID, 10), query)
	}

	if params.ActiveTab == models.TabDone {
		if !order.IsDone {
			return false
		}
		return matchesType(order, params.TypeFilter)
	}
	if order.IsDone {
		return false
	}

	switch params.ActiveTab {
	case models.TabNew:
		if !order.IsUnread {
			return false
		}
	case models.TabDelivery:
		if order.Kind != models.KindDelivery {
			return false
		}
	case models.TabPickup:
		if order.Kind != models.KindPickup {
			return false
		}
	}

	return matchesType(order, params.TypeFilter)
}

func matchesType(order models.Order, filter models.TypeFilter) bool {
	switch filter {
	case models.TypeDelivery:
		return order.Kind == models.KindDelivery
	case models.TypePickup:
		return order.Kind == models.KindPickup
	default:
		return true
	}
}

// sortRows orders rows in place. Sorts are stable so orders with equal
// keys keep their snapshot order.
func sortRows(rows []models.Order, order models.SortOrder) {
	switch order {
	case models.SortOldestFirst:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		})
	case models.SortTotalDesc:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Total > rows[j].Total
		})
	case models.SortTotalAsc:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Total < rows[j].Total
		})
	default:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		})
	}
}
