package models

// Tab identifies which board tab is active.
type Tab string

const (
	TabAll      Tab = "all"
	TabNew      Tab = "new"
	TabDelivery Tab = "delivery"
	TabPickup   Tab = "pickup"
	TabDone     Tab = "done"
)

// ParseTab maps a query-string value to a Tab, defaulting to TabAll.
func ParseTab(s string) Tab {
	switch Tab(s) {
	case TabNew, TabDelivery, TabPickup, TabDone:
		return Tab(s)
	default:
		return TabAll
	}
}

// TypeFilter narrows the board to one order kind.
type TypeFilter string

const (
	TypeAll      TypeFilter = "all"
	TypeDelivery TypeFilter = "delivery"
	TypePickup   TypeFilter = "pickup"
)

// ParseTypeFilter maps a query-string value to a TypeFilter, defaulting
// to TypeAll.
func ParseTypeFilter(s string) TypeFilter {
	switch TypeFilter(s) {
	case TypeDelivery, TypePickup:
		return TypeFilter(s)
	default:
		return TypeAll
	}
}

// SortOrder selects how projected rows are ordered.
type SortOrder string

const (
	SortNewestFirst SortOrder = "newest"
	SortOldestFirst SortOrder = "oldest"
	SortTotalDesc   SortOrder = "total_desc"
	SortTotalAsc    SortOrder = "total_asc"
)

// ParseSortOrder maps a query-string value to a SortOrder, defaulting to
// SortNewestFirst.
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(s) {
	case SortOldestFirst, SortTotalDesc, SortTotalAsc:
		return SortOrder(s)
	default:
		return SortNewestFirst
	}
}

// ViewParams is the complete set of view state a projection depends on.
type ViewParams struct {
	ActiveTab   Tab
	SearchQuery string
	TypeFilter  TypeFilter
	SortOrder   SortOrder
}

// Projection is the derived view for one set of ViewParams. UnreadCount is
// global: it counts unread, not-done orders across the whole store, not the
// filtered rows.
type Projection struct {
	Rows        []Order `json:"orders"`
	UnreadCount int     `json:"unread_count"`
}
