package view

import (
	"testing"
	"time"

	"example.com/backstage/services/orderboard/internal/models"

	"github.com/stretchr/testify/require"
)

func boardFixture() []models.Order {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return []models.Order{
		{ID: 1, Customer: "Marta", Kind: models.KindDelivery, IsUnread: true, Total: 30, CreatedAt: base},
		{ID: 2, Customer: "Luis", Kind: models.KindPickup, IsUnread: false, Total: 10, CreatedAt: base.Add(time.Minute)},
		{ID: 3, Customer: "Ana", Kind: models.KindDelivery, IsUnread: true, IsDone: true, Total: 20, CreatedAt: base.Add(2 * time.Minute)},
		{ID: 42, Customer: "Carolina", Kind: models.KindPickup, IsUnread: true, Total: 20, CreatedAt: base.Add(3 * time.Minute)},
	}
}

func rowIDs(p models.Projection) []int64 {
	ids := make([]int64, 0, len(p.Rows))
	for _, row := range p.Rows {
		ids = append(ids, row.ID)
	}
	return ids
}

func TestProjectTabs(t *testing.T) {
	fixture := boardFixture()

	tests := []struct {
		name string
		tab  models.Tab
		want []int64
	}{
		// Done orders never appear outside the done tab.
		{"all excludes done", models.TabAll, []int64{42, 2, 1}},
		{"new shows unread only", models.TabNew, []int64{42, 1}},
		{"delivery", models.TabDelivery, []int64{1}},
		{"pickup", models.TabPickup, []int64{42, 2}},
		{"done shows done only", models.TabDone, []int64{3}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Project(fixture, models.ViewParams{ActiveTab: tc.tab})
			require.Equal(t, tc.want, rowIDs(p))
		})
	}
}

func TestProjectSearchBypassesFilters(t *testing.T) {
	fixture := boardFixture()

	// "an" matches Ana even though she is done and the active tab is new.
	p := Project(fixture, models.ViewParams{ActiveTab: models.TabNew, SearchQuery: "an"})
	require.Equal(t, []int64{3}, rowIDs(p))

	// A numeric query matches against the order id.
	p = Project(fixture, models.ViewParams{ActiveTab: models.TabDone, SearchQuery: "42"})
	require.Equal(t, []int64{42}, rowIDs(p))

	// Search also ignores the type filter.
	p = Project(fixture, models.ViewParams{
		ActiveTab:   models.TabAll,
		SearchQuery: "marta",
		TypeFilter:  models.TypePickup,
	})
	require.Equal(t, []int64{1}, rowIDs(p))
}

func TestProjectBlankSearchIsNoSearch(t *testing.T) {
	p := Project(boardFixture(), models.ViewParams{ActiveTab: models.TabAll, SearchQuery: "   "})
	require.Equal(t, []int64{42, 2, 1}, rowIDs(p))
}

func TestProjectTypeFilter(t *testing.T) {
	fixture := boardFixture()

	p := Project(fixture, models.ViewParams{ActiveTab: models.TabAll, TypeFilter: models.TypeDelivery})
	require.Equal(t, []int64{1}, rowIDs(p))

	// The type filter narrows the done tab as well.
	p = Project(fixture, models.ViewParams{ActiveTab: models.TabDone, TypeFilter: models.TypePickup})
	require.Empty(t, rowIDs(p))
}

func TestProjectSortOrders(t *testing.T) {
	fixture := boardFixture()

	tests := []struct {
		name string
		sort models.SortOrder
		want []int64
	}{
		{"newest first is the default", models.SortNewestFirst, []int64{42, 2, 1}},
		{"oldest first", models.SortOldestFirst, []int64{1, 2, 42}},
		{"total descending", models.SortTotalDesc, []int64{1, 42, 2}},
		{"total ascending", models.SortTotalAsc, []int64{2, 42, 1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Project(fixture, models.ViewParams{ActiveTab: models.TabAll, SortOrder: tc.sort})
			require.Equal(t, tc.want, rowIDs(p))
		})
	}
}

func TestProjectSortIsStableOnEqualKeys(t *testing.T) {
	when := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	orders := []models.Order{
		{ID: 1, Total: 15, CreatedAt: when},
		{ID: 2, Total: 15, CreatedAt: when},
		{ID: 3, Total: 15, CreatedAt: when},
	}

	p := Project(orders, models.ViewParams{SortOrder: models.SortTotalDesc})
	require.Equal(t, []int64{1, 2, 3}, rowIDs(p))
}

func TestProjectUnreadCountIgnoresView(t *testing.T) {
	fixture := boardFixture()

	// Done-but-unread orders do not count; the rest do, on every view.
	p := Project(fixture, models.ViewParams{ActiveTab: models.TabDone, SearchQuery: "zzz"})
	require.Empty(t, p.Rows)
	require.Equal(t, 2, p.UnreadCount)
}

func TestProjectDoesNotMutateInput(t *testing.T) {
	fixture := boardFixture()
	Project(fixture, models.ViewParams{SortOrder: models.SortTotalAsc})
	require.Equal(t, int64(1), fixture[0].ID)
	require.Equal(t, int64(2), fixture[1].ID)
}

func TestProjectEmptySnapshot(t *testing.T) {
	p := Project(nil, models.ViewParams{})
	require.Empty(t, p.Rows)
	require.Zero(t, p.UnreadCount)
}
