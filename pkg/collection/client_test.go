package collection

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type testItem struct {
	ID      string
	Title   string
	Created int
}

var testOptions = DeriveOptions[testItem]{
	Comparators: map[SortKey]Compare[testItem]{
		SortNewest:    func(a, b testItem) int { return cmp.Compare(b.Created, a.Created) },
		SortID:        func(a, b testItem) int { return strings.Compare(a.ID, b.ID) },
		SortTitleAsc:  func(a, b testItem) int { return strings.Compare(a.Title, b.Title) },
		SortTitleDesc: func(a, b testItem) int { return strings.Compare(b.Title, a.Title) },
	},
	SearchText: func(it testItem) string { return it.Title },
	Key:        func(it testItem) string { return it.ID },
}

func testCatalog() []testItem {
	return []testItem{
		{ID: "c", Title: "Denim Jacket", Created: 3},
		{ID: "a", Title: "blue shirt", Created: 1},
		{ID: "e", Title: "Canvas Shoes", Created: 5},
		{ID: "b", Title: "Red Shirt", Created: 2},
		{ID: "d", Title: "Anorak", Created: 4},
	}
}

func ids(items []testItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name      string
		filter    FilterState
		wantIDs   []string
		wantTotal int
	}{
		{
			name:      "newest first",
			filter:    DefaultFilter(),
			wantIDs:   []string{"e", "d", "c", "b", "a"},
			wantTotal: 5,
		},
		{
			name:      "id order",
			filter:    DefaultFilter().WithSort(SortID),
			wantIDs:   []string{"a", "b", "c", "d", "e"},
			wantTotal: 5,
		},
		{
			name:      "search is case-insensitive substring",
			filter:    DefaultFilter().WithSearch("SHIRT"),
			wantIDs:   []string{"b", "a"},
			wantTotal: 2,
		},
		{
			name:      "sort then search then slice",
			filter:    FilterState{Limit: 2, Page: 2, Sort: SortTitleAsc},
			wantIDs:   []string{"c", "b"},
			wantTotal: 5,
		},
		{
			name:      "empty search result",
			filter:    DefaultFilter().WithSearch("hat"),
			wantIDs:   []string{},
			wantTotal: 0,
		},
		{
			name:      "page beyond the end",
			filter:    FilterState{Limit: 2, Page: 9, Sort: SortID},
			wantIDs:   []string{},
			wantTotal: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			all := testCatalog()
			got, total := Derive(all, tt.filter, testOptions)
			assert.Equal(t, tt.wantIDs, ids(got))
			assert.Equal(t, tt.wantTotal, total)
			if diff := gocmp.Diff(testCatalog(), all); diff != "" {
				t.Errorf("Derive mutated its input (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDerive_TitleOrdersAreReversed(t *testing.T) {
	all := testCatalog()
	f := FilterState{Limit: 100, Page: 1}

	asc, _ := Derive(all, f.WithSort(SortTitleAsc), testOptions)
	desc, _ := Derive(all, f.WithSort(SortTitleDesc), testOptions)

	reversed := slices.Clone(desc)
	slices.Reverse(reversed)
	assert.Equal(t, ids(asc), ids(reversed))
}

func TestDerive_StableTieBreak(t *testing.T) {
	all := []testItem{
		{ID: "x", Title: "Same", Created: 1},
		{ID: "y", Title: "Same", Created: 1},
		{ID: "z", Title: "Same", Created: 1},
	}
	got, _ := Derive(all, DefaultFilter().WithSort(SortTitleDesc), testOptions)
	assert.Equal(t, []string{"x", "y", "z"}, ids(got))
}

type countingLoader struct {
	calls atomic.Int32
	items []testItem
	err   error
}

func (l *countingLoader) LoadAll(context.Context) ([]testItem, error) {
	l.calls.Add(1)
	return l.items, l.err
}

func TestClientController_FiltersWithoutRefetching(t *testing.T) {
	loader := &countingLoader{items: testCatalog()}
	ctrl := NewClientController[testItem]("products", loader, testOptions, DefaultFilter().WithLimit(2))
	ctx := context.Background()

	require.NoError(t, ctrl.Load(ctx))
	snap := ctrl.Snapshot()
	assert.Equal(t, []string{"e", "d"}, ids(snap.Items))
	assert.Equal(t, 3, snap.Window.TotalPages)

	require.NoError(t, GoTo[testItem](ctx, ctrl, 3))
	assert.Equal(t, []string{"a"}, ids(ctrl.Snapshot().Items))

	require.NoError(t, ctrl.SetFilter(ctx, ctrl.Filter().WithSearch("shirt")))
	snap = ctrl.Snapshot()
	assert.Equal(t, 1, snap.Filter.Page)
	assert.Equal(t, []string{"b", "a"}, ids(snap.Items))

	require.NoError(t, ctrl.SetFilter(ctx, ctrl.Filter().WithSearch("").WithSort(SortTitleAsc).WithLimit(10)))
	assert.Equal(t, []string{"d", "e", "c", "b", "a"}, ids(ctrl.Snapshot().Items))

	assert.Equal(t, int32(1), loader.calls.Load())
	assert.Equal(t, testCatalog(), ctrl.All(), "cached collection keeps fetch order")
}

func TestClientController_FilterBeforeLoad(t *testing.T) {
	loader := &countingLoader{items: testCatalog()}
	ctrl := NewClientController[testItem]("products", loader, testOptions, DefaultFilter())
	ctx := context.Background()

	require.NoError(t, ctrl.SetFilter(ctx, ctrl.Filter().WithSearch("jacket")))
	assert.Empty(t, ctrl.Snapshot().Items)
	assert.False(t, ctrl.Snapshot().Loaded)

	require.NoError(t, ctrl.Load(ctx))
	assert.Equal(t, []string{"c"}, ids(ctrl.Snapshot().Items))
}

func TestClientController_UnsupportedSort(t *testing.T) {
	ctrl := NewClientController[testItem]("products", &countingLoader{}, testOptions, DefaultFilter())
	err := ctrl.SetFilter(context.Background(), ctrl.Filter().WithSort("price"))
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestClientController_LoadFailureKeepsCache(t *testing.T) {
	loader := &countingLoader{items: testCatalog()}
	ctrl := NewClientController[testItem]("products", loader, testOptions, DefaultFilter())
	ctx := context.Background()
	require.NoError(t, ctrl.Load(ctx))

	boom := errors.New("gateway timeout")
	loader.err = boom
	loader.items = nil
	require.ErrorIs(t, ctrl.Refresh(ctx), boom)

	snap := ctrl.Snapshot()
	assert.ErrorIs(t, snap.Err, boom)
	assert.False(t, snap.Loading)
	assert.Len(t, snap.Items, 5)
}

func TestClientController_StaleLoadDiscarded(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	loader := LoaderFunc[testItem](func(context.Context) ([]testItem, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return []testItem{{ID: "old", Title: "Old"}}, nil
		}
		return testCatalog(), nil
	})

	ctrl := NewClientController[testItem]("products", loader, testOptions, DefaultFilter())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- ctrl.Load(ctx) }()
	<-started
	require.NoError(t, ctrl.Load(ctx))
	close(release)
	require.NoError(t, <-done)

	assert.Len(t, ctrl.Snapshot().Items, 5)
}

func TestClientController_Replace(t *testing.T) {
	ctrl := NewClientController[testItem]("products", &countingLoader{items: testCatalog()}, testOptions, DefaultFilter().WithSort(SortTitleAsc))
	ctx := context.Background()

	require.ErrorIs(t, ctrl.Replace(testItem{ID: "a"}), ErrNotLoaded)
	require.NoError(t, ctrl.Load(ctx))

	require.NoError(t, ctrl.Replace(testItem{ID: "a", Title: "Zebra Shirt", Created: 1}))
	got := ids(ctrl.Snapshot().Items)
	assert.Equal(t, "a", got[len(got)-1])

	require.ErrorIs(t, ctrl.Replace(testItem{ID: "nope"}), ErrItemNotFound)
}

func TestClientController_Update(t *testing.T) {
	ctrl := NewClientController[testItem]("products", &countingLoader{items: testCatalog()}, testOptions, DefaultFilter())
	require.NoError(t, ctrl.Load(context.Background()))

	ctrl.Update(func(items []testItem) []testItem {
		return slices.DeleteFunc(items, func(it testItem) bool { return it.ID == "e" })
	})
	snap := ctrl.Snapshot()
	assert.Equal(t, 4, snap.TotalCount)
	assert.Equal(t, []string{"d", "c", "b", "a"}, ids(snap.Items))
}
