package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tarisrizki/provisioning-telkom/internal/database/mocks"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

// gatedSource serves total synthetic rows. A fetch at an offset with a gate
// blocks until the gate is closed.
type gatedSource struct {
	mu      sync.Mutex
	total   int
	gates   map[int]chan struct{}
	started chan int
	err     error
	calls   int
}

func newGatedSource(total int) *gatedSource {
	return &gatedSource{total: total, gates: map[int]chan struct{}{}, started: make(chan int, 64)}
}

func (s *gatedSource) FetchWorkOrders(ctx context.Context, filter models.WorkOrderFilter, limit, offset int) ([]models.WorkOrder, int, error) {
	s.mu.Lock()
	gate := s.gates[offset]
	s.calls++
	err := s.err
	s.mu.Unlock()

	s.started <- offset
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, 0, err
	}
	var rows []models.WorkOrder
	for i := offset; i < min(offset+limit, s.total); i++ {
		rows = append(rows, models.WorkOrder{OrderID: fmt.Sprintf("AO%d", i)})
	}
	return rows, s.total, nil
}

type staticFallback struct {
	orders []models.WorkOrder
	err    error
}

func (f staticFallback) LoadWorkOrders(context.Context, string) ([]models.WorkOrder, error) {
	return f.orders, f.err
}

func TestNewPage(t *testing.T) {
	testCases := []struct {
		name               string
		total, page, size  int
		wantPages          int
		wantNext, wantPrev bool
	}{
		{"should have no pages when empty", 0, 1, 10, 0, false, false},
		{"should round the page count up", 21, 1, 10, 3, true, false},
		{"should have both neighbours in the middle", 21, 2, 10, 3, true, true},
		{"should have no next page on the last page", 21, 3, 10, 3, false, true},
		{"should fit an exact multiple", 20, 2, 10, 2, false, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPage(nil, tc.total, tc.page, tc.size)
			assert.Equal(t, tc.wantPages, p.TotalPages)
			assert.Equal(t, tc.wantNext, p.HasNextPage)
			assert.Equal(t, tc.wantPrev, p.HasPreviousPage)
			assert.NotNil(t, p.Rows)
		})
	}
}

func TestFetchPage(t *testing.T) {
	t.Run("should translate a 1-based page into limit and offset", func(t *testing.T) {
		store := new(mocks.MockStore)
		filter := models.WorkOrderFilter{Channel: "MYIH"}
		rows := []models.WorkOrder{{OrderID: "AO21"}}
		store.On("FetchWorkOrders", mock.Anything, filter, 10, 20).Return(rows, 21, nil)

		page, err := FetchPage(context.Background(), store, 3, 10, filter)

		require.NoError(t, err)
		assert.Equal(t, rows, page.Rows)
		assert.Equal(t, 21, page.TotalCount)
		assert.Equal(t, 3, page.CurrentPage)
		assert.False(t, page.HasNextPage)
		store.AssertExpectations(t)
	})

	t.Run("should read page 1 for a page below 1", func(t *testing.T) {
		store := new(mocks.MockStore)
		store.On("FetchWorkOrders", mock.Anything, models.WorkOrderFilter{}, 10, 0).Return([]models.WorkOrder{}, 0, nil)

		page, err := FetchPage(context.Background(), store, 0, 10, models.WorkOrderFilter{})

		require.NoError(t, err)
		assert.Equal(t, 1, page.CurrentPage)
	})

	t.Run("should wrap store errors", func(t *testing.T) {
		store := new(mocks.MockStore)
		store.On("FetchWorkOrders", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, 0, errors.New("timeout"))

		_, err := FetchPage(context.Background(), store, 1, 10, models.WorkOrderFilter{})

		assert.ErrorContains(t, err, "timeout")
	})
}

func TestPageLocal(t *testing.T) {
	var orders []models.WorkOrder
	for i := 0; i < 25; i++ {
		orders = append(orders, models.WorkOrder{OrderID: fmt.Sprintf("AO%d", i)})
	}

	page := PageLocal(orders, 3, 10, models.WorkOrderFilter{})
	assert.Len(t, page.Rows, 5)
	assert.Equal(t, "AO20", page.Rows[0].OrderID)
	assert.Equal(t, 3, page.TotalPages)

	beyond := PageLocal(orders, 9, 10, models.WorkOrderFilter{})
	assert.Empty(t, beyond.Rows)
	assert.Equal(t, 25, beyond.TotalCount)
}

func TestPager_Navigation(t *testing.T) {
	source := newGatedSource(25)
	pager := NewPager(source, 10, zerolog.Nop())
	ctx := context.Background()

	_, err := pager.Next(ctx)
	assert.ErrorIs(t, err, ErrNoPage, "Expect: no navigation before the first page")

	first, err := pager.FetchPage(ctx, 1, models.WorkOrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.CurrentPage)

	second, err := pager.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, second.CurrentPage)
	assert.Equal(t, "AO10", second.Rows[0].OrderID)

	last, err := pager.GoTo(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, last.Rows, 5)

	_, err = pager.Next(ctx)
	assert.ErrorIs(t, err, ErrNoPage)

	_, err = pager.GoTo(ctx, 4)
	assert.ErrorIs(t, err, ErrNoPage)

	back, err := pager.Previous(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, back.CurrentPage)

	reset, err := pager.SetFilter(ctx, models.WorkOrderFilter{Channel: "MYIH"})
	require.NoError(t, err)
	assert.Equal(t, 1, reset.CurrentPage, "Expect: a filter change returns to the first page")

	refreshed, err := pager.Refresh(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.CurrentPage)
	assert.Greater(t, refreshed.RequestID, reset.RequestID)
}

func TestPager_Load(t *testing.T) {
	t.Run("should move to the requested page and filter", func(t *testing.T) {
		pager := NewPager(newGatedSource(25), 10, zerolog.Nop())
		ctx := context.Background()

		page, err := pager.Load(ctx, TriggerVisible, 2, models.WorkOrderFilter{})
		require.NoError(t, err)
		assert.Equal(t, 2, page.CurrentPage)

		refreshed, err := pager.Refresh(ctx, TriggerTimer)
		require.NoError(t, err)
		assert.Equal(t, 2, refreshed.CurrentPage, "Expect: a refresh keeps the loaded page")
	})

	t.Run("should read pages below 1 as the first page", func(t *testing.T) {
		pager := NewPager(newGatedSource(25), 10, zerolog.Nop())

		page, err := pager.Load(context.Background(), TriggerFocus, -4, models.WorkOrderFilter{})

		require.NoError(t, err)
		assert.Equal(t, 1, page.CurrentPage)
	})
}

func TestParseTrigger(t *testing.T) {
	testCases := []struct {
		name    string
		value   string
		want    Trigger
		wantErr bool
	}{
		{"should default to navigate", "", TriggerNavigate, false},
		{"should accept a focus refetch", "focus", TriggerFocus, false},
		{"should accept a visibility refetch ignoring case", " Visible ", TriggerVisible, false},
		{"should accept a timer refetch", "timer", TriggerTimer, false},
		{"should accept a manual refresh", "manual", TriggerManual, false},
		{"should refuse the server-only data change trigger", "data_changed", "", true},
		{"should refuse an unknown trigger", "scroll", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTrigger(tc.value)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPager_StaleResponses(t *testing.T) {
	t.Run("should discard a response overtaken by a newer request", func(t *testing.T) {
		source := newGatedSource(30)
		gate := make(chan struct{})
		source.gates[0] = gate
		pager := NewPager(source, 10, zerolog.Nop())
		ctx := context.Background()

		var slowErr error
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, slowErr = pager.FetchPage(ctx, 1, models.WorkOrderFilter{})
		}()
		<-source.started

		fast, err := pager.FetchPage(ctx, 2, models.WorkOrderFilter{})
		require.NoError(t, err)
		<-source.started

		close(gate)
		<-done

		assert.ErrorIs(t, slowErr, ErrStaleResponse)
		assert.Same(t, fast, pager.Current())
		assert.Equal(t, 2, pager.Current().CurrentPage)
	})

	t.Run("should keep the last page when a newer request fails", func(t *testing.T) {
		source := newGatedSource(30)
		pager := NewPager(source, 10, zerolog.Nop())
		ctx := context.Background()

		first, err := pager.FetchPage(ctx, 1, models.WorkOrderFilter{})
		require.NoError(t, err)
		<-source.started

		source.err = errors.New("network down")
		_, err = pager.Refresh(ctx, TriggerFocus)
		<-source.started

		assert.ErrorContains(t, err, "network down")
		assert.Same(t, first, pager.Current())
		assert.ErrorContains(t, pager.Err(), "network down")
	})
}

func TestPager_Fallback(t *testing.T) {
	source := newGatedSource(0)
	source.err = errors.New("offline")
	cached := []models.WorkOrder{
		{OrderID: "AO1", Channel: strPtr("MYIH")},
		{OrderID: "AO2", Channel: strPtr("SC-ONE")},
	}

	t.Run("should serve the cached projection when the store fails", func(t *testing.T) {
		pager := NewPager(source, 10, zerolog.Nop()).WithFallback(staticFallback{orders: cached}, "dataset")

		page, err := pager.FetchPage(context.Background(), 1, models.WorkOrderFilter{Channel: "MYIH"})

		require.NoError(t, err)
		assert.True(t, page.FromCache)
		require.Len(t, page.Rows, 1)
		assert.Equal(t, "AO1", page.Rows[0].OrderID)
	})

	t.Run("should return the store error when nothing is cached", func(t *testing.T) {
		pager := NewPager(source, 10, zerolog.Nop()).WithFallback(staticFallback{err: errors.New("not cached")}, "dataset")

		_, err := pager.FetchPage(context.Background(), 1, models.WorkOrderFilter{})

		assert.ErrorContains(t, err, "offline")
	})
}
