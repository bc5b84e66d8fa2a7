package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

func strPtr(s string) *string { return &s }

func TestParseFilter(t *testing.T) {
	t.Run("should read and trim every parameter", func(t *testing.T) {
		values := url.Values{
			"channel":      {" MYIH "},
			"branch":       {"Jakarta"},
			"service_area": {"HSA CENTRUM"},
			"status":       {"COMPLETE"},
			"order_id":     {"AO12"},
			"from":         {"2024-01-01"},
			"to":           {"2024-01-31"},
			"month":        {"2024-02"},
		}

		filter, err := ParseFilter(values)

		require.NoError(t, err)
		assert.Equal(t, models.WorkOrderFilter{
			Channel: "MYIH", Branch: "Jakarta", ServiceArea: "HSA CENTRUM", Status: "COMPLETE",
			OrderID: "AO12", From: "2024-01-01", To: "2024-01-31", Month: "2024-02",
		}, filter)
	})

	t.Run("should reject a malformed month", func(t *testing.T) {
		_, err := ParseFilter(url.Values{"month": {"02-2024"}})
		assert.Error(t, err)
	})

	t.Run("should reject a malformed date", func(t *testing.T) {
		_, err := ParseFilter(url.Values{"from": {"1/2/2024"}})
		assert.Error(t, err)
	})
}

func TestMatch(t *testing.T) {
	order := models.WorkOrder{
		OrderID:      "AO1234",
		WorkOrder:    "WO1",
		Channel:      strPtr("MYIH"),
		Branch:       strPtr("Jakarta"),
		DateCreated:  strPtr("2024-01-30 10:00:00"),
		BookingDate:  strPtr("2024-02-01"),
		StatusBima:   strPtr("COMPLETE"),
		DateModified: nil,
	}

	testCases := []struct {
		name   string
		filter models.WorkOrderFilter
		want   bool
	}{
		{"should match an empty filter", models.WorkOrderFilter{}, true},
		{"should match equal channel and branch", models.WorkOrderFilter{Channel: "MYIH", Branch: "Jakarta"}, true},
		{"should not match a different channel", models.WorkOrderFilter{Channel: "SC-ONE"}, false},
		{"should not match a filter on an empty field", models.WorkOrderFilter{ServiceArea: "HSA"}, false},
		{"should match an order id substring ignoring case", models.WorkOrderFilter{OrderID: "ao12"}, true},
		{"should not match an absent order id substring", models.WorkOrderFilter{OrderID: "999"}, false},
		{"should match a date range including creation day", models.WorkOrderFilter{From: "2024-01-30", To: "2024-01-30"}, true},
		{"should not match a range after creation", models.WorkOrderFilter{From: "2024-01-31"}, false},
		{"should match a month through the booking date", models.WorkOrderFilter{Month: "2024-02"}, true},
		{"should match a month through the creation date", models.WorkOrderFilter{Month: "2024-01"}, true},
		{"should not match a month with no date inside", models.WorkOrderFilter{Month: "2024-03"}, false},
		{"should require every predicate", models.WorkOrderFilter{Channel: "MYIH", Month: "2024-03"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Match(order, tc.filter))
		})
	}
}

func TestMatch_DayFirstDates(t *testing.T) {
	order := models.WorkOrder{OrderID: "AO1", DateCreated: strPtr("05/03/2025")}

	t.Run("should compare a day-first creation date by calendar day", func(t *testing.T) {
		assert.False(t, Match(order, models.WorkOrderFilter{To: "2024-12-31"}))
		assert.True(t, Match(order, models.WorkOrderFilter{From: "2025-03-01", To: "2025-03-05"}))
		assert.False(t, Match(order, models.WorkOrderFilter{From: "2025-03-06"}))
	})

	t.Run("should place a day-first date in its month", func(t *testing.T) {
		assert.True(t, Match(order, models.WorkOrderFilter{Month: "2025-03"}))
		assert.False(t, Match(order, models.WorkOrderFilter{Month: "2025-05"}))
	})

	t.Run("should never match an unreadable date", func(t *testing.T) {
		junk := models.WorkOrder{OrderID: "AO2", DateCreated: strPtr("1999x")}

		assert.False(t, Match(junk, models.WorkOrderFilter{To: "2024-12-31"}))
		assert.False(t, Match(junk, models.WorkOrderFilter{From: "1000-01-01"}))
		assert.False(t, Match(junk, models.WorkOrderFilter{Month: "1999-01"}))
	})
}

func TestDayOf(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  string
		ok    bool
	}{
		{"should keep an ISO day", "2024-01-30", "2024-01-30", true},
		{"should cut an ISO timestamp to its day", "2024-01-30 10:00:00", "2024-01-30", true},
		{"should keep the leading day of an unusual ISO suffix", "2024-01-30 10h", "2024-01-30", true},
		{"should reorder a slash day-first date", "5/3/2025 08:15", "2025-03-05", true},
		{"should reorder a dash day-first date", "05-03-2025", "2025-03-05", true},
		{"should reject an impossible ISO day", "2024-13-45", "", false},
		{"should reject free text", "besok", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := dayOf(strPtr(tc.value))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("should reject a missing date", func(t *testing.T) {
		_, ok := dayOf(nil)
		assert.False(t, ok)
	})
}

func TestFilterLocal(t *testing.T) {
	orders := []models.WorkOrder{
		{OrderID: "A", Channel: strPtr("X")},
		{OrderID: "B", Channel: strPtr("Y")},
		{OrderID: "C", Channel: strPtr("X")},
	}

	got := FilterLocal(orders, models.WorkOrderFilter{Channel: "X"})

	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].OrderID)
	assert.Equal(t, "C", got[1].OrderID)
}
