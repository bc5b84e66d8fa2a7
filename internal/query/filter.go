package query

import (
	"net/url"
	"strings"
	"time"

	"github.com/tarisrizki/provisioning-telkom/internal/analytics"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

const isoDay = "2006-01-02"

// ParseFilter reads a work order filter from query parameters.
func ParseFilter(values url.Values) (models.WorkOrderFilter, error) {
	get := func(name string) string { return strings.TrimSpace(values.Get(name)) }

	filter := models.WorkOrderFilter{
		Channel:     get("channel"),
		Branch:      get("branch"),
		ServiceArea: get("service_area"),
		Status:      get("status"),
		OrderID:     get("order_id"),
		From:        get("from"),
		To:          get("to"),
		Month:       get("month"),
	}
	if err := filter.Validate(); err != nil {
		return models.WorkOrderFilter{}, err
	}
	return filter, nil
}

// Match reports whether order satisfies filter with the same rules the store
// applies: equality on categorical fields, case-insensitive substring on the
// order id, and calendar-day comparison on dates. Day-first dates are
// normalised to YYYY-MM-DD; unreadable dates never match a date predicate.
func Match(order models.WorkOrder, filter models.WorkOrderFilter) bool {
	for _, eq := range []struct {
		field string
		want  string
	}{
		{models.FieldChannel, filter.Channel},
		{models.FieldBranch, filter.Branch},
		{models.FieldServiceArea, filter.ServiceArea},
		{models.FieldStatusBima, filter.Status},
	} {
		want := strings.TrimSpace(eq.want)
		if want == "" {
			continue
		}
		got := order.StringField(eq.field)
		if got == nil || *got != want {
			return false
		}
	}

	if want := strings.TrimSpace(filter.OrderID); want != "" {
		if !strings.Contains(strings.ToLower(order.OrderID), strings.ToLower(want)) {
			return false
		}
	}

	if filter.From != "" || filter.To != "" {
		day, ok := dayOf(order.StringField(models.FieldDateCreated))
		if !ok {
			return false
		}
		if filter.From != "" && day < filter.From {
			return false
		}
		if filter.To != "" && day > filter.To {
			return false
		}
	}

	if first, last, ok := filter.MonthRange(); ok {
		inMonth := false
		for _, field := range models.DateFields {
			if day, ok := dayOf(order.StringField(field)); ok && day >= first && day <= last {
				inMonth = true
				break
			}
		}
		if !inMonth {
			return false
		}
	}

	return true
}

// FilterLocal returns the orders that match filter, in their original order.
func FilterLocal(orders []models.WorkOrder, filter models.WorkOrderFilter) []models.WorkOrder {
	out := make([]models.WorkOrder, 0, len(orders))
	for _, o := range orders {
		if Match(o, filter) {
			out = append(out, o)
		}
	}
	return out
}

// dayOf normalises a source date to its YYYY-MM-DD day.
func dayOf(value *string) (string, bool) {
	if value == nil {
		return "", false
	}
	if t, ok := analytics.ParseDate(*value); ok {
		return t.Format(isoDay), true
	}
	v := strings.TrimSpace(*value)
	if len(v) < len(isoDay) {
		return "", false
	}
	if _, err := time.Parse(isoDay, v[:len(isoDay)]); err != nil {
		return "", false
	}
	return v[:len(isoDay)], true
}
