package database

import (
	"fmt"
	"strings"

	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []any
}

func (b *whereBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *whereBuilder) add(cond string) {
	b.conds = append(b.conds, cond)
}

func (b *whereBuilder) sql() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

const (
	isoDayPattern = `^\d{4}-(?:0[1-9]|1[0-2])-(?:0[1-9]|[12]\d|3[01])`
	dayPattern    = `(?:0?[1-9]|[12]\d|3[01])`
	monthPattern  = `(?:0?[1-9]|1[0-2])`
)

// dayOf normalises a text date column to YYYY-MM-DD. ISO values keep their
// leading day, day-first values (05/03/2025, 5-3-2025) are reordered and
// padded, and anything else yields NULL so no date predicate holds for it.
func dayOf(column string) string {
	dayFirst := "^" + dayPattern + "[/-]" + monthPattern + "[/-]\\d{4}"
	year := "^" + dayPattern + "[/-]" + monthPattern + "[/-](\\d{4})"
	month := "^" + dayPattern + "[/-](" + monthPattern + ")"
	day := "^(" + dayPattern + ")"

	return fmt.Sprintf("(CASE WHEN %[1]s ~ '%[2]s' THEN LEFT(%[1]s, 10) "+
		"WHEN %[1]s ~ '%[3]s' THEN substring(%[1]s from '%[4]s') || '-' || "+
		"lpad(substring(%[1]s from '%[5]s'), 2, '0') || '-' || "+
		"lpad(substring(%[1]s from '%[6]s'), 2, '0') END)",
		column, isoDayPattern, dayFirst, year, month, day)
}

// buildWhere turns a filter into a WHERE clause. Dates are stored as opaque
// text, so range checks compare the normalised day lexicographically.
func buildWhere(f models.WorkOrderFilter) (string, []any) {
	b := &whereBuilder{}

	equals := []struct {
		column string
		value  string
	}{
		{models.FieldChannel, f.Channel},
		{models.FieldBranch, f.Branch},
		{models.FieldServiceArea, f.ServiceArea},
		{models.FieldStatusBima, f.Status},
	}
	for _, eq := range equals {
		if v := strings.TrimSpace(eq.value); v != "" {
			b.add(fmt.Sprintf("%s = %s", eq.column, b.arg(v)))
		}
	}

	if v := strings.TrimSpace(f.OrderID); v != "" {
		b.add(fmt.Sprintf("%s ILIKE '%%' || %s || '%%'", models.FieldOrderID, b.arg(v)))
	}

	if f.From != "" {
		b.add(fmt.Sprintf("%s >= %s", dayOf(models.FieldDateCreated), b.arg(f.From)))
	}
	if f.To != "" {
		b.add(fmt.Sprintf("%s <= %s", dayOf(models.FieldDateCreated), b.arg(f.To)))
	}

	if first, last, ok := f.MonthRange(); ok {
		lo, hi := b.arg(first), b.arg(last)
		ors := make([]string, len(models.DateFields))
		for i, col := range models.DateFields {
			ors[i] = fmt.Sprintf("%s BETWEEN %s AND %s", dayOf(col), lo, hi)
		}
		b.add("(" + strings.Join(ors, " OR ") + ")")
	}

	return b.sql(), b.args
}
