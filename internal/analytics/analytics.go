package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

const Unknown = "Unknown"

// MANJA categories, from worst to best.
const (
	ManjaLate     = "Lewat MANJA"
	ManjaPlus     = "MANJA H+"
	ManjaPlusPlus = "MANJA H++"
	ManjaSameDay  = "MANJA HI"
	ManjaNormal   = "Normal"
)

type Dimension string

const (
	DimChannel     Dimension = "channel"
	DimServiceArea Dimension = "service_area"
	DimFieldUpdate Dimension = "update_lapangan"
	DimStatus      Dimension = "status"
	DimEscalation  Dimension = "escalation"
	DimBranch      Dimension = "branch"
	DimSymptom     Dimension = "symptom"
	DimManja       Dimension = "manja"
)

var Dimensions = []Dimension{
	DimChannel, DimServiceArea, DimFieldUpdate, DimStatus,
	DimEscalation, DimBranch, DimSymptom, DimManja,
}

var dimensionFields = map[Dimension]string{
	DimChannel:     models.FieldChannel,
	DimServiceArea: models.FieldServiceArea,
	DimFieldUpdate: models.FieldUpdateLapangan,
	DimStatus:      models.FieldStatusBima,
	DimEscalation:  models.FieldEscalation,
	DimBranch:      models.FieldBranch,
	DimSymptom:     models.FieldSymptom,
}

func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	if d == DimManja {
		return d, nil
	}
	if _, ok := dimensionFields[d]; ok {
		return d, nil
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

// Stat maps a category label to its count.
type Stat map[string]int

type Item struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Frequency counts records per trimmed value of dim. Blank or missing values
// are counted as Unknown.
func Frequency(records []models.WorkOrder, dim Dimension) (Stat, error) {
	stat := make(Stat)

	if dim == DimManja {
		for i := range records {
			stat[ManjaCategory(records[i].BookingDate, records[i].DateCreated)]++
		}
		return stat, nil
	}

	field, ok := dimensionFields[dim]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}

	for i := range records {
		stat[label(records[i].StringField(field))]++
	}
	return stat, nil
}

func label(value *string) string {
	if value == nil {
		return Unknown
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return Unknown
	}
	return v
}

// ManjaCategory buckets the signed day difference between creation and
// booking. A booking made before creation counts as late.
func ManjaCategory(bookingDate, dateCreated *string) string {
	if bookingDate == nil || dateCreated == nil {
		return ManjaNormal
	}
	booking, ok := ParseDate(*bookingDate)
	if !ok {
		return ManjaNormal
	}
	created, ok := ParseDate(*dateCreated)
	if !ok {
		return ManjaNormal
	}

	diff := created.Sub(booking).Hours() / 24
	switch {
	case diff > 3:
		return ManjaLate
	case diff > 1:
		return ManjaPlus
	case diff > 0:
		return ManjaPlusPlus
	default:
		return ManjaSameDay
	}
}

// TopItems returns the n largest entries by count, ties broken by label.
// n <= 0 returns every entry.
func TopItems(stat Stat, n int) []Item {
	items := make([]Item, 0, len(stat))
	for k, v := range stat {
		items = append(items, Item{Label: k, Count: v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Label < items[j].Label
	})
	if n > 0 && n < len(items) {
		items = items[:n]
	}
	return items
}

type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// MonthlyTrend counts records per YYYY-MM of date_created in ascending month
// order. Records whose creation date cannot be parsed are left out.
func MonthlyTrend(records []models.WorkOrder) []MonthCount {
	counts := make(map[string]int)
	for i := range records {
		if records[i].DateCreated == nil {
			continue
		}
		t, ok := ParseDate(*records[i].DateCreated)
		if !ok {
			continue
		}
		counts[t.Format("2006-01")]++
	}

	out := make([]MonthCount, 0, len(counts))
	for m, c := range counts {
		out = append(out, MonthCount{Month: m, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

type Dashboard struct {
	Total        int          `json:"total"`
	Statuses     Stat         `json:"statuses"`
	Channels     Stat         `json:"channels"`
	ServiceAreas Stat         `json:"service_areas"`
	FieldUpdates Stat         `json:"field_updates"`
	Escalations  Stat         `json:"escalations"`
	Branches     Stat         `json:"branches"`
	Symptoms     Stat         `json:"symptoms"`
	Manja        Stat         `json:"manja"`
	Monthly      []MonthCount `json:"monthly"`
}

// BuildDashboard rescans records for every chart.
func BuildDashboard(records []models.WorkOrder) *Dashboard {
	d := &Dashboard{
		Total:   len(records),
		Monthly: MonthlyTrend(records),
	}
	targets := map[Dimension]*Stat{
		DimStatus:      &d.Statuses,
		DimChannel:     &d.Channels,
		DimServiceArea: &d.ServiceAreas,
		DimFieldUpdate: &d.FieldUpdates,
		DimEscalation:  &d.Escalations,
		DimBranch:      &d.Branches,
		DimSymptom:     &d.Symptoms,
		DimManja:       &d.Manja,
	}
	for dim, dst := range targets {
		// Every key of targets is a known dimension.
		stat, _ := Frequency(records, dim)
		*dst = stat
	}
	return d
}

// Stat returns the frequency map for dim, or nil for an unknown dimension.
func (d *Dashboard) Stat(dim Dimension) Stat {
	switch dim {
	case DimStatus:
		return d.Statuses
	case DimChannel:
		return d.Channels
	case DimServiceArea:
		return d.ServiceAreas
	case DimFieldUpdate:
		return d.FieldUpdates
	case DimEscalation:
		return d.Escalations
	case DimBranch:
		return d.Branches
	case DimSymptom:
		return d.Symptoms
	case DimManja:
		return d.Manja
	}
	return nil
}
