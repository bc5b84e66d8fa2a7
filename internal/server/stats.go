package server

import (
	"net/http"
	"time"

	"github.com/tarisrizki/provisioning-telkom/internal/analytics"
	"github.com/tarisrizki/provisioning-telkom/internal/export"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
	"github.com/tarisrizki/provisioning-telkom/internal/query"
)

type statsResponse struct {
	*analytics.Dashboard
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
}

// dashboardFor returns the cached snapshot for an empty filter and a fresh
// rescan otherwise.
func (s *Service) dashboardFor(r *http.Request, filter models.WorkOrderFilter) (*statsResponse, error) {
	if filter == (models.WorkOrderFilter{}) {
		snapshot, at, err := s.dashboard.Snapshot(r.Context())
		if err != nil {
			return nil, err
		}
		return &statsResponse{Dashboard: snapshot, RefreshedAt: &at}, nil
	}
	orders, err := s.store.AllWorkOrders(r.Context(), filter)
	if err != nil {
		return nil, err
	}
	return &statsResponse{Dashboard: analytics.BuildDashboard(orders)}, nil
}

func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	filter, err := query.ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := s.dashboardFor(r, filter)
	if err != nil {
		s.storeFailure(w, r, err, "failed to load statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetTopItems returns the n most frequent values of one dimension.
func (s *Service) GetTopItems(w http.ResponseWriter, r *http.Request) {
	dim, err := analytics.ParseDimension(r.URL.Query().Get("dimension"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := intParam(r, "n", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := query.ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := s.dashboardFor(r, filter)
	if err != nil {
		s.storeFailure(w, r, err, "failed to load statistics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dimension": dim,
		"items":     analytics.TopItems(stats.Stat(dim), n),
	})
}

func (s *Service) GetMonthly(w http.ResponseWriter, r *http.Request) {
	stats, err := s.dashboardFor(r, models.WorkOrderFilter{})
	if err != nil {
		s.storeFailure(w, r, err, "failed to load statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats.Monthly)
}

// ExportReport downloads the report projection as a workbook.
func (s *Service) ExportReport(w http.ResponseWriter, r *http.Request) {
	filter, err := query.ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.store.ReportRows(r.Context(), filter)
	if err != nil {
		s.storeFailure(w, r, err, "failed to load report")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(time.Now().Format("2006-01-02"))+`"`)
	if err := export.WriteReport(w, rows); err != nil {
		s.logger.Error().Err(err).Int("rows", len(rows)).Msg("failed to write report")
	}
}
