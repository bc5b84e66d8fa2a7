package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tarisrizki/provisioning-telkom/internal/database"
	"github.com/tarisrizki/provisioning-telkom/internal/events"
	"github.com/tarisrizki/provisioning-telkom/internal/metrics"
	"github.com/tarisrizki/provisioning-telkom/internal/query"
)

// ListWorkOrders serves one page of work orders under the query filter. The
// optional trigger parameter names why the client refetched (focus, visible,
// timer, manual, filter_change); it defaults to navigate.
func (s *Service) ListWorkOrders(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := query.ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	trigger, err := query.ParseTrigger(r.URL.Query().Get("trigger"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pager := query.NewPager(s.store, s.pageSize, s.logger)
	if s.fallback != nil {
		pager.WithFallback(s.fallback, s.fallbackKey)
	}
	result, err := pager.Load(r.Context(), trigger, page, filter)
	if err != nil {
		s.metrics.IncCounter(metrics.WorkOrderPagesTotal, 1, metrics.Labels{"trigger": string(trigger), "source": "none"})
		s.storeFailure(w, r, err, "failed to load work orders")
		return
	}
	source := "store"
	if result.FromCache {
		source = "cache"
	}
	s.metrics.IncCounter(metrics.WorkOrderPagesTotal, 1, metrics.Labels{"trigger": string(trigger), "source": source})
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) GetWorkOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid work order id")
		return
	}
	order, err := s.store.GetWorkOrder(r.Context(), id)
	if err != nil {
		s.storeFailure(w, r, err, "failed to load work order")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type fieldUpdate struct {
	Field string  `json:"field"`
	Value *string `json:"value"`
}

// PatchWorkOrder changes a single field of one work order.
func (s *Service) PatchWorkOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid work order id")
		return
	}
	var body fieldUpdate
	if err := decodeJSON(w, r, &body); err != nil || body.Field == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"field\": ..., \"value\": ...}")
		return
	}

	order, err := s.store.UpdateWorkOrderField(r.Context(), id, body.Field, body.Value)
	if errors.Is(err, database.ErrFieldNotEditable) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.storeFailure(w, r, err, "failed to update work order")
		return
	}
	s.publish(events.TopicWorkOrdersChanged, "edit")
	writeJSON(w, http.StatusOK, order)
}

// PurgeWorkOrders deletes every work order.
func (s *Service) PurgeWorkOrders(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.store.PurgeWorkOrders(r.Context())
	if err != nil {
		s.storeFailure(w, r, err, "failed to delete work orders")
		return
	}
	s.logger.Warn().Int64("deleted", deleted).Msg("work orders purged")
	s.publish(events.TopicWorkOrdersChanged, "purge")
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
