package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarisrizki/provisioning-telkom/internal/analytics"
	"github.com/tarisrizki/provisioning-telkom/internal/events"
	"github.com/tarisrizki/provisioning-telkom/internal/metrics"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
	"github.com/tarisrizki/provisioning-telkom/internal/query"
)

// projectionLimit bounds the work orders kept in the local cache.
const projectionLimit = 5000

// WorkOrderReader is the full unpaginated read the dashboard rescans.
type WorkOrderReader interface {
	AllWorkOrders(ctx context.Context, filter models.WorkOrderFilter) ([]models.WorkOrder, error)
}

// ProjectionCache keeps the latest work orders for offline page reads.
type ProjectionCache interface {
	SaveWorkOrders(ctx context.Context, key string, orders []models.WorkOrder, limit int) error
}

// Dashboard holds the aggregated charts of the whole dataset. Refreshes may
// overlap (timer, data change, manual); only the latest issued refresh
// replaces the snapshot.
type Dashboard struct {
	reader   WorkOrderReader
	cache    ProjectionCache
	cacheKey string
	logger   zerolog.Logger
	metrics  metrics.Backend

	seq query.Sequencer

	mu          sync.RWMutex
	current     *analytics.Dashboard
	refreshedAt time.Time
}

func NewDashboard(reader WorkOrderReader, logger zerolog.Logger, m metrics.Backend) *Dashboard {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Dashboard{
		reader:  reader,
		logger:  logger.With().Str("component", "dashboard").Logger(),
		metrics: m,
	}
}

// WithProjectionCache stores each refreshed dataset under key.
func (d *Dashboard) WithProjectionCache(c ProjectionCache, key string) *Dashboard {
	d.cache = c
	d.cacheKey = key
	return d
}

// Refresh rescans every work order and replaces the snapshot unless a newer
// refresh was issued meanwhile, in which case query.ErrStaleResponse is
// returned.
func (d *Dashboard) Refresh(ctx context.Context, trigger query.Trigger) (*analytics.Dashboard, error) {
	id := d.seq.Issue()
	logger := d.logger.With().Uint64("request_id", id).Str("trigger", string(trigger)).Logger()

	orders, err := d.reader.AllWorkOrders(ctx, models.WorkOrderFilter{})
	if err != nil {
		d.metrics.IncCounter(metrics.DashboardRefreshTotal, 1, metrics.Labels{"trigger": string(trigger), "status": "failed"})
		return nil, err
	}
	snapshot := analytics.BuildDashboard(orders)

	d.mu.Lock()
	if !d.seq.IsLatest(id) {
		d.mu.Unlock()
		logger.Debug().Msg("discarding superseded dashboard refresh")
		d.metrics.IncCounter(metrics.DashboardRefreshTotal, 1, metrics.Labels{"trigger": string(trigger), "status": "stale"})
		return nil, query.ErrStaleResponse
	}
	d.current = snapshot
	d.refreshedAt = time.Now()
	d.mu.Unlock()

	d.metrics.IncCounter(metrics.DashboardRefreshTotal, 1, metrics.Labels{"trigger": string(trigger), "status": "ok"})
	logger.Debug().Int("total", snapshot.Total).Msg("dashboard refreshed")

	if d.cache != nil {
		if err := d.cache.SaveWorkOrders(ctx, d.cacheKey, orders, projectionLimit); err != nil {
			logger.Warn().Err(err).Msg("work orders not cached")
		}
	}
	return snapshot, nil
}

// Snapshot returns the current charts, refreshing once if there are none.
func (d *Dashboard) Snapshot(ctx context.Context) (*analytics.Dashboard, time.Time, error) {
	d.mu.RLock()
	current, at := d.current, d.refreshedAt
	d.mu.RUnlock()
	if current != nil {
		return current, at, nil
	}

	snapshot, err := d.Refresh(ctx, query.TriggerManual)
	if errors.Is(err, query.ErrStaleResponse) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.current != nil {
			return d.current, d.refreshedAt, nil
		}
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return snapshot, d.refreshedAt, nil
}

// Subscribe refreshes after every work order change. The returned func
// unsubscribes.
func (d *Dashboard) Subscribe(bus *events.Bus) func() {
	return bus.Subscribe(events.TopicWorkOrdersChanged, func(events.Event) {
		go d.refreshInBackground(query.TriggerDataChanged)
	})
}

// Tick is the timer trigger.
func (d *Dashboard) Tick(ctx context.Context) {
	if _, err := d.Refresh(ctx, query.TriggerTimer); err != nil && !errors.Is(err, query.ErrStaleResponse) {
		d.logger.Warn().Err(err).Msg("scheduled dashboard refresh failed")
	}
}

func (d *Dashboard) refreshInBackground(trigger query.Trigger) {
	if _, err := d.Refresh(context.Background(), trigger); err != nil && !errors.Is(err, query.ErrStaleResponse) {
		d.logger.Warn().Err(err).Str("trigger", string(trigger)).Msg("dashboard refresh failed")
	}
}
