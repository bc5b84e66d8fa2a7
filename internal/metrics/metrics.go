// Package metrics is the instrumentation seam used by ingestion and the HTTP
// layer. Backends live in sub-packages.
package metrics

import (
	"sort"
	"strings"
)

type Labels map[string]string

type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Close() error
}

// Metric names.
const (
	UploadsTotal          = "uploads_total"
	UploadRows            = "upload_rows"
	UploadDuration        = "upload_duration_seconds"
	BatchesTotal          = "insert_batches_total"
	CacheWritesTotal      = "cache_writes_total"
	HTTPRequestsTotal     = "http_requests_total"
	HTTPRequestDuration   = "http_request_duration_seconds"
	DashboardRefreshTotal = "dashboard_refresh_total"
	WorkOrderPagesTotal   = "work_order_pages_total"
)

type Noop struct{}

func (Noop) IncCounter(string, float64, Labels)       {}
func (Noop) ObserveHistogram(string, float64, Labels) {}
func (Noop) Close() error                             { return nil }

// Key renders name and labels as a stable map key, labels sorted by name.
func Key(name string, labels Labels) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteByte('\x00')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(labels[k])
	}
	return b.String()
}

// SplitKey reverses Key, returning the name and the labels as k:v tags.
func SplitKey(key string) (string, []string) {
	parts := strings.Split(key, "\x00")
	return parts[0], parts[1:]
}
