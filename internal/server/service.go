package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/tarisrizki/provisioning-telkom/internal/auth"
	"github.com/tarisrizki/provisioning-telkom/internal/database"
	"github.com/tarisrizki/provisioning-telkom/internal/events"
	"github.com/tarisrizki/provisioning-telkom/internal/ingestion"
	"github.com/tarisrizki/provisioning-telkom/internal/metrics"
	"github.com/tarisrizki/provisioning-telkom/internal/query"
)

// Ingester runs one upload through the ingestion pipeline.
type Ingester interface {
	Execute(ctx context.Context, upload ingestion.Upload, opts ingestion.Options) (*ingestion.Result, error)
}

type Deps struct {
	Store     database.Store
	Ingester  Ingester
	Sessions  *auth.SessionCodec
	Dashboard *Dashboard
	// Fallback serves cached work orders when the store read fails.
	Fallback    query.Fallback
	FallbackKey string
	Bus         *events.Bus
	Logger      zerolog.Logger
	Metrics     metrics.Backend

	PageSize       int
	MaxUploadBytes int64
}

type Service struct {
	store          database.Store
	ingester       Ingester
	sessions       *auth.SessionCodec
	dashboard      *Dashboard
	fallback       query.Fallback
	fallbackKey    string
	bus            *events.Bus
	logger         zerolog.Logger
	metrics        metrics.Backend
	pageSize       int
	maxUploadBytes int64
}

func NewService(d Deps) *Service {
	if d.Metrics == nil {
		d.Metrics = metrics.Noop{}
	}
	if d.PageSize <= 0 {
		d.PageSize = 50
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 50 << 20
	}
	return &Service{
		store:          d.Store,
		ingester:       d.Ingester,
		sessions:       d.Sessions,
		dashboard:      d.Dashboard,
		fallback:       d.Fallback,
		fallbackKey:    d.FallbackKey,
		bus:            d.Bus,
		logger:         d.Logger.With().Str("component", "http").Logger(),
		metrics:        d.Metrics,
		pageSize:       d.PageSize,
		maxUploadBytes: d.MaxUploadBytes,
	}
}

func (s *Service) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("health check failed")
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) publish(topic events.Topic, source string) {
	if s.bus != nil {
		s.bus.Publish(topic, events.Event{Source: source})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// storeFailure answers a failed store call. Not-found and conflict errors get
// their own status; anything else is logged and reported generically.
func (s *Service) storeFailure(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, database.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// intParam reads a positive integer query parameter, returning def when it
// is absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("invalid " + name + " parameter")
	}
	return n, nil
}
