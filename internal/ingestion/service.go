package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tarisrizki/provisioning-telkom/internal/cache"
	"github.com/tarisrizki/provisioning-telkom/internal/database"
	"github.com/tarisrizki/provisioning-telkom/internal/events"
	"github.com/tarisrizki/provisioning-telkom/internal/metrics"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
	"github.com/tarisrizki/provisioning-telkom/internal/parser"
	"github.com/tarisrizki/provisioning-telkom/pkg/checksum"
)

// DatasetCache is the part of the local cache the pipeline writes to.
type DatasetCache interface {
	Save(ctx context.Context, key string, raw *models.RawTable) (cache.Tier, error)
}

type Upload struct {
	Name   string
	Reader io.Reader
	// Size is the declared size in bytes, or -1 when unknown.
	Size  int64
	Heavy bool
}

type Options struct {
	// Force ingests a file even when an identical one already completed.
	Force bool
	// Progress receives parse progress. Sends never block; a full channel
	// drops the update.
	Progress chan<- models.Progress
}

type Result struct {
	RequestID  string              `json:"request_id"`
	Filename   string              `json:"filename"`
	Encoding   string              `json:"encoding"`
	Rows       int                 `json:"rows"`
	Columns    int                 `json:"columns"`
	Background bool                `json:"background"`
	Persist    ProcessResult       `json:"persist"`
	Cached     bool                `json:"cached"`
	CacheTier  cache.Tier          `json:"cache_tier"`
	Duplicate  *models.UploadAudit `json:"duplicate,omitempty"`
	Table      *models.RawTable    `json:"-"`
	Duration   time.Duration       `json:"duration"`
}

type IngestionService struct {
	store     database.Store
	persister *Persister
	worker    Worker
	cache     DatasetCache
	bus       *events.Bus
	limits    Limits
	logger    zerolog.Logger
	metrics   metrics.Backend
	newID     func() string
}

func NewIngestionService(store database.Store, persister *Persister, worker Worker, datasetCache DatasetCache, bus *events.Bus, limits Limits, logger zerolog.Logger, m metrics.Backend) *IngestionService {
	if m == nil {
		m = metrics.Noop{}
	}
	return &IngestionService{
		store:     store,
		persister: persister,
		worker:    worker,
		cache:     datasetCache,
		bus:       bus,
		limits:    limits.withDefaults(),
		logger:    logger.With().Str("component", "ingestion").Logger(),
		metrics:   m,
		newID:     uuid.NewString,
	}
}

// Execute runs one upload through validation, parsing, persistence and
// caching. Validation failures return a *models.ValidationError and have no
// side effects. A persistence failure returns the partial result alongside
// the error.
func (h *IngestionService) Execute(ctx context.Context, upload Upload, opts Options) (*Result, error) {
	start := time.Now()
	path := "inline"
	result, err := h.execute(ctx, upload, opts)
	if result != nil && result.Background {
		path = "worker"
	}

	status := "completed"
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		status = string(vErr.Kind)
	case err != nil:
		status = "failed"
	}
	h.metrics.IncCounter(metrics.UploadsTotal, 1, metrics.Labels{"status": status, "path": path})
	h.metrics.ObserveHistogram(metrics.UploadDuration, time.Since(start).Seconds(), metrics.Labels{"path": path})
	if result != nil {
		result.Duration = time.Since(start)
		h.metrics.ObserveHistogram(metrics.UploadRows, float64(result.Persist.InsertedCount), nil)
	}
	return result, err
}

func (h *IngestionService) execute(ctx context.Context, upload Upload, opts Options) (*Result, error) {
	// Step 0: reject by name and declared size before reading.
	if err := ValidateFile(upload.Name, upload.Size, upload.Heavy, h.limits); err != nil {
		return nil, err
	}

	// Step 1: read the file, enforcing the limit on what was actually read.
	limit := h.limits.maxBytes(upload.Heavy)
	data, err := io.ReadAll(io.LimitReader(upload.Reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", upload.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, tooLarge(int64(len(data)), limit)
	}
	if len(data) == 0 {
		return nil, &models.ValidationError{Kind: models.EmptyFile, Message: "the file is empty"}
	}

	result := &Result{RequestID: h.newID(), Filename: displayName(upload.Name)}
	logger := h.logger.With().Str("request_id", result.RequestID).Str("file", result.Filename).Logger()

	// Step 2: skip files that already completed unless forced.
	sum := checksum.BytesChecksum(data)
	if !opts.Force {
		previous, err := h.store.FindCompletedUploadByChecksum(ctx, sum)
		if err != nil {
			return nil, fmt.Errorf("failed to check for duplicate upload: %w", err)
		}
		if previous != nil {
			logger.Info().Int64("upload_id", previous.ID).Msg("file already ingested, skipping")
			result.Duplicate = previous
			return result, &models.ValidationError{
				Kind:    models.DuplicateFile,
				Message: fmt.Sprintf("this file was already uploaded as %s on %s", previous.Filename, previous.UploadDate.Format("2006-01-02 15:04")),
			}
		}
	}

	// Step 3: decode and parse, in the background worker for large files.
	text, encoding, err := parser.DecodeText(data)
	if err != nil {
		return nil, &models.ValidationError{Kind: models.InvalidFileType, Message: "file is not readable text: " + err.Error()}
	}
	result.Encoding = encoding

	var table *models.RawTable
	if int64(len(data)) >= h.limits.WorkerThresholdBytes {
		result.Background = true
		table, err = h.parseInWorker(ctx, result.RequestID, text, opts.Progress, logger)
	} else {
		table, err = parser.ParseChunked(ctx, text, h.limits.ParseBatchSize, func(p models.Progress) {
			p.RequestID = result.RequestID
			sendProgress(opts.Progress, p)
		})
		err = classifyParseError(err)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("upload rejected while parsing")
		return nil, err
	}
	result.Table = table
	result.Rows = table.RowCount()
	result.Columns = table.ColumnCount()

	// Step 4: persist. The hosted store is the source of truth.
	result.Persist = h.persister.ProcessCSVData(ctx, table, result.Filename, sum)
	if result.Persist.UploadID != 0 {
		h.publish(events.TopicUploadsChanged, result)
	}
	if !result.Persist.Success {
		if result.Persist.InsertedCount > 0 {
			h.publish(events.TopicWorkOrdersChanged, result)
		}
		return result, result.Persist.Err
	}
	h.publish(events.TopicWorkOrdersChanged, result)

	// Step 5: cache locally. Failure only means the dataset is not cached.
	result.CacheTier = cache.TierNone
	if h.cache != nil {
		tier, err := h.cache.Save(ctx, cache.DatasetKey, table)
		if err != nil {
			logger.Warn().Err(err).Msg("dataset not cached")
			h.metrics.IncCounter(metrics.CacheWritesTotal, 1, metrics.Labels{"tier": "none"})
		} else {
			result.Cached = true
			result.CacheTier = tier
			h.metrics.IncCounter(metrics.CacheWritesTotal, 1, metrics.Labels{"tier": string(tier)})
		}
	}

	logger.Info().Int("rows", result.Rows).Int("inserted", result.Persist.InsertedCount).Bool("background", result.Background).
		Str("cache_tier", string(result.CacheTier)).Msg("upload ingested")
	return result, nil
}

// parseInWorker hands text to the background worker and waits for its final
// message. Messages tagged with another request id are ignored.
func (h *IngestionService) parseInWorker(ctx context.Context, requestID, text string, progress chan<- models.Progress, logger zerolog.Logger) (*models.RawTable, error) {
	runner, messages, err := h.worker.SetupParseWorker(ParseJob{RequestID: requestID, Text: text, BatchSize: h.limits.ParseBatchSize})
	if err != nil {
		return nil, &models.ValidationError{Kind: models.WorkerFailed, Message: "could not start the parse worker: " + err.Error()}
	}
	runner.Run(ctx)

	var table *models.RawTable
	var workerErr error
	for msg := range messages {
		if msg.RequestID != requestID {
			logger.Debug().Str("stale_request_id", msg.RequestID).Msg("ignoring message from another parse request")
			continue
		}
		switch msg.Kind {
		case MessageProgress:
			sendProgress(progress, msg.Progress)
		case MessageResult:
			table = msg.Table
		case MessageError:
			workerErr = msg.Err
		}
	}

	if workerErr != nil {
		var vErr *models.ValidationError
		if err := classifyParseError(workerErr); errors.As(err, &vErr) {
			return nil, vErr
		}
		return nil, &models.ValidationError{Kind: models.WorkerFailed, Message: "the parse worker failed: " + workerErr.Error()}
	}
	if table == nil {
		if ctx.Err() != nil {
			return nil, classifyParseError(ctx.Err())
		}
		return nil, &models.ValidationError{Kind: models.WorkerFailed, Message: "the parse worker stopped without a result"}
	}
	return table, nil
}

// classifyParseError maps parser and context errors onto validation kinds.
// Other errors are returned unchanged.
func classifyParseError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &models.ValidationError{Kind: models.Cancelled, Message: "upload cancelled"}
	case errors.Is(err, models.ErrNoContent):
		return &models.ValidationError{Kind: models.EmptyFile, Message: "the file has no content"}
	case errors.Is(err, models.ErrNoHeaders):
		return &models.ValidationError{Kind: models.NoHeaders, Message: "the first line has no column headers"}
	}
	var parseErr *models.ParseError
	if errors.As(err, &parseErr) {
		return &models.ValidationError{Kind: models.InvalidFileType, Message: parseErr.Error()}
	}
	return err
}

func sendProgress(ch chan<- models.Progress, p models.Progress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	default:
	}
}

func (h *IngestionService) publish(topic events.Topic, result *Result) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(topic, events.Event{
		Source:   "ingestion",
		UploadID: result.Persist.UploadID,
		Rows:     result.Persist.InsertedCount,
	})
}
