package ingestion

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarisrizki/provisioning-telkom/internal/columns"
	"github.com/tarisrizki/provisioning-telkom/internal/database"
	"github.com/tarisrizki/provisioning-telkom/internal/metrics"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
	"github.com/tarisrizki/provisioning-telkom/pkg/checksum"
)

const (
	DefaultDBBatchSize = 100
	// maxRowWarnings caps per-upload warnings; a file producing more is
	// probably malformed and the rest are only logged.
	maxRowWarnings = 100
)

type ProcessResult struct {
	Success       bool                 `json:"success"`
	InsertedCount int                  `json:"inserted_count"`
	UploadID      int64                `json:"upload_id,omitempty"`
	Mapping       models.ColumnMapping `json:"mapping,omitempty"`
	Warnings      []string             `json:"warnings,omitempty"`
	Err           error                `json:"-"`
}

// Error returns the failure message, or "" on success.
func (r ProcessResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type Persister struct {
	store     database.Store
	aliases   columns.AliasTable
	batchSize int
	logger    zerolog.Logger
	metrics   metrics.Backend
	now       func() time.Time
}

func NewPersister(store database.Store, aliases columns.AliasTable, batchSize int, logger zerolog.Logger, m metrics.Backend) *Persister {
	if batchSize <= 0 {
		batchSize = DefaultDBBatchSize
	}
	if aliases == nil {
		aliases = columns.DefaultAliasTable()
	}
	if m == nil {
		m = metrics.Noop{}
	}
	return &Persister{
		store:     store,
		aliases:   aliases,
		batchSize: batchSize,
		logger:    logger.With().Str("component", "persister").Logger(),
		metrics:   m,
		now:       time.Now,
	}
}

// ProcessCSVData stores raw as work orders under a new upload audit record.
//
// Required columns are checked first; if any is missing nothing is written.
// Rows are inserted in sequential batches. The first failing batch marks the
// upload failed and stops the run; batches already inserted stay in place and
// are reported in InsertedCount.
func (p *Persister) ProcessCSVData(ctx context.Context, raw *models.RawTable, filename, fileChecksum string) ProcessResult {
	mapping := columns.Resolve(raw.Headers, p.aliases)
	if missing := columns.Missing(mapping, columns.RequiredFields); len(missing) > 0 {
		p.logger.Warn().Str("file", filename).Strs("missing", missing).Msg("rejecting upload with missing required columns")
		return ProcessResult{
			Mapping: mapping,
			Err:     &models.ValidationError{Kind: models.MissingColumns, Message: "missing required columns", Missing: missing},
		}
	}

	uploadID, err := p.store.InsertUpload(ctx, &models.UploadAudit{
		Filename:     filename,
		TotalRows:    raw.RowCount(),
		TotalColumns: raw.ColumnCount(),
		UploadDate:   p.now().UTC(),
		Status:       models.UploadProcessing,
		CheckSum:     fileChecksum,
	})
	if err != nil {
		return ProcessResult{Mapping: mapping, Err: fmt.Errorf("failed to create upload record: %w", err)}
	}

	result := ProcessResult{UploadID: uploadID, Mapping: mapping}
	orders := make([]models.WorkOrder, 0, p.batchSize)

	flush := func() error {
		if len(orders) == 0 {
			return nil
		}
		// A batch already issued cannot be cancelled; cancellation is only
		// noticed before the next one.
		if err := ctx.Err(); err != nil {
			return &models.ValidationError{Kind: models.Cancelled, Message: "upload cancelled"}
		}
		p.logger.Debug().Int64("upload_id", uploadID).Int("rows", len(orders)).Msg("inserting batch")
		if _, err := p.store.InsertWorkOrders(ctx, orders); err != nil {
			p.metrics.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{"status": "failed"})
			return &models.AppError{
				UploadID: uploadID,
				Message:  fmt.Sprintf("failed to insert batch at row %d", result.InsertedCount+1),
				Err:      err,
			}
		}
		p.metrics.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{"status": "ok"})
		result.InsertedCount += len(orders)
		orders = orders[:0]
		return nil
	}

	for i, row := range raw.Rows {
		order, warnings := MapRow(row, mapping, i+1)
		order.UploadID = uploadID
		orders = append(orders, order)
		result.addWarnings(p.logger, warnings)

		if len(orders) >= p.batchSize {
			if err := flush(); err != nil {
				return p.fail(ctx, result, err)
			}
		}
	}
	if err := flush(); err != nil {
		return p.fail(ctx, result, err)
	}

	if err := p.store.UpdateUploadStatus(ctx, uploadID, models.UploadCompleted, result.InsertedCount, nil); err != nil {
		p.logger.Error().Err(err).Int64("upload_id", uploadID).Msg("rows stored but upload status not updated")
	}
	result.Success = true
	p.logger.Info().Int64("upload_id", uploadID).Str("file", filename).Int("rows", result.InsertedCount).Msg("upload completed")
	return result
}

func (p *Persister) fail(ctx context.Context, result ProcessResult, err error) ProcessResult {
	result.Err = err
	msg := err.Error()
	if uerr := p.store.UpdateUploadStatus(context.WithoutCancel(ctx), result.UploadID, models.UploadFailed, result.InsertedCount, &msg); uerr != nil {
		p.logger.Error().Err(uerr).Int64("upload_id", result.UploadID).Msg("failed to mark upload as failed")
	}
	p.logger.Error().Err(err).Int64("upload_id", result.UploadID).Int("inserted", result.InsertedCount).Msg("upload failed")
	return result
}

func (r *ProcessResult) addWarnings(logger zerolog.Logger, warnings []string) {
	for _, w := range warnings {
		if len(r.Warnings) < maxRowWarnings {
			r.Warnings = append(r.Warnings, w)
			continue
		}
		logger.Debug().Int64("upload_id", r.UploadID).Msg(w)
	}
}

// MapRow builds a work order from one row. rowNumber is 1-based and names the
// placeholders used for blank required values.
func MapRow(row []string, mapping models.ColumnMapping, rowNumber int) (models.WorkOrder, []string) {
	var order models.WorkOrder
	var warnings []string

	cell := func(field string) (string, bool) {
		idx := mapping.Index(field)
		if idx == models.NotFound || idx >= len(row) {
			return "", false
		}
		v := strings.TrimSpace(row[idx])
		return v, v != ""
	}

	for _, field := range models.TextFields {
		if v, ok := cell(field); ok {
			order.SetStringField(field, &v)
		}
	}

	if order.OrderID == "" {
		order.OrderID = "AO_" + strconv.Itoa(rowNumber)
	}
	if order.WorkOrder == "" {
		order.WorkOrder = "WO_" + strconv.Itoa(rowNumber)
	}

	for _, coord := range []struct {
		field string
		dst   **float64
	}{
		{models.FieldLatitude, &order.Latitude},
		{models.FieldLongitude, &order.Longitude},
	} {
		v, ok := cell(coord.field)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: invalid %s %q", rowNumber, coord.field, v))
			continue
		}
		*coord.dst = &f
	}

	order.CheckSum = checksum.CalculateHash(row)
	return order, warnings
}
