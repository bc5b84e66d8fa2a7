package ingestion

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

// Limits bounds what the pipeline accepts and when it parses off the caller's
// goroutine.
type Limits struct {
	MaxLightBytes        int64
	MaxHeavyBytes        int64
	WorkerThresholdBytes int64
	ParseBatchSize       int
}

func DefaultLimits() Limits {
	return Limits{
		MaxLightBytes:        10 << 20,
		MaxHeavyBytes:        50 << 20,
		WorkerThresholdBytes: 1 << 20,
		ParseBatchSize:       1000,
	}
}

// withDefaults fills unset fields from DefaultLimits.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxLightBytes <= 0 {
		l.MaxLightBytes = d.MaxLightBytes
	}
	if l.MaxHeavyBytes <= 0 {
		l.MaxHeavyBytes = d.MaxHeavyBytes
	}
	if l.WorkerThresholdBytes <= 0 {
		l.WorkerThresholdBytes = d.WorkerThresholdBytes
	}
	if l.ParseBatchSize <= 0 {
		l.ParseBatchSize = d.ParseBatchSize
	}
	return l
}

func (l Limits) maxBytes(heavy bool) int64 {
	if heavy {
		return l.MaxHeavyBytes
	}
	return l.MaxLightBytes
}

// ValidateFile rejects uploads by name and declared size before any bytes
// are read. A negative size means unknown and is checked after reading.
func ValidateFile(name string, size int64, heavy bool, limits Limits) error {
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return &models.ValidationError{
			Kind:    models.InvalidFileType,
			Message: "only .csv files can be uploaded, got " + displayName(name),
		}
	}
	if size == 0 {
		return &models.ValidationError{Kind: models.EmptyFile, Message: "the file is empty"}
	}
	if limit := limits.maxBytes(heavy); size > limit {
		return tooLarge(size, limit)
	}
	return nil
}

func tooLarge(size, limit int64) error {
	return &models.ValidationError{
		Kind:    models.FileTooLarge,
		Message: fmt.Sprintf("file is %.1fMB, the limit is %.1fMB", float64(size)/(1<<20), float64(limit)/(1<<20)),
	}
}

func displayName(name string) string {
	if name == "" {
		return "a file without a name"
	}
	return filepath.Base(name)
}
