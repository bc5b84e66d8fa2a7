package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

const DefaultBatchSize = 1000

// ProgressFunc is called after every processed chunk of rows.
type ProgressFunc func(models.Progress)

type record struct {
	cells []string
	end   int64
}

// Parse turns CSV text into a RawTable. See ParseChunked.
func Parse(text string) (*models.RawTable, error) {
	return ParseChunked(context.Background(), text, DefaultBatchSize, nil)
}

// ParseFile reads, decodes and parses a file on disk.
func ParseFile(filePath string) (*models.RawTable, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	text, _, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

// ParseChunked parses CSV text into a RawTable, shaping rows in batches of
// batchSize. Text is split into lines before cells, so a quote never spans a
// line break. The first non-blank line is the header. Data rows are padded or
// truncated to the header width and rows that are blank after trimming are
// dropped. ctx is checked between batches and onProgress, when set, is called
// after each one.
func ParseChunked(ctx context.Context, text string, batchSize int, onProgress ProgressFunc) (*models.RawTable, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	records := readRecords(text)
	if len(records) == 0 {
		return nil, &models.ParseError{Message: "file contains no non-blank lines", Err: models.ErrNoContent}
	}

	headers := make([]string, len(records[0].cells))
	for i, h := range records[0].cells {
		headers[i] = strings.TrimSpace(h)
	}
	if isBlank(headers) {
		return nil, &models.ParseError{Message: "header line has no columns", Err: models.ErrNoHeaders}
	}

	body := records[1:]
	table := &models.RawTable{Headers: headers, Rows: make([][]string, 0, len(body))}

	totalChunks := (len(body) + batchSize - 1) / batchSize
	for chunk := 0; chunk < totalChunks; chunk++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := chunk * batchSize
		end := min(start+batchSize, len(body))
		for _, rec := range body[start:end] {
			if isBlank(rec.cells) {
				continue
			}
			table.Rows = append(table.Rows, fitRow(rec.cells, len(headers)))
		}

		if onProgress != nil {
			onProgress(models.Progress{
				BytesProcessed: body[end-1].end,
				RowsProcessed:  end,
				CurrentChunk:   chunk + 1,
				TotalChunks:    totalChunks,
			})
		}
	}

	return table, nil
}

// SplitLine splits a single CSV line honoring double quotes and "" escapes.
func SplitLine(line string) []string {
	reader := newReader(line)
	cells, err := reader.Read()
	if err != nil {
		return nil
	}
	return cells
}

func newReader(text string) *csv.Reader {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader
}

// readRecords splits text on line breaks and each non-blank line into cells.
// An unterminated quote runs to the end of its own line only.
func readRecords(text string) []record {
	var records []record
	var offset int64
	for _, raw := range strings.SplitAfter(text, "\n") {
		offset += int64(len(raw))
		line := strings.TrimRight(raw, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, record{cells: SplitLine(line), end: offset})
	}
	return records
}

// fitRow pads short rows with empty strings and truncates long ones.
func fitRow(cells []string, width int) []string {
	row := make([]string, width)
	copy(row, cells)
	return row
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
