package ingestion

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
	"github.com/tarisrizki/provisioning-telkom/internal/parser"
)

type Runner[T any] struct {
	Run T
}

type MessageKind string

const (
	MessageProgress MessageKind = "progress"
	MessageResult   MessageKind = "result"
	MessageError    MessageKind = "error"
)

// WorkerMessage is one message from the parse worker. Every message carries
// the request id of the job that produced it.
type WorkerMessage struct {
	RequestID string
	Kind      MessageKind
	Progress  models.Progress
	Table     *models.RawTable
	Err       error
}

type ParseJob struct {
	RequestID string
	Text      string
	BatchSize int
}

// Worker runs parse jobs off the caller's goroutine.
type Worker interface {
	SetupParseWorker(job ParseJob) (Runner[func(context.Context)], <-chan WorkerMessage, error)
}

type AsyncWorker struct {
	logger     zerolog.Logger
	bufferSize int
}

func NewAsyncWorker(logger zerolog.Logger) *AsyncWorker {
	return &AsyncWorker{
		logger:     logger.With().Str("component", "parse_worker").Logger(),
		bufferSize: 16,
	}
}

// SetupParseWorker returns a runner that starts one worker goroutine for job
// and the channel it reports on. The channel is closed after the final result
// or error message.
func (w *AsyncWorker) SetupParseWorker(job ParseJob) (Runner[func(context.Context)], <-chan WorkerMessage, error) {
	if job.RequestID == "" {
		return Runner[func(context.Context)]{}, nil, fmt.Errorf("parse job has no request id")
	}
	messages := make(chan WorkerMessage, w.bufferSize)

	return Runner[func(context.Context)]{
		Run: func(ctx context.Context) {
			go w.ParseWorker(ctx, job, messages)
		},
	}, messages, nil
}

func (w *AsyncWorker) ParseWorker(ctx context.Context, job ParseJob, messages chan<- WorkerMessage) {
	defer close(messages)
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Str("request_id", job.RequestID).Interface("panic", r).Msg("parse worker crashed")
			messages <- WorkerMessage{RequestID: job.RequestID, Kind: MessageError, Err: fmt.Errorf("parse worker crashed: %v", r)}
		}
	}()

	w.logger.Debug().Str("request_id", job.RequestID).Int("bytes", len(job.Text)).Msg("parse worker started")

	table, err := parser.ParseChunked(ctx, job.Text, job.BatchSize, func(p models.Progress) {
		p.RequestID = job.RequestID
		select {
		case messages <- WorkerMessage{RequestID: job.RequestID, Kind: MessageProgress, Progress: p}:
		case <-ctx.Done():
		}
	})
	if err != nil {
		messages <- WorkerMessage{RequestID: job.RequestID, Kind: MessageError, Err: err}
		return
	}

	messages <- WorkerMessage{RequestID: job.RequestID, Kind: MessageResult, Table: table}
	w.logger.Debug().Str("request_id", job.RequestID).Int("rows", table.RowCount()).Msg("parse worker finished")
}
