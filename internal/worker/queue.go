package worker

import (
	"context"

	"github.com/leshachaplin/loginpipe/internal/domain"
)

// Queue is the message source drained by the pipeline.
type Queue interface {
	Receive(ctx context.Context, maxCount int) ([]domain.QueueMessage, error)
	DeleteBatch(ctx context.Context, entries []domain.AckEntry) (domain.DeleteResult, error)
}

// Sink appends a batch of rows atomically.
type Sink interface {
	Commit(ctx context.Context, rows []domain.NormalizedRow) error
}

// Notifier is told about every batch that was committed and acknowledged.
type Notifier interface {
	Notify(ctx context.Context, report domain.BatchReport) error
}
