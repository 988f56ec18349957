package worker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/leshachaplin/loginpipe/internal/domain"
)

// Acknowledger removes persisted messages from the queue.
type Acknowledger struct {
	queue  Queue
	logger zerolog.Logger
}

func NewAcknowledger(queue Queue, logger zerolog.Logger) *Acknowledger {
	return &Acknowledger{
		queue:  queue,
		logger: logger,
	}
}

// Acknowledge deletes entries with one batched request. Anything short of a
// full deletion is an *domain.AckError.
func (a *Acknowledger) Acknowledge(ctx context.Context, entries []domain.AckEntry) error {
	if len(entries) == 0 {
		return nil
	}

	a.logger.Info().Int("entries", len(entries)).Msg("Clearing processed messages from queue.")
	res, err := a.queue.DeleteBatch(ctx, entries)
	if err != nil {
		return &domain.AckError{Submitted: len(entries), Cause: err}
	}
	if len(res.Successful) != len(entries) {
		return &domain.AckError{
			Submitted: len(entries),
			Deleted:   len(res.Successful),
			Failed:    res.Failed,
		}
	}
	return nil
}
