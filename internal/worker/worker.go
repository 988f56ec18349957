package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/leshachaplin/loginpipe/internal/domain"
)

type State string

const (
	StateIdle          State = "IDLE"
	StateReceiving     State = "RECEIVING"
	StateProcessing    State = "PROCESSING"
	StateCommitting    State = "COMMITTING"
	StateAcknowledging State = "ACKNOWLEDGING"
	StateDone          State = "DONE"
	StateFailed        State = "FAILED"
	StateStopped       State = "STOPPED"
)

// Builder turns one receive worth of messages into a batch.
type Builder interface {
	Build(msgs []domain.QueueMessage) domain.Batch
}

// Stats are the counters of one run.
type Stats struct {
	RunID        string `json:"run_id"`
	State        State  `json:"state"`
	Cycles       int    `json:"cycles"`
	Received     int    `json:"received"`
	Persisted    int    `json:"persisted"`
	Skipped      int    `json:"skipped"`
	Acknowledged int    `json:"acknowledged"`
	Error        string `json:"error,omitempty"`
}

type Option func(*Worker)

func WithNotifier(n Notifier) Option {
	return func(w *Worker) {
		w.notifier = n
	}
}

func WithRunID(id string) Option {
	return func(w *Worker) {
		w.runID = id
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// Worker drains the queue batch by batch: receive, build, commit, acknowledge.
// It stops when a receive comes back empty or on the first batch-level error.
type Worker struct {
	batchSize int
	queue     Queue
	builder   Builder
	sink      Sink
	acker     *Acknowledger
	notifier  Notifier
	runID     string
	now       func() time.Time
	logger    zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

func New(cfg Config, queue Queue, builder Builder, sink Sink, logger zerolog.Logger, opts ...Option) *Worker {
	w := &Worker{
		batchSize: cfg.BatchSize,
		queue:     queue,
		builder:   builder,
		sink:      sink,
		now:       time.Now,
		logger:    logger,
	}
	if w.batchSize <= 0 {
		w.batchSize = DefaultBatchSize
	}
	for _, opt := range opts {
		opt(w)
	}

	// An injected run id is already carried by the caller's logger.
	if w.runID == "" {
		w.runID = uuid.NewString()
		w.logger = logger.With().Str("run_id", w.runID).Logger()
	}
	w.acker = NewAcknowledger(queue, w.logger)
	w.stats = Stats{RunID: w.runID, State: StateIdle}
	return w
}

// Run drives the loop until the queue is empty. Cancelling ctx stops it
// before the next receive; a received batch is always committed and
// acknowledged under a context that ignores the cancellation.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Int("batch_size", w.batchSize).Msg("Running data pipeline.")

	for {
		if err := ctx.Err(); err != nil {
			w.stop(err)
			return err
		}

		w.setState(StateReceiving)
		w.logger.Debug().Msg("Reading messages from queue.")
		msgs, err := w.queue.Receive(ctx, w.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				w.stop(ctx.Err())
				return ctx.Err()
			}
			return w.fail(fmt.Errorf("receive messages: %w", err))
		}

		if len(msgs) == 0 {
			w.setState(StateDone)
			w.logger.Info().Msg("No more messages to read. Queue empty.")
			return nil
		}

		if err := w.cycle(context.WithoutCancel(ctx), msgs); err != nil {
			return w.fail(err)
		}
	}
}

func (w *Worker) cycle(ctx context.Context, msgs []domain.QueueMessage) error {
	cycle := w.update(func(s *Stats) {
		s.Cycles++
		s.Received += len(msgs)
	}).Cycles
	l := w.logger.With().Int("cycle", cycle).Logger()
	l.Info().Int("messages", len(msgs)).Msg("Total new messages received.")

	w.setState(StateProcessing)
	batch := w.builder.Build(msgs)
	w.update(func(s *Stats) { s.Skipped += batch.Skipped })
	if batch.Empty() {
		l.Info().Int("skipped", batch.Skipped).Msg("No processable messages in batch.")
		return nil
	}

	w.setState(StateCommitting)
	l.Debug().Int("rows", len(batch.Rows)).Msg("Committing batch.")
	if err := w.sink.Commit(ctx, batch.Rows); err != nil {
		var persistErr *domain.PersistError
		if !errors.As(err, &persistErr) {
			err = domain.NewPersistError(domain.PersistUnknown, len(batch.Rows), err)
		}
		return err
	}
	w.update(func(s *Stats) { s.Persisted += len(batch.Rows) })

	w.setState(StateAcknowledging)
	if err := w.acker.Acknowledge(ctx, batch.Entries); err != nil {
		return err
	}
	w.update(func(s *Stats) { s.Acknowledged += len(batch.Entries) })
	l.Info().Int("rows", len(batch.Rows)).Int("skipped", batch.Skipped).Msg("Successfully inserted new messages in database.")

	w.notify(ctx, l, batch)
	return nil
}

func (w *Worker) notify(ctx context.Context, l zerolog.Logger, batch domain.Batch) {
	if w.notifier == nil {
		return
	}
	report := domain.BatchReport{
		ID:          uuid.NewString(),
		RunID:       w.runID,
		Rows:        len(batch.Rows),
		Skipped:     batch.Skipped,
		CreateDate:  batch.Rows[0].CreateDate.Format(time.DateOnly),
		CommittedAt: w.now().UTC(),
	}
	if err := w.notifier.Notify(ctx, report); err != nil {
		l.Warn().Err(err).Str("report_id", report.ID).Msg("Failed to publish batch report.")
	}
}

// Stats returns a snapshot of the run counters.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Worker) update(fn func(s *Stats)) Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.stats)
	return w.stats
}

func (w *Worker) setState(state State) {
	w.update(func(s *Stats) { s.State = state })
}

func (w *Worker) fail(err error) error {
	w.update(func(s *Stats) {
		s.State = StateFailed
		s.Error = err.Error()
	})
	w.logger.Error().Err(err).Msg("Pipeline stopped on batch failure.")
	return err
}

// Stopped reports whether the run ended on cancellation between batches.
func (w *Worker) Stopped() bool {
	return w.Stats().State == StateStopped
}

func (w *Worker) stop(err error) {
	w.update(func(s *Stats) { s.State = StateStopped })
	w.logger.Info().Err(err).Msg("Pipeline cancelled between batches.")
}
