package service

import (
	"errors"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/leshachaplin/loginpipe/internal/domain"
)

type Transformer interface {
	Transform(raw domain.RawEvent) (domain.NormalizedRow, error)
}

// Accumulator folds received messages into a batch. Messages that cannot be
// ingested are skipped and left on the queue.
type Accumulator struct {
	transformer Transformer
	logger      zerolog.Logger
}

func NewAccumulator(transformer Transformer, logger zerolog.Logger) *Accumulator {
	return &Accumulator{
		transformer: transformer,
		logger:      logger,
	}
}

// Build folds msgs into a fresh batch.
func (a *Accumulator) Build(msgs []domain.QueueMessage) domain.Batch {
	batch := domain.Batch{
		Rows:    make([]domain.NormalizedRow, 0, len(msgs)),
		Entries: make([]domain.AckEntry, 0, len(msgs)),
	}
	for i := range msgs {
		batch = a.Fold(batch, msgs[i])
	}
	return batch
}

func (a *Accumulator) Fold(batch domain.Batch, msg domain.QueueMessage) domain.Batch {
	row, err := a.process(msg)
	if err != nil {
		batch.Skipped++
		a.logSkip(msg, err)
		return batch
	}

	batch.Rows = append(batch.Rows, row)
	batch.Entries = append(batch.Entries, domain.AckEntry{
		ID:            msg.ID,
		ReceiptHandle: msg.ReceiptHandle,
	})
	return batch
}

func (a *Accumulator) process(msg domain.QueueMessage) (domain.NormalizedRow, error) {
	raw, err := Decode(msg)
	if err != nil {
		return domain.NormalizedRow{}, err
	}
	if field, ok := raw.HasRequired(); !ok {
		return domain.NormalizedRow{}, &domain.MissingFieldError{MessageID: msg.ID, Field: field}
	}
	return a.transformer.Transform(raw)
}

func (a *Accumulator) logSkip(msg domain.QueueMessage, err error) {
	var missing *domain.MissingFieldError
	if errors.As(err, &missing) {
		a.logger.Info().Str("message_id", msg.ID).Str("field", missing.Field).Msg("Skipping event without required field.")
		return
	}
	a.logger.Warn().Err(err).Str("message_id", msg.ID).Str("body", msg.Body).Msg("Skipping unprocessable event.")
}

// Decode parses a message body into a RawEvent, keeping numbers as json.Number.
func Decode(msg domain.QueueMessage) (domain.RawEvent, error) {
	dec := json.NewDecoder(strings.NewReader(msg.Body))
	dec.UseNumber()

	var raw domain.RawEvent
	if err := dec.Decode(&raw); err != nil {
		return nil, &domain.DecodeError{MessageID: msg.ID, Cause: err}
	}
	if raw == nil {
		return nil, &domain.DecodeError{MessageID: msg.ID, Cause: errors.New("body is not a JSON object")}
	}
	var rest any
	if err := dec.Decode(&rest); !errors.Is(err, io.EOF) {
		return nil, &domain.DecodeError{MessageID: msg.ID, Cause: errors.New("trailing data after JSON object")}
	}
	return raw, nil
}
