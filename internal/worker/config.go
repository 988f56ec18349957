package worker

import "fmt"

const (
	DefaultBatchSize = 10
	// MaxBatchSize is the largest receive and delete batch the queue accepts.
	MaxBatchSize = 10
)

type Config struct {
	BatchSize int `yaml:"batch_size"`
}

func (c Config) Validate() error {
	if c.BatchSize < 1 || c.BatchSize > MaxBatchSize {
		return fmt.Errorf("worker: batch_size must be between 1 and %d, got %d", MaxBatchSize, c.BatchSize)
	}
	return nil
}
