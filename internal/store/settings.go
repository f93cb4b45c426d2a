package store

import (
	"sync"

	"github.com/sashu2310/streamgate/internal/manifest"
)

// SettingsStore holds scalar data-plane knobs.
type SettingsStore struct {
	mu        sync.RWMutex
	batchSize int
}

// NewSettingsStore creates a SettingsStore. An out-of-range initial batch
// size falls back to manifest.DefaultBatchSize.
func NewSettingsStore(batchSize int) *SettingsStore {
	if checkBatchSize(batchSize) != nil {
		batchSize = manifest.DefaultBatchSize
	}
	return &SettingsStore{batchSize: batchSize}
}

func (s *SettingsStore) BatchSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batchSize
}

// SetBatchSize replaces the batch size if n is within range.
func (s *SettingsStore) SetBatchSize(n int) error {
	if err := checkBatchSize(n); err != nil {
		return err
	}
	s.mu.Lock()
	s.batchSize = n
	s.mu.Unlock()
	return nil
}

func checkBatchSize(n int) error {
	if n < manifest.MinBatchSize || n > manifest.MaxBatchSize {
		return invalid("batch_size", ErrOutOfRange, "batch_size %d must be between %d and %d",
			n, manifest.MinBatchSize, manifest.MaxBatchSize)
	}
	return nil
}
