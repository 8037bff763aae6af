package memory

import (
	"context"
	"sort"
	"sync"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

// AnomalyStore is an in-memory implementation of storage.AnomalyStore.
type AnomalyStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AnomalyRecord // keyed by record ID
	seq  []string                         // insertion order, oldest first
}

// NewAnomalyStore creates a new in-memory anomaly store.
func NewAnomalyStore() *AnomalyStore {
	return &AnomalyStore{
		data: make(map[string]*domain.AnomalyRecord),
	}
}

// Compile-time interface check.
var _ storage.AnomalyStore = (*AnomalyStore)(nil)

// Insert adds an anomaly record. Returns ErrDuplicateKey if the ID exists.
func (s *AnomalyStore) Insert(_ context.Context, r *domain.AnomalyRecord) error {
	if r == nil || r.ID == "" || r.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	recordCopy := *r
	s.data[r.ID] = &recordCopy
	s.seq = append(s.seq, r.ID)
	return nil
}

// GetRecent retrieves up to limit records across all symbols, most recent first.
// Ties on timestamp resolve to insertion order, newest insert first.
func (s *AnomalyStore) GetRecent(_ context.Context, limit int) ([]*domain.AnomalyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(limit, func(*domain.AnomalyRecord) bool { return true }), nil
}

// GetBySymbol retrieves up to limit records for a symbol, most recent first.
func (s *AnomalyStore) GetBySymbol(_ context.Context, symbol string, limit int) ([]*domain.AnomalyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(limit, func(r *domain.AnomalyRecord) bool { return r.Symbol == symbol }), nil
}

// collect returns copies of matching records, most recent first. Caller
// holds at least a read lock.
func (s *AnomalyStore) collect(limit int, match func(*domain.AnomalyRecord) bool) []*domain.AnomalyRecord {
	order := make(map[string]int, len(s.seq))
	for i, id := range s.seq {
		order[id] = i
	}

	var result []*domain.AnomalyRecord
	for _, r := range s.data {
		if match(r) {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs > result[j].TimestampMs
		}
		return order[result[i].ID] > order[result[j].ID]
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
