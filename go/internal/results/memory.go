package results

import (
	"context"
	"sync"

	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/models"
)

// MemoryRepository keeps the last N results in a ring
type MemoryRepository struct {
	mu      sync.RWMutex
	results []models.RoundResult
	next    int
	full    bool
}

func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryRepository{results: make([]models.RoundResult, capacity)}
}

func (r *MemoryRepository) SaveRound(ctx context.Context, result models.RoundResult) error {
	if err := validate(result); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.results[r.next] = clone(result)
	r.next = (r.next + 1) % len(r.results)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

func (r *MemoryRepository) ListRecent(ctx context.Context, limit int) ([]models.RoundResult, error) {
	limit = normalizeLimit(limit)

	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.next
	if r.full {
		size = len(r.results)
	}
	if limit > size {
		limit = size
	}

	out := make([]models.RoundResult, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.results)) % len(r.results)
		out = append(out, clone(r.results[idx]))
	}
	return out, nil
}

func clone(result models.RoundResult) models.RoundResult {
	placements := make([]models.Placement, len(result.Placements))
	for i, p := range result.Placements {
		if p.FinishedTime != nil {
			ft := *p.FinishedTime
			p.FinishedTime = &ft
		}
		placements[i] = p
	}
	result.Placements = placements
	return result
}
