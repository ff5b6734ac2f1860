package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"stockmaster/console/internal/domain"
	"stockmaster/console/internal/xid"
)

// AuditLog keeps operator audit entries in process memory.
type AuditLog struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
}

func NewAuditLog() *AuditLog {
	return &AuditLog{entries: make([]domain.AuditEntry, 0, 128)}
}

func (a *AuditLog) Record(_ context.Context, entry domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	a.entries = append(a.entries, entry)
	return nil
}

// List returns the newest entries first.
func (a *AuditLog) List(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := slices.Clone(a.entries)
	slices.Reverse(result)
	slices.SortStableFunc(result, func(x, y domain.AuditEntry) int {
		return y.CreatedAt.Compare(x.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
