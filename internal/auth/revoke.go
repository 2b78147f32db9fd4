package auth

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Revoker records revoked token ids until a given time.
// internal/cache provides the redis implementation used in production.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevoker is a process-local Revoker for single-instance deployments
// and tests. Entries are dropped lazily once they expire.
type MemoryRevoker struct {
	entries *xsync.MapOf[string, time.Time]
	now     func() time.Time
}

var _ Revoker = (*MemoryRevoker)(nil)

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{
		entries: xsync.NewMapOf[string, time.Time](),
		now:     time.Now,
	}
}

func (m *MemoryRevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.entries.Store(tokenID, until)
	m.sweep()
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	until, ok := m.entries.Load(tokenID)
	if !ok {
		return false, nil
	}
	if !m.now().Before(until) {
		m.entries.Delete(tokenID)
		return false, nil
	}
	return true, nil
}

// Len reports the number of live entries.
func (m *MemoryRevoker) Len() int {
	m.sweep()
	return m.entries.Size()
}

func (m *MemoryRevoker) sweep() {
	now := m.now()
	m.entries.Range(func(id string, until time.Time) bool {
		if !now.Before(until) {
			m.entries.Delete(id)
		}
		return true
	})
}
