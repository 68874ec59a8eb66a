package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"echallan-service/internal/domain/anpr"
	"echallan-service/internal/domain/challan"
)

// MemoryChallans is a process-local challan store used for dry-run scans
// and tests. It follows the same contract as ChallanRepository.
type MemoryChallans struct {
	mu    sync.RWMutex
	items map[string]challan.Challan
}

func NewMemoryChallans() *MemoryChallans {
	return &MemoryChallans{items: make(map[string]challan.Challan)}
}

func clone(c challan.Challan) challan.Challan {
	c.Violations = append([]string(nil), c.Violations...)
	return c
}

func (m *MemoryChallans) Insert(ctx context.Context, c *challan.Challan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.items[c.ID]; dup {
		return fmt.Errorf("duplicate challan id %s", c.ID)
	}
	m.items[c.ID] = clone(*c)
	return nil
}

func (m *MemoryChallans) Find(_ context.Context, id string) (*challan.Challan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	c = clone(c)
	return &c, nil
}

func (m *MemoryChallans) filter(keep func(challan.Challan) bool) []challan.Challan {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]challan.Challan, 0)
	for _, c := range m.items {
		if keep(c) {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out
}

func (m *MemoryChallans) FindByPlateAndStatus(_ context.Context, plate string, status challan.Status) ([]challan.Challan, error) {
	return m.filter(func(c challan.Challan) bool {
		return c.Plate == plate && c.Status == status
	}), nil
}

func (m *MemoryChallans) UpdateStatus(_ context.Context, id string, status challan.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return false, nil
	}
	c.Status = status
	m.items[id] = c
	return true, nil
}

func (m *MemoryChallans) ListRecent(_ context.Context, limit int) ([]challan.Challan, error) {
	all := m.filter(func(challan.Challan) bool { return true })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryChallans) ListSince(_ context.Context, since time.Time) ([]challan.Challan, error) {
	return m.filter(func(c challan.Challan) bool {
		return !c.IssuedAt.Before(since)
	}), nil
}

func (m *MemoryChallans) SumByStatus(_ context.Context, status challan.Status) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, c := range m.filter(func(c challan.Challan) bool { return c.Status == status }) {
		sum = sum.Add(c.FineAmount)
	}
	return sum, nil
}

func (m *MemoryChallans) CountByStatus(_ context.Context, status challan.Status) (int64, error) {
	n := m.filter(func(c challan.Challan) bool { return status == "" || c.Status == status })
	return int64(len(n)), nil
}

func (m *MemoryChallans) CountByViolation(_ context.Context, fragment string) (int64, error) {
	n := m.filter(func(c challan.Challan) bool { return strings.Contains(c.Violation, fragment) })
	return int64(len(n)), nil
}

// MemoryCaptures is the in-process counterpart of CaptureRepository.
type MemoryCaptures struct {
	mu    sync.Mutex
	items []anpr.Capture
}

func NewMemoryCaptures() *MemoryCaptures {
	return &MemoryCaptures{}
}

func (m *MemoryCaptures) Insert(_ context.Context, c *anpr.Capture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, *c)
	return nil
}

func (m *MemoryCaptures) ListRecent(_ context.Context, limit int) ([]anpr.Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]anpr.Capture, 0, len(m.items))
	for i := len(m.items) - 1; i >= 0; i-- {
		out = append(out, m.items[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
