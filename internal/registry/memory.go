package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"invoice-fraud-detector/internal/models"
	"invoice-fraud-detector/pkg/logger"
)

// MemoryRegistry is the in-process Registry backend
type MemoryRegistry struct {
	mu sync.RWMutex

	// byTime holds every invoice ordered by submission time. Equal
	// timestamps keep insertion order.
	byTime []*models.RegionalInvoice

	// byHash maps content hashes to invoices for the duplicate fast path
	byHash map[string][]*models.RegionalInvoice

	// byRegion maps region keys to their invoices
	byRegion map[string][]*models.RegionalInvoice

	logger logger.Logger
}

// NewMemoryRegistry creates an empty in-memory registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byTime:   make([]*models.RegionalInvoice, 0),
		byHash:   make(map[string][]*models.RegionalInvoice),
		byRegion: make(map[string][]*models.RegionalInvoice),
		logger:   logger.GetGlobalLogger().WithComponent("registry"),
	}
}

// Append stores a copy of inv
func (m *MemoryRegistry) Append(ctx context.Context, inv *models.RegionalInvoice) error {
	if err := validateAppend(inv); err != nil {
		return err
	}

	stored := inv.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Insert after every entry submitted at or before this one
	idx := sort.Search(len(m.byTime), func(i int) bool {
		return m.byTime[i].SubmittedAt.After(stored.SubmittedAt)
	})
	m.byTime = append(m.byTime, nil)
	copy(m.byTime[idx+1:], m.byTime[idx:])
	m.byTime[idx] = stored

	if hash := contentHash(stored); hash != "" {
		m.byHash[hash] = append(m.byHash[hash], stored)
	}
	key := RegionKey(stored.Region)
	m.byRegion[key] = append(m.byRegion[key], stored)

	m.logger.WithFields(logger.Fields{
		"invoice_id": stored.InvoiceID,
		"region":     stored.Region,
		"status":     stored.Status,
		"size":       len(m.byTime),
	}).Debug("Invoice appended")

	return nil
}

// CandidatesWithin implements Registry
func (m *MemoryRegistry) CandidatesWithin(ctx context.Context, ref *models.RegionalInvoice, window time.Duration) ([]*models.RegionalInvoice, error) {
	lo, hi := windowBounds(ref, window)
	refKey := RegionKey(ref.Region)

	m.mu.RLock()
	defer m.mu.RUnlock()

	start := sort.Search(len(m.byTime), func(i int) bool {
		return !m.byTime[i].SubmittedAt.Before(lo)
	})

	result := make([]*models.RegionalInvoice, 0)
	for i := start; i < len(m.byTime); i++ {
		inv := m.byTime[i]
		if inv.SubmittedAt.After(hi) {
			break
		}
		if RegionKey(inv.Region) == refKey {
			continue
		}
		result = append(result, inv.Clone())
	}

	return result, nil
}

// FindByContentHash implements HashIndex
func (m *MemoryRegistry) FindByContentHash(ctx context.Context, hash string) ([]*models.RegionalInvoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := m.byHash[hash]
	result := make([]*models.RegionalInvoice, len(matches))
	for i, inv := range matches {
		result[i] = inv.Clone()
	}
	return result, nil
}

// ByRegion returns the invoices stored for a region, in insertion order
func (m *MemoryRegistry) ByRegion(region string) []*models.RegionalInvoice {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := m.byRegion[RegionKey(region)]
	result := make([]*models.RegionalInvoice, len(matches))
	for i, inv := range matches {
		result[i] = inv.Clone()
	}
	return result
}

// Len implements Registry
func (m *MemoryRegistry) Len(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byTime), nil
}

// Summarize implements Summarizer
func (m *MemoryRegistry) Summarize(ctx context.Context) (*Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := newSummary()
	for _, inv := range m.byTime {
		summary.add(inv)
	}
	return summary, nil
}

// Close is a no-op for the memory backend
func (m *MemoryRegistry) Close() error {
	return nil
}

func contentHash(inv *models.RegionalInvoice) string {
	if inv.Fingerprint == nil {
		return ""
	}
	return inv.Fingerprint.ContentHash
}
