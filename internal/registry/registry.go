// Package registry stores previously processed invoices and answers the
// time-windowed, cross-region candidate queries the detection engine needs.
//
// The store is append-only: entries are never updated or removed. Two
// backends implement the same contract:
//
//   - MemoryRegistry keeps a submission-time ordered slice searched with
//     sort.Search, plus region and content-hash indexes.
//   - SQLiteRegistry persists invoices in a single SQLite table so that the
//     registry survives process restarts.
//
// Window queries are inclusive on both ends: an invoice submitted exactly
// window before or after the reference is a candidate.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"invoice-fraud-detector/internal/models"
	"invoice-fraud-detector/pkg/errors"
)

// Registry is the append-only collection of processed invoices. It is all
// the detection engine requires.
type Registry interface {
	// Append adds an invoice. Existing entries are never modified.
	Append(ctx context.Context, inv *models.RegionalInvoice) error

	// CandidatesWithin returns invoices whose submission time differs from
	// ref's by at most window and whose region key differs from ref's, in
	// submission-time order.
	CandidatesWithin(ctx context.Context, ref *models.RegionalInvoice, window time.Duration) ([]*models.RegionalInvoice, error)

	// Len returns the number of stored invoices
	Len(ctx context.Context) (int, error)

	Close() error
}

// HashIndex is implemented by backends that can look invoices up by the
// content hash of their fingerprint
type HashIndex interface {
	FindByContentHash(ctx context.Context, hash string) ([]*models.RegionalInvoice, error)
}

// Summarizer is implemented by backends that report per-region and
// per-status counts
type Summarizer interface {
	Summarize(ctx context.Context) (*Summary, error)
}

var (
	_ Registry   = (*MemoryRegistry)(nil)
	_ HashIndex  = (*MemoryRegistry)(nil)
	_ Summarizer = (*MemoryRegistry)(nil)
	_ Registry   = (*SQLiteRegistry)(nil)
	_ HashIndex  = (*SQLiteRegistry)(nil)
	_ Summarizer = (*SQLiteRegistry)(nil)
)

// RegionKey is the form in which regions are compared. Two invoices are from
// the same region when their keys are equal.
func RegionKey(region string) string {
	return strings.ToLower(strings.TrimSpace(region))
}

// Backend identifies a registry implementation
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
)

// Config selects and configures a registry backend
type Config struct {
	Backend Backend `json:"backend" mapstructure:"backend"`
	Path    string  `json:"path" mapstructure:"path"`
}

// DefaultConfig returns an in-memory registry configuration
func DefaultConfig() *Config {
	return &Config{Backend: BackendMemory}
}

// Validate checks the backend and path combination
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendSQLite:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("registry path is required for the sqlite backend")
		}
		return nil
	default:
		return fmt.Errorf("unknown registry backend: %s", c.Backend)
	}
}

// New opens the registry described by config
func New(ctx context.Context, config *Config) (Registry, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "registry", config.Backend, err)
	}

	if config.Backend == BackendSQLite {
		reg, err := OpenSQLite(ctx, config.Path)
		if err != nil {
			return nil, err
		}
		return reg, nil
	}
	return NewMemoryRegistry(), nil
}

// Summary describes the registry contents
type Summary struct {
	Total    int            `json:"total"`
	ByRegion map[string]int `json:"by_region"`
	ByStatus map[string]int `json:"by_status"`
	Earliest time.Time      `json:"earliest,omitempty"`
	Latest   time.Time      `json:"latest,omitempty"`
}

func newSummary() *Summary {
	return &Summary{
		ByRegion: make(map[string]int),
		ByStatus: make(map[string]int),
	}
}

func (s *Summary) add(inv *models.RegionalInvoice) {
	s.Total++
	s.ByRegion[inv.Region]++
	s.ByStatus[inv.Status.String()]++
	if s.Earliest.IsZero() || inv.SubmittedAt.Before(s.Earliest) {
		s.Earliest = inv.SubmittedAt
	}
	if inv.SubmittedAt.After(s.Latest) {
		s.Latest = inv.SubmittedAt
	}
}

func validateAppend(inv *models.RegionalInvoice) error {
	if inv == nil {
		return errors.ValidationError(errors.CodeMissingField, "invoice", nil, fmt.Errorf("nil invoice"))
	}
	if err := inv.Validate(); err != nil {
		return errors.ValidationError(errors.CodeInvalidData, "invoice", inv.InvoiceID, err)
	}
	return nil
}

func windowBounds(ref *models.RegionalInvoice, window time.Duration) (time.Time, time.Time) {
	if window < 0 {
		window = -window
	}
	return ref.SubmittedAt.Add(-window), ref.SubmittedAt.Add(window)
}
