package detector

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"invoice-fraud-detector/internal/models"
)

// Observer is notified after every decision
type Observer interface {
	Observe(decision *Decision)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(decision *Decision)

// Observe calls f(decision)
func (f ObserverFunc) Observe(decision *Decision) {
	f(decision)
}

// RunStats summarizes the decisions seen by a StatsObserver
type RunStats struct {
	TotalProcessed      int             `json:"total_invoices_processed"`
	FraudsDetected      int             `json:"frauds_detected"`
	DuplicatesPrevented int             `json:"duplicates_prevented"`
	TotalSavings        decimal.Decimal `json:"total_savings_usd"`
	DetectionRate       float64         `json:"fraud_detection_rate"`
	RegistrySize        int             `json:"database_size"`
	RegionsSeen         []string        `json:"regions_seen"`
	SupportedRegions    []string        `json:"supported_regions"`
	SupportedCurrencies []string        `json:"supported_currencies"`
	Duration            time.Duration   `json:"duration"`
}

// StatsObserver accumulates run statistics. It is safe for concurrent use.
type StatsObserver struct {
	mu sync.Mutex

	started    time.Time
	clock      func() time.Time
	total      int
	frauds     int
	duplicates int
	savings    decimal.Decimal
	regions    map[string]bool
}

// NewStatsObserver creates an observer whose duration is measured from now
func NewStatsObserver() *StatsObserver {
	return &StatsObserver{
		started: time.Now(),
		clock:   time.Now,
		savings: decimal.Zero,
		regions: make(map[string]bool),
	}
}

// Observe implements Observer
func (s *StatsObserver) Observe(decision *Decision) {
	if decision == nil || decision.Invoice == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.regions[decision.Invoice.Region] = true

	if decision.Alert != nil {
		s.frauds++
		s.duplicates += len(decision.Alert.MatchedInvoices) - 1
		s.savings = s.savings.Add(decision.Alert.PotentialLoss)
	}
}

// Stats returns a snapshot. registrySize is reported as given, since the
// observer never queries the registry itself.
func (s *StatsObserver) Stats(registrySize int) RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	regions := make([]string, 0, len(s.regions))
	for region := range s.regions {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	rate := 0.0
	if s.total > 0 {
		rate = float64(s.frauds) / float64(s.total) * 100
	}

	return RunStats{
		TotalProcessed:      s.total,
		FraudsDetected:      s.frauds,
		DuplicatesPrevented: s.duplicates,
		TotalSavings:        s.savings,
		DetectionRate:       rate,
		RegistrySize:        registrySize,
		RegionsSeen:         regions,
		SupportedRegions:    models.SupportedRegions(),
		SupportedCurrencies: models.SupportedCurrencies(),
		Duration:            s.clock().Sub(s.started),
	}
}
