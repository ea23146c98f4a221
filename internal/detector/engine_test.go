package detector

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"invoice-fraud-detector/internal/matcher"
	"invoice-fraud-detector/internal/models"
	"invoice-fraud-detector/internal/registry"
	"invoice-fraud-detector/internal/scenarios"
	"invoice-fraud-detector/pkg/errors"
)

var (
	base      = time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)
	fixedNow  = time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)
	fixedTime = func() time.Time { return fixedNow }
)

func newTestEngine(t *testing.T, config *matcher.DetectionConfig, opts ...Option) (*Engine, *registry.MemoryRegistry) {
	t.Helper()
	reg := registry.NewMemoryRegistry()
	engine, err := NewEngine(reg, config, append([]Option{WithClock(fixedTime)}, opts...)...)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine, reg
}

func runScenario(t *testing.T, engine *Engine, s *scenarios.Scenario) []*Decision {
	t.Helper()
	decisions := make([]*Decision, 0, len(s.Submissions))
	for _, sub := range s.Submissions {
		decision, err := engine.Process(context.Background(), sub)
		if err != nil {
			t.Fatalf("Process(%s) error = %v", sub.InvoiceID, err)
		}
		decisions = append(decisions, decision)
	}
	return decisions
}

func flaggedIDs(decisions []*Decision) []string {
	var ids []string
	for _, d := range decisions {
		if d.Flagged() {
			ids = append(ids, d.Invoice.InvoiceID)
		}
	}
	return ids
}

func registrySize(t *testing.T, reg registry.Registry) int {
	t.Helper()
	n, err := reg.Len(context.Background())
	if err != nil {
		t.Fatalf("Len() error = %v", err)
	}
	return n
}

func TestCrossRegionDuplicateRaisesAlert(t *testing.T) {
	s := scenarios.CrossRegionDuplicate(base)
	engine, reg := newTestEngine(t, s.Config)

	decisions := runScenario(t, engine, s)
	if len(decisions) != 2 {
		t.Fatalf("got %d decisions, want 2", len(decisions))
	}

	first := decisions[0]
	if first.Alert != nil {
		t.Errorf("first submission raised alert %s", first.Alert.AlertID)
	}
	if first.Invoice.Status != models.StatusStored {
		t.Errorf("first status = %s, want stored", first.Invoice.Status)
	}
	if first.Candidates != 0 {
		t.Errorf("first candidates = %d, want 0", first.Candidates)
	}

	second := decisions[1]
	if second.Alert == nil {
		t.Fatal("second submission should raise an alert")
	}
	alert := second.Alert

	if second.Invoice.Status != models.StatusFlagged {
		t.Errorf("second status = %s, want flagged", second.Invoice.Status)
	}
	if want := []string{"Germany", "USA"}; !reflect.DeepEqual(alert.AffectedRegions, want) {
		t.Errorf("AffectedRegions = %v, want %v", alert.AffectedRegions, want)
	}
	if !alert.PotentialLoss.Equal(decimal.NewFromInt(55000)) {
		t.Errorf("PotentialLoss = %s, want 55000", alert.PotentialLoss)
	}
	if alert.ConfidenceScore <= 0.75 || alert.ConfidenceScore > 0.99 {
		t.Errorf("ConfidenceScore = %f, want in (0.75, 0.99]", alert.ConfidenceScore)
	}
	if alert.FraudType != models.FraudTypeMultiRegional {
		t.Errorf("FraudType = %s, want %s", alert.FraudType, models.FraudTypeMultiRegional)
	}
	if alert.AlertID != "FRAUD-20240311-113000-USA" {
		t.Errorf("AlertID = %s", alert.AlertID)
	}
	if !alert.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v, want %v", alert.CreatedAt, fixedNow)
	}
	if want := []string{"US-1", "DE-1"}; !reflect.DeepEqual(alert.InvoiceIDs(), want) {
		t.Errorf("InvoiceIDs() = %v, want %v", alert.InvoiceIDs(), want)
	}

	if len(alert.Evidence) != 1 {
		t.Fatalf("got %d evidence entries, want 1", len(alert.Evidence))
	}
	evidence := alert.Evidence[0]
	if evidence.InvoiceID != "DE-1" {
		t.Errorf("evidence invoice = %s, want DE-1", evidence.InvoiceID)
	}
	if evidence.Similarity.PO != 1.0 {
		t.Errorf("PO similarity = %f, want 1.0", evidence.Similarity.PO)
	}
	if math.Abs(evidence.Similarity.Address-26.0/35.0) > 1e-9 {
		t.Errorf("address similarity = %f, want %f", evidence.Similarity.Address, 26.0/35.0)
	}
	if evidence.Similarity.LineItems != 1.0 {
		t.Errorf("line item similarity = %f, want 1.0", evidence.Similarity.LineItems)
	}
	if evidence.Similarity.Overall <= 0.85 {
		t.Errorf("overall similarity = %f, want > 0.85", evidence.Similarity.Overall)
	}
	if evidence.Currency.CurrencyPair != "USD-EUR" {
		t.Errorf("CurrencyPair = %s, want USD-EUR", evidence.Currency.CurrencyPair)
	}
	if evidence.Currency.VariancePercent != 7.27 {
		t.Errorf("VariancePercent = %f, want 7.27", evidence.Currency.VariancePercent)
	}
	if !evidence.Currency.Suspicious {
		t.Error("currency analysis should be suspicious")
	}
	if evidence.Timing.HoursApart != 2.0 {
		t.Errorf("HoursApart = %f, want 2", evidence.Timing.HoursApart)
	}
	if evidence.Timing.Pattern != models.TimingSequential {
		t.Errorf("timing pattern = %s, want %s", evidence.Timing.Pattern, models.TimingSequential)
	}
	if !evidence.Timing.Suspicious {
		t.Error("timing analysis should be suspicious")
	}

	if want := "$55,000.00 potential duplicate payments prevented"; alert.BusinessImpact.Financial != want {
		t.Errorf("Financial = %q, want %q", alert.BusinessImpact.Financial, want)
	}
	if want := "2 regional offices affected - coordinated response required"; alert.BusinessImpact.Operational != want {
		t.Errorf("Operational = %q, want %q", alert.BusinessImpact.Operational, want)
	}

	if n := registrySize(t, reg); n != 2 {
		t.Errorf("registry size = %d, want 2", n)
	}
}

func TestUnrelatedInvoicesAreStored(t *testing.T) {
	s := scenarios.UnrelatedInvoices(base)
	engine, reg := newTestEngine(t, s.Config)

	decisions := runScenario(t, engine, s)

	if flagged := flaggedIDs(decisions); len(flagged) != 0 {
		t.Errorf("flagged %v, want none", flagged)
	}
	// the first invoice is in the window
	if decisions[1].Candidates != 1 {
		t.Errorf("candidates = %d, want 1", decisions[1].Candidates)
	}
	if decisions[1].Matches != 0 {
		t.Errorf("matches = %d, want 0", decisions[1].Matches)
	}

	summary, err := reg.Summarize(context.Background())
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if n := summary.ByStatus[models.StatusStored.String()]; n != 2 {
		t.Errorf("stored count = %d, want 2", n)
	}
}

func TestIdenticalInvoicesOutsideWindow(t *testing.T) {
	s := scenarios.OutsideWindow(base)
	engine, _ := newTestEngine(t, s.Config)

	decisions := runScenario(t, engine, s)

	if flagged := flaggedIDs(decisions); len(flagged) != 0 {
		t.Errorf("flagged %v, want none", flagged)
	}
	if decisions[1].Candidates != 0 {
		t.Errorf("candidates = %d, want 0", decisions[1].Candidates)
	}
	// identical text is still noticed
	if decisions[1].HashDuplicates != 1 {
		t.Errorf("hash duplicates = %d, want 1", decisions[1].HashDuplicates)
	}
}

// minimalRegistry exposes only the Registry methods, without hash lookup or
// summaries
type minimalRegistry struct {
	inner *registry.MemoryRegistry
}

func (m *minimalRegistry) Append(ctx context.Context, inv *models.RegionalInvoice) error {
	return m.inner.Append(ctx, inv)
}

func (m *minimalRegistry) CandidatesWithin(ctx context.Context, ref *models.RegionalInvoice, window time.Duration) ([]*models.RegionalInvoice, error) {
	return m.inner.CandidatesWithin(ctx, ref, window)
}

func (m *minimalRegistry) Len(ctx context.Context) (int, error) {
	return m.inner.Len(ctx)
}

func (m *minimalRegistry) Close() error {
	return m.inner.Close()
}

func TestEngineWithoutHashIndex(t *testing.T) {
	reg := &minimalRegistry{inner: registry.NewMemoryRegistry()}
	if _, ok := registry.Registry(reg).(registry.HashIndex); ok {
		t.Fatal("minimalRegistry should not implement HashIndex")
	}

	engine, err := NewEngine(reg, nil, WithClock(fixedTime))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	s := scenarios.CrossRegionDuplicate(base)
	decisions := runScenario(t, engine, s)
	if want := []string{"US-1"}; !reflect.DeepEqual(flaggedIDs(decisions), want) {
		t.Errorf("flagged %v, want %v", flaggedIDs(decisions), want)
	}

	outside := scenarios.OutsideWindow(base.Add(30 * 24 * time.Hour))
	decisions = runScenario(t, engine, outside)
	if n := decisions[1].HashDuplicates; n != 0 {
		t.Errorf("hash duplicates = %d, want 0 without a hash index", n)
	}

	if n := registrySize(t, reg); n != 4 {
		t.Errorf("registry size = %d, want 4", n)
	}
}

func TestWindowBoundaryIsInclusive(t *testing.T) {
	s := scenarios.OutsideWindow(base)

	tests := []struct {
		name    string
		gap     time.Duration
		flagged bool
	}{
		{"exactly at the window", 72 * time.Hour, true},
		{"one second past the window", 72*time.Hour + time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newTestEngine(t, nil)

			first := *s.Submissions[0]
			second := *s.Submissions[1]
			second.SubmittedAt = first.SubmittedAt.Add(tt.gap)

			if _, err := engine.Process(context.Background(), &first); err != nil {
				t.Fatalf("Process(first) error = %v", err)
			}
			decision, err := engine.Process(context.Background(), &second)
			if err != nil {
				t.Fatalf("Process(second) error = %v", err)
			}

			if decision.Flagged() != tt.flagged {
				t.Errorf("Flagged() = %v, want %v", decision.Flagged(), tt.flagged)
			}
		})
	}
}

func TestDemoScenario(t *testing.T) {
	s := scenarios.MultiRegionalAttack()
	stats := NewStatsObserver()
	engine, reg := newTestEngine(t, s.Config, WithObserver(stats))

	decisions := runScenario(t, engine, s)
	if got := flaggedIDs(decisions); !reflect.DeepEqual(got, s.ExpectFlagged) {
		t.Errorf("flagged %v, want %v", got, s.ExpectFlagged)
	}

	uk := decisions[3].Alert
	if uk == nil {
		t.Fatal("UK submission should raise an alert")
	}
	if want := []string{"Germany", "UK", "USA"}; !reflect.DeepEqual(uk.AffectedRegions, want) {
		t.Errorf("AffectedRegions = %v, want %v", uk.AffectedRegions, want)
	}
	if want := []string{"UK-2024-3310", "DE-2024-1001", "US-2024-2156"}; !reflect.DeepEqual(uk.InvoiceIDs(), want) {
		t.Errorf("InvoiceIDs() = %v, want %v", uk.InvoiceIDs(), want)
	}
	// 59000 + 55000 + 55040 USD, less the German original
	if got := uk.PotentialLoss.StringFixed(2); got != "110040.00" {
		t.Errorf("PotentialLoss = %s, want 110040.00", got)
	}
	if uk.ConfidenceScore != 0.99 {
		t.Errorf("ConfidenceScore = %f, want 0.99", uk.ConfidenceScore)
	}
	if uk.RecommendedAction.Tier != models.TierImmediate {
		t.Errorf("tier = %s, want %s", uk.RecommendedAction.Tier, models.TierImmediate)
	}

	india := reg.ByRegion("India")
	if len(india) != 1 || india[0].Status != models.StatusStored {
		t.Errorf("India invoices = %+v, want one stored invoice", india)
	}

	run := stats.Stats(4)
	if run.TotalProcessed != 4 || run.FraudsDetected != 2 || run.DuplicatesPrevented != 3 {
		t.Errorf("processed/frauds/duplicates = %d/%d/%d, want 4/2/3",
			run.TotalProcessed, run.FraudsDetected, run.DuplicatesPrevented)
	}
	if got := run.TotalSavings.StringFixed(2); got != "165040.00" {
		t.Errorf("TotalSavings = %s, want 165040.00", got)
	}
	if run.DetectionRate != 50.0 {
		t.Errorf("DetectionRate = %f, want 50", run.DetectionRate)
	}
	if want := []string{"Germany", "India", "UK", "USA"}; !reflect.DeepEqual(run.RegionsSeen, want) {
		t.Errorf("RegionsSeen = %v, want %v", run.RegionsSeen, want)
	}
	if want := []string{"CAD", "EUR", "GBP", "INR", "USD"}; !reflect.DeepEqual(run.SupportedCurrencies, want) {
		t.Errorf("SupportedCurrencies = %v, want %v", run.SupportedCurrencies, want)
	}
}

func TestFlaggedInvoicesAreRecorded(t *testing.T) {
	s := scenarios.CrossRegionDuplicate(base)
	engine, reg := newTestEngine(t, s.Config)

	runScenario(t, engine, s)

	usa := reg.ByRegion("usa")
	if len(usa) != 1 || usa[0].Status != models.StatusFlagged {
		t.Fatalf("USA invoices = %+v, want one flagged invoice", usa)
	}

	// A third copy still sees the flagged one as a candidate
	third := *s.Submissions[1]
	third.InvoiceID = "UK-1"
	third.Region = "UK"
	third.Currency = "GBP"
	third.TotalAmount = decimal.NewFromInt(43000)
	third.SubmittedAt = base.Add(4 * time.Hour)

	decision, err := engine.Process(context.Background(), &third)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if decision.Matches != 2 {
		t.Errorf("matches = %d, want 2", decision.Matches)
	}
	if !decision.Flagged() {
		t.Error("third copy should be flagged")
	}
}

func TestConcurrentDuplicatesFlagExactlyOne(t *testing.T) {
	for i := 0; i < 20; i++ {
		s := scenarios.CrossRegionDuplicate(base)
		engine, reg := newTestEngine(t, s.Config)

		var wg sync.WaitGroup
		results := make([]*Decision, len(s.Submissions))
		errs := make([]error, len(s.Submissions))
		for j, sub := range s.Submissions {
			wg.Add(1)
			go func(j int, sub *models.InvoiceSubmission) {
				defer wg.Done()
				results[j], errs[j] = engine.Process(context.Background(), sub)
			}(j, sub)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				t.Fatalf("iteration %d: Process() error = %v", i, err)
			}
		}
		if flagged := flaggedIDs(results); len(flagged) != 1 {
			t.Errorf("iteration %d: flagged %v, want exactly one", i, flagged)
		}
		if n := registrySize(t, reg); n != 2 {
			t.Errorf("iteration %d: registry size = %d, want 2", i, n)
		}
	}
}

func TestMonitorTierWithLowAlertThreshold(t *testing.T) {
	config := matcher.DefaultDetectionConfig()
	config.Weights = matcher.SimilarityWeights{PO: 0.6}
	config.SimilarityThreshold = 0.3
	config.AlertThreshold = 0.5
	config.Confidence.CurrencyBoost = 0
	config.Confidence.TimingBoost = 0

	s := scenarios.CrossRegionDuplicate(base)
	engine, _ := newTestEngine(t, config)

	decisions := runScenario(t, engine, s)
	if !decisions[1].Flagged() {
		t.Fatal("second submission should be flagged")
	}
	if math.Abs(decisions[1].Confidence-0.6) > 1e-9 {
		t.Errorf("Confidence = %f, want 0.6", decisions[1].Confidence)
	}
	if tier := decisions[1].Alert.RecommendedAction.Tier; tier != models.TierMonitor {
		t.Errorf("tier = %s, want %s", tier, models.TierMonitor)
	}
}

func TestProcessFallbacks(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	tests := []struct {
		name  string
		sub   *models.InvoiceSubmission
		check func(t *testing.T, inv *models.RegionalInvoice)
	}{
		{
			name: "missing id gets a uuid",
			sub:  &models.InvoiceSubmission{Region: "France", TotalAmount: decimal.NewFromInt(10), SubmittedAt: base},
			check: func(t *testing.T, inv *models.RegionalInvoice) {
				if len(inv.InvoiceID) != 36 {
					t.Errorf("InvoiceID = %q, want a uuid", inv.InvoiceID)
				}
			},
		},
		{
			name: "currency from region",
			sub:  &models.InvoiceSubmission{InvoiceID: "FR-1", Region: "france", TotalAmount: decimal.NewFromInt(10), SubmittedAt: base},
			check: func(t *testing.T, inv *models.RegionalInvoice) {
				if inv.Currency != "EUR" {
					t.Errorf("Currency = %s, want EUR", inv.Currency)
				}
			},
		},
		{
			name: "currency for unknown region",
			sub:  &models.InvoiceSubmission{InvoiceID: "BR-1", Region: "Brazil", TotalAmount: decimal.NewFromInt(10), SubmittedAt: base},
			check: func(t *testing.T, inv *models.RegionalInvoice) {
				if inv.Currency != FallbackCurrency {
					t.Errorf("Currency = %s, want %s", inv.Currency, FallbackCurrency)
				}
			},
		},
		{
			name: "amount from text",
			sub:  &models.InvoiceSubmission{InvoiceID: "UK-9", Region: "UK", Text: "Subtotal: £900.00\nTotal: £1,080.00", SubmittedAt: base},
			check: func(t *testing.T, inv *models.RegionalInvoice) {
				if got := inv.TotalAmount.String(); got != "1080" {
					t.Errorf("TotalAmount = %s, want 1080", got)
				}
			},
		},
		{
			name: "missing timestamp uses the clock",
			sub:  &models.InvoiceSubmission{InvoiceID: "CA-9", Region: "Canada"},
			check: func(t *testing.T, inv *models.RegionalInvoice) {
				if !inv.SubmittedAt.Equal(fixedNow) {
					t.Errorf("SubmittedAt = %v, want %v", inv.SubmittedAt, fixedNow)
				}
				if inv.Currency != "CAD" {
					t.Errorf("Currency = %s, want CAD", inv.Currency)
				}
			},
		},
		{
			name: "empty submission",
			sub:  &models.InvoiceSubmission{},
			check: func(t *testing.T, inv *models.RegionalInvoice) {
				if inv.Region != models.UnknownRegion {
					t.Errorf("Region = %s, want %s", inv.Region, models.UnknownRegion)
				}
				if !inv.TotalAmount.IsZero() {
					t.Errorf("TotalAmount = %s, want 0", inv.TotalAmount)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := engine.Process(context.Background(), tt.sub)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if decision.Invoice.Status != models.StatusStored {
				t.Errorf("status = %s, want stored", decision.Invoice.Status)
			}
			tt.check(t, decision.Invoice)
		})
	}

	decision, err := engine.Process(context.Background(), nil)
	if err != nil {
		t.Fatalf("Process(nil) error = %v", err)
	}
	if decision.Invoice.InvoiceID == "" {
		t.Error("nil submission should get an invoice id")
	}
}

func TestNewEngineValidation(t *testing.T) {
	tests := []struct {
		name     string
		registry registry.Registry
		config   func() *matcher.DetectionConfig
		category errors.ErrorCategory
	}{
		{
			name:     "nil registry",
			config:   func() *matcher.DetectionConfig { return nil },
			category: errors.CategoryValidation,
		},
		{
			name:     "invalid config",
			registry: registry.NewMemoryRegistry(),
			config: func() *matcher.DetectionConfig {
				config := matcher.DefaultDetectionConfig()
				config.AlertThreshold = 2
				return config
			},
			category: errors.CategoryConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.registry, tt.config())
			if err == nil {
				t.Fatal("NewEngine() should fail")
			}
			detectorErr, ok := errors.AsDetectorError(err)
			if !ok {
				t.Fatalf("error %v is not a DetectorError", err)
			}
			if detectorErr.Category != tt.category {
				t.Errorf("Category = %s, want %s", detectorErr.Category, tt.category)
			}
		})
	}
}

func TestProcessCancelledBeforeStart(t *testing.T) {
	engine, reg := newTestEngine(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Process(ctx, scenarios.CrossRegionDuplicate(base).Submissions[0])
	if err == nil {
		t.Fatal("Process() with a cancelled context should fail")
	}
	detectorErr, ok := errors.AsDetectorError(err)
	if !ok {
		t.Fatalf("error %v is not a DetectorError", err)
	}
	if detectorErr.Code != errors.CodeCancelled {
		t.Errorf("Code = %s, want %s", detectorErr.Code, errors.CodeCancelled)
	}

	if n := registrySize(t, reg); n != 0 {
		t.Errorf("registry size = %d, want 0", n)
	}
}

type failingRegistry struct {
	*registry.MemoryRegistry
	appendErr error
	queryErr  error
}

func (f *failingRegistry) Append(ctx context.Context, inv *models.RegionalInvoice) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.MemoryRegistry.Append(ctx, inv)
}

func (f *failingRegistry) CandidatesWithin(ctx context.Context, ref *models.RegionalInvoice, window time.Duration) ([]*models.RegionalInvoice, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.MemoryRegistry.CandidatesWithin(ctx, ref, window)
}

func TestRegistryFailuresAbort(t *testing.T) {
	tests := []struct {
		name     string
		registry *failingRegistry
		code     errors.ErrorCode
	}{
		{
			name:     "append",
			registry: &failingRegistry{MemoryRegistry: registry.NewMemoryRegistry(), appendErr: fmt.Errorf("disk full")},
			code:     errors.CodeWriteFailed,
		},
		{
			name:     "query",
			registry: &failingRegistry{MemoryRegistry: registry.NewMemoryRegistry(), queryErr: fmt.Errorf("database is locked")},
			code:     errors.CodeQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngine(tt.registry, nil, WithClock(fixedTime))
			if err != nil {
				t.Fatalf("NewEngine() error = %v", err)
			}

			decision, err := engine.Process(context.Background(), scenarios.CrossRegionDuplicate(base).Submissions[0])
			if err == nil {
				t.Fatal("Process() should fail")
			}
			if decision != nil {
				t.Errorf("decision = %+v, want nil", decision)
			}

			detectorErr, ok := errors.AsDetectorError(err)
			if !ok {
				t.Fatalf("error %v is not a DetectorError", err)
			}
			if detectorErr.Category != errors.CategoryStorage {
				t.Errorf("Category = %s, want storage", detectorErr.Category)
			}
			if detectorErr.Code != tt.code {
				t.Errorf("Code = %s, want %s", detectorErr.Code, tt.code)
			}
		})
	}
}

func TestPotentialLossPresumesEarliestLegitimate(t *testing.T) {
	currency := matcher.NewCurrencyReconciler(nil, 0.1)
	invoice := func(id string, amount int64, at time.Time) *models.RegionalInvoice {
		return models.NewRegionalInvoice(id, "USA", "USD", decimal.NewFromInt(amount), at, nil)
	}

	current := invoice("C", 100, base.Add(time.Hour))
	early := invoice("E", 300, base)
	later := invoice("L", 200, base.Add(30*time.Minute))

	if loss := PotentialLoss(current, []*models.RegionalInvoice{later, early}, currency); loss.String() != "300" {
		t.Errorf("PotentialLoss() = %s, want 300", loss)
	}

	// On a tie the registered invoice is presumed legitimate
	tied := invoice("T", 50, current.SubmittedAt)
	if loss := PotentialLoss(current, []*models.RegionalInvoice{tied}, currency); loss.String() != "100" {
		t.Errorf("PotentialLoss() on a tie = %s, want 100", loss)
	}
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		amount decimal.Decimal
		want   string
	}{
		{decimal.NewFromInt(55000), "$55,000.00"},
		{decimal.RequireFromString("110040.5"), "$110,040.50"},
		{decimal.Zero, "$0.00"},
	}

	for _, tt := range tests {
		if got := FormatUSD(tt.amount); got != tt.want {
			t.Errorf("FormatUSD(%s) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
