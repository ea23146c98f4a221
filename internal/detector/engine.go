// Package detector is the alert decision engine. It ties the fingerprint
// extractor, the regional registry and the matcher together and decides, for
// every submitted invoice, whether it raises a multi-regional duplicate alert.
//
// Every call to Engine.Process is one critical section: the candidate query,
// scoring, decision and registry append happen under a single mutex so that
// two concurrent submissions of the same invoice cannot both miss each other.
//
// Example usage:
//
//	reg := registry.NewMemoryRegistry()
//	engine, err := detector.NewEngine(reg, matcher.DefaultDetectionConfig())
//	if err != nil {
//		return err
//	}
//
//	decision, err := engine.Process(ctx, &models.InvoiceSubmission{...})
//	if decision.Alert != nil {
//		fmt.Println(decision.Alert.RecommendedAction)
//	}
package detector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"invoice-fraud-detector/internal/fingerprint"
	"invoice-fraud-detector/internal/matcher"
	"invoice-fraud-detector/internal/models"
	"invoice-fraud-detector/internal/registry"
	"invoice-fraud-detector/pkg/errors"
	"invoice-fraud-detector/pkg/logger"
)

// FallbackCurrency is used when neither the submission nor its region names a currency
const FallbackCurrency = "USD"

// Decision is the outcome of processing one submission
type Decision struct {
	// Invoice is the registry entry written for the submission, with its final status
	Invoice *models.RegionalInvoice `json:"invoice"`

	// Alert is nil unless the confidence crossed the alert threshold
	Alert *models.FraudAlert `json:"alert,omitempty"`

	// Candidates counts the in-window, cross-region invoices that were considered
	Candidates int `json:"candidates"`

	// Matches counts the candidates whose overall similarity passed the threshold
	Matches int `json:"matches"`

	Confidence float64                `json:"confidence"`
	Evidence   []models.MatchEvidence `json:"evidence,omitempty"`

	// HashDuplicates counts stored invoices with an identical content hash
	HashDuplicates int `json:"hash_duplicates"`
}

// Flagged reports whether the submission raised an alert
func (d *Decision) Flagged() bool {
	return d != nil && d.Alert != nil
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces time.Now as the source of fallback submission times and alert creation times
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithObserver registers an observer notified after every decision
func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		if observer != nil {
			e.observers = append(e.observers, observer)
		}
	}
}

// WithLogger sets the engine's logger
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.logger = log
		}
	}
}

// WithExtractor replaces the default fingerprint extractor
func WithExtractor(extractor *fingerprint.Extractor) Option {
	return func(e *Engine) {
		if extractor != nil {
			e.extractor = extractor
		}
	}
}

// Engine decides whether submitted invoices are cross-regional duplicates
type Engine struct {
	mu sync.Mutex

	registry  registry.Registry
	scorer    *matcher.Scorer
	config    *matcher.DetectionConfig
	extractor *fingerprint.Extractor
	clock     func() time.Time
	observers []Observer
	logger    logger.Logger
}

// NewEngine creates an engine over reg. A nil config uses the default
// detection configuration; an invalid one is rejected.
func NewEngine(reg registry.Registry, config *matcher.DetectionConfig, opts ...Option) (*Engine, error) {
	if reg == nil {
		return nil, errors.ValidationError(
			errors.CodeMissingField,
			"registry",
			nil,
			fmt.Errorf("registry is required"),
		).WithSuggestion("Provide a registry created with registry.New")
	}

	scorer, err := matcher.NewScorer(config)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "detection", config, err)
	}

	e := &Engine{
		registry:  reg,
		scorer:    scorer,
		config:    scorer.Config(),
		extractor: fingerprint.NewExtractor(nil),
		clock:     time.Now,
		logger:    logger.GetGlobalLogger().WithComponent("detector"),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.logger.WithField("config", e.config.String()).Debug("Detection engine created")
	return e, nil
}

// Config returns a copy of the engine's detection configuration
func (e *Engine) Config() *matcher.DetectionConfig {
	return e.config.Clone()
}

// Registry returns the registry the engine appends to
func (e *Engine) Registry() registry.Registry {
	return e.registry
}

// Process evaluates one submission and records it in the registry.
//
// The invoice is always appended, as flagged when an alert was raised and as
// stored otherwise. Malformed submissions never fail: missing values are
// replaced by defaults. The only errors are a context cancelled before the
// critical section and registry failures, which abort the call without an
// append.
func (e *Engine) Process(ctx context.Context, sub *models.InvoiceSubmission) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.InternalError(errors.CodeCancelled, "process", err)
	}
	if sub == nil {
		sub = &models.InvoiceSubmission{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Once inside, the decision runs to completion
	ctx = context.WithoutCancel(ctx)

	current := e.buildInvoice(sub)
	log := e.logger.WithFields(logger.Fields{
		"invoice_id": current.InvoiceID,
		"region":     current.Region,
	})

	candidates, err := e.registry.CandidatesWithin(ctx, current, e.config.TimeWindow())
	if err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeQueryFailed, "candidate lookup failed")
	}

	decision := &Decision{Candidates: len(candidates)}

	var matched []*models.RegionalInvoice
	for _, candidate := range candidates {
		if !e.scorer.IsCandidate(current, candidate) {
			continue
		}
		evidence := e.scorer.Evaluate(current, candidate)
		if !e.scorer.IsMatch(evidence) {
			continue
		}
		matched = append(matched, candidate)
		decision.Evidence = append(decision.Evidence, evidence)
	}

	decision.Matches = len(matched)
	decision.Confidence = matcher.Aggregate(decision.Evidence, e.config.Confidence)

	if index, ok := e.registry.(registry.HashIndex); ok && current.Fingerprint.ContentHash != "" {
		same, err := index.FindByContentHash(ctx, current.Fingerprint.ContentHash)
		if err != nil {
			return nil, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeQueryFailed, "content hash lookup failed")
		}
		decision.HashDuplicates = len(same)
		if len(same) > 0 {
			log.WithField("hash_duplicates", len(same)).Info("Identical normalized content already registered")
		}
	}

	status := models.StatusStored
	if len(matched) > 0 && decision.Confidence > e.config.AlertThreshold {
		status = models.StatusFlagged
	}
	decision.Invoice = current.WithStatus(status)

	if err := e.registry.Append(ctx, decision.Invoice); err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeWriteFailed, "registry append failed")
	}

	if status == models.StatusFlagged {
		decision.Alert = newAlert(decision.Invoice, matched, decision.Evidence, decision.Confidence, e.scorer.Currency(), e.clock())
		log.WithFields(logger.Fields{
			"alert_id":   decision.Alert.AlertID,
			"confidence": decision.Confidence,
			"matches":    decision.Matches,
			"loss_usd":   decision.Alert.PotentialLoss.StringFixed(2),
		}).Warn("Multi-regional duplicate detected")
	} else {
		log.WithFields(logger.Fields{
			"candidates": decision.Candidates,
			"matches":    decision.Matches,
			"confidence": decision.Confidence,
		}).Debug("Invoice stored")
	}

	// Observers run inside the critical section and must not call Process
	for _, observer := range e.observers {
		observer.Observe(decision)
	}

	return decision, nil
}

func (e *Engine) buildInvoice(sub *models.InvoiceSubmission) *models.RegionalInvoice {
	fp := e.extractor.Extract(sub.Text)

	id := strings.TrimSpace(sub.InvoiceID)
	if id == "" {
		id = uuid.NewString()
	}

	region := strings.TrimSpace(sub.Region)
	if region == "" {
		region = models.UnknownRegion
	}

	currency := strings.TrimSpace(sub.Currency)
	if currency == "" {
		if regional, ok := models.DefaultCurrency(region); ok {
			currency = regional
		} else {
			currency = FallbackCurrency
		}
	}

	amount := sub.TotalAmount
	if amount.Sign() <= 0 {
		amount = fp.LargestAmount()
	}

	submittedAt := sub.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = e.clock()
	}

	return models.NewRegionalInvoice(id, region, currency, amount, submittedAt, fp)
}
