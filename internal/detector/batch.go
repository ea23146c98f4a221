package detector

import (
	"context"
	"time"

	"github.com/google/uuid"

	"invoice-fraud-detector/internal/models"
	"invoice-fraud-detector/internal/vendors"
	"invoice-fraud-detector/pkg/errors"
	"invoice-fraud-detector/pkg/logger"
)

// RunnerConfig controls a batch run
type RunnerConfig struct {
	// ShowProgress logs progress at ProgressInterval
	ShowProgress     bool          `json:"show_progress" mapstructure:"show_progress"`
	ProgressInterval time.Duration `json:"progress_interval" mapstructure:"progress_interval"`

	// VerifyVendors attaches a vendor verification to every row
	VerifyVendors bool `json:"verify_vendors" mapstructure:"verify_vendors"`
}

// DefaultRunnerConfig returns a quiet runner configuration
func DefaultRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		ProgressInterval: 2 * time.Second,
	}
}

// RunRow is the result for one submission of a batch
type RunRow struct {
	Index    int                   `json:"index"`
	Decision *Decision             `json:"decision"`
	Vendor   *vendors.Verification `json:"vendor,omitempty"`
}

// RunResult is the outcome of a batch run
type RunResult struct {
	RunID       string               `json:"run_id"`
	Rows        []RunRow             `json:"rows"`
	Alerts      []*models.FraudAlert `json:"alerts"`
	Summary     RunStats             `json:"summary"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt time.Time            `json:"completed_at"`
}

// Flagged returns the rows that raised an alert
func (r *RunResult) Flagged() []RunRow {
	var rows []RunRow
	for _, row := range r.Rows {
		if row.Decision.Flagged() {
			rows = append(rows, row)
		}
	}
	return rows
}

// Runner feeds submissions to an Engine in input order
type Runner struct {
	engine   *Engine
	config   *RunnerConfig
	verifier *vendors.Verifier
	logger   logger.Logger
}

// NewRunner creates a batch runner. A nil config uses DefaultRunnerConfig.
func NewRunner(engine *Engine, config *RunnerConfig) (*Runner, error) {
	if engine == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "engine", nil, nil).
			WithSuggestion("Create the engine with detector.NewEngine")
	}
	if config == nil {
		config = DefaultRunnerConfig()
	}

	runner := &Runner{
		engine: engine,
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("runner"),
	}
	if config.VerifyVendors {
		runner.verifier = vendors.NewVerifier(nil)
	}
	return runner, nil
}

// WithVerifier replaces the vendor verifier and enables vendor verification
func (r *Runner) WithVerifier(verifier *vendors.Verifier) *Runner {
	r.verifier = verifier
	return r
}

// Run processes submissions sequentially. On error the partial result is
// returned together with the error; rows before the failure were recorded.
func (r *Runner) Run(ctx context.Context, submissions []*models.InvoiceSubmission) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.NewString(),
		Rows:      make([]RunRow, 0, len(submissions)),
		Alerts:    make([]*models.FraudAlert, 0),
		StartedAt: time.Now(),
	}

	op := logger.NewOperationLogger("detect", r.logger).
		WithField("run_id", result.RunID).
		WithField("submissions", len(submissions))

	stats := NewStatsObserver()

	var progress *logger.ProgressTracker
	if r.config.ShowProgress {
		progress = logger.NewProgressTracker(logger.ProgressConfig{
			Operation:   "detect",
			Total:       int64(len(submissions)),
			LogInterval: r.config.ProgressInterval,
			Logger:      r.logger,
		})
	}

	var runErr error
	for i, sub := range submissions {
		if err := ctx.Err(); err != nil {
			runErr = errors.InternalError(errors.CodeCancelled, "batch run", err).
				WithContext("processed", i)
			break
		}

		decision, err := r.engine.Process(ctx, sub)
		if err != nil {
			runErr = err
			break
		}

		row := RunRow{Index: i, Decision: decision}
		if r.verifier != nil {
			verification := r.verifier.Verify(decision.Invoice.Fingerprint.VendorName)
			row.Vendor = &verification
		}

		result.Rows = append(result.Rows, row)
		if decision.Alert != nil {
			result.Alerts = append(result.Alerts, decision.Alert)
		}
		stats.Observe(decision)

		if progress != nil {
			progress.Record(decision.Alert != nil)
		}
	}

	size, err := r.engine.Registry().Len(context.WithoutCancel(ctx))
	if err != nil && runErr == nil {
		runErr = errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeQueryFailed, "registry size lookup failed")
	}

	result.CompletedAt = time.Now()
	result.Summary = stats.Stats(size)

	if runErr != nil {
		if progress != nil {
			progress.CompleteWithError(runErr)
		}
		op.Error(runErr, "Batch run aborted")
		return result, runErr
	}

	if progress != nil {
		progress.Complete()
	}
	op.WithField("alerts", len(result.Alerts)).Success("Batch run completed")
	return result, nil
}
