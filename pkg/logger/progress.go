package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker follows a detection run through its submissions. Each
// recorded outcome is either clean or flagged, and the tracker logs the
// running alert rate every LogInterval.
type ProgressTracker struct {
	mu sync.Mutex

	log      Logger
	label    string
	expected int64
	done     int64
	flagged  int64

	began    time.Time
	lastLog  time.Time
	interval time.Duration
	notify   func(ProgressStats)
}

// ProgressConfig configures a ProgressTracker
type ProgressConfig struct {
	Operation   string              `json:"operation"`
	Total       int64               `json:"total"`
	LogInterval time.Duration       `json:"log_interval"`
	Logger      Logger              `json:"-"`
	OnUpdate    func(ProgressStats) `json:"-"`
}

// NewProgressTracker starts tracking and logs the expected total
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	log := config.Logger
	if log == nil {
		log = GetGlobalLogger()
	}
	interval := config.LogInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	now := time.Now()
	p := &ProgressTracker{
		log:      log.WithComponent("progress"),
		label:    config.Operation,
		expected: config.Total,
		began:    now,
		lastLog:  now,
		interval: interval,
		notify:   config.OnUpdate,
	}

	p.log.WithFields(Fields{"operation": p.label, "total": p.expected}).Info("Starting operation")
	return p
}

// Record counts one processed item. flagged marks items that raised an alert.
func (p *ProgressTracker) Record(flagged bool) {
	p.mu.Lock()
	p.done++
	if flagged {
		p.flagged++
	}
	now := time.Now()
	if now.Sub(p.lastLog) >= p.interval {
		p.lastLog = now
		p.log.WithFields(p.snapshot(now).fields()).Info("Progress update")
	}
	stats := p.snapshot(now)
	notify := p.notify
	p.mu.Unlock()

	if notify != nil {
		notify(stats)
	}
}

// Complete logs the final counts
func (p *ProgressTracker) Complete() {
	stats := p.GetStats()
	p.log.WithFields(stats.fields()).WithField("duration", stats.Duration.String()).Info("Operation completed")
}

// CompleteWithError logs the counts reached before err stopped the operation
func (p *ProgressTracker) CompleteWithError(err error) {
	stats := p.GetStats()
	p.log.WithError(err).WithFields(stats.fields()).WithField("duration", stats.Duration.String()).
		Error("Operation completed with error")
}

// GetStats returns the current counts
func (p *ProgressTracker) GetStats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot(time.Now())
}

func (p *ProgressTracker) snapshot(now time.Time) ProgressStats {
	stats := ProgressStats{
		Operation: p.label,
		Total:     p.expected,
		Current:   p.done,
		Flagged:   p.flagged,
		Duration:  now.Sub(p.began),
	}
	if secs := stats.Duration.Seconds(); secs > 0 {
		stats.Rate = float64(p.done) / secs
	}
	if p.expected > 0 {
		stats.Percentage = float64(p.done) / float64(p.expected) * 100
		if stats.Rate > 0 && p.done < p.expected {
			stats.ETA = time.Duration(float64(p.expected-p.done) / stats.Rate * float64(time.Second))
		}
	}
	return stats
}

// ProgressStats is a point-in-time view of a ProgressTracker
type ProgressStats struct {
	Operation  string        `json:"operation"`
	Total      int64         `json:"total"`
	Current    int64         `json:"current"`
	Flagged    int64         `json:"flagged"`
	Percentage float64       `json:"percentage"`
	Duration   time.Duration `json:"duration"`
	Rate       float64       `json:"rate"`
	ETA        time.Duration `json:"eta,omitempty"`
}

// AlertRate is the share of processed items that were flagged
func (ps ProgressStats) AlertRate() float64 {
	if ps.Current == 0 {
		return 0
	}
	return float64(ps.Flagged) / float64(ps.Current)
}

func (ps ProgressStats) fields() Fields {
	fields := Fields{
		"operation":  ps.Operation,
		"processed":  ps.Current,
		"flagged":    ps.Flagged,
		"alert_rate": fmt.Sprintf("%.1f%%", ps.AlertRate()*100),
	}
	if ps.Total > 0 {
		fields["total"] = ps.Total
		fields["percentage"] = fmt.Sprintf("%.1f%%", ps.Percentage)
	}
	if ps.Rate > 0 {
		fields["rate"] = fmt.Sprintf("%.2f/sec", ps.Rate)
	}
	return fields
}

func (ps ProgressStats) String() string {
	if ps.Total > 0 {
		return fmt.Sprintf("%s: %d/%d (%.1f%%), %d flagged", ps.Operation, ps.Current, ps.Total, ps.Percentage, ps.Flagged)
	}
	return fmt.Sprintf("%s: %d processed, %d flagged", ps.Operation, ps.Current, ps.Flagged)
}

// OperationLogger logs the start, steps and outcome of one operation with
// its elapsed time
type OperationLogger struct {
	log    Logger
	name   string
	fields Fields
	began  time.Time
}

func NewOperationLogger(operation string, log Logger) *OperationLogger {
	if log == nil {
		log = GetGlobalLogger()
	}

	ol := &OperationLogger{
		log:    log.WithComponent("operation"),
		name:   operation,
		fields: Fields{"operation": operation},
		began:  time.Now(),
	}
	ol.log.WithFields(ol.fields).Debug("Starting operation")
	return ol
}

// WithField attaches a field to every later entry
func (ol *OperationLogger) WithField(key string, value interface{}) *OperationLogger {
	ol.fields[key] = value
	return ol
}

func (ol *OperationLogger) Step(step string) {
	ol.log.WithFields(ol.fields).WithField("step", step).Debug("Operation step")
}

func (ol *OperationLogger) Success(message string) {
	ol.log.WithFields(ol.fields).WithFields(Fields{
		"duration": time.Since(ol.began).String(),
		"status":   "success",
	}).Info(message)
}

func (ol *OperationLogger) Error(err error, message string) {
	ol.log.WithError(err).WithFields(ol.fields).WithFields(Fields{
		"duration": time.Since(ol.began).String(),
		"status":   "error",
	}).Error(message)
}
