package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"invoice-fraud-detector/internal/models"
	"invoice-fraud-detector/pkg/errors"
	"invoice-fraud-detector/pkg/logger"
)

// Submission times are split into Unix seconds and nanoseconds so that any
// time.Time round-trips exactly; window queries compare the pair as a row
// value. region_key holds RegionKey(region), computed in Go so both backends
// agree on same-region exclusion.
const schema = `
CREATE TABLE IF NOT EXISTS invoices (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	invoice_id     TEXT    NOT NULL,
	region         TEXT    NOT NULL,
	region_key     TEXT    NOT NULL,
	currency       TEXT    NOT NULL,
	total_amount   TEXT    NOT NULL,
	submitted_sec  INTEGER NOT NULL,
	submitted_nsec INTEGER NOT NULL,
	content_hash   TEXT    NOT NULL DEFAULT '',
	status         TEXT    NOT NULL,
	fingerprint    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invoices_submitted ON invoices(submitted_sec, submitted_nsec);
CREATE INDEX IF NOT EXISTS idx_invoices_content_hash ON invoices(content_hash);
`

const selectColumns = `invoice_id, region, currency, total_amount, submitted_sec, submitted_nsec, status, fingerprint`

// SQLiteRegistry is a Registry persisted in a SQLite database file
type SQLiteRegistry struct {
	db     *sql.DB
	path   string
	logger logger.Logger
}

// OpenSQLite opens (or creates) the registry database at path. ":memory:"
// gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRegistry, error) {
	log := logger.GetGlobalLogger().WithComponent("registry").WithField("path", path)
	log.Debug("Opening sqlite registry")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "open", err).WithContext("path", path)
	}

	// One connection keeps ":memory:" databases shared and serializes writes
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "open", err).WithContext("path", path)
	}

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "configure", err).WithContext("path", path)
	}

	// Registries written before the seconds/nanos split stored submitted_at
	var legacy int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('invoices') WHERE name = 'submitted_at'`).Scan(&legacy); err != nil {
		db.Close()
		return nil, errors.StorageError(errors.CodeQueryFailed, "migrate", err).WithContext("path", path)
	}
	if legacy > 0 {
		db.Close()
		return nil, errors.StorageError(errors.CodeQueryFailed, "migrate", fmt.Errorf("unsupported registry schema")).
			WithContext("path", path).
			WithSuggestion("the registry was written by an older detector; choose a new --registry-path")
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.StorageError(errors.CodeWriteFailed, "migrate", err).WithContext("path", path)
	}

	log.Info("SQLite registry ready")
	return &SQLiteRegistry{db: db, path: path, logger: log}, nil
}

// Append implements Registry
func (s *SQLiteRegistry) Append(ctx context.Context, inv *models.RegionalInvoice) error {
	if err := validateAppend(inv); err != nil {
		return err
	}

	fingerprint, err := json.Marshal(inv.Fingerprint)
	if err != nil {
		return errors.StorageError(errors.CodeWriteFailed, "append", fmt.Errorf("encode fingerprint: %w", err))
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO invoices (invoice_id, region, region_key, currency, total_amount, submitted_sec, submitted_nsec, content_hash, status, fingerprint)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.InvoiceID,
		inv.Region,
		RegionKey(inv.Region),
		inv.Currency,
		inv.TotalAmount.String(),
		inv.SubmittedAt.Unix(),
		inv.SubmittedAt.Nanosecond(),
		contentHash(inv),
		inv.Status.String(),
		string(fingerprint),
	)
	if err != nil {
		return errors.StorageError(errors.CodeWriteFailed, "append", err).WithContext("invoice_id", inv.InvoiceID)
	}

	s.logger.WithFields(logger.Fields{
		"invoice_id": inv.InvoiceID,
		"region":     inv.Region,
		"status":     inv.Status,
	}).Debug("Invoice appended")

	return nil
}

// CandidatesWithin implements Registry
func (s *SQLiteRegistry) CandidatesWithin(ctx context.Context, ref *models.RegionalInvoice, window time.Duration) ([]*models.RegionalInvoice, error) {
	lo, hi := windowBounds(ref, window)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM invoices
		 WHERE (submitted_sec, submitted_nsec) >= (?, ?)
		   AND (submitted_sec, submitted_nsec) <= (?, ?)
		   AND region_key <> ?
		 ORDER BY submitted_sec, submitted_nsec, id`,
		lo.Unix(), lo.Nanosecond(), hi.Unix(), hi.Nanosecond(), RegionKey(ref.Region),
	)
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "candidates", err)
	}
	return scanInvoices(rows, "candidates")
}

// FindByContentHash implements HashIndex
func (s *SQLiteRegistry) FindByContentHash(ctx context.Context, hash string) ([]*models.RegionalInvoice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM invoices WHERE content_hash = ? ORDER BY id`, hash)
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "find by hash", err)
	}
	return scanInvoices(rows, "find by hash")
}

// Len implements Registry
func (s *SQLiteRegistry) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&n); err != nil {
		return 0, errors.StorageError(errors.CodeQueryFailed, "count", err)
	}
	return n, nil
}

// Summarize implements Summarizer
func (s *SQLiteRegistry) Summarize(ctx context.Context) (*Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT region, status, COUNT(*) FROM invoices GROUP BY region, status`)
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "summarize", err)
	}
	defer rows.Close()

	summary := newSummary()
	for rows.Next() {
		var (
			region, status string
			count          int
		)
		if err := rows.Scan(&region, &status, &count); err != nil {
			return nil, errors.StorageError(errors.CodeQueryFailed, "summarize", err)
		}
		summary.Total += count
		summary.ByRegion[region] += count
		summary.ByStatus[status] += count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "summarize", err)
	}
	if summary.Total == 0 {
		return summary, nil
	}

	if summary.Earliest, err = s.submissionBound(ctx, "ASC"); err != nil {
		return nil, err
	}
	if summary.Latest, err = s.submissionBound(ctx, "DESC"); err != nil {
		return nil, err
	}
	return summary, nil
}

// submissionBound returns the first submission time in the given order
func (s *SQLiteRegistry) submissionBound(ctx context.Context, order string) (time.Time, error) {
	var sec, nsec int64
	err := s.db.QueryRowContext(ctx,
		`SELECT submitted_sec, submitted_nsec FROM invoices
		 ORDER BY submitted_sec `+order+`, submitted_nsec `+order+` LIMIT 1`).Scan(&sec, &nsec)
	if err != nil {
		return time.Time{}, errors.StorageError(errors.CodeQueryFailed, "summarize", err)
	}
	return time.Unix(sec, nsec).UTC(), nil
}

// Path returns the database location
func (s *SQLiteRegistry) Path() string {
	return s.path
}

// Close closes the underlying database
func (s *SQLiteRegistry) Close() error {
	s.logger.Debug("Closing sqlite registry")
	return s.db.Close()
}

func scanInvoices(rows *sql.Rows, operation string) ([]*models.RegionalInvoice, error) {
	defer rows.Close()

	result := make([]*models.RegionalInvoice, 0)
	for rows.Next() {
		var (
			inv         models.RegionalInvoice
			amount      string
			sec, nsec   int64
			status      string
			fingerprint string
		)
		if err := rows.Scan(&inv.InvoiceID, &inv.Region, &inv.Currency, &amount, &sec, &nsec, &status, &fingerprint); err != nil {
			return nil, errors.StorageError(errors.CodeQueryFailed, operation, err)
		}

		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, errors.StorageError(errors.CodeQueryFailed, operation, fmt.Errorf("corrupt amount %q: %w", amount, err))
		}
		inv.TotalAmount = parsed
		inv.SubmittedAt = time.Unix(sec, nsec).UTC()
		inv.Status = models.ProcessingStatus(status)

		if err := json.Unmarshal([]byte(fingerprint), &inv.Fingerprint); err != nil {
			return nil, errors.StorageError(errors.CodeQueryFailed, operation, fmt.Errorf("corrupt fingerprint: %w", err))
		}

		result = append(result, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, operation, err)
	}

	return result, nil
}
