package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nftlend/verification"
)

// ErrNotFound is returned when no report has the requested identifier.
var ErrNotFound = errors.New("reports: not found")

const maxRecent = 500

// Store persists verification reports through gorm.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema. postgres:// and postgresql://
// DSNs use the postgres driver; anything else is treated as a sqlite path.
func Open(dsn string) (*Store, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("reports: dsn required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("reports: open: %w", err)
	}
	return migrate(New(db))
}

// migrate runs AutoMigrate and releases the pool when it fails.
func migrate(store *Store) (*Store, error) {
	if err := store.AutoMigrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing gorm handle. Callers must run AutoMigrate.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the reports and checks tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Report{}, &Check{}); err != nil {
		return fmt.Errorf("reports: migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save stores report and its checks in one transaction.
func (s *Store) Save(ctx context.Context, report *verification.Report) error {
	if report == nil {
		return fmt.Errorf("reports: nil report")
	}
	id, err := uuid.Parse(report.ID)
	if err != nil {
		return fmt.Errorf("reports: invalid report id %q: %w", report.ID, err)
	}
	record := Report{
		ID:       id,
		Network:  report.Network,
		Source:   report.Source,
		Started:  report.Started.UTC(),
		Finished: report.Finished.UTC(),
		Total:    len(report.Checks),
		Failures: report.Failures(),
		Checks:   make([]Check, 0, len(report.Checks)),
	}
	for i, c := range report.Checks {
		record.Checks = append(record.Checks, Check{
			ReportID: id,
			Position: i,
			Name:     c.Name,
			Kind:     string(c.Kind),
			Market:   c.Market,
			Passed:   c.Passed,
			Expected: c.Expected,
			Actual:   c.Actual,
			Error:    c.Error,
		})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&record).Error
	})
}

// Get loads a report with its checks in their original order.
func (s *Store) Get(ctx context.Context, id string) (*verification.Report, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var record Report
	err = s.db.WithContext(ctx).
		Preload("Checks", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&record, "id = ?", parsed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return record.toReport(), nil
}

// Recent returns up to limit report headers, newest first. Checks are not
// loaded.
func (s *Store) Recent(ctx context.Context, limit int) ([]*verification.Report, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}
	var records []Report
	if err := s.db.WithContext(ctx).Order("started DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]*verification.Report, 0, len(records))
	for i := range records {
		out = append(out, records[i].toReport())
	}
	return out, nil
}

func (r *Report) toReport() *verification.Report {
	out := &verification.Report{
		ID:       r.ID.String(),
		Network:  r.Network,
		Source:   r.Source,
		Started:  r.Started.UTC(),
		Finished: r.Finished.UTC(),
	}
	for _, c := range r.Checks {
		out.Checks = append(out.Checks, verification.CheckResult{
			Name:     c.Name,
			Kind:     verification.Kind(c.Kind),
			Market:   c.Market,
			Passed:   c.Passed,
			Expected: c.Expected,
			Actual:   c.Actual,
			Error:    c.Error,
		})
	}
	return out
}
