package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gigchain/core"
)

const defaultListLimit = 100

// Entry is one committed event as stored in the audit log.
type Entry struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence    uint64    `gorm:"uniqueIndex"`
	Module      string    `gorm:"size:32;index"`
	Operation   string    `gorm:"size:64"`
	Type        string    `gorm:"size:64;index"`
	JobID       string    `gorm:"size:32;index"`
	Attributes  string    `gorm:"type:text"`
	CommittedAt time.Time `gorm:"index"`
	CreatedAt   time.Time
}

func (Entry) TableName() string { return "audit_events" }

// Decode returns the attribute map stored with the entry.
func (e Entry) Decode() (map[string]string, error) {
	attrs := map[string]string{}
	if strings.TrimSpace(e.Attributes) == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Module        string
	Type          string
	JobID         string
	AfterSequence uint64
	Limit         int
}

// Store persists committed events through gorm. It implements core.EventSink.
type Store struct {
	db *gorm.DB
}

// Open picks the driver from dsn: postgres URLs and key/value DSNs go to
// postgres, anything else is treated as a sqlite path or file: URI.
func Open(dsn string) (*Store, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("audit: dsn must be provided")
	}
	var dialector gorm.Dialector
	if isPostgresDSN(trimmed) {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("audit: db must not be nil")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func isPostgresDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=")
}

// Record stores update. Replayed sequences are ignored.
func (s *Store) Record(ctx context.Context, update core.EventUpdate) error {
	if update.Event == nil {
		return nil
	}
	attrs, err := json.Marshal(update.Event.Attributes)
	if err != nil {
		return fmt.Errorf("audit: encode attributes: %w", err)
	}
	entry := Entry{
		ID:          uuid.New(),
		Sequence:    update.Sequence,
		Module:      update.Module,
		Operation:   update.Operation,
		Type:        update.Event.Type,
		JobID:       update.Event.Attributes["jobId"],
		Attributes:  string(attrs),
		CommittedAt: time.Unix(update.Timestamp, 0).UTC(),
	}
	var existing int64
	if err := s.db.WithContext(ctx).Model(&Entry{}).Where("sequence = ?", update.Sequence).Count(&existing).Error; err != nil {
		return fmt.Errorf("audit: lookup: %w", err)
	}
	if existing > 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// List returns entries in sequence order.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := s.db.WithContext(ctx).Model(&Entry{})
	if filter.Module != "" {
		query = query.Where("module = ?", filter.Module)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.JobID != "" {
		query = query.Where("job_id = ?", filter.JobID)
	}
	if filter.AfterSequence > 0 {
		query = query.Where("sequence > ?", filter.AfterSequence)
	}
	limit := filter.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	var entries []Entry
	if err := query.Order("sequence asc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return entries, nil
}

// LastSequence returns the highest stored sequence, zero when empty.
func (s *Store) LastSequence(ctx context.Context) (uint64, error) {
	var entry Entry
	err := s.db.WithContext(ctx).Order("sequence desc").Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("audit: last sequence: %w", err)
	}
	return entry.Sequence, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
