package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobboard/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVEntry is the row backing one key of the SQL store.
type KVEntry struct {
	Key       string    `gorm:"column:kv_key;primaryKey;size:191"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName pins the table name independent of naming strategy.
func (KVEntry) TableName() string {
	return "kv_entries"
}

// SQL stores values in the kv_entries table through GORM.
type SQL struct {
	db *gorm.DB
}

// NewSQL wraps an opened and migrated GORM database.
func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	defer observability.TrackStorage("get", s.Backend())()
	var entry KVEntry
	err := s.db.WithContext(ctx).Where("kv_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sql get %s: %w", key, err)
	}
	return []byte(entry.Value), nil
}

func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	defer observability.TrackStorage("set", s.Backend())()
	entry := KVEntry{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("sql set %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQL) Backend() string { return "sql" }
