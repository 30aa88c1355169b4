package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hexiro/csinspect/internal/domain"
)

// responseRecord is the GORM model backing the SQLite store. The payload is
// the same JSON document the Redis backend stores, so records move between
// backends unchanged.
type responseRecord struct {
	MessageID string    `gorm:"primaryKey;type:varchar(32)"`
	Payload   string    `gorm:"type:text;not null"`
	ExpiresAt time.Time `gorm:"index"`
}

// TableName returns the database table name for responseRecord.
func (responseRecord) TableName() string { return "responses" }

// SQLiteStore persists response state in a local SQLite database. Expiry is
// enforced lazily: expired rows read as absent and are deleted on access.
type SQLiteStore struct {
	db  *gorm.DB
	ttl time.Duration

	// now is a seam for expiry tests.
	now func() time.Time
}

// OpenSQLite opens (or creates) the SQLite-backed store and migrates its
// schema.
func OpenSQLite(path string, ttl time.Duration) (*SQLiteStore, error) {
	// Fail early if the parent directory does not exist (instead of an
	// opaque sqlite "out of memory (14)" later).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if err := db.AutoMigrate(&responseRecord{}); err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (domain.ResponseState, bool, error) {
	var rec responseRecord
	err := s.db.WithContext(ctx).First(&rec, "message_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ResponseState{}, false, nil
	}
	if err != nil {
		return domain.ResponseState{}, false, err
	}

	if !rec.ExpiresAt.IsZero() && rec.ExpiresAt.Before(s.now()) {
		_ = s.db.WithContext(ctx).Delete(&responseRecord{}, "message_id = ?", id).Error
		return domain.ResponseState{}, false, nil
	}

	st, legacy := decodeState([]byte(rec.Payload))
	if legacy {
		if perr := s.Put(ctx, id, st); perr != nil {
			return st, true, perr
		}
	}
	return st, true, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, id string, st domain.ResponseState) error {
	payload, err := encodeState(st)
	if err != nil {
		return err
	}
	rec := responseRecord{
		MessageID: id,
		Payload:   string(payload),
		ExpiresAt: s.now().Add(s.ttl),
	}
	return s.db.WithContext(ctx).Save(&rec).Error
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
