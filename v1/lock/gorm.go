package lock

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	toolkiterrors "github.com/mirkobrombin/go-toolkit/v1/errors"
)

const (
	defaultGormTableName = "toolkit_locks"
	defaultGormOpTimeout = 5 * time.Second
)

// gormLease is the row stored for each held key. Expiry is kept as unix
// nanoseconds so comparisons behave the same on every SQL dialect.
type gormLease struct {
	Key       string `gorm:"primaryKey;column:lock_key"`
	Token     string `gorm:"column:token"`
	ExpiresAt int64  `gorm:"column:expires_at;index"`
}

// GormStore implements Store on a SQL table through GORM.
type GormStore struct {
	db        *gorm.DB
	tableName string
	timeout   time.Duration
	now       func() time.Time
}

// GormOption configures a GormStore.
type GormOption func(*gormStoreOptions)

type gormStoreOptions struct {
	tableName string
	timeout   time.Duration
}

// WithGormTableName sets the table name for the GormStore.
func WithGormTableName(name string) GormOption {
	return func(o *gormStoreOptions) {
		o.tableName = name
	}
}

// WithGormTimeout sets the operation timeout for GORM calls.
func WithGormTimeout(d time.Duration) GormOption {
	return func(o *gormStoreOptions) {
		o.timeout = d
	}
}

// NewGormStore returns a Store using db, creating the lock table if needed.
func NewGormStore(db *gorm.DB, opts ...GormOption) (*GormStore, error) {
	o := gormStoreOptions{
		tableName: defaultGormTableName,
		timeout:   defaultGormOpTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !db.Migrator().HasTable(o.tableName) {
		if err := db.Table(o.tableName).AutoMigrate(&gormLease{}); err != nil {
			return nil, err
		}
	}
	return &GormStore{db: db, tableName: o.tableName, timeout: o.timeout, now: time.Now}, nil
}

// SetNX implements Store.SetNX. An expired row is treated as absent.
func (s *GormStore) SetNX(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	var created bool
	err := s.db.WithContext(cctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(s.tableName).
			Where("lock_key = ? AND expires_at <= ?", key, now.UnixNano()).
			Delete(&gormLease{}).Error; err != nil {
			return err
		}
		res := tx.Table(s.tableName).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&gormLease{Key: key, Token: token, ExpiresAt: now.Add(ttl).UnixNano()})
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, mapGormErr(ctx, err)
	}
	return created, nil
}

// CompareAndDelete implements Store.CompareAndDelete.
func (s *GormStore) CompareAndDelete(ctx context.Context, key, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res := s.db.WithContext(cctx).Table(s.tableName).
		Where("lock_key = ? AND token = ? AND expires_at > ?", key, token, s.now().UnixNano()).
		Delete(&gormLease{})
	if res.Error != nil {
		return false, mapGormErr(ctx, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// mapGormErr reports the caller's own cancellation as is. A deadline that
// fires while ctx is still live is the store's operation timeout.
func mapGormErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return toolkiterrors.ErrTimeout
	case errors.Is(err, sql.ErrConnDone):
		return toolkiterrors.ErrConnectionClosed
	}
	return err
}
