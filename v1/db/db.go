// Package db manages a gorm connection and scoped units of work on it.
//
// A Database owns the connection pool. Work runs either inside a safe session,
// a transaction committed when the callback returns nil and rolled back on an
// error or panic, or on an unsafe session where the caller drives commits.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mirkobrombin/go-toolkit/v1/logging"
)

// Driver names accepted in Settings.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrNoModels is returned by Create when no models were registered.
var ErrNoModels = errors.New("db: create called without registered models")

// Settings describes the connection.
type Settings struct {
	DSN string `env:"DATABASE_DSN"`
	// Driver is inferred from DSN when empty: postgres:// and postgresql://
	// select Postgres, anything else is a SQLite path.
	Driver       string `env:"DATABASE_DRIVER" nullable:"true"`
	Echo         bool   `env:"DATABASE_ECHO" default:"false"`
	PoolSize     int    `env:"DATABASE_POOL_SIZE" default:"10"`
	ExplicitSafe bool   `env:"DATABASE_EXPLICIT_SAFE" default:"true"`
}

// DefaultSettings returns settings for dsn with a pool of 10 and safe sessions.
func DefaultSettings(dsn string) Settings {
	return Settings{DSN: dsn, PoolSize: 10, ExplicitSafe: true}
}

func (s Settings) driver() string {
	if s.Driver != "" {
		return strings.ToLower(s.Driver)
	}
	if strings.HasPrefix(s.DSN, "postgres://") || strings.HasPrefix(s.DSN, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Option configures Open.
type Option func(*options)

type options struct {
	dialector gorm.Dialector
	logger    *slog.Logger
	models    []any
}

// WithDialector opens the connection through d instead of the driver named
// in Settings.
func WithDialector(d gorm.Dialector) Option {
	return func(o *options) {
		o.dialector = d
	}
}

// WithLogger sets the logger for connection events and echoed SQL.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithModels registers the models that Create migrates.
func WithModels(models ...any) Option {
	return func(o *options) {
		o.models = append(o.models, models...)
	}
}

// Database is an open connection pool.
type Database struct {
	gdb          *gorm.DB
	sqlDB        *sql.DB
	explicitSafe bool
	models       []any
	logger       *slog.Logger
}

// Open connects according to s.
func Open(s Settings, opts ...Option) (*Database, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Default().Get("db")
	}

	dialector := o.dialector
	if dialector == nil {
		switch s.driver() {
		case DriverPostgres:
			dialector = postgres.Open(s.DSN)
		case DriverSQLite:
			dialector = sqlite.Open(s.DSN)
		default:
			return nil, fmt.Errorf("db: unknown driver %q", s.Driver)
		}
	}

	level := gormlogger.Silent
	if s.Echo {
		level = gormlogger.Info
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(slogWriter{o.logger}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", s.driver(), err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db: pool: %w", err)
	}
	if s.PoolSize > 0 {
		sqlDB.SetMaxOpenConns(s.PoolSize)
		sqlDB.SetMaxIdleConns(s.PoolSize)
	}
	return &Database{
		gdb:          gdb,
		sqlDB:        sqlDB,
		explicitSafe: s.ExplicitSafe,
		models:       o.models,
		logger:       o.logger,
	}, nil
}

// slogWriter feeds gorm's SQL echo into slog.
type slogWriter struct {
	l *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.l.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// DB returns the underlying gorm handle.
func (d *Database) DB() *gorm.DB {
	return d.gdb
}

// Ping checks the connection.
func (d *Database) Ping(ctx context.Context) error {
	return d.sqlDB.PingContext(ctx)
}

// Create migrates the registered models, creating missing tables and columns.
func (d *Database) Create(ctx context.Context) error {
	if len(d.models) == 0 {
		return ErrNoModels
	}
	return d.gdb.WithContext(ctx).AutoMigrate(d.models...)
}

// Session runs fn in a safe session, or an unsafe one when ExplicitSafe
// was disabled.
func (d *Database) Session(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if d.explicitSafe {
		return d.SessionSafe(ctx, fn)
	}
	return fn(d.SessionUnsafe(ctx))
}

// SessionSafe runs fn inside a transaction. The transaction is committed
// when fn returns nil and rolled back when it returns an error or panics;
// panics are re-raised after the rollback.
func (d *Database) SessionSafe(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.gdb.WithContext(ctx).Transaction(fn)
}

// SessionUnsafe returns a fresh session bound to ctx. Statements run in
// autocommit mode unless the caller begins a transaction.
func (d *Database) SessionUnsafe(ctx context.Context) *gorm.DB {
	return d.gdb.WithContext(ctx).Session(&gorm.Session{})
}

// Close releases the pool.
func (d *Database) Close() error {
	if err := d.sqlDB.Close(); err != nil {
		return err
	}
	d.logger.Debug("toolkit: database pool closed")
	return nil
}
