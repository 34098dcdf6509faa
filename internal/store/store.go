// Package store persists forecasts, rain windows and summaries through gorm.
//
// PostgreSQL is the production dialect; SQLite serves local runs and tests.
// All statements are written to run unchanged on both.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultBatchSize is the page size used by batch upserts.
const DefaultBatchSize = 1000

// Options configures a Store.
type Options struct {
	BatchSize int
	Clock     clockwork.Clock
}

// Store owns the weather_forecasts, weather_summaries and
// daily_rain_forecasts tables.
type Store struct {
	db        *gorm.DB
	clock     clockwork.Clock
	batchSize int
}

// Open connects to the database named by dsn. postgres:// and postgresql://
// URLs select PostgreSQL; sqlite://path, file: URIs and :memory: select SQLite.
func Open(dsn string, opts Options) (*Store, error) {
	dialector, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}
	clk := clockOrReal(opts.Clock)

	db, err := gorm.Open(dialector, gormConfig(clk))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql.DB: %w", err)
		}
		// SQLite allows one writer; serialize through a single connection.
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db, opts), nil
}

// New wraps an already opened gorm handle. The handle should be opened with
// SkipDefaultTransaction so batch writes are not nested in savepoints.
func New(db *gorm.DB, opts Options) *Store {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{db: db, clock: clockOrReal(opts.Clock), batchSize: batchSize}
}

// OpenDialector opens a gorm handle over dialector with the store's settings.
// It is used with pre-built connections such as sqlmock.
func OpenDialector(dialector gorm.Dialector, opts Options) (*Store, error) {
	db, err := gorm.Open(dialector, gormConfig(clockOrReal(opts.Clock)))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db, opts), nil
}

func gormConfig(clk clockwork.Clock) *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
		NowFunc:                func() time.Time { return clk.Now().UTC() },
	}
}

func dialectorFor(dsn string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), nil
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database url %q", redact(dsn))
	}
}

// redact strips credentials from a connection string before it is logged.
func redact(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***@" + rest[at+1:]
	}
	return dsn
}

func clockOrReal(c clockwork.Clock) clockwork.Clock {
	if c == nil {
		return clockwork.NewRealClock()
	}
	return c
}

// Migrate creates the tables and their unique indexes if absent. It is safe
// to call on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&forecastRow{}, &summaryRow{}, &rainRow{}); err != nil {
		return storeErr("migrate", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storeErr("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storeErr("ping", err)
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
