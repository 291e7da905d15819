package sqlite

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/example/session-coordinator/internal/persistence"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Config describes how to reach the session database.
type Config struct {
	// Driver is DriverSQLite or DriverPostgres.
	Driver string
	DSN    string
	// BusyTimeout is applied as PRAGMA busy_timeout on SQLite.
	BusyTimeout     time.Duration
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a file-backed SQLite configuration for dsn.
func DefaultConfig(dsn string) Config {
	return Config{
		Driver:      DriverSQLite,
		DSN:         dsn,
		BusyTimeout: 5 * time.Second,
	}
}

// Open connects, applies driver settings and pings the database.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	driverName := strings.TrimSpace(cfg.Driver)
	if driverName == "" {
		driverName = DriverSQLite
	}
	if driverName != DriverSQLite && driverName != DriverPostgres {
		return nil, fmt.Errorf("sqlite: unsupported driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", driverName, err)
	}

	switch {
	case driverName == DriverSQLite:
		// One writer; also keeps in-memory databases on a single connection.
		db.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", driverName, NewErrorMapper().MapError(err))
	}

	if driverName == DriverSQLite {
		if err := configureSQLite(ctx, db, cfg); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func configureSQLite(ctx context.Context, db *sqlx.DB, cfg Config) error {
	pragmas := []string{"PRAGMA foreign_keys = ON"}
	if cfg.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	if !strings.Contains(cfg.DSN, ":memory:") && !strings.Contains(cfg.DSN, "mode=memory") {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	return nil
}

// ErrorMapper maps driver errors to persistence sentinels.
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError wraps err with the matching persistence sentinel. Unknown errors
// are returned unchanged.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, persistence.ErrUnavailable) ||
		errors.Is(err, persistence.ErrDuplicate) || errors.Is(err, persistence.ErrConstraintViolation) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %s", persistence.ErrDuplicate, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "23"):
			return fmt.Errorf("%w: %s", persistence.ErrConstraintViolation, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01":
			return fmt.Errorf("%w: %s", persistence.ErrUnavailable, pgErr.Message)
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}

	msg := err.Error()
	switch {
	case containsAny(msg, "UNIQUE constraint failed", "PRIMARY KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case containsAny(msg, "CHECK constraint failed", "NOT NULL constraint failed", "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	case containsAny(msg, "connection refused", "unable to open database file", "sql: database is closed"):
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	return err
}

func containsAny(s string, substrings ...string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// RetryConfig configures retry behavior for database operations
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig retries a locked database three times.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryHelper re-runs operations that failed on a busy or locked database.
type RetryHelper struct {
	config RetryConfig
	mapper *ErrorMapper
}

// NewRetryHelper creates a new retry helper
func NewRetryHelper(config RetryConfig) *RetryHelper {
	return &RetryHelper{
		config: config,
		mapper: NewErrorMapper(),
	}
}

// WithRetry runs fn until it succeeds, fails with a non-transient error, or
// the retries are used up. Returned errors are mapped. A caller cancellation
// during backoff is returned as context.Canceled, not as unavailability.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.Canceled) {
					return ctx.Err()
				}
				return fmt.Errorf("%w: %v", persistence.ErrUnavailable, ctx.Err())
			case <-time.After(delay):
				delay = min(time.Duration(float64(delay)*rh.config.BackoffFactor), rh.config.MaxDelay)
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = rh.mapper.MapError(err)
		if !isRetryableError(err) {
			return lastErr
		}
	}

	return fmt.Errorf("%w: database busy after %d retries: %v", persistence.ErrUnavailable, rh.config.MaxRetries, lastErr)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(), "database is locked", "database table is locked", "SQLITE_BUSY", "database is busy")
}
