package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the session
// coordinator.
type Config struct {
	HTTPPort          int
	DBDriver          string
	DBDSN             string
	IdentitySecret    string
	Location          *time.Location
	RetentionDays     int
	PruneInterval     time.Duration
	DeadlineLead      time.Duration
	RepositoryTimeout time.Duration
	NATSURL           string
	NATSSubjectPrefix string
	NotifyCooldown    time.Duration
	LogLevel          string
}

// LoadDotEnv merges the given .env files into the process environment.
// Missing files are skipped and variables already set are never overridden.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	return nil
}

// Load parses configuration values from the current process environment.
//
// Optional values fall back to defaults. Every missing required key and every
// unparsable value is reported in a single error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:          8080,
		DBDriver:          "sqlite",
		DBDSN:             "file:sessions.db?_pragma=foreign_keys(1)",
		RetentionDays:     14,
		PruneInterval:     15 * time.Minute,
		DeadlineLead:      30 * time.Minute,
		RepositoryTimeout: 10 * time.Second,
		NATSSubjectPrefix: "session",
		NotifyCooldown:    time.Minute,
		LogLevel:          "info",
	}

	l := loader{}

	l.positiveInt("COORDINATOR_HTTP_PORT", &cfg.HTTPPort)
	l.oneOf("COORDINATOR_DB_DRIVER", &cfg.DBDriver, "sqlite", "pgx")
	l.str("COORDINATOR_DB_DSN", &cfg.DBDSN)

	if secret := env("COORDINATOR_IDENTITY_SECRET"); secret == "" {
		l.missing = append(l.missing, "COORDINATOR_IDENTITY_SECRET")
	} else {
		cfg.IdentitySecret = secret
	}

	cfg.Location = time.UTC
	zone := env("COORDINATOR_TIMEZONE")
	if zone == "" {
		zone = "Europe/Berlin"
	}
	if loc, err := time.LoadLocation(zone); err != nil {
		l.invalid = append(l.invalid, "COORDINATOR_TIMEZONE")
	} else {
		cfg.Location = loc
	}

	l.positiveInt("COORDINATOR_RETENTION_DAYS", &cfg.RetentionDays)
	l.duration("COORDINATOR_PRUNE_INTERVAL", &cfg.PruneInterval)
	l.duration("COORDINATOR_DEADLINE_LEAD", &cfg.DeadlineLead)
	l.duration("COORDINATOR_REPOSITORY_TIMEOUT", &cfg.RepositoryTimeout)
	l.str("COORDINATOR_NATS_URL", &cfg.NATSURL)
	l.str("COORDINATOR_NATS_SUBJECT_PREFIX", &cfg.NATSSubjectPrefix)
	l.duration("COORDINATOR_NOTIFY_COOLDOWN", &cfg.NotifyCooldown)
	l.oneOf("COORDINATOR_LOG_LEVEL", &cfg.LogLevel, "debug", "info", "warn", "error")

	if len(l.missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(l.missing, ", "))
	}
	if len(l.invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(l.invalid, ", "))
	}

	return cfg, nil
}

type loader struct {
	missing []string
	invalid []string
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func (l *loader) str(key string, dst *string) {
	if value := env(key); value != "" {
		*dst = value
	}
}

func (l *loader) oneOf(key string, dst *string, allowed ...string) {
	value := strings.ToLower(env(key))
	if value == "" {
		return
	}
	for _, candidate := range allowed {
		if value == candidate {
			*dst = value
			return
		}
	}
	l.invalid = append(l.invalid, key)
}

func (l *loader) positiveInt(key string, dst *int) {
	value := env(key)
	if value == "" {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		l.invalid = append(l.invalid, key)
		return
	}
	*dst = n
}

func (l *loader) duration(key string, dst *time.Duration) {
	value := env(key)
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		l.invalid = append(l.invalid, key)
		return
	}
	*dst = d
}
