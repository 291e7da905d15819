package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/example/session-coordinator/internal/application"
	"github.com/example/session-coordinator/internal/config"
	httptransport "github.com/example/session-coordinator/internal/http"
	"github.com/example/session-coordinator/internal/logging"
	"github.com/example/session-coordinator/internal/notify"
	"github.com/example/session-coordinator/internal/persistence/sqlite"
	"github.com/example/session-coordinator/internal/search"
)

const serviceName = "session-coordinator"

func main() {
	bootstrap := logging.New(os.Stdout, slog.LevelInfo, serviceName)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(".env"); err != nil {
		bootstrap.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.New(os.Stdout, level, serviceName)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("coordinator stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("session coordinator listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		pruneLoop(gctx, a.service, cfg.PruneInterval, logger)
		return nil
	})
	return g.Wait()
}

// app holds the wired components and the resources Close releases.
type app struct {
	db      *sqlx.DB
	index   *search.Index
	conn    *nats.Conn
	service *application.SessionService
	handler http.Handler
	logger  *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	dbCfg := sqlite.DefaultConfig(cfg.DBDSN)
	dbCfg.Driver = cfg.DBDriver
	db, err := sqlite.Open(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.db = db

	if _, err := sqlite.Migrate(ctx, db, logger); err != nil {
		a.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	index, err := search.NewIndex()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.index = index

	notifier, err := a.buildNotifier(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.service = application.NewSessionServiceWithLogger(
		sqlite.NewSessionRepository(db),
		nil,
		notifier,
		index,
		nil,
		time.Now,
		application.Options{
			Location:          cfg.Location,
			RetentionDays:     cfg.RetentionDays,
			DeadlineLead:      cfg.DeadlineLead,
			RepositoryTimeout: cfg.RepositoryTimeout,
		},
		logger,
	)
	if err := a.service.Refresh(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("initial load: %w", err)
	}

	verifier, err := httptransport.NewIdentityVerifier(cfg.IdentitySecret)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Sessions: httptransport.NewSessionHandler(a.service, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Identify(verifier, logger),
		},
	})
	return a, nil
}

// buildNotifier always logs notifications and additionally publishes them to
// NATS when a URL is configured. RSVP churn is damped by a cooldown.
func (a *app) buildNotifier(cfg config.Config) (application.Notifier, error) {
	sinks := notify.Fanout{notify.NewLog(a.logger)}
	if cfg.NATSURL != "" {
		conn, err := notify.Connect(cfg.NATSURL, serviceName)
		if err != nil {
			return nil, err
		}
		a.conn = conn
		sinks = append(sinks, notify.NewNATS(conn, cfg.NATSSubjectPrefix, a.logger))
	}
	return notify.NewCooldown(sinks, cfg.NotifyCooldown, time.Now, a.logger), nil
}

func (a *app) Close() {
	if a.conn != nil {
		if err := a.conn.Drain(); err != nil {
			a.logger.Error("failed to drain nats connection", "error", err)
		}
		a.conn = nil
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Error("failed to close search index", "error", err)
		}
		a.index = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", "error", err)
		}
		a.db = nil
	}
}

type pruner interface {
	Prune(ctx context.Context) (int, int)
}

// pruneLoop drops ended sessions past retention every interval until ctx ends.
func pruneLoop(ctx context.Context, p pruner, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, remaining := p.Prune(ctx)
			logger.DebugContext(ctx, "prune tick", "remaining", remaining)
		}
	}
}
