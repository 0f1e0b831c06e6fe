package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/skobkin/metrogo/internal/bus"
	"github.com/skobkin/metrogo/internal/config"
	"github.com/skobkin/metrogo/internal/connectors"
	"github.com/skobkin/metrogo/internal/domain"
	"github.com/skobkin/metrogo/internal/logging"
	"github.com/skobkin/metrogo/internal/metro"
	"github.com/skobkin/metrogo/internal/persistence"
)

// Options tweak how Initialize builds the runtime.
type Options struct {
	// Paths overrides the resolved user config directory layout.
	Paths *Paths
	// LogOutput replaces stdout as the console log destination.
	LogOutput io.Writer
	// Override is applied to the loaded config before validation, e.g. for
	// command line flags.
	Override func(*config.AppConfig)
}

type Runtime struct {
	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager  *logging.Manager
	Bus         *bus.PubSubBus
	DB          *sql.DB
	WriterQueue *persistence.WriterQueue
	Journal     *Journal

	Client *metro.Service

	journalDone    <-chan struct{}
	connStatusDone chan struct{}
	closeOnce      sync.Once

	connStatusMu    sync.RWMutex
	connStatus      connectors.ConnectionStatus
	connStatusKnown bool
}

// Initialize wires config, logging, the bus, the optional journal and the
// client. The client is not started; call Start once sinks are attached so
// they see the first events.
func Initialize(parent context.Context, opts Options) (*Runtime, error) {
	var paths Paths
	if opts.Paths != nil {
		paths = *opts.Paths
	} else {
		resolved, err := ResolvePaths()
		if err != nil {
			return nil, err
		}
		paths = resolved
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.Override != nil {
		opts.Override(&cfg)
		cfg.FillMissingDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:    ctx,
		cancel: cancel,
		Paths:  paths,
		Config: cfg,
	}

	logMgr := logging.NewManagerWithOutput(opts.LogOutput)
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	slog.Info("starting runtime", "build", UserAgent())

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	rt.setConnStatus(ConnectionStatusFromConfig(cfg.Connection))
	connSub := b.Subscribe(connectors.TopicConnStatus)
	rt.connStatusDone = make(chan struct{})
	go rt.captureConnStatus(ctx, connSub)

	if cfg.Journal.Enabled {
		if err := rt.openJournal(ctx); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}

	dialer, err := NewDialer(cfg.Connection)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("initialize transport: %w", err)
	}
	rt.Client = metro.NewService(logMgr.Logger("metro"), b, dialer, metro.Options{
		AdminToken:     cfg.Connection.AdminToken,
		ConnectTimeout: cfg.Connection.ConnectTimeout(),
		RetryBackoff:   cfg.Connection.RetryBackoff(),
	})

	return rt, nil
}

func (r *Runtime) openJournal(ctx context.Context) error {
	db, err := persistence.Open(ctx, r.Paths.DBFile)
	if err != nil {
		return err
	}
	r.DB = db

	keep := time.Duration(r.Config.Journal.RetentionDays) * 24 * time.Hour
	purged, err := persistence.PurgeOlderThan(ctx, db, time.Now().Add(-keep))
	if err != nil {
		slog.Warn("purge journal", "error", err)
	} else if purged > 0 {
		slog.Info("journal purged", "rows", purged, "retention_days", r.Config.Journal.RetentionDays)
	}

	logger := r.LogManager.Logger("persistence")
	r.WriterQueue = persistence.NewWriterQueue(logger, 512)
	r.WriterQueue.Start(ctx)
	r.Journal = NewJournal(persistence.NewJournalRepo(db), r.WriterQueue, logger)
	r.journalDone = r.Journal.Start(ctx, r.Bus)

	return nil
}

// Start launches the client connect loop.
func (r *Runtime) Start() {
	r.Client.Start(r.Ctx)
}

func (r *Runtime) captureConnStatus(ctx context.Context, sub bus.Subscription) {
	defer close(r.connStatusDone)
	defer bus.Release(r.Bus, sub, connectors.TopicConnStatus)

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			status, ok := raw.(connectors.ConnectionStatus)
			if !ok {
				continue
			}
			r.setConnStatus(status)
		}
	}
}

func (r *Runtime) setConnStatus(status connectors.ConnectionStatus) {
	r.connStatusMu.Lock()
	r.connStatus = status
	r.connStatusKnown = true
	r.connStatusMu.Unlock()
}

func (r *Runtime) CurrentConnStatus() (connectors.ConnectionStatus, bool) {
	r.connStatusMu.RLock()
	status := r.connStatus
	known := r.connStatusKnown
	r.connStatusMu.RUnlock()
	return status, known
}

// InitialTelemetry is what a sink shows before the first TELEMETRY line of
// this session: the client's state, or the newest journaled snapshot while the
// client has received nothing yet.
func (r *Runtime) InitialTelemetry() domain.TelemetryState {
	state := r.Client.Telemetry()
	if !state.IsZero() || r.Journal == nil {
		return state
	}

	ctx, cancel := context.WithTimeout(r.Ctx, 2*time.Second)
	defer cancel()
	rec, ok, err := r.Journal.Latest(ctx)
	if err != nil {
		slog.Warn("read latest journaled telemetry", "error", err)
		return state
	}
	if !ok {
		return state
	}

	return rec.State
}

// ClearJournal removes every journaled row.
func (r *Runtime) ClearJournal() error {
	if r.DB == nil {
		return fmt.Errorf("journal is disabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := persistence.ClearDatabase(ctx, r.DB); err != nil {
		return err
	}
	slog.Info("journal cleared")

	return nil
}

// Close stops the client, flushes the journal and releases resources. It is
// safe to call more than once.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		if r.Client != nil {
			r.Client.Stop()
		}
		if r.cancel != nil {
			r.cancel()
		}
		if r.journalDone != nil {
			<-r.journalDone
		}
		if r.connStatusDone != nil {
			<-r.connStatusDone
		}
		if r.WriterQueue != nil {
			<-r.WriterQueue.Done()
		}
		if r.Bus != nil {
			r.Bus.Close()
		}
		if r.DB != nil {
			_ = r.DB.Close()
		}
		if r.LogManager != nil {
			_ = r.LogManager.Close()
		}
	})

	return nil
}
