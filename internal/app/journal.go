package app

import (
	"context"
	"log/slog"

	"github.com/skobkin/metrogo/internal/bus"
	"github.com/skobkin/metrogo/internal/connectors"
	"github.com/skobkin/metrogo/internal/domain"
	"github.com/skobkin/metrogo/internal/persistence"
)

// JournalStore is the write and read surface the journal needs from storage.
type JournalStore interface {
	InsertTelemetry(ctx context.Context, rec domain.TelemetryRecord) error
	InsertStatus(ctx context.Context, rec domain.StatusRecord) error
	RecentTelemetry(ctx context.Context, limit int) ([]domain.TelemetryRecord, error)
	RecentStatus(ctx context.Context, limit int) ([]domain.StatusRecord, error)
	LatestTelemetry(ctx context.Context) (domain.TelemetryRecord, bool, error)
}

// Journal records inbound telemetry snapshots and status lines. Outbound
// commands are never stored or replayed.
type Journal struct {
	store  JournalStore
	writer *persistence.WriterQueue
	logger *slog.Logger
}

func NewJournal(store JournalStore, writer *persistence.WriterQueue, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}

	return &Journal{store: store, writer: writer, logger: logger}
}

// Start subscribes to the client's events and queues one write per event. The
// returned channel is closed when the projection stops.
func (j *Journal) Start(ctx context.Context, b bus.MessageBus) <-chan struct{} {
	topics := []string{connectors.TopicTelemetry, connectors.TopicStatus}
	sub := b.Subscribe(topics...)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer bus.Release(b, sub, topics...)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				j.record(raw)
			}
		}
	}()

	return done
}

func (j *Journal) record(raw any) {
	switch ev := raw.(type) {
	case connectors.TelemetryUpdated:
		rec := domain.TelemetryRecord{Generation: ev.Generation, State: ev.State, At: ev.Timestamp}
		j.writer.Enqueue("journal_telemetry", func(ctx context.Context) error {
			return j.store.InsertTelemetry(ctx, rec)
		})
	case connectors.StatusEvent:
		rec := domain.StatusRecord{
			Generation: ev.Generation,
			Severity:   ev.Severity.String(),
			Event:      ev.Event,
			Text:       ev.Text,
			At:         ev.Timestamp,
		}
		j.writer.Enqueue("journal_status", func(ctx context.Context) error {
			return j.store.InsertStatus(ctx, rec)
		})
	default:
		j.logger.Debug("journal: unexpected payload", "type", raw)
	}
}

// Recent returns up to limit telemetry snapshots, oldest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.TelemetryRecord, error) {
	return j.store.RecentTelemetry(ctx, limit)
}

// RecentStatus returns up to limit status lines, oldest first.
func (j *Journal) RecentStatus(ctx context.Context, limit int) ([]domain.StatusRecord, error) {
	return j.store.RecentStatus(ctx, limit)
}

// Latest returns the newest journaled snapshot, if any.
func (j *Journal) Latest(ctx context.Context) (domain.TelemetryRecord, bool, error) {
	return j.store.LatestTelemetry(ctx)
}
