package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/skobkin/metrogo/internal/domain"
)

type JournalRepo struct {
	db *sql.DB
}

func NewJournalRepo(db *sql.DB) *JournalRepo {
	return &JournalRepo{db: db}
}

func (r *JournalRepo) InsertTelemetry(ctx context.Context, rec domain.TelemetryRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO telemetry_log(generation, speed, battery, station, direction, at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, generationToDB(rec.Generation), rec.State.Speed, rec.State.Battery, rec.State.Station, rec.State.Direction, timeToUnixMillis(rec.At))
	if err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}

	return nil
}

func (r *JournalRepo) InsertStatus(ctx context.Context, rec domain.StatusRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO status_log(generation, severity, event, text, at)
		VALUES(?, ?, ?, ?, ?)
	`, generationToDB(rec.Generation), rec.Severity, rec.Event, rec.Text, timeToUnixMillis(rec.At))
	if err != nil {
		return fmt.Errorf("insert status: %w", err)
	}

	return nil
}

// RecentTelemetry returns up to limit snapshots, oldest first.
func (r *JournalRepo) RecentTelemetry(ctx context.Context, limit int) ([]domain.TelemetryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, generation, speed, battery, station, direction, at
		FROM telemetry_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list telemetry: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []domain.TelemetryRecord
	for rows.Next() {
		var (
			rec domain.TelemetryRecord
			gen int64
			at  int64
		)
		if err := rows.Scan(&rec.ID, &gen, &rec.State.Speed, &rec.State.Battery, &rec.State.Station, &rec.State.Direction, &at); err != nil {
			return nil, fmt.Errorf("scan telemetry: %w", err)
		}
		rec.Generation = generationFromDB(gen)
		rec.At = unixMillisToTime(at)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telemetry: %w", err)
	}

	reverse(out)
	return out, nil
}

// RecentStatus returns up to limit status lines, oldest first.
func (r *JournalRepo) RecentStatus(ctx context.Context, limit int) ([]domain.StatusRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, generation, severity, event, text, at
		FROM status_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list status: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []domain.StatusRecord
	for rows.Next() {
		var (
			rec domain.StatusRecord
			gen int64
			at  int64
		)
		if err := rows.Scan(&rec.ID, &gen, &rec.Severity, &rec.Event, &rec.Text, &at); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		rec.Generation = generationFromDB(gen)
		rec.At = unixMillisToTime(at)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status: %w", err)
	}

	reverse(out)
	return out, nil
}

// LatestTelemetry returns the newest snapshot, if any was recorded.
func (r *JournalRepo) LatestTelemetry(ctx context.Context) (domain.TelemetryRecord, bool, error) {
	recs, err := r.RecentTelemetry(ctx, 1)
	if err != nil {
		return domain.TelemetryRecord{}, false, err
	}
	if len(recs) == 0 {
		return domain.TelemetryRecord{}, false, nil
	}

	return recs[0], true, nil
}

func generationToDB(gen uint64) int64 {
	if gen > math.MaxInt64 {
		return math.MaxInt64
	}
	// #nosec G115 -- bounded by math.MaxInt64 above.
	return int64(gen)
}

func generationFromDB(v int64) uint64 {
	if v < 0 {
		return 0
	}
	// #nosec G115 -- negative values are rejected above.
	return uint64(v)
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
