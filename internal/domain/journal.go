package domain

import "time"

// TelemetryRecord is one journaled telemetry snapshot.
type TelemetryRecord struct {
	ID         int64
	Generation uint64
	State      TelemetryState
	At         time.Time
}

// StatusRecord is one journaled status line.
type StatusRecord struct {
	ID         int64
	Generation uint64
	Severity   string
	// Event is the controller event name, e.g. STATION_ARRIVAL, for EVENT lines.
	Event string
	Text  string
	At    time.Time
}
