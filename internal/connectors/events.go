package connectors

import (
	"time"

	"github.com/skobkin/metrogo/internal/domain"
)

// ConnectionState describes the client lifecycle state shown in UI.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateReconnecting ConnectionState = "reconnecting"
	ConnectionStateStopped      ConnectionState = "stopped"
)

// ConnectionStatus is a bus event snapshot of current connection status.
type ConnectionStatus struct {
	State         ConnectionState
	Err           string
	TransportName string
	Target        string
	Generation    uint64
	Timestamp     time.Time
}

// Severity ranks status messages so sinks can de-emphasise noise.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// StatusEvent is a human readable lifecycle or diagnostic message.
type StatusEvent struct {
	Text     string
	Severity Severity
	// Event names the controller event for EVENT lines and is empty otherwise.
	Event      string
	Generation uint64
	Timestamp  time.Time
}

// TelemetryUpdated carries the full snapshot after an inbound TELEMETRY line.
type TelemetryUpdated struct {
	State      domain.TelemetryState
	Generation uint64
	Timestamp  time.Time
}

// RawLine carries wire diagnostics for debug/log views.
type RawLine struct {
	Text       string
	Outbound   bool
	Generation uint64
}
