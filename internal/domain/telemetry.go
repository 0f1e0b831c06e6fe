package domain

// TelemetryPlaceholder is shown for values the controller has not reported yet.
const TelemetryPlaceholder = "--"

const (
	TelemetryFieldSpeed     = "speed"
	TelemetryFieldBattery   = "battery"
	TelemetryFieldStation   = "station"
	TelemetryFieldDirection = "direction"
)

// TelemetryState is the last known telemetry snapshot. Values are kept as the
// controller sent them; the client never interprets units.
type TelemetryState struct {
	Speed     string
	Battery   string
	Station   string
	Direction string
}

func NewTelemetryState() TelemetryState {
	return TelemetryState{
		Speed:     TelemetryPlaceholder,
		Battery:   TelemetryPlaceholder,
		Station:   TelemetryPlaceholder,
		Direction: TelemetryPlaceholder,
	}
}

// Apply returns a copy with every reported field replaced. Fields missing from
// the report keep their previous value, including an empty one the controller
// sent earlier.
func (s TelemetryState) Apply(fields map[string]string) TelemetryState {
	next := s
	if next == (TelemetryState{}) {
		next = NewTelemetryState()
	}
	if v, ok := fields[TelemetryFieldSpeed]; ok {
		next.Speed = v
	}
	if v, ok := fields[TelemetryFieldBattery]; ok {
		next.Battery = v
	}
	if v, ok := fields[TelemetryFieldStation]; ok {
		next.Station = v
	}
	if v, ok := fields[TelemetryFieldDirection]; ok {
		next.Direction = v
	}

	return next
}

// IsZero reports whether nothing was ever received.
func (s TelemetryState) IsZero() bool {
	return s == TelemetryState{} || s == NewTelemetryState()
}
