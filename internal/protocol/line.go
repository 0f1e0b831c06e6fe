package protocol

import (
	"errors"
	"strings"
)

// Kind tags the variant of an inbound protocol line.
type Kind int

const (
	KindOther Kind = iota
	KindAck
	KindNack
	KindTelemetry
	KindEvent
)

const (
	kindAck       = "ACK"
	kindNack      = "NACK"
	kindTelemetry = "TELEMETRY"
	kindEvent     = "EVENT"
)

var ErrEmptyLine = errors.New("protocol line is empty")

func (k Kind) String() string {
	switch k {
	case KindAck:
		return "ack"
	case KindNack:
		return "nack"
	case KindTelemetry:
		return "telemetry"
	case KindEvent:
		return "event"
	default:
		return "other"
	}
}

// Line is one parsed inbound line. Raw always holds the trimmed input and
// doubles as the NACK detail and the EVENT/other payload.
type Line struct {
	Kind   Kind
	Raw    string
	Fields map[string]string
}

// Detail is the human readable part of a NACK line.
func (l Line) Detail() string {
	return l.Raw
}

// EventName returns the token following EVENT, e.g. STATION_ARRIVAL.
func (l Line) EventName() string {
	if l.Kind != KindEvent {
		return ""
	}
	parts := strings.Fields(l.Raw)
	if len(parts) < 2 {
		return ""
	}

	return parts[1]
}

// Parse decodes one line. Unknown input becomes KindOther; the only error is
// ErrEmptyLine, callers are expected to skip blank lines before parsing.
func Parse(raw string) (Line, error) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return Line{}, ErrEmptyLine
	}

	parts := strings.Fields(line)
	switch {
	case parts[0] == kindAck:
		return Line{Kind: KindAck, Raw: line}, nil
	case strings.HasPrefix(line, kindNack):
		return Line{Kind: KindNack, Raw: line}, nil
	case parts[0] == kindTelemetry:
		return Line{Kind: KindTelemetry, Raw: line, Fields: parseFields(parts[1:])}, nil
	case parts[0] == kindEvent:
		return Line{Kind: KindEvent, Raw: line}, nil
	default:
		return Line{Kind: KindOther, Raw: line}, nil
	}
}

func parseFields(tokens []string) map[string]string {
	fields := make(map[string]string, len(tokens))
	for _, token := range tokens {
		idx := strings.IndexByte(token, '=')
		if idx <= 0 {
			continue
		}
		fields[token[:idx]] = token[idx+1:]
	}

	return fields
}
