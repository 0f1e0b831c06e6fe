package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/skobkin/metrogo/internal/connectors"
	"github.com/skobkin/metrogo/internal/domain"
)

// lockedWriter lets the sink and the command shell share stdout.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newLockedWriter(w io.Writer) *lockedWriter {
	return &lockedWriter{w: w}
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

type consoleSink struct {
	out io.Writer
}

func newConsoleSink(out io.Writer) *consoleSink {
	return &consoleSink{out: out}
}

func (s *consoleSink) OnStatus(text string) {
	_, _ = fmt.Fprintf(s.out, "status: %s\n", text)
}

func (s *consoleSink) OnTelemetry(state domain.TelemetryState) {
	_, _ = fmt.Fprintf(s.out, "telemetry: %s\n", formatTelemetry(state))
}

// debugSink also prints every raw protocol line.
type debugSink struct {
	*consoleSink
}

func (s *debugSink) OnRawLine(line connectors.RawLine) {
	dir := "<<"
	if line.Outbound {
		dir = ">>"
	}
	_, _ = fmt.Fprintf(s.out, "%s %s\n", dir, line.Text)
}

func formatTelemetry(state domain.TelemetryState) string {
	return fmt.Sprintf("speed=%s battery=%s station=%s direction=%s",
		state.Speed, state.Battery, state.Station, state.Direction)
}
