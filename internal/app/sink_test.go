package app

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/skobkin/metrogo/internal/bus"
	"github.com/skobkin/metrogo/internal/connectors"
	"github.com/skobkin/metrogo/internal/domain"
)

const waitTimeout = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor polls cond until it holds or waitTimeout passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type recordingSink struct {
	mu    sync.Mutex
	calls []string
	last  domain.TelemetryState
}

func (s *recordingSink) OnStatus(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "status:"+text)
}

func (s *recordingSink) OnTelemetry(state domain.TelemetryState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "telemetry:"+state.Speed)
	s.last = state
}

func (s *recordingSink) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *recordingSink) Last() domain.TelemetryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

type fullSink struct {
	recordingSink
}

func (s *fullSink) OnConnStatus(status connectors.ConnectionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "conn:"+string(status.State))
}

func (s *fullSink) OnRawLine(line connectors.RawLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := "in"
	if line.Outbound {
		dir = "out"
	}
	s.calls = append(s.calls, "raw-"+dir+":"+line.Text)
}

func TestForwardToSink_PreservesOrderAcrossTopics(t *testing.T) {
	b := bus.New(discardLogger())
	t.Cleanup(b.Close)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{}
	done := ForwardToSink(ctx, b, sink)

	state := domain.NewTelemetryState().Apply(map[string]string{"speed": "80", "battery": "91"})
	b.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateConnected})
	b.Publish(connectors.TopicStatus, connectors.StatusEvent{Text: "connected to metro:5000"})
	b.Publish(connectors.TopicTelemetry, connectors.TelemetryUpdated{State: state})
	b.Publish(connectors.TopicStatus, connectors.StatusEvent{Text: "telemetry updated"})

	waitFor(t, "three sink calls", func() bool { return len(sink.Calls()) == 3 })
	want := []string{
		"status:connected to metro:5000",
		"telemetry:80",
		"status:telemetry updated",
	}
	if got := sink.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected calls %v, got %v", want, got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatalf("forwarder did not stop")
	}
}

func TestForwardToSink_OptionalInterfaces(t *testing.T) {
	b := bus.New(discardLogger())
	t.Cleanup(b.Close)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &fullSink{}
	ForwardToSink(ctx, b, sink)

	b.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateConnecting})
	b.Publish(connectors.TopicRawLineOut, connectors.RawLine{Text: "CMD STOPNOW", Outbound: true})
	b.Publish(connectors.TopicRawLineIn, connectors.RawLine{Text: "ACK"})
	b.Publish(connectors.TopicStatus, connectors.StatusEvent{Text: "ACK"})

	waitFor(t, "four sink calls", func() bool { return len(sink.Calls()) == 4 })
	want := []string{
		"conn:connecting",
		"raw-out:CMD STOPNOW",
		"raw-in:ACK",
		"status:ACK",
	}
	if got := sink.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected calls %v, got %v", want, got)
	}
}

func TestForwardToSink_StopsWhenBusCloses(t *testing.T) {
	b := bus.New(discardLogger())
	done := ForwardToSink(context.Background(), b, &recordingSink{})

	b.Close()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatalf("forwarder did not stop after bus close")
	}
}
