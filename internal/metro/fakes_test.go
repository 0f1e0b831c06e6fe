package metro

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skobkin/metrogo/internal/bus"
	"github.com/skobkin/metrogo/internal/connectors"
	"github.com/skobkin/metrogo/internal/transport"
)

const waitTimeout = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeConn struct {
	inbound  chan string
	closed   chan struct{}
	writeErr error

	mu        sync.Mutex
	written   []string
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan string, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) push(lines ...string) {
	for _, line := range lines {
		c.inbound <- line
	}
}

// hangUp simulates the server closing the stream.
func (c *fakeConn) hangUp() {
	close(c.inbound)
}

func (c *fakeConn) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-c.closed:
		return "", transport.ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.inbound:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

func (c *fakeConn) WriteLine(_ context.Context, line string) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	select {
	case <-c.closed:
		return transport.ErrClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, line)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	copy(out, c.written)
	return out
}

func (c *fakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeDialer hands out queued results in order; once the queue is empty every
// further Dial fails.
type fakeDialer struct {
	mu       sync.Mutex
	results  []dialResult
	attempts int
}

type dialResult struct {
	conn transport.Conn
	err  error
}

func (d *fakeDialer) queue(results ...dialResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, results...)
}

func (d *fakeDialer) Name() string   { return "fake" }
func (d *fakeDialer) Target() string { return "metro:5000" }

func (d *fakeDialer) Dial(ctx context.Context) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(d.results) == 0 {
		return nil, errors.New("no route to controller")
	}
	next := d.results[0]
	d.results = d.results[1:]
	return next.conn, next.err
}

func (d *fakeDialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

type eventRecorder struct {
	t   *testing.T
	sub bus.Subscription
}

func newRecorder(t *testing.T, b bus.MessageBus, topics ...string) *eventRecorder {
	t.Helper()
	return &eventRecorder{t: t, sub: b.Subscribe(topics...)}
}

func (r *eventRecorder) next() any {
	r.t.Helper()
	select {
	case msg, ok := <-r.sub:
		require.True(r.t, ok, "subscription closed")
		return msg
	case <-time.After(waitTimeout):
		r.t.Fatal("timed out waiting for event")
		return nil
	}
}

func (r *eventRecorder) nextStatus() connectors.StatusEvent {
	r.t.Helper()
	for {
		if ev, ok := r.next().(connectors.StatusEvent); ok {
			return ev
		}
	}
}

func (r *eventRecorder) nextTelemetry() connectors.TelemetryUpdated {
	r.t.Helper()
	for {
		if ev, ok := r.next().(connectors.TelemetryUpdated); ok {
			return ev
		}
	}
}

func (r *eventRecorder) nextConnStatus() connectors.ConnectionStatus {
	r.t.Helper()
	for {
		if ev, ok := r.next().(connectors.ConnectionStatus); ok {
			return ev
		}
	}
}

func (r *eventRecorder) expectQuiet(d time.Duration) {
	r.t.Helper()
	select {
	case msg := <-r.sub:
		r.t.Fatalf("unexpected event: %#v", msg)
	case <-time.After(d):
	}
}
