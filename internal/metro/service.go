package metro

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/skobkin/metrogo/internal/bus"
	"github.com/skobkin/metrogo/internal/connectors"
	"github.com/skobkin/metrogo/internal/domain"
	"github.com/skobkin/metrogo/internal/protocol"
	"github.com/skobkin/metrogo/internal/transport"
)

const (
	DefaultConnectTimeout = 4 * time.Second
	DefaultRetryBackoff   = 1500 * time.Millisecond
	DefaultWriteTimeout   = 5 * time.Second
)

var ErrNotConnected = errors.New("not connected")

type Options struct {
	AdminToken     string
	ConnectTimeout time.Duration
	RetryBackoff   time.Duration
	WriteTimeout   time.Duration
	Clock          clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}

	return o
}

// Service keeps one connection to the metro controller alive, sends control
// commands over it and turns inbound lines into bus events.
//
// Every attached connection gets a new generation. Events are only emitted by
// the generation that is current at emission time, so a receive loop that is
// still unwinding after a teardown cannot overwrite newer state.
type Service struct {
	logger *slog.Logger
	bus    bus.MessageBus
	dialer transport.Dialer
	opts   Options

	mu         sync.Mutex
	state      connectors.ConnectionState
	generation uint64
	conn       transport.Conn
	telemetry  domain.TelemetryState
	started    bool
	stopped    bool
	cancel     context.CancelFunc
	done       chan struct{}

	// emitMu orders "is generation current" checks with the publish that
	// follows them.
	emitMu sync.Mutex
}

func NewService(logger *slog.Logger, b bus.MessageBus, dialer transport.Dialer, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		logger:    logger,
		bus:       b,
		dialer:    dialer,
		opts:      opts.withDefaults(),
		state:     connectors.ConnectionStateDisconnected,
		telemetry: domain.NewTelemetryState(),
	}
}

// Start launches the connect loop and returns immediately. Repeated calls and
// calls after Stop do nothing.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.runConnector(runCtx)
	}()
}

// Stop tears down the active connection and ends the connect loop for good.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.detach(0)
	if done != nil {
		<-done
	}

	s.mu.Lock()
	s.state = connectors.ConnectionStateStopped
	gen := s.generation
	s.mu.Unlock()
	s.publishConnStatus(connectors.ConnectionStateStopped, gen, nil)
	s.logger.Info("service stopped")
}

// Send writes one command on the current connection. Without a connection the
// command is dropped, reported on the status topic and ErrNotConnected is
// returned; nothing is queued for later.
func (s *Service) Send(cmd protocol.Command) error {
	if !cmd.Valid() {
		err := fmt.Errorf("%w: %q", protocol.ErrUnknownCommand, string(cmd))
		s.emitStatus(0, connectors.SeverityError, "send failed: "+err.Error())
		return err
	}

	s.mu.Lock()
	conn := s.conn
	gen := s.generation
	s.mu.Unlock()

	line := protocol.EncodeCommand(cmd)
	if conn == nil {
		s.logger.Warn("send dropped: not connected", "command", string(cmd))
		s.emitStatus(0, connectors.SeverityError, "send failed: "+ErrNotConnected.Error())
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
	err := conn.WriteLine(ctx, line)
	cancel()
	if err != nil {
		s.logger.Warn("send failed", "command", string(cmd), "generation", gen, "error", err)
		// The connection may be gone by now; the failure is reported regardless.
		s.emitStatus(0, connectors.SeverityError, "send failed: "+err.Error())
		return fmt.Errorf("send %s: %w", cmd, err)
	}

	s.logger.Debug("sent", "line", line, "generation", gen)
	s.publishRaw(connectors.TopicRawLineOut, line, gen)
	s.emitStatus(gen, connectors.SeverityInfo, "sent: "+line)

	return nil
}

func (s *Service) Telemetry() domain.TelemetryState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.telemetry
}

func (s *Service) State() connectors.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Service) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.generation
}

func (s *Service) Target() string {
	return s.dialer.Target()
}

func (s *Service) runConnector(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("connect failed", "target", s.dialer.Target(), "error", err)
			s.emitStatus(0, connectors.SeverityError, "connect failed: "+err.Error())
			s.setState(connectors.ConnectionStateReconnecting, err)
			if !s.sleep(ctx) {
				return
			}
			continue
		}

		gen, ok := s.attach(conn)
		if !ok {
			_ = conn.Close()
			return
		}
		s.logger.Info("connected", "target", s.dialer.Target(), "generation", gen)
		s.publishConnStatus(connectors.ConnectionStateConnected, gen, nil)
		s.emitStatus(gen, connectors.SeverityInfo, "connected to "+s.dialer.Target())

		readerDone := make(chan error, 1)
		go func() {
			readerDone <- s.runReader(ctx, gen, conn)
		}()

		select {
		case err = <-readerDone:
		case <-ctx.Done():
			s.detach(gen)
			<-readerDone
			return
		}

		s.detach(gen)
		s.logger.Info("connection lost", "generation", gen, "error", err)
		s.setState(connectors.ConnectionStateReconnecting, err)
		if !s.sleep(ctx) {
			return
		}
	}
}

// connect dials and, when a token is configured, authenticates before the
// connection becomes visible to Send.
func (s *Service) connect(ctx context.Context) (transport.Conn, error) {
	s.setState(connectors.ConnectionStateConnecting, nil)

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	conn, err := s.dialer.Dial(dialCtx)
	cancel()
	if err != nil {
		return nil, err
	}

	if s.opts.AdminToken != "" {
		writeCtx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
		err := conn.WriteLine(writeCtx, protocol.EncodeAdmin(s.opts.AdminToken))
		cancel()
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("admin handshake: %w", err)
		}
		s.logger.Info("admin handshake sent")
	}

	return conn, nil
}

func (s *Service) runReader(ctx context.Context, gen uint64, conn transport.Conn) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := conn.ReadLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				s.emitStatus(gen, connectors.SeverityError, "connection closed by server")
			} else {
				s.emitStatus(gen, connectors.SeverityError, "read error: "+err.Error())
			}
			return err
		}
		s.handleLine(gen, raw)
	}
}

func (s *Service) handleLine(gen uint64, raw string) {
	line, err := protocol.Parse(raw)
	if errors.Is(err, protocol.ErrEmptyLine) {
		return
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if !s.isCurrent(gen) {
		s.logger.Debug("stale line dropped", "generation", gen, "kind", line.Kind.String())
		return
	}

	s.publishRaw(connectors.TopicRawLineIn, line.Raw, gen)
	switch line.Kind {
	case protocol.KindAck:
		s.publishStatus(gen, connectors.SeverityInfo, "ACK")
	case protocol.KindNack:
		s.publishStatus(gen, connectors.SeverityError, line.Detail())
	case protocol.KindTelemetry:
		s.mu.Lock()
		s.telemetry = s.telemetry.Apply(line.Fields)
		snapshot := s.telemetry
		s.mu.Unlock()
		s.bus.Publish(connectors.TopicTelemetry, connectors.TelemetryUpdated{
			State:      snapshot,
			Generation: gen,
			Timestamp:  time.Now(),
		})
		s.publishStatus(gen, connectors.SeverityInfo, "telemetry updated")
	case protocol.KindEvent:
		s.bus.Publish(connectors.TopicStatus, connectors.StatusEvent{
			Text:       "event: " + line.Raw,
			Severity:   connectors.SeverityInfo,
			Event:      line.EventName(),
			Generation: gen,
			Timestamp:  time.Now(),
		})
	default:
		s.publishStatus(gen, connectors.SeverityLow, "other: "+line.Raw)
	}
}

// attach makes conn the live handle and returns its generation.
func (s *Service) attach(conn transport.Conn) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0, false
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.generation++
	s.conn = conn
	s.state = connectors.ConnectionStateConnected

	return s.generation, true
}

// detach closes the handle of generation gen, or whatever is live when gen is
// zero. Closing also unblocks a pending read.
func (s *Service) detach(gen uint64) {
	s.mu.Lock()
	if s.conn == nil || (gen != 0 && gen != s.generation) {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.conn = nil
	s.generation++
	if !s.stopped {
		s.state = connectors.ConnectionStateDisconnected
	}
	s.mu.Unlock()

	if err := conn.Close(); err != nil {
		s.logger.Debug("close connection", "error", err)
	}
}

func (s *Service) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn != nil && s.generation == gen
}

func (s *Service) setState(state connectors.ConnectionState, err error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.state = state
	gen := s.generation
	s.mu.Unlock()
	s.publishConnStatus(state, gen, err)
}

func (s *Service) sleep(ctx context.Context) bool {
	timer := s.opts.Clock.NewTimer(s.opts.RetryBackoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

// emitStatus publishes a status line for gen. Generation zero means the
// message is not tied to a connection and is always delivered.
func (s *Service) emitStatus(gen uint64, severity connectors.Severity, text string) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if gen != 0 && !s.isCurrent(gen) {
		return
	}
	s.publishStatus(gen, severity, text)
}

func (s *Service) publishStatus(gen uint64, severity connectors.Severity, text string) {
	s.bus.Publish(connectors.TopicStatus, connectors.StatusEvent{
		Text:       text,
		Severity:   severity,
		Generation: gen,
		Timestamp:  time.Now(),
	})
}

func (s *Service) publishRaw(topic, text string, gen uint64) {
	s.bus.Publish(topic, connectors.RawLine{
		Text:       text,
		Outbound:   topic == connectors.TopicRawLineOut,
		Generation: gen,
	})
}

func (s *Service) publishConnStatus(state connectors.ConnectionState, gen uint64, err error) {
	status := connectors.ConnectionStatus{
		State:         state,
		TransportName: s.dialer.Name(),
		Target:        s.dialer.Target(),
		Generation:    gen,
		Timestamp:     time.Now(),
	}
	if err != nil {
		status.Err = err.Error()
	}
	s.bus.Publish(connectors.TopicConnStatus, status)
}
