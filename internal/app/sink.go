package app

import (
	"context"

	"github.com/skobkin/metrogo/internal/bus"
	"github.com/skobkin/metrogo/internal/connectors"
	"github.com/skobkin/metrogo/internal/domain"
)

// PresentationSink receives the client's user facing output. Calls come from a
// single goroutine, in the order the client produced them.
type PresentationSink interface {
	OnStatus(text string)
	OnTelemetry(state domain.TelemetryState)
}

// ConnStatusSink is implemented by sinks that also want connection lifecycle
// snapshots, e.g. to show them in a window title.
type ConnStatusSink interface {
	OnConnStatus(status connectors.ConnectionStatus)
}

// RawLineSink is implemented by sinks that print the raw protocol traffic.
type RawLineSink interface {
	OnRawLine(line connectors.RawLine)
}

// ForwardToSink delivers bus events to sink until ctx ends or the bus closes.
// The returned channel is closed once forwarding has stopped.
func ForwardToSink(ctx context.Context, b bus.MessageBus, sink PresentationSink) <-chan struct{} {
	topics := []string{connectors.TopicStatus, connectors.TopicTelemetry}
	connSink, wantsConn := sink.(ConnStatusSink)
	if wantsConn {
		topics = append(topics, connectors.TopicConnStatus)
	}
	rawSink, wantsRaw := sink.(RawLineSink)
	if wantsRaw {
		topics = append(topics, connectors.TopicRawLineIn, connectors.TopicRawLineOut)
	}

	// One subscription for every topic keeps the publish order intact.
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
				switch ev := raw.(type) {
				case connectors.StatusEvent:
					sink.OnStatus(ev.Text)
				case connectors.TelemetryUpdated:
					sink.OnTelemetry(ev.State)
				case connectors.ConnectionStatus:
					if wantsConn {
						connSink.OnConnStatus(ev)
					}
				case connectors.RawLine:
					if wantsRaw {
						rawSink.OnRawLine(ev)
					}
				}
			}
		}
	}()

	return done
}
