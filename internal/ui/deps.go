package ui

import (
	"fyne.io/fyne/v2"

	"github.com/skobkin/metrogo/internal/bus"
	"github.com/skobkin/metrogo/internal/connectors"
	"github.com/skobkin/metrogo/internal/domain"
	"github.com/skobkin/metrogo/internal/protocol"
)

// CommandSender is the client's command entry point.
type CommandSender interface {
	Send(cmd protocol.Command) error
}

type DataDependencies struct {
	Bus               bus.MessageBus
	InitialTelemetry  domain.TelemetryState
	CurrentConnStatus func() (connectors.ConnectionStatus, bool)
}

type ActionDependencies struct {
	Sender CommandSender
	// OnListening runs once the window listens to the bus; the client should
	// be started from here so no early event is missed.
	OnListening func()
	OnQuit      func()
}

type UIHooks struct {
	RunOnUI  func(func())
	RunAsync func(func())
}

type RuntimeDependencies struct {
	Data    DataDependencies
	Actions ActionDependencies
	UIHooks UIHooks
}

func (h UIHooks) runOnUI(fn func()) {
	if h.RunOnUI != nil {
		h.RunOnUI(fn)
		return
	}
	fyne.Do(fn)
}

func (h UIHooks) runAsync(fn func()) {
	if h.RunAsync != nil {
		h.RunAsync(fn)
		return
	}
	go fn()
}
