package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"github.com/skobkin/metrogo/internal/connectors"
	"github.com/skobkin/metrogo/internal/domain"
	"github.com/skobkin/metrogo/internal/protocol"
)

var commandButtonLabels = map[protocol.Command]string{
	protocol.SpeedUp:  "Speed up",
	protocol.SlowDown: "Slow down",
	protocol.StopNow:  "Stop now",
	protocol.StartNow: "Start now",
}

// controlPanel shows the telemetry fields and the latest status line, and
// turns button presses into commands. It is the window's presentation sink.
type controlPanel struct {
	speed     *widget.Label
	battery   *widget.Label
	station   *widget.Label
	direction *widget.Label
	status    *widget.Label
	buttons   map[protocol.Command]*widget.Button

	connStatus *connectionStatusPresenter
	variant    func() fyne.ThemeVariant

	sender CommandSender
	hooks  UIHooks
}

func newControlPanel(sender CommandSender, initial domain.TelemetryState, hooks UIHooks) *controlPanel {
	p := &controlPanel{
		speed:     widget.NewLabel(""),
		battery:   widget.NewLabel(""),
		station:   widget.NewLabel(""),
		direction: widget.NewLabel(""),
		status:    widget.NewLabel(""),
		buttons:   make(map[protocol.Command]*widget.Button, len(commandButtonLabels)),
		sender:    sender,
		hooks:     hooks,
	}
	p.status.Wrapping = fyne.TextWrapWord
	p.applyTelemetry(initial)

	for _, cmd := range protocol.Commands() {
		cmd := cmd
		p.buttons[cmd] = widget.NewButton(commandButtonLabels[cmd], func() {
			p.send(cmd)
		})
	}
	if sender == nil {
		for _, button := range p.buttons {
			button.Disable()
		}
	}

	return p
}

// bindConnStatus routes connection snapshots to presenter. variant reports the
// current theme so icons follow it.
func (p *controlPanel) bindConnStatus(presenter *connectionStatusPresenter, variant func() fyne.ThemeVariant) {
	p.connStatus = presenter
	p.variant = variant
}

func (p *controlPanel) Content() fyne.CanvasObject {
	fields := container.New(layout.NewFormLayout(),
		widget.NewLabelWithStyle("Speed", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), p.speed,
		widget.NewLabelWithStyle("Battery", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), p.battery,
		widget.NewLabelWithStyle("Station", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), p.station,
		widget.NewLabelWithStyle("Direction", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), p.direction,
	)
	buttons := container.NewGridWithColumns(len(p.buttons))
	for _, cmd := range protocol.Commands() {
		buttons.Add(p.buttons[cmd])
	}

	return container.NewVBox(fields, buttons, widget.NewSeparator(), p.status)
}

func (p *controlPanel) OnStatus(text string) {
	p.hooks.runOnUI(func() {
		p.status.SetText(text)
	})
}

func (p *controlPanel) OnTelemetry(state domain.TelemetryState) {
	p.hooks.runOnUI(func() {
		p.applyTelemetry(state)
	})
}

func (p *controlPanel) OnConnStatus(status connectors.ConnectionStatus) {
	if p.connStatus == nil {
		return
	}
	p.hooks.runOnUI(func() {
		variant := fyne.ThemeVariant(0)
		if p.variant != nil {
			variant = p.variant()
		}
		p.connStatus.Set(status, variant)
	})
}

func (p *controlPanel) applyTelemetry(state domain.TelemetryState) {
	p.speed.SetText(state.Speed)
	p.battery.SetText(state.Battery)
	p.station.SetText(state.Station)
	p.direction.SetText(state.Direction)
}

func (p *controlPanel) send(cmd protocol.Command) {
	if p.sender == nil {
		return
	}
	p.hooks.runAsync(func() {
		// The client reports the outcome on the status topic.
		if err := p.sender.Send(cmd); err != nil {
			appLogger.Debug("command not sent", "command", string(cmd), "error", err)
		}
	})
}
