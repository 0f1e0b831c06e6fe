package ui

import (
	"context"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	metroapp "github.com/skobkin/metrogo/internal/app"
	"github.com/skobkin/metrogo/internal/connectors"
	"github.com/skobkin/metrogo/internal/domain"
	"github.com/skobkin/metrogo/internal/resources"
)

var newFyneApp = func() fyne.App {
	return fyneapp.NewWithID(metroapp.Name)
}

// Run builds the main window and blocks until the app quits.
func Run(dep RuntimeDependencies) error {
	return runWithApp(dep, newFyneApp())
}

func runWithApp(dep RuntimeDependencies, fyApp fyne.App) error {
	runtime, _ := buildUIRuntime(dep, fyApp)
	runtime.Run()

	return nil
}

func buildUIRuntime(dep RuntimeDependencies, fyApp fyne.App) (*uiRuntime, *controlPanel) {
	initialVariant := fyApp.Settings().ThemeVariant()
	fyApp.SetIcon(resources.AppIconResource(initialVariant))
	appLogger.Info("starting UI runtime", "initial_theme", initialVariant)

	window := fyApp.NewWindow("")
	window.Resize(fyne.NewSize(420, 260))

	panel := newControlPanel(dep.Actions.Sender, initialTelemetry(dep), dep.UIHooks)
	connLabel := widget.NewLabel("")
	presenter := newConnectionStatusPresenter(window, connLabel, resolveInitialConnStatus(dep), initialVariant)
	panel.bindConnStatus(presenter, func() fyne.ThemeVariant {
		return fyApp.Settings().ThemeVariant()
	})

	header := container.NewBorder(nil, nil, presenter.Icon(), nil, connLabel)
	window.SetContent(container.NewBorder(header, nil, nil, nil, panel.Content()))

	stopListeners := func() {}
	if dep.Data.Bus != nil {
		ctx, cancel := context.WithCancel(context.Background())
		done := metroapp.ForwardToSink(ctx, dep.Data.Bus, panel)
		stopListeners = func() {
			cancel()
			<-done
		}
	} else {
		appLogger.Debug("skipping UI event listeners: message bus is nil")
	}
	if dep.Actions.OnListening != nil {
		dep.Actions.OnListening()
	}

	runtime := newUIRuntime(fyApp, window, stopListeners, dep.Actions.OnQuit)
	runtime.BindCloseIntercept()

	return runtime, panel
}

func resolveInitialConnStatus(dep RuntimeDependencies) connectors.ConnectionStatus {
	if dep.Data.CurrentConnStatus != nil {
		if status, ok := dep.Data.CurrentConnStatus(); ok {
			return status
		}
	}

	return connectors.ConnectionStatus{State: connectors.ConnectionStateDisconnected}
}

func initialTelemetry(dep RuntimeDependencies) domain.TelemetryState {
	if dep.Data.InitialTelemetry.IsZero() {
		return domain.NewTelemetryState()
	}

	return dep.Data.InitialTelemetry
}
