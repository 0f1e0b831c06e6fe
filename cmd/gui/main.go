package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/skobkin/metrogo/internal/app"
	"github.com/skobkin/metrogo/internal/config"
	"github.com/skobkin/metrogo/internal/ui"
)

type launchOptions struct {
	Connection app.ConnectionFlags
}

func parseLaunchOptions(args []string) (launchOptions, error) {
	var opts launchOptions
	fs := flag.NewFlagSet(app.Name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts.Connection.Register(fs)
	if err := fs.Parse(args); err != nil {
		return launchOptions{}, err
	}
	if err := opts.Connection.ParsePositional(fs.Args()); err != nil {
		return launchOptions{}, err
	}

	return opts, nil
}

func main() {
	opts, err := parseLaunchOptions(os.Args[1:])
	if err != nil {
		slog.Error("parse launch options", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Initialize(ctx, app.Options{
		Override: func(cfg *config.AppConfig) {
			opts.Connection.Apply(cfg)
		},
	})
	if err != nil {
		slog.Error("initialize app runtime", "error", err)
		os.Exit(1)
	}

	lock, err := app.LockController(rt.Client.Target(), rt.LogManager.Logger("gui"))
	if err != nil {
		slog.Error("acquire controller lock", "error", err)
		_ = rt.Close()
		os.Exit(1)
	}

	var closeOnce sync.Once
	closeRuntime := func() {
		closeOnce.Do(func() {
			_ = rt.Close()
			_ = lock.Release()
		})
	}
	defer closeRuntime()

	err = ui.Run(ui.RuntimeDependencies{
		Data: ui.DataDependencies{
			Bus:               rt.Bus,
			InitialTelemetry:  rt.InitialTelemetry(),
			CurrentConnStatus: rt.CurrentConnStatus,
		},
		Actions: ui.ActionDependencies{
			Sender:      rt.Client,
			OnListening: rt.Start,
			OnQuit: func() {
				stop()
				closeRuntime()
			},
		},
	})
	if err != nil {
		slog.Error("run ui", "error", err)
		os.Exit(1)
	}
}
