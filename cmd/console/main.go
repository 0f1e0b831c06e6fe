package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skobkin/metrogo/internal/app"
	"github.com/skobkin/metrogo/internal/config"
)

type launchOptions struct {
	Connection   app.ConnectionFlags
	Debug        bool
	ListenFor    time.Duration
	ClearJournal bool
}

func parseLaunchOptions(args []string, errOut io.Writer) (launchOptions, error) {
	var opts launchOptions
	fs := flag.NewFlagSet("metro-console", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(errOut, "usage: metro-console [flags] [host [port [token]]]\n")
		fs.PrintDefaults()
	}
	opts.Connection.Register(fs)
	fs.BoolVar(&opts.Debug, "debug", false, "print raw protocol lines")
	fs.DurationVar(&opts.ListenFor, "listen-for", 0, "exit after this long, e.g. 30s")
	fs.BoolVar(&opts.ClearJournal, "clear-journal", false, "wipe the local journal before connecting")
	if err := fs.Parse(args); err != nil {
		return launchOptions{}, err
	}
	if err := opts.Connection.ParsePositional(fs.Args()); err != nil {
		return launchOptions{}, err
	}

	return opts, nil
}

func main() {
	opts, err := parseLaunchOptions(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		slog.Error("run console", "error", err)
		os.Exit(1)
	}
}

func run(opts launchOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Initialize(ctx, app.Options{
		// stdout carries the console output, logs go to stderr.
		LogOutput: os.Stderr,
		Override: func(cfg *config.AppConfig) {
			opts.Connection.Apply(cfg)
		},
	})
	if err != nil {
		return fmt.Errorf("initialize app runtime: %w", err)
	}
	defer func() {
		_ = rt.Close()
	}()
	logger := rt.LogManager.Logger("cli")
	logger.Info("starting metro console", "target", rt.Client.Target(), "debug", opts.Debug)

	lock, err := app.LockController(rt.Client.Target(), logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release()
	}()

	if opts.ClearJournal {
		if err := rt.ClearJournal(); err != nil {
			return fmt.Errorf("clear journal: %w", err)
		}
	}

	out := newLockedWriter(os.Stdout)
	var sink app.PresentationSink = newConsoleSink(out)
	if opts.Debug {
		sink = &debugSink{consoleSink: newConsoleSink(out)}
	}
	forwarded := app.ForwardToSink(rt.Ctx, rt.Bus, sink)
	rt.Start()

	runCtx := rt.Ctx
	if opts.ListenFor > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, opts.ListenFor)
		defer cancel()
	}

	shell := &commandShell{
		out:       out,
		sender:    rt.Client,
		history:   journalHistory(rt),
		statusLog: journalStatusLog(rt),
	}
	commandsDone := make(chan error, 1)
	go func() {
		commandsDone <- shell.Run(runCtx, os.Stdin)
	}()

	select {
	case <-runCtx.Done():
	case err := <-commandsDone:
		if err != nil {
			logger.Warn("read commands", "error", err)
		}
	}

	_ = rt.Close()
	<-forwarded

	return nil
}

func journalHistory(rt *app.Runtime) historyFunc {
	if rt.Journal == nil {
		return nil
	}

	return rt.Journal.Recent
}

func journalStatusLog(rt *app.Runtime) statusLogFunc {
	if rt.Journal == nil {
		return nil
	}

	return rt.Journal.RecentStatus
}
