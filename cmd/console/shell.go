package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/skobkin/metrogo/internal/app"
	"github.com/skobkin/metrogo/internal/domain"
	"github.com/skobkin/metrogo/internal/protocol"
)

type historyFunc func(ctx context.Context, limit int) ([]domain.TelemetryRecord, error)

type statusLogFunc func(ctx context.Context, limit int) ([]domain.StatusRecord, error)

type commandSender interface {
	Send(cmd protocol.Command) error
}

// commandShell reads one command per line: a command name such as speed_up or
// stopnow, or one of the shell words listed by shellHelp.
type commandShell struct {
	out       io.Writer
	sender    commandSender
	history   historyFunc
	statusLog statusLogFunc
}

// Run returns nil on quit or end of input.
func (s *commandShell) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	s.printHelp()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if !s.handle(ctx, strings.TrimSpace(line)) {
				return nil
			}
		}
	}
}

// handle reports whether the shell should keep reading.
func (s *commandShell) handle(ctx context.Context, line string) bool {
	switch strings.ToLower(line) {
	case "":
		return true
	case "quit", "exit":
		return false
	case "help":
		s.printHelp()
		return true
	case "history":
		s.printHistory(ctx)
		return true
	case "log":
		s.printStatusLog(ctx)
		return true
	}

	cmd, err := protocol.ParseCommand(line)
	if err != nil {
		s.printf("unknown command %q\n", line)
		return true
	}
	// Failures are reported by the client on the status topic.
	_ = s.sender.Send(cmd)

	return true
}

func (s *commandShell) printHistory(ctx context.Context) {
	if s.history == nil {
		s.printf("journal is disabled\n")
		return
	}
	records, err := s.history(ctx, app.RecentJournal)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.printf("history: %v\n", err)
		}
		return
	}
	if len(records) == 0 {
		s.printf("journal is empty\n")
		return
	}
	for _, rec := range records {
		s.printf("%s gen=%d %s\n", rec.At.Format(time.DateTime), rec.Generation, formatTelemetry(rec.State))
	}
}

func (s *commandShell) printStatusLog(ctx context.Context) {
	if s.statusLog == nil {
		s.printf("journal is disabled\n")
		return
	}
	records, err := s.statusLog(ctx, app.RecentJournal)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.printf("log: %v\n", err)
		}
		return
	}
	if len(records) == 0 {
		s.printf("journal is empty\n")
		return
	}
	for _, rec := range records {
		tag := rec.Severity
		if rec.Event != "" {
			tag += " " + rec.Event
		}
		s.printf("%s gen=%d [%s] %s\n", rec.At.Format(time.DateTime), rec.Generation, tag, rec.Text)
	}
}

func (s *commandShell) printHelp() {
	s.printf("commands: %s, history, log, help, quit\n", commandNames())
}

func (s *commandShell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

func commandNames() string {
	names := make([]string, 0, len(protocol.Commands()))
	for _, cmd := range protocol.Commands() {
		names = append(names, strings.ToLower(string(cmd)))
	}

	return strings.Join(names, ", ")
}
