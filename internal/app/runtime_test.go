package app

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/skobkin/metrogo/internal/config"
	"github.com/skobkin/metrogo/internal/connectors"
	"github.com/skobkin/metrogo/internal/domain"
	"github.com/skobkin/metrogo/internal/persistence"
)

func testPaths(t *testing.T) *Paths {
	t.Helper()
	paths, err := PathsIn(filepath.Join(t.TempDir(), Name))
	if err != nil {
		t.Fatalf("resolve paths: %v", err)
	}
	return &paths
}

// serveTelemetry accepts one connection, waits for the admin line and answers
// with a telemetry update.
func serveTelemetry(t *testing.T, line string) (port int, admin <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		scanner := bufio.NewScanner(conn)
		if !scanner.Scan() {
			return
		}
		got <- scanner.Text()
		_, _ = conn.Write([]byte(line + "\n"))
		for scanner.Scan() {
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port, got
}

func TestRuntime_EndToEndWithJournal(t *testing.T) {
	port, admin := serveTelemetry(t, "TELEMETRY speed=80 battery=91")
	var logs bytes.Buffer

	rt, err := Initialize(context.Background(), Options{
		Paths:     testPaths(t),
		LogOutput: &logs,
		Override: func(cfg *config.AppConfig) {
			cfg.Connection.Port = port
			cfg.Connection.AdminToken = "secret"
			cfg.Journal.Enabled = true
		},
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	status, known := rt.CurrentConnStatus()
	if !known || status.State != connectors.ConnectionStateConnecting {
		t.Fatalf("expected initial connecting status, got %+v known=%v", status, known)
	}

	sink := &recordingSink{}
	ForwardToSink(rt.Ctx, rt.Bus, sink)
	rt.Start()

	select {
	case line := <-admin:
		if line != "ADMIN token=secret" {
			t.Fatalf("unexpected admin line: %q", line)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("controller never saw the admin line")
	}

	waitFor(t, "telemetry at the sink", func() bool { return sink.Last().Speed == "80" })
	want := domain.TelemetryState{Speed: "80", Battery: "91", Station: "--", Direction: "--"}
	if got := rt.Client.Telemetry(); got != want {
		t.Fatalf("expected client telemetry %+v, got %+v", want, got)
	}

	waitFor(t, "journaled telemetry", func() bool {
		recs, err := rt.Journal.Recent(rt.Ctx, RecentJournal)
		return err == nil && len(recs) == 1
	})
	waitFor(t, "connected status", func() bool {
		st, _ := rt.CurrentConnStatus()
		return st.State == connectors.ConnectionStateConnected
	})

	if err := rt.ClearJournal(); err != nil {
		t.Fatalf("clear journal: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !strings.Contains(logs.String(), "starting runtime") || !strings.Contains(logs.String(), UserAgent()) {
		t.Fatalf("expected start log with build %q, got %q", UserAgent(), logs.String())
	}
}

func TestRuntime_InitialTelemetryFromJournal(t *testing.T) {
	rt, err := Initialize(context.Background(), Options{
		Paths:     testPaths(t),
		LogOutput: &bytes.Buffer{},
		Override: func(cfg *config.AppConfig) {
			cfg.Journal.Enabled = true
		},
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer func() { _ = rt.Close() }()

	if got := rt.InitialTelemetry(); got != domain.NewTelemetryState() {
		t.Fatalf("expected placeholders from an empty journal, got %+v", got)
	}

	saved := domain.TelemetryState{Speed: "40", Battery: "77", Station: "Depot", Direction: "REV"}
	repo := persistence.NewJournalRepo(rt.DB)
	if err := repo.InsertTelemetry(context.Background(), domain.TelemetryRecord{Generation: 1, State: saved, At: time.Now()}); err != nil {
		t.Fatalf("seed journal: %v", err)
	}

	if got := rt.InitialTelemetry(); got != saved {
		t.Fatalf("expected journaled telemetry %+v, got %+v", saved, got)
	}
}

func TestRuntime_InitialTelemetryWithoutJournal(t *testing.T) {
	rt, err := Initialize(context.Background(), Options{
		Paths:     testPaths(t),
		LogOutput: &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer func() { _ = rt.Close() }()

	if got := rt.InitialTelemetry(); got != domain.NewTelemetryState() {
		t.Fatalf("expected placeholders, got %+v", got)
	}
}

func TestRuntime_ConnStatusCaptureReleasesSubscriptionOnCancel(t *testing.T) {
	rt, err := Initialize(context.Background(), Options{
		Paths:     testPaths(t),
		LogOutput: &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer func() { _ = rt.Close() }()

	rt.cancel()
	select {
	case <-rt.connStatusDone:
	case <-time.After(waitTimeout):
		t.Fatalf("connection status capture did not stop")
	}

	published := make(chan struct{})
	go func() {
		defer close(published)
		for i := 0; i < 1024; i++ {
			rt.Bus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateReconnecting})
		}
	}()

	select {
	case <-published:
	case <-time.After(waitTimeout):
		t.Fatalf("publishing blocked on a subscription nobody reads")
	}
}

func TestRuntime_JournalDisabledByDefault(t *testing.T) {
	rt, err := Initialize(context.Background(), Options{
		Paths:     testPaths(t),
		LogOutput: &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer func() { _ = rt.Close() }()

	if rt.Journal != nil {
		t.Fatalf("expected journal to be disabled")
	}
	if err := rt.ClearJournal(); err == nil {
		t.Fatalf("expected ClearJournal to fail without a journal")
	}
	if _, err := os.Stat(rt.Paths.DBFile); !os.IsNotExist(err) {
		t.Fatalf("expected no journal file, stat err=%v", err)
	}
}

func TestRuntime_RejectsInvalidOverride(t *testing.T) {
	_, err := Initialize(context.Background(), Options{
		Paths:     testPaths(t),
		LogOutput: &bytes.Buffer{},
		Override: func(cfg *config.AppConfig) {
			cfg.Connection.AdminToken = "two words"
		},
	})
	if err == nil {
		t.Fatalf("expected invalid override to be rejected")
	}
}

func TestRuntime_LoadsConfigFile(t *testing.T) {
	paths := testPaths(t)
	cfg := config.Default()
	cfg.Connection.Connector = config.ConnectorSerial
	cfg.Connection.SerialPort = "/dev/ttyMETRO"
	if err := config.Save(paths.ConfigFile, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	rt, err := Initialize(context.Background(), Options{Paths: paths, LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer func() { _ = rt.Close() }()

	if got := rt.Client.Target(); got != "/dev/ttyMETRO" {
		t.Fatalf("unexpected target: %q", got)
	}
	if status, _ := rt.CurrentConnStatus(); status.TransportName != "serial" {
		t.Fatalf("unexpected transport name: %q", status.TransportName)
	}
}
