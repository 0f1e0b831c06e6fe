package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAppConfigFillMissingDefaults(t *testing.T) {
	cfg := AppConfig{}
	cfg.FillMissingDefaults()

	if cfg.Connection.Connector != ConnectorIP {
		t.Fatalf("expected default connector %q, got %q", ConnectorIP, cfg.Connection.Connector)
	}
	if cfg.Connection.Host != DefaultHost {
		t.Fatalf("expected default host %q, got %q", DefaultHost, cfg.Connection.Host)
	}
	if cfg.Connection.Port != DefaultPort {
		t.Fatalf("expected default port %d, got %d", DefaultPort, cfg.Connection.Port)
	}
	if cfg.Connection.SerialBaud != DefaultSerialBaud {
		t.Fatalf("expected default serial baud %d, got %d", DefaultSerialBaud, cfg.Connection.SerialBaud)
	}
	if cfg.Connection.ConnectTimeout() != 4*time.Second {
		t.Fatalf("expected 4s connect timeout, got %s", cfg.Connection.ConnectTimeout())
	}
	if cfg.Connection.RetryBackoff() != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s retry backoff, got %s", cfg.Connection.RetryBackoff())
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.Logging.Level)
	}
	if cfg.Journal.RetentionDays != DefaultJournalKeepDay {
		t.Fatalf("expected default journal retention %d, got %d", DefaultJournalKeepDay, cfg.Journal.RetentionDays)
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}
	if cfg.Connection.AdminToken != "" {
		t.Fatalf("expected no admin token by default")
	}
	if cfg.Journal.Enabled {
		t.Fatalf("expected journal to be disabled by default")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadPartialConfigFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
  "connection": {
    "connector": " IP ",
    "host": "10.0.0.7",
    "admin_token": "secret"
  },
  "logging": {
    "level": "debug"
  }
}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Connection.Connector != ConnectorIP {
		t.Fatalf("expected connector to be normalized, got %q", cfg.Connection.Connector)
	}
	if cfg.Connection.Host != "10.0.0.7" || cfg.Connection.Port != DefaultPort {
		t.Fatalf("unexpected endpoint: %s:%d", cfg.Connection.Host, cfg.Connection.Port)
	}
	if cfg.Connection.AdminToken != "secret" {
		t.Fatalf("expected admin token to be loaded, got %q", cfg.Connection.AdminToken)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.MaxSizeMB != DefaultLogMaxSizeMB {
		t.Fatalf("expected default log size, got %d", cfg.Logging.MaxSizeMB)
	}
}

func TestLoadRejectsBrokenJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{name: "default", mutate: func(*AppConfig) {}},
		{name: "empty host", mutate: func(c *AppConfig) { c.Connection.Host = " " }, wantErr: true},
		{name: "port too large", mutate: func(c *AppConfig) { c.Connection.Port = 70000 }, wantErr: true},
		{name: "serial without port", mutate: func(c *AppConfig) { c.Connection.Connector = ConnectorSerial }, wantErr: true},
		{name: "serial ok", mutate: func(c *AppConfig) {
			c.Connection.Connector = ConnectorSerial
			c.Connection.SerialPort = "/dev/ttyUSB0"
		}},
		{name: "unknown connector", mutate: func(c *AppConfig) { c.Connection.Connector = "bluetooth" }, wantErr: true},
		{name: "token with space", mutate: func(c *AppConfig) { c.Connection.AdminToken = "a b" }, wantErr: true},
	}

	for _, tt := range tests {
		cfg := Default()
		tt.mutate(&cfg)
		err := cfg.Validate()
		if tt.wantErr && err == nil {
			t.Fatalf("%s: expected error, got nil", tt.name)
		}
		if !tt.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Connection.Host = "metro.local"
	cfg.Connection.Port = 6000
	cfg.Journal.Enabled = true

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away, stat err: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if loaded != cfg {
		t.Fatalf("round trip mismatch: got %+v want %+v", loaded, cfg)
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	cfg := Default()
	cfg.Connection.Connector = "carrier-pigeon"
	if err := Save(filepath.Join(t.TempDir(), "config.json"), cfg); err == nil {
		t.Fatalf("expected validation error")
	}
}
