package app

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/skobkin/metrogo/internal/config"
)

// ConnectionFlags are command line overrides for the connection section of
// the config file. Unset flags leave the file's values alone.
type ConnectionFlags struct {
	Connector  string
	Host       string
	Port       int
	AdminToken string
	SerialPort string
	SerialBaud int
	Journal    bool
}

func (f *ConnectionFlags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.Connector, "connector", "", "connector type: ip or serial")
	fs.StringVar(&f.Host, "host", "", "controller host")
	fs.IntVar(&f.Port, "port", 0, "controller TCP port")
	fs.StringVar(&f.AdminToken, "token", "", "admin token sent after connecting")
	fs.StringVar(&f.SerialPort, "serial-port", "", "serial device, e.g. /dev/ttyUSB0")
	fs.IntVar(&f.SerialBaud, "serial-baud", 0, "serial baud rate")
	fs.BoolVar(&f.Journal, "journal", false, "record telemetry into the local journal")
}

func (f ConnectionFlags) Apply(cfg *config.AppConfig) {
	if v := strings.TrimSpace(f.Connector); v != "" {
		cfg.Connection.Connector = config.ConnectorType(v)
	}
	if v := strings.TrimSpace(f.Host); v != "" {
		cfg.Connection.Host = v
	}
	if f.Port > 0 {
		cfg.Connection.Port = f.Port
	}
	if f.AdminToken != "" {
		cfg.Connection.AdminToken = f.AdminToken
	}
	if v := strings.TrimSpace(f.SerialPort); v != "" {
		cfg.Connection.SerialPort = v
	}
	if f.SerialBaud > 0 {
		cfg.Connection.SerialBaud = f.SerialBaud
	}
	if f.Journal {
		cfg.Journal.Enabled = true
	}
}

// ParsePositional accepts the classic "host [port [token]]" arguments. They
// win over the matching flags.
func (f *ConnectionFlags) ParsePositional(args []string) error {
	if len(args) > 3 {
		return fmt.Errorf("unexpected arguments: %v", args[3:])
	}
	if len(args) > 0 {
		f.Host = args[0]
	}
	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port %q", args[1])
		}
		f.Port = port
	}
	if len(args) > 2 {
		f.AdminToken = args[2]
	}

	return nil
}
