package app

import (
	"fmt"

	"github.com/skobkin/metrogo/internal/config"
	"github.com/skobkin/metrogo/internal/transport"
)

// NewDialer builds the dialer for the configured connector. The client owns it
// for its whole lifetime; connection settings are not changed at runtime.
func NewDialer(cfg config.ConnectionConfig) (transport.Dialer, error) {
	switch cfg.Connector {
	case config.ConnectorIP:
		return transport.NewIPDialer(cfg.Host, cfg.Port, cfg.ConnectTimeout()), nil
	case config.ConnectorSerial:
		return transport.NewSerialDialer(cfg.SerialPort, cfg.SerialBaud), nil
	default:
		return nil, fmt.Errorf("unknown connector: %q", cfg.Connector)
	}
}
