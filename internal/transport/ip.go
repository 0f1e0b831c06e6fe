package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	DefaultIPPort         = 5000
	DefaultConnectTimeout = 4 * time.Second
)

// IPDialer opens TCP connections to the metro controller.
type IPDialer struct {
	host    string
	port    int
	timeout time.Duration
}

func NewIPDialer(host string, port int, timeout time.Duration) *IPDialer {
	if port == 0 {
		port = DefaultIPPort
	}
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	return &IPDialer{host: host, port: port, timeout: timeout}
}

func (d *IPDialer) Name() string {
	return "ip"
}

func (d *IPDialer) Target() string {
	if d.host == "" {
		return ""
	}

	return net.JoinHostPort(d.host, strconv.Itoa(d.port))
}

func (d *IPDialer) Dial(ctx context.Context) (Conn, error) {
	target := d.Target()
	logger := transportLogger("ip", "target", target)

	if d.host == "" {
		logger.Warn("connect failed: host is empty")

		return nil, errors.New("ip host is empty")
	}

	dialer := net.Dialer{Timeout: d.timeout}
	logger.Info("connecting")
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		logger.Warn("connect failed", "error", err)

		return nil, fmt.Errorf("dial tcp: %w", err)
	}
	logger.Info("connected", "remote", conn.RemoteAddr().String())

	return newLineConn(conn, transportLogger("ip", "remote", conn.RemoteAddr().String())), nil
}
