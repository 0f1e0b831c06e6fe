package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

const (
	DefaultSerialBaud        = 115200
	defaultSerialReadTimeout = 300 * time.Millisecond
)

// SerialDialer opens a serial port carrying the same line protocol as TCP.
type SerialDialer struct {
	portName string
	baudRate int
	open     func(name string, mode *serial.Mode) (serial.Port, error)
}

func NewSerialDialer(portName string, baudRate int) *SerialDialer {
	if baudRate <= 0 {
		baudRate = DefaultSerialBaud
	}

	return &SerialDialer{
		portName: portName,
		baudRate: baudRate,
		open:     serial.Open,
	}
}

func (d *SerialDialer) Name() string {
	return "serial"
}

func (d *SerialDialer) Target() string {
	return d.portName
}

func (d *SerialDialer) Dial(ctx context.Context) (Conn, error) {
	logger := transportLogger("serial", "port", d.portName, "baud", d.baudRate)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.portName == "" {
		return nil, errors.New("serial port is empty")
	}

	port, err := d.open(d.portName, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		logger.Warn("open failed", "error", err)

		return nil, fmt.Errorf("open serial port %q: %w", d.portName, err)
	}
	if err := port.SetReadTimeout(defaultSerialReadTimeout); err != nil {
		_ = port.Close()

		return nil, fmt.Errorf("set serial read timeout: %w", err)
	}
	logger.Info("opened")

	return newLineConn(&serialStream{port: port, closed: make(chan struct{})}, logger), nil
}

// serialStream turns the polling reads of a port with a read timeout into
// blocking reads that end once the port is closed.
type serialStream struct {
	port   serial.Port
	closed chan struct{}
}

func (s *serialStream) Read(p []byte) (int, error) {
	for {
		select {
		case <-s.closed:
			return 0, io.EOF
		default:
		}
		n, err := s.port.Read(p)
		if err != nil {
			return n, err
		}
		if n > 0 {
			return n, nil
		}
	}
}

func (s *serialStream) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialStream) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
		close(s.closed)
	}

	return s.port.Close()
}
