package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const maxLineLength = 64 * 1024

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// lineConn frames newline terminated UTF-8 text over a byte stream.
type lineConn struct {
	rwc     io.ReadWriteCloser
	scanner *bufio.Scanner
	logger  *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

func newLineConn(rwc io.ReadWriteCloser, logger *slog.Logger) *lineConn {
	scanner := bufio.NewScanner(rwc)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	if logger == nil {
		logger = transportLogger("line")
	}

	return &lineConn{
		rwc:     rwc,
		scanner: scanner,
		logger:  logger,
		closed:  make(chan struct{}),
	}
}

// ReadLine returns the next line without its terminator. A trailing line
// without a newline is still returned before io.EOF.
func (c *lineConn) ReadLine(ctx context.Context) (string, error) {
	if c.isClosed() {
		return "", ErrClosed
	}
	if d, ok := c.rwc.(readDeadliner); ok {
		if deadline, ok := ctx.Deadline(); ok {
			_ = d.SetReadDeadline(deadline)
		} else {
			_ = d.SetReadDeadline(time.Time{})
		}
	}

	if c.scanner.Scan() {
		line := c.scanner.Text()
		c.logger.Debug("read line", "len", len(line))

		return line, nil
	}
	if err := c.scanner.Err(); err != nil {
		if c.isClosed() {
			return "", ErrClosed
		}
		if errors.Is(err, bufio.ErrTooLong) {
			return "", fmt.Errorf("read line: line exceeds %d bytes: %w", maxLineLength, err)
		}

		return "", fmt.Errorf("read line: %w", err)
	}
	if c.isClosed() {
		return "", ErrClosed
	}

	return "", io.EOF
}

func (c *lineConn) WriteLine(ctx context.Context, line string) error {
	if c.isClosed() {
		return ErrClosed
	}
	if strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("line contains a line break: %q", line)
	}
	if d, ok := c.rwc.(writeDeadliner); ok {
		if deadline, ok := ctx.Deadline(); ok {
			_ = d.SetWriteDeadline(deadline)
		} else {
			_ = d.SetWriteDeadline(time.Time{})
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := writeFull(ctx, c.rwc, []byte(line+"\n")); err != nil {
		c.logger.Warn("write line failed", "len", len(line), "error", err)

		return fmt.Errorf("write line: %w", err)
	}
	c.logger.Debug("write line", "len", len(line))

	return nil
}

// Close is safe to call repeatedly and from any goroutine; it unblocks a
// pending ReadLine.
func (c *lineConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.rwc.Close()
		if c.closeErr != nil {
			c.logger.Debug("close failed", "error", c.closeErr)
		}
	})

	return c.closeErr
}

func (c *lineConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func writeFull(ctx context.Context, w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.Write(buf[written:])
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		written += n
	}
	return nil
}
