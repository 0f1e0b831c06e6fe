package transport

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("transport is closed")

// Conn is one live line connection. Every Dial returns a fresh Conn; a closed
// Conn is never reused.
type Conn interface {
	ReadLine(ctx context.Context) (string, error)
	WriteLine(ctx context.Context, line string) error
	Close() error
}

// Dialer opens connections to a single configured endpoint.
type Dialer interface {
	Name() string
	Target() string
	Dial(ctx context.Context) (Conn, error)
}
