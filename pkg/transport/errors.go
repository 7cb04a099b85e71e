package transport

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when a command is issued before Open.
var ErrNotConnected = errors.New("not connected, call Connect first")

// ErrRejected is returned by queries whose reply reports a failure, such as a
// status request that timed out on the serial line.
var ErrRejected = errors.New("controller rejected request")

// ConfigurationError reports an unusable connection URL.
type ConfigurationError struct {
	URL    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid controller URL %q: %s", e.URL, e.Reason)
}

// Error wraps a failure of the underlying channel: socket or serial I/O,
// request timeouts and replies that cannot be decoded.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "transport: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
