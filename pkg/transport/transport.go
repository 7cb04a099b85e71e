// Package transport moves command text to the arm controller and brings the
// replies back, over HTTP or a serial line.
package transport

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gwillem/roboarm/pkg/protocol"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultBaudRate     = 115200
	DefaultSettleDelay  = 2 * time.Second
	DefaultPollInterval = 10 * time.Millisecond
)

// Transport is a channel to the controller. Implementations are not safe for
// concurrent use: the protocol has no request ids, so callers must serialize.
type Transport interface {
	Open(ctx context.Context) error
	Close() error
	Send(ctx context.Context, command string) (protocol.Result, error)
	Status(ctx context.Context) (protocol.Status, error)
	Settings(ctx context.Context) ([]protocol.MotorSettings, error)
}

// Options configures both transport variants. Fields that do not apply to a
// variant are ignored.
type Options struct {
	Timeout time.Duration

	// serial
	BaudRate     int
	SettleDelay  time.Duration // pause after opening the port; negative disables it
	PollInterval time.Duration
	Opener       Opener

	// network
	HTTPClient *http.Client

	Logger logrus.FieldLogger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.BaudRate <= 0 {
		o.BaudRate = DefaultBaudRate
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Opener == nil {
		o.Opener = OpenSerialPort
	}
	if o.Logger == nil {
		o.Logger = DiscardLogger()
	}
	return o
}

// New returns the transport variant for the target. Nothing is opened yet.
func New(t Target, opts Options) Transport {
	if t.Kind == KindSerial {
		return NewSerial(t.Device, opts)
	}
	return NewHTTP(t.BaseURL, opts)
}

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
