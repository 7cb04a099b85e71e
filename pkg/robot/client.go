// Package robot is the arm client: it owns the connection to one controller,
// turns operations into protocol commands and waits for motion to finish.
package robot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gwillem/roboarm/pkg/protocol"
	"github.com/gwillem/roboarm/pkg/transport"
)

// Defaults for WaitForIdle.
const (
	DefaultIdleTimeout  = 60 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// ErrNoJoints is returned by Move when no joint target is given.
var ErrNoJoints = errors.New("no joint targets given")

// Client talks to one arm controller. It is not safe for concurrent use: the
// protocol has no request ids, so one caller at a time.
type Client struct {
	target    transport.Target
	opts      transport.Options
	transport transport.Transport
	connected bool
	log       logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request (network) or per-reply (serial) timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.opts.Timeout = d }
}

// WithBaudRate sets the serial baud rate.
func WithBaudRate(baud int) Option {
	return func(c *Client) { c.opts.BaudRate = baud }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.opts.Logger = log }
}

// WithSerialOpener replaces the function that opens the serial device.
func WithSerialOpener(open transport.Opener) Option {
	return func(c *Client) { c.opts.Opener = open }
}

// WithSettleDelay sets the pause after opening a serial port. Negative
// disables it.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Client) { c.opts.SettleDelay = d }
}

// WithHTTPClient sets the HTTP client used by the network transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.opts.HTTPClient = hc }
}

// WithTransport uses t instead of the transport selected from the URL.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) { c.transport = t }
}

// New parses url and picks the transport for it. No I/O happens until Connect.
// An unsupported scheme returns a *transport.ConfigurationError.
func New(url string, opts ...Option) (*Client, error) {
	target, err := transport.ParseTarget(url)
	if err != nil {
		return nil, err
	}

	c := &Client{target: target}
	for _, opt := range opts {
		opt(c)
	}
	if c.opts.Logger == nil {
		c.opts.Logger = transport.DiscardLogger()
	}
	c.log = c.opts.Logger.WithField("target", target.String())
	if c.transport == nil {
		c.transport = transport.New(target, c.opts)
	}
	return c, nil
}

// Target returns the parsed controller address.
func (c *Client) Target() transport.Target {
	return c.target
}

// Connected reports whether Connect succeeded and Close has not been called.
func (c *Client) Connected() bool {
	return c.connected
}

// Connect opens the transport. Connecting twice is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	if c.connected {
		return nil
	}
	if err := c.transport.Open(ctx); err != nil {
		return err
	}
	c.connected = true
	c.log.Debug("connected")
	return nil
}

// Close releases the transport. It is safe to call without Connect and more
// than once.
func (c *Client) Close() error {
	if !c.connected {
		return nil
	}
	c.connected = false
	err := c.transport.Close()
	c.log.Debug("disconnected")
	return err
}

// Session connects, runs fn and closes the connection whatever fn returns.
func (c *Client) Session(ctx context.Context, fn func(*Client) error) (err error) {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, c.Close())
	}()
	return fn(c)
}

// Send passes a raw command through unchanged.
func (c *Client) Send(ctx context.Context, command string) (protocol.Result, error) {
	res, err := c.transport.Send(ctx, command)
	if err != nil {
		c.log.WithField("cmd", command).WithError(err).Debug("command failed")
		return res, err
	}
	c.log.WithFields(logrus.Fields{"cmd": command, "success": res.Success}).Debug(res.Message)
	return res, nil
}

// Enable energizes the motor drivers.
func (c *Client) Enable(ctx context.Context) (protocol.Result, error) {
	return c.Send(ctx, protocol.Enable())
}

// Disable de-energizes the motor drivers.
func (c *Client) Disable(ctx context.Context) (protocol.Result, error) {
	return c.Send(ctx, protocol.Disable())
}

// EmergencyStop halts all motion and disables the drivers.
func (c *Client) EmergencyStop(ctx context.Context) (protocol.Result, error) {
	return c.Send(ctx, protocol.EmergencyStop())
}

// Home makes the current pose the zero reference of every joint.
func (c *Client) Home(ctx context.Context) (protocol.Result, error) {
	return c.Send(ctx, protocol.Home())
}

// Move sends joint targets in steps. Joints missing from targets do not move.
// With relative set, the targets are offsets from the current positions.
func (c *Client) Move(ctx context.Context, targets map[protocol.Joint]int, relative bool) (protocol.Result, error) {
	n := 0
	for _, j := range protocol.AllJoints() {
		if _, ok := targets[j]; ok {
			n++
		}
	}
	if n == 0 {
		return protocol.Result{}, ErrNoJoints
	}
	return c.Send(ctx, protocol.Move(targets, relative))
}

// Status queries a fresh status snapshot. Over serial only positions and the
// enabled and moving flags are filled in.
func (c *Client) Status(ctx context.Context) (protocol.Status, error) {
	st, err := c.transport.Status(ctx)
	if err != nil {
		return st, err
	}
	c.log.WithFields(logrus.Fields{"enabled": st.Enabled, "moving": st.Moving}).Trace("status")
	return st, nil
}

// Positions returns the current joint positions in steps.
func (c *Client) Positions(ctx context.Context) (map[protocol.Joint]int, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return nil, err
	}
	return st.Positions, nil
}

// Report sends M114 and parses the position report. Unlike the serial quick
// status it includes targets.
func (c *Client) Report(ctx context.Context) (protocol.PositionReport, error) {
	res, err := c.Send(ctx, protocol.PositionReportCmd())
	if err != nil {
		return protocol.PositionReport{}, err
	}
	if !res.Success {
		return protocol.PositionReport{}, fmt.Errorf("position report: %w: %s", transport.ErrRejected, res.Message)
	}
	return protocol.ParsePositionReport(res.Message)
}

// Settings reads the motor configuration from the controller.
func (c *Client) Settings(ctx context.Context) ([]protocol.MotorSettings, error) {
	return c.transport.Settings(ctx)
}

// WaitForIdle polls the status until no joint is moving. It returns true once
// idle and false when timeout passes first. The deadline is fixed on entry.
// Status errors end the wait and are returned.
func (c *Client) WaitForIdle(ctx context.Context, timeout, poll time.Duration) (bool, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	deadline := time.Now().Add(timeout)

	for {
		st, err := c.Status(ctx)
		if err != nil {
			return false, err
		}
		if !st.Moving {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			c.log.WithField("timeout", timeout).Debug("still moving at deadline")
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(poll):
		}
	}
}
