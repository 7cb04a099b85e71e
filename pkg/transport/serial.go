package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/gwillem/roboarm/pkg/protocol"
)

// Port is the part of a serial port the transport needs. go.bug.st/serial
// ports satisfy it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Drain() error
}

// Opener opens a serial device at the given baud rate.
type Opener func(device string, baud int) (Port, error)

// OpenSerialPort opens a real device, 8N1.
func OpenSerialPort(device string, baud int) (Port, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Serial talks to the controller over a newline framed serial line.
type Serial struct {
	device  string
	opts    Options
	port    Port
	pending []byte // bytes read past the last complete line
	log     logrus.FieldLogger
}

// NewSerial returns an unopened serial transport for device.
func NewSerial(device string, opts Options) *Serial {
	opts = opts.withDefaults()
	return &Serial{
		device: device,
		opts:   opts,
		log:    opts.Logger.WithField("transport", "serial"),
	}
}

// Open opens the port, waits for the controller to finish booting and
// discards whatever it printed meanwhile.
func (s *Serial) Open(ctx context.Context) error {
	if s.port != nil {
		return nil
	}

	port, err := s.opts.Opener(s.device, s.opts.BaudRate)
	if err != nil {
		return &Error{Op: "open " + s.device, Err: err}
	}

	// Reads return immediately; Send polls with its own sleeps.
	if err := port.SetReadTimeout(0); err != nil {
		port.Close()
		return &Error{Op: "set read timeout", Err: err}
	}

	if s.opts.SettleDelay > 0 {
		s.log.WithField("delay", s.opts.SettleDelay).Debug("waiting for controller boot")
		select {
		case <-ctx.Done():
			port.Close()
			return ctx.Err()
		case <-time.After(s.opts.SettleDelay):
		}
	}

	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return &Error{Op: "reset input buffer", Err: err}
	}

	s.port = port
	s.pending = nil
	s.log.WithFields(logrus.Fields{"device": s.device, "baud": s.opts.BaudRate}).Debug("port open")
	return nil
}

// Close closes the port. Calling it again is a no-op.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.pending = nil
	if err != nil {
		return &Error{Op: "close " + s.device, Err: err}
	}
	s.log.WithField("device", s.device).Debug("port closed")
	return nil
}

// Send writes one command and collects reply lines until a line starting with
// "ok" or "error:" arrives or the timeout passes. A silent controller yields a
// failed result, not an error.
func (s *Serial) Send(ctx context.Context, command string) (protocol.Result, error) {
	lines, err := s.exchange(ctx, command)
	if err != nil {
		return protocol.Result{}, err
	}
	res := protocol.ParseLines(lines)
	s.log.WithFields(logrus.Fields{"cmd": command, "success": res.Success, "lines": len(lines)}).Debug(res.Message)
	return res, nil
}

// Status sends the quick status query. The quick status line has no targets
// or distances, so those maps come back empty.
func (s *Serial) Status(ctx context.Context) (protocol.Status, error) {
	res, err := s.Send(ctx, protocol.QuickStatus())
	if err != nil {
		return protocol.NewStatus(), err
	}
	if !res.Success {
		return protocol.NewStatus(), fmt.Errorf("status: %w: %s", ErrRejected, res.Message)
	}
	st, err := protocol.ParseQuickStatus(res.Message)
	if err != nil {
		return protocol.NewStatus(), &Error{Op: "status", Err: err}
	}
	return st, nil
}

// Settings sends M503 and parses the settings report.
func (s *Serial) Settings(ctx context.Context) ([]protocol.MotorSettings, error) {
	res, err := s.Send(ctx, protocol.SettingsReport())
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("settings: %w: %s", ErrRejected, res.Message)
	}
	settings, err := protocol.ParseSettingsReport(res.Message)
	if err != nil {
		return nil, &Error{Op: "settings", Err: err}
	}
	return settings, nil
}

func (s *Serial) exchange(ctx context.Context, command string) ([]string, error) {
	if s.port == nil {
		return nil, ErrNotConnected
	}

	// Replies carry no request id, so leftovers from an earlier exchange
	// would be framed as this one's reply.
	s.pending = nil
	if err := s.port.ResetInputBuffer(); err != nil {
		return nil, &Error{Op: "reset", Err: err}
	}

	s.log.WithField("cmd", command).Debug("send")
	if _, err := s.port.Write([]byte(command + "\n")); err != nil {
		return nil, &Error{Op: "write", Err: err}
	}
	if err := s.port.Drain(); err != nil {
		return nil, &Error{Op: "drain", Err: err}
	}

	var lines []string
	buf := make([]byte, 256)
	deadline := time.Now().Add(s.opts.Timeout)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return lines, err
		}

		n, err := s.port.Read(buf)
		if err != nil && err != io.EOF {
			return lines, &Error{Op: "read", Err: err}
		}
		if n == 0 {
			time.Sleep(s.opts.PollInterval)
			continue
		}

		s.pending = append(s.pending, buf[:n]...)
		for {
			i := bytes.IndexByte(s.pending, '\n')
			if i < 0 {
				break
			}
			line := strings.TrimSpace(string(s.pending[:i]))
			s.pending = s.pending[i+1:]
			if line == "" {
				continue
			}
			lines = append(lines, line)
			if protocol.IsTerminator(line) {
				return lines, nil
			}
		}
	}

	// A partial line at the deadline still counts as reply text.
	if rest := strings.TrimSpace(string(s.pending)); rest != "" {
		lines = append(lines, rest)
	}
	s.pending = nil
	return lines, nil
}
