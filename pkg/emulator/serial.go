package emulator

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gwillem/roboarm/pkg/protocol"
)

// ErrPortClosed is returned by SerialPort after Close.
var ErrPortClosed = errors.New("emulator: port closed")

// Banner is printed by the controller when the port opens.
const Banner = "=================================\n" +
	"  Roboarm Controller v1.0\n" +
	"  6-axis Robotic Arm\n" +
	"=================================\n" +
	"Ready. Type '?' for status or 'M17' to enable motors.\n"

// SerialPort is an in-memory serial line wired to a Controller. Replies are
// terminated by "ok" or an "error:" line. Reads never block.
type SerialPort struct {
	ctrl *Controller

	// Mute swallows commands without answering.
	Mute bool
	// ChunkSize limits how many bytes one Read returns; zero means no limit.
	ChunkSize int
	// Canned maps a command line to raw output written in place of the
	// controller's reply.
	Canned map[string]string

	mu          sync.Mutex
	in          []byte
	out         bytes.Buffer
	closed      bool
	readTimeout time.Duration
}

// NewSerialPort returns a port with the boot banner already queued.
func NewSerialPort(ctrl *Controller) *SerialPort {
	p := &SerialPort{ctrl: ctrl}
	p.out.WriteString(Banner)
	return p
}

func (p *SerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	p.in = append(p.in, b...)
	for {
		i := bytes.IndexByte(p.in, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(p.in[:i]))
		p.in = p.in[i+1:]
		if line == "" || p.Mute {
			continue
		}
		if out, ok := p.Canned[line]; ok {
			p.out.WriteString(out)
			continue
		}
		p.reply(p.ctrl.Execute(line))
	}
	return len(b), nil
}

func (p *SerialPort) reply(res protocol.Result) {
	p.out.WriteString(res.Message)
	p.out.WriteString("\r\n")
	if res.Success && !strings.HasPrefix(res.Message, protocol.MarkerOK) {
		p.out.WriteString(protocol.MarkerOK + "\r\n")
	}
}

func (p *SerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	if p.ChunkSize > 0 && len(b) > p.ChunkSize {
		b = b[:p.ChunkSize]
	}
	if p.out.Len() == 0 {
		return 0, nil
	}
	return p.out.Read(b)
}

// Inject queues raw bytes as if the controller had printed them.
func (p *SerialPort) Inject(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out.WriteString(s)
}

func (p *SerialPort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = t
	return nil
}

func (p *SerialPort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out.Reset()
	return nil
}

func (p *SerialPort) Drain() error {
	return nil
}

func (p *SerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPortClosed
	}
	p.closed = true
	return nil
}

// Reopen makes a closed port usable again and queues the boot banner, as the
// board resets when the host opens the line.
func (p *SerialPort) Reopen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = false
	p.in = nil
	p.out.Reset()
	p.out.WriteString(Banner)
}

// Closed reports whether the port has been closed.
func (p *SerialPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Pending returns the bytes queued for reading without consuming them.
func (p *SerialPort) Pending() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}
