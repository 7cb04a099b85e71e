// Package monitor polls an arm's status in the background and publishes the
// latest snapshot for live views.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gwillem/roboarm/pkg/protocol"
)

// DefaultHz is the poll rate used when Config.Hz is not set.
const DefaultHz = 10

// ErrRunning is returned by Start while the poll loop is already active.
var ErrRunning = errors.New("monitor already running")

// StatusSource is the part of the arm client the monitor uses.
type StatusSource interface {
	Status(ctx context.Context) (protocol.Status, error)
}

// State is one poll result.
type State struct {
	Status    protocol.Status
	Timestamp time.Time
	Err       error
}

// Config holds configuration for the monitor.
type Config struct {
	Hz int
}

// Monitor polls a StatusSource at a fixed rate. While it runs it must be the
// only caller of the source.
type Monitor struct {
	src StatusSource
	hz  int

	mu      sync.Mutex
	running bool
	last    *protocol.Status
	stateCh chan State
	logCh   chan string
}

// New creates a monitor for src.
func New(src StatusSource, cfg Config) *Monitor {
	if cfg.Hz <= 0 {
		cfg.Hz = DefaultHz
	}
	return &Monitor{
		src:     src,
		hz:      cfg.Hz,
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}
}

// States returns a channel that always holds the newest state.
func (m *Monitor) States() <-chan State {
	return m.stateCh
}

// Logs returns a channel that receives log messages.
func (m *Monitor) Logs() <-chan string {
	return m.logCh
}

// Hz returns the poll frequency.
func (m *Monitor) Hz() int {
	return m.hz
}

func (m *Monitor) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case m.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start polls until ctx is done and returns ctx.Err().
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrRunning
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	m.log("Polling status at %d Hz", m.hz)
	m.Poll(ctx)

	ticker := time.NewTicker(time.Second / time.Duration(m.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log("Monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll queries the status once and publishes the result.
func (m *Monitor) Poll(ctx context.Context) State {
	st, err := m.src.Status(ctx)
	state := State{Status: st, Timestamp: time.Now(), Err: err}
	if err != nil {
		if ctx.Err() == nil {
			m.log("Status error: %v", err)
		}
		m.publish(state)
		return state
	}

	m.logChanges(st)
	m.publish(state)
	return state
}

func (m *Monitor) logChanges(st protocol.Status) {
	m.mu.Lock()
	prev := m.last
	m.last = &st
	m.mu.Unlock()

	if prev == nil {
		m.log("Connected: enabled=%t moving=%t", st.Enabled, st.Moving)
		return
	}
	if prev.Enabled != st.Enabled {
		if st.Enabled {
			m.log("Motors enabled")
		} else {
			m.log("Motors disabled")
		}
	}
	if prev.Moving != st.Moving {
		if st.Moving {
			m.log("Motion started")
		} else {
			m.log("Motion finished")
		}
	}
}

func (m *Monitor) publish(s State) {
	select {
	case m.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-m.stateCh:
		default:
		}
		m.stateCh <- s
	}
}
