package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/roboarm/pkg/emulator"
	"github.com/gwillem/roboarm/pkg/protocol"
)

type controllerSource struct {
	ctrl *emulator.Controller
}

func (s controllerSource) Status(ctx context.Context) (protocol.Status, error) {
	return s.ctrl.Status(), nil
}

type failingSource struct{}

func (failingSource) Status(ctx context.Context) (protocol.Status, error) {
	return protocol.NewStatus(), errors.New("link down")
}

func drainLogs(m *Monitor) []string {
	var out []string
	for {
		select {
		case l := <-m.Logs():
			out = append(out, l)
		default:
			return out
		}
	}
}

func TestPoll_KeepsNewestState(t *testing.T) {
	ctrl := emulator.NewController(emulator.Config{StepsPerTick: 100})
	ctrl.Execute("M17")
	ctrl.Execute("G0 J1:300")
	m := New(controllerSource{ctrl}, Config{})

	m.Poll(context.Background())
	m.Poll(context.Background())

	state := <-m.States()
	require.NoError(t, state.Err)
	assert.Equal(t, 200, state.Status.Positions[protocol.J1])
	assert.True(t, state.Status.Moving)

	select {
	case <-m.States():
		t.Fatal("only the newest state should be queued")
	default:
	}
}

func TestPoll_LogsTransitions(t *testing.T) {
	ctrl := emulator.NewController(emulator.Config{StepsPerTick: 1000})
	m := New(controllerSource{ctrl}, Config{})
	ctx := context.Background()

	m.Poll(ctx)
	ctrl.Execute("M17")
	ctrl.Execute("G0 J2:1500")
	m.Poll(ctx)
	m.Poll(ctx)

	logs := strings.Join(drainLogs(m), "\n")
	assert.Contains(t, logs, "Connected: enabled=false moving=false")
	assert.Contains(t, logs, "Motors enabled")
	assert.Contains(t, logs, "Motion started")
	assert.Contains(t, logs, "Motion finished")
}

func TestPoll_Error(t *testing.T) {
	m := New(failingSource{}, Config{Hz: 5})
	state := m.Poll(context.Background())
	assert.EqualError(t, state.Err, "link down")
	assert.Equal(t, 5, m.Hz())

	logs := drainLogs(m)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0], "Status error: link down")
}

func TestStart(t *testing.T) {
	ctrl := emulator.NewController(emulator.Config{})
	m := New(controllerSource{ctrl}, Config{Hz: 200})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var startErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		startErr = m.Start(ctx)
	}()

	select {
	case state := <-m.States():
		assert.NoError(t, state.Err)
	case <-time.After(time.Second):
		t.Fatal("no state published")
	}

	// a state was published, so the loop is running
	assert.ErrorIs(t, m.Start(ctx), ErrRunning)

	cancel()
	wg.Wait()
	assert.ErrorIs(t, startErr, context.Canceled)
}
