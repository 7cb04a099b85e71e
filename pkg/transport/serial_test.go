package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/roboarm/pkg/emulator"
	"github.com/gwillem/roboarm/pkg/protocol"
)

func serialOptions(port Port) Options {
	return Options{
		Timeout:      100 * time.Millisecond,
		SettleDelay:  -1,
		PollInterval: time.Millisecond,
		Opener:       func(string, int) (Port, error) { return port, nil },
	}
}

func openSerial(t *testing.T, port *emulator.SerialPort) *Serial {
	t.Helper()
	s := NewSerial("/dev/ttyFAKE", serialOptions(port))
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSerial_NotConnected(t *testing.T) {
	s := NewSerial("/dev/ttyFAKE", Options{})
	_, err := s.Send(context.Background(), "M17")
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = s.Status(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	require.NoError(t, s.Close())
}

func TestSerial_OpenDiscardsBanner(t *testing.T) {
	port := emulator.NewSerialPort(emulator.NewController(emulator.Config{}))
	require.Contains(t, port.Pending(), "Ready.")

	s := openSerial(t, port)
	assert.Empty(t, port.Pending())

	res, err := s.Send(context.Background(), "M17")
	require.NoError(t, err)
	assert.Equal(t, protocol.Result{Success: true, Message: "Motors enabled\nok"}, res)
}

func TestSerial_OpenFailure(t *testing.T) {
	boom := errors.New("permission denied")
	s := NewSerial("/dev/ttyUSB9", Options{
		SettleDelay: -1,
		Opener:      func(string, int) (Port, error) { return nil, boom },
	})
	err := s.Open(context.Background())
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "open /dev/ttyUSB9", terr.Op)
}

func TestSerial_OpenHonoursContext(t *testing.T) {
	port := emulator.NewSerialPort(emulator.NewController(emulator.Config{}))
	opts := serialOptions(port)
	opts.SettleDelay = time.Minute
	s := NewSerial("/dev/ttyFAKE", opts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Open(ctx), context.Canceled)
	assert.True(t, port.Closed())
}

func TestSerial_NoResponse(t *testing.T) {
	port := emulator.NewSerialPort(emulator.NewController(emulator.Config{}))
	port.Mute = true
	s := openSerial(t, port)

	start := time.Now()
	res, err := s.Send(context.Background(), "M17")
	require.NoError(t, err)
	assert.Equal(t, protocol.Result{Success: false, Message: "No response from controller"}, res)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestSerial_HomeRoundTrip(t *testing.T) {
	port := emulator.NewSerialPort(emulator.NewController(emulator.Config{}))
	port.Canned = map[string]string{protocol.Home(): "ok\n"}
	s := openSerial(t, port)

	res, err := s.Send(context.Background(), protocol.Home())
	require.NoError(t, err)
	assert.Equal(t, protocol.Result{Success: true, Message: "ok"}, res)
}

func TestSerial_ControllerError(t *testing.T) {
	port := emulator.NewSerialPort(emulator.NewController(emulator.Config{}))
	s := openSerial(t, port)

	res, err := s.Send(context.Background(), "G0 J1:100")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "error: Move failed - check limits or enable motors", res.Message)
}

func TestSerial_ChunkedMultiLineReply(t *testing.T) {
	ctrl := emulator.NewController(emulator.Config{})
	port := emulator.NewSerialPort(ctrl)
	port.ChunkSize = 3
	s := openSerial(t, port)
	ctx := context.Background()

	_, err := s.Send(ctx, "M17")
	require.NoError(t, err)
	_, err = s.Send(ctx, "G0 J4:-250")
	require.NoError(t, err)

	res, err := s.Send(ctx, protocol.PositionReportCmd())
	require.NoError(t, err)
	require.True(t, res.Success)

	rep, err := protocol.ParsePositionReport(res.Message)
	require.NoError(t, err)
	assert.Equal(t, -250, rep.Positions[protocol.J4])
	assert.True(t, rep.Enabled)
}

func TestSerial_PartialLineAtDeadline(t *testing.T) {
	port := emulator.NewSerialPort(emulator.NewController(emulator.Config{}))
	port.Canned = map[string]string{"M17": "Busy\r\nstill work"}
	s := openSerial(t, port)

	res, err := s.Send(context.Background(), "M17")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Busy\nstill work", res.Message)
}

func TestSerial_Status(t *testing.T) {
	ctrl := emulator.NewController(emulator.Config{})
	ctrl.Execute("M17")
	ctrl.Execute("G0 J1:0 J2:500 J3:1000")
	s := openSerial(t, emulator.NewSerialPort(ctrl))

	st, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.False(t, st.Moving)
	assert.Equal(t, map[protocol.Joint]int{
		protocol.J1: 0, protocol.J2: 500, protocol.J3: 1000,
		protocol.J4: 0, protocol.J5: 0, protocol.J6: 0,
	}, st.Positions)
	assert.Empty(t, st.Targets)
	assert.Empty(t, st.Distances)
	assert.Nil(t, st.IP)
}

func TestSerial_StaleOutputDiscarded(t *testing.T) {
	ctrl := emulator.NewController(emulator.Config{})
	ctrl.Execute("M17")
	port := emulator.NewSerialPort(ctrl)
	s := openSerial(t, port)

	port.Inject("late\nok\n")
	st, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.Len(t, st.Positions, protocol.JointCount)

	// A reply tail left behind by a timed out exchange.
	port.Inject("Motors enabled\r\n")
	res, err := s.Send(context.Background(), "G0")
	require.NoError(t, err)
	assert.Equal(t, protocol.Result{Success: false, Message: "error: No joints specified"}, res)
}

func TestSerial_StatusWithoutReply(t *testing.T) {
	port := emulator.NewSerialPort(emulator.NewController(emulator.Config{}))
	port.Mute = true
	s := openSerial(t, port)

	_, err := s.Status(context.Background())
	assert.ErrorIs(t, err, ErrRejected)
}

func TestSerial_Settings(t *testing.T) {
	s := openSerial(t, emulator.NewSerialPort(emulator.NewController(emulator.Config{})))

	settings, err := s.Settings(context.Background())
	require.NoError(t, err)
	require.Len(t, settings, protocol.JointCount)
	assert.Equal(t, "J3-Elbow", settings[2].Name)
	assert.Equal(t, 8, settings[2].Microstepping)
}

func TestSerial_CloseIsIdempotent(t *testing.T) {
	port := emulator.NewSerialPort(emulator.NewController(emulator.Config{}))
	s := NewSerial("/dev/ttyFAKE", serialOptions(port))
	require.NoError(t, s.Open(context.Background()))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, port.Closed())

	_, err := s.Send(context.Background(), "M17")
	assert.ErrorIs(t, err, ErrNotConnected)
}
