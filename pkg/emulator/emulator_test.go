package emulator

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/roboarm/pkg/protocol"
)

func TestController_Execute(t *testing.T) {
	c := NewController(Config{})

	tests := []struct {
		cmd     string
		success bool
		message string
	}{
		{"G0 J1:100", false, "error: Move failed - check limits or enable motors"},
		{"M17", true, "Motors enabled"},
		{"G0 J1:100 J2:-50", true, "ok"},
		{"G1 J1:10", true, "ok"},
		{"G0", false, "error: No joints specified"},
		{"G0 J9:1", false, "error: Invalid joint format. Use: G0 J1:1000 J2:500"},
		{"G1 J1", false, "error: Invalid joint format"},
		{"G0 J1:200000", false, "error: Move failed - check limits or enable motors"},
		{"G5", false, "error: Unknown G-code: G5"},
		{"M999", false, "error: Unknown M-code: M999"},
		{"X1", false, "error: Unknown command: X1"},
		{"", true, "ok"},
	}

	for _, tt := range tests {
		res := c.Execute(tt.cmd)
		assert.Equal(t, tt.success, res.Success, tt.cmd)
		assert.Equal(t, tt.message, res.Message, tt.cmd)
	}

	pos := c.Positions()
	assert.Equal(t, 110, pos[protocol.J1])
	assert.Equal(t, -50, pos[protocol.J2])
}

func TestController_QuickStatusAndHome(t *testing.T) {
	c := NewController(Config{})
	assert.Equal(t, "DI P:0,0,0,0,0,0", c.Execute("?").Message)

	c.Execute("M17")
	c.Execute("G0 J3:1000")
	assert.Equal(t, "EI P:0,0,1000,0,0,0", c.Execute("?").Message)

	res := c.Execute("G28")
	assert.Equal(t, "All joints homed (zeroed)", res.Message)
	assert.Equal(t, "EI P:0,0,0,0,0,0", c.Execute("?").Message)

	res = c.Execute("M112")
	assert.True(t, res.Success)
	assert.Equal(t, "DI P:0,0,0,0,0,0", c.Execute("?").Message)
}

func TestController_MotionTicks(t *testing.T) {
	c := NewController(Config{StepsPerTick: 100})
	c.Execute("M17")
	c.Execute("G0 J1:250")

	st := c.Status()
	assert.True(t, st.Moving)
	assert.Equal(t, 100, st.Positions[protocol.J1])
	assert.Equal(t, 250, st.Targets[protocol.J1])
	assert.Equal(t, 150, st.Distances[protocol.J1])

	st = c.Status()
	assert.True(t, st.Moving)
	assert.Equal(t, 200, st.Positions[protocol.J1])

	st = c.Status()
	assert.False(t, st.Moving)
	assert.Equal(t, 250, st.Positions[protocol.J1])
	assert.Equal(t, 0, st.Distances[protocol.J1])
}

func TestController_Reports(t *testing.T) {
	c := NewController(Config{})
	c.Execute("M17")
	c.Execute("G0 J2:42")

	rep, err := protocol.ParsePositionReport(c.Execute("M114").Message)
	require.NoError(t, err)
	assert.Equal(t, 42, rep.Positions[protocol.J2])
	assert.Equal(t, 42, rep.Targets[protocol.J2])
	assert.True(t, rep.Enabled)
	assert.False(t, rep.Moving)

	settings, err := protocol.ParseSettingsReport(c.Execute("M503").Message)
	require.NoError(t, err)
	require.Len(t, settings, protocol.JointCount)
	assert.Equal(t, "J6-Gripper", settings[5].Name)
	assert.Equal(t, 200, settings[5].StepsPerRev)
	assert.Equal(t, 8, settings[5].Microstepping)
}

func newTestServer(t *testing.T, c *Controller) *httptest.Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	srv := httptest.NewServer(Handler(c, log))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHandler_Command(t *testing.T) {
	srv := newTestServer(t, NewController(Config{}))

	code, body := postJSON(t, srv.URL+"/api/command", `{"command":"M17"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Motors enabled", body["message"])

	code, body = postJSON(t, srv.URL+"/api/command", `{"command":"G0"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "error: No joints specified", body["message"])

	code, body = postJSON(t, srv.URL+"/api/command", `{"cmd":"M17"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing 'command' field", body["error"])

	code, body = postJSON(t, srv.URL+"/api/command", `nope`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid JSON", body["error"])
}

func TestHandler_StatusMoveEnableConfig(t *testing.T) {
	c := NewController(Config{IP: "10.0.0.7"})
	srv := newTestServer(t, c)

	code, body := postJSON(t, srv.URL+"/api/enable", `{"enabled":true}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["enabled"])

	code, body = postJSON(t, srv.URL+"/api/move", `{"j1":5,"j4":-7}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "G0 J1:5 J4:-7", body["command"])

	code, _ = postJSON(t, srv.URL+"/api/move", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	st, err := protocol.DecodeStatus(data)
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.Equal(t, 5, st.Positions[protocol.J1])
	assert.Equal(t, -7, st.Positions[protocol.J4])
	require.NotNil(t, st.IP)
	assert.Equal(t, "10.0.0.7", *st.IP)
	assert.NotNil(t, st.Uptime)

	resp, err = http.Get(srv.URL + "/api/config")
	require.NoError(t, err)
	data, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	settings, err := protocol.DecodeSettings(data)
	require.NoError(t, err)
	assert.Len(t, settings, protocol.JointCount)

	resp, err = http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSerialPort(t *testing.T) {
	c := NewController(Config{})
	p := NewSerialPort(c)
	assert.Contains(t, p.Pending(), "Roboarm Controller")

	require.NoError(t, p.ResetInputBuffer())
	_, err := p.Write([]byte("M17\n?\nG0\n"))
	require.NoError(t, err)
	assert.Equal(t, "Motors enabled\r\nok\r\nEI P:0,0,0,0,0,0\r\nok\r\nerror: No joints specified\r\n", p.Pending())

	p.ChunkSize = 4
	buf := make([]byte, 64)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "Moto", string(buf[:n]))

	require.NoError(t, p.Close())
	_, err = p.Read(buf)
	assert.ErrorIs(t, err, ErrPortClosed)
	assert.True(t, p.Closed())

	p.Reopen()
	assert.False(t, p.Closed())
	assert.True(t, bytes.HasPrefix([]byte(p.Pending()), []byte("====")))
}

func TestSerialPort_Mute(t *testing.T) {
	p := NewSerialPort(NewController(Config{}))
	p.ResetInputBuffer()
	p.Mute = true
	p.Write([]byte("M17\n"))
	assert.Empty(t, p.Pending())
}

func TestSerialPort_Canned(t *testing.T) {
	c := NewController(Config{})
	p := NewSerialPort(c)
	p.ResetInputBuffer()
	p.Canned = map[string]string{"M17": "ok\n"}
	p.Write([]byte("M17\n"))
	assert.Equal(t, "ok\n", p.Pending())
	assert.Equal(t, "DI P:0,0,0,0,0,0", c.Execute("?").Message)
}
