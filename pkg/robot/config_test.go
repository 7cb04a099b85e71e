package robot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/roboarm/pkg/protocol"
)

func TestConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roboarm.json")

	cfg := &Config{
		URL:            "serial:///dev/ttyUSB0",
		TimeoutSeconds: 2.5,
		BaudRate:       57600,
		Calibration: Calibration{
			protocol.J1: {StepsPerRev: 200, Microstepping: 8},
		},
	}
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "serial:///dev/ttyUSB0", loaded.URL)
	assert.Equal(t, 2500*time.Millisecond, loaded.Timeout())
	assert.Equal(t, 57600, loaded.BaudRate)
	assert.True(t, loaded.IsCalibrated())
	assert.Equal(t, 8, loaded.Calibration[protocol.J1].Microstepping)
}

func TestLoadConfigFrom_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roboarm.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"url":"http://10.0.0.2"}`), 0644))

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2", cfg.URL)
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.False(t, cfg.IsCalibrated())
}

func TestLoadConfigFrom_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfigFrom(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0644))
	_, err = LoadConfigFrom(bad)
	assert.ErrorContains(t, err, "parse")

	cfg, err := LoadConfigOrDefault(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, cfg.URL)
}

func TestConfig_ApplyEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"ROBOARM_URL=serial:///dev/ttyACM0\nROBOARM_BAUD=9600\nROBOARM_TIMEOUT=3\n"), 0644))

	// the process environment wins over the file
	t.Setenv(EnvBaudRate, "230400")
	t.Setenv(EnvLogLevel, "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(envFile))
	assert.Equal(t, "serial:///dev/ttyACM0", cfg.URL)
	assert.Equal(t, 230400, cfg.BaudRate)
	assert.Equal(t, 3*time.Second, cfg.Timeout())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfig_ApplyEnvInvalid(t *testing.T) {
	t.Setenv(EnvTimeout, "soon")
	cfg := DefaultConfig()
	assert.ErrorContains(t, cfg.ApplyEnv(""), EnvTimeout)

	t.Setenv(EnvTimeout, "")
	t.Setenv(EnvBaudRate, "-1")
	assert.ErrorContains(t, cfg.ApplyEnv(filepath.Join(t.TempDir(), "none.env")), EnvBaudRate)
}

func TestConfig_ClientOptions(t *testing.T) {
	cfg := &Config{URL: "http://arm", TimeoutSeconds: 1, BaudRate: 9600}
	c, err := New(cfg.URL, cfg.ClientOptions(nil)...)
	require.NoError(t, err)
	assert.Equal(t, time.Second, c.opts.Timeout)
	assert.Equal(t, 9600, c.opts.BaudRate)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	log := NewLoggerTo(&buf, "debug")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	log.Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")

	buf.Reset()
	log = NewLoggerTo(&buf, "off")
	log.Error("dropped")
	assert.Empty(t, buf.String())

	log = NewLoggerTo(&buf, "chatty")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}
