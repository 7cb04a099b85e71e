package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		raw    string
		kind   Kind
		base   string
		device string
	}{
		{"http://roboarm.local", KindNetwork, "http://roboarm.local", ""},
		{"http://192.168.1.50/", KindNetwork, "http://192.168.1.50", ""},
		{"https://arm.example.com:8443/robot/", KindNetwork, "https://arm.example.com:8443/robot", ""},
		{"serial:///dev/ttyUSB0", KindSerial, "", "/dev/ttyUSB0"},
		{"serial://COM3", KindSerial, "", "COM3"},
		{"  serial:///dev/cu.usbserial-0001  ", KindSerial, "", "/dev/cu.usbserial-0001"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			target, err := ParseTarget(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, target.Kind)
			assert.Equal(t, tt.base, target.BaseURL)
			assert.Equal(t, tt.device, target.Device)
		})
	}
}

func TestParseTarget_Invalid(t *testing.T) {
	for _, raw := range []string{
		"ftp://host",
		"roboarm.local",
		"http://",
		"serial://",
		"ws://roboarm.local",
		"http://[::1",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseTarget(raw)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, raw, cfgErr.URL)
		})
	}
}

func TestTargetString(t *testing.T) {
	target, err := ParseTarget("serial:///dev/ttyACM0")
	require.NoError(t, err)
	assert.Equal(t, "serial:///dev/ttyACM0", target.String())
	assert.Equal(t, "serial", target.Kind.String())

	target, err = ParseTarget("http://roboarm.local/")
	require.NoError(t, err)
	assert.Equal(t, "http://roboarm.local", target.String())
	assert.Equal(t, "network", target.Kind.String())
}

func TestNew_SelectsVariant(t *testing.T) {
	assert.IsType(t, &Serial{}, New(Target{Kind: KindSerial, Device: "/dev/null"}, Options{}))
	assert.IsType(t, &HTTP{}, New(Target{Kind: KindNetwork, BaseURL: "http://x"}, Options{}))
}

func TestError_Unwrap(t *testing.T) {
	err := &Error{Op: "read", Err: ErrRejected}
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "transport: read: controller rejected request", err.Error())
}
