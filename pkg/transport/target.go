package transport

import (
	"net/url"
	"strings"
)

// Kind selects the transport variant.
type Kind int

const (
	KindNetwork Kind = iota
	KindSerial
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindSerial:
		return "serial"
	default:
		return "unknown"
	}
}

// Target is a parsed controller address.
type Target struct {
	Kind    Kind
	BaseURL string // network: scheme://host[/path] without trailing slash
	Device  string // serial: device path, e.g. /dev/ttyUSB0 or COM3
}

// ParseTarget parses http(s)://host or serial://device. Any other scheme is a
// ConfigurationError.
func ParseTarget(raw string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Target{}, &ConfigurationError{URL: raw, Reason: err.Error()}
	}

	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return Target{}, &ConfigurationError{URL: raw, Reason: "missing host"}
		}
		return Target{Kind: KindNetwork, BaseURL: strings.TrimRight(u.String(), "/")}, nil

	case "serial":
		// serial:///dev/ttyUSB0 puts the device in the path, serial://COM3 in the host
		device := u.Path
		if device == "" {
			device = u.Host
		}
		if device == "" {
			return Target{}, &ConfigurationError{URL: raw, Reason: "missing serial device"}
		}
		return Target{Kind: KindSerial, Device: device}, nil

	case "":
		return Target{}, &ConfigurationError{URL: raw, Reason: "missing scheme"}

	default:
		return Target{}, &ConfigurationError{URL: raw, Reason: "unsupported scheme " + u.Scheme}
	}
}

// String returns the target as a URL.
func (t Target) String() string {
	if t.Kind == KindSerial {
		return "serial://" + t.Device
	}
	return t.BaseURL
}
