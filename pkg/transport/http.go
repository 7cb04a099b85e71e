package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/gwillem/roboarm/pkg/protocol"
)

// Controller HTTP API paths.
const (
	PathCommand = "/api/command"
	PathStatus  = "/api/status"
	PathConfig  = "/api/config"
)

const maxReplySize = 1 << 20

// HTTP talks to the controller's JSON API.
type HTTP struct {
	base   string
	opts   Options
	client *http.Client
	log    logrus.FieldLogger
}

// NewHTTP returns an unopened HTTP transport for baseURL.
func NewHTTP(baseURL string, opts Options) *HTTP {
	opts = opts.withDefaults()
	return &HTTP{
		base: baseURL,
		opts: opts,
		log:  opts.Logger.WithField("transport", "http"),
	}
}

// Open prepares the HTTP client. The configured timeout applies per request.
func (h *HTTP) Open(ctx context.Context) error {
	if h.client != nil {
		return nil
	}
	if h.opts.HTTPClient != nil {
		h.client = h.opts.HTTPClient
	} else {
		h.client = &http.Client{Timeout: h.opts.Timeout}
	}
	h.log.WithField("url", h.base).Debug("client ready")
	return nil
}

// Close releases idle connections. Calling it again is a no-op.
func (h *HTTP) Close() error {
	if h.client == nil {
		return nil
	}
	h.client.CloseIdleConnections()
	h.client = nil
	return nil
}

// Send posts one command.
func (h *HTTP) Send(ctx context.Context, command string) (protocol.Result, error) {
	body, err := json.Marshal(protocol.CommandRequest{Command: command})
	if err != nil {
		return protocol.Result{}, err
	}

	h.log.WithField("cmd", command).Debug("send")
	code, data, err := h.do(ctx, http.MethodPost, PathCommand, body)
	if err != nil {
		return protocol.Result{}, err
	}

	res, err := protocol.DecodeResult(data)
	if err != nil {
		return protocol.Result{}, &Error{Op: "POST " + PathCommand, Err: fmt.Errorf("HTTP %d: %w", code, err)}
	}
	h.log.WithFields(logrus.Fields{"cmd": command, "success": res.Success}).Debug(res.Message)
	return res, nil
}

// Status fetches the full status record.
func (h *HTTP) Status(ctx context.Context) (protocol.Status, error) {
	code, data, err := h.do(ctx, http.MethodGet, PathStatus, nil)
	if err != nil {
		return protocol.NewStatus(), err
	}
	if code != http.StatusOK {
		return protocol.NewStatus(), &Error{Op: "GET " + PathStatus, Err: fmt.Errorf("unexpected HTTP %d", code)}
	}
	st, err := protocol.DecodeStatus(data)
	if err != nil {
		return protocol.NewStatus(), &Error{Op: "GET " + PathStatus, Err: err}
	}
	return st, nil
}

// Settings fetches the motor configuration.
func (h *HTTP) Settings(ctx context.Context) ([]protocol.MotorSettings, error) {
	code, data, err := h.do(ctx, http.MethodGet, PathConfig, nil)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, &Error{Op: "GET " + PathConfig, Err: fmt.Errorf("unexpected HTTP %d", code)}
	}
	settings, err := protocol.DecodeSettings(data)
	if err != nil {
		return nil, &Error{Op: "GET " + PathConfig, Err: err}
	}
	return settings, nil
}

func (h *HTTP) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	if h.client == nil {
		return 0, nil, ErrNotConnected
	}
	op := method + " " + path

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.base+path, rd)
	if err != nil {
		return 0, nil, &Error{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, nil, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return resp.StatusCode, nil, &Error{Op: op, Err: err}
	}
	return resp.StatusCode, data, nil
}
