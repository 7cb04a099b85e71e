package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CommandRequest is the body of POST /api/command.
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandReply is the body the controller answers commands with. Request
// errors (bad JSON, missing field) come back with Error set instead of Message.
type CommandReply struct {
	Success *bool  `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Command string `json:"command,omitempty"`
}

// ConfigPayload is the body of GET /api/config.
type ConfigPayload struct {
	MotorCount int            `json:"motor_count"`
	EnablePin  int            `json:"enable_pin"`
	Motors     []MotorPayload `json:"motors"`
}

// MotorPayload is one entry of ConfigPayload.Motors. Joint is 1-based.
type MotorPayload struct {
	Joint        int     `json:"joint"`
	Name         string  `json:"name"`
	StepPin      int     `json:"step_pin"`
	DirPin       int     `json:"dir_pin"`
	StepsPerRev  int     `json:"steps_per_rev"`
	MaxSpeed     float64 `json:"max_speed"`
	Acceleration float64 `json:"acceleration"`
	InvertDir    bool    `json:"invert_dir"`
}

// DecodeResult decodes a command reply. A body that is not a JSON object with
// a success field is rejected.
func DecodeResult(data []byte) (Result, error) {
	var reply CommandReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if reply.Success == nil {
		return Result{}, fmt.Errorf("%w: missing success field", ErrMalformedReply)
	}
	msg := reply.Message
	if msg == "" {
		msg = reply.Error
	}
	return Result{Success: *reply.Success, Message: msg}, nil
}

// decodeObject unmarshals data into v, refusing bodies that are not a JSON
// object such as null or a bare array.
func decodeObject(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: not a JSON object", ErrMalformedReply)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return nil
}

// DecodeStatus decodes GET /api/status. Absent fields take their zero value
// and absent maps become empty maps. Keys outside j1..j6 are dropped.
func DecodeStatus(data []byte) (Status, error) {
	var st Status
	if err := decodeObject(data, &st); err != nil {
		return NewStatus(), err
	}
	st.Positions = knownJoints(st.Positions)
	st.Targets = knownJoints(st.Targets)
	st.Distances = knownJoints(st.Distances)
	return st, nil
}

// DecodeSettings decodes GET /api/config into per-joint settings.
func DecodeSettings(data []byte) ([]MotorSettings, error) {
	var cfg ConfigPayload
	if err := decodeObject(data, &cfg); err != nil {
		return nil, err
	}
	out := make([]MotorSettings, 0, len(cfg.Motors))
	for _, m := range cfg.Motors {
		j, ok := JointAt(m.Joint - 1)
		if !ok {
			return nil, fmt.Errorf("%w: joint %d out of range", ErrMalformedReply, m.Joint)
		}
		out = append(out, MotorSettings{
			Joint:        j,
			Name:         m.Name,
			StepPin:      m.StepPin,
			DirPin:       m.DirPin,
			StepsPerRev:  m.StepsPerRev,
			MaxSpeed:     m.MaxSpeed,
			Acceleration: m.Acceleration,
			InvertDir:    m.InvertDir,
		})
	}
	return out, nil
}

func knownJoints(m map[Joint]int) map[Joint]int {
	out := make(map[Joint]int, len(m))
	for j, v := range m {
		if j.Valid() {
			out[j] = v
		}
	}
	return out
}
