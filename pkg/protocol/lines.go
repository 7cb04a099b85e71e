package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedReply is returned when a text reply does not have the expected shape.
var ErrMalformedReply = errors.New("malformed controller reply")

// IsTerminator reports whether a serial line ends a reply.
func IsTerminator(line string) bool {
	return strings.HasPrefix(line, MarkerOK) || strings.HasPrefix(line, MarkerError)
}

// ParseLines classifies the lines captured for one serial exchange. No lines
// means the controller did not answer. The exchange failed when the last line
// carries the error marker.
func ParseLines(lines []string) Result {
	if len(lines) == 0 {
		return NoResponse()
	}
	msg := strings.Join(lines, "\n")
	if strings.HasPrefix(lines[len(lines)-1], MarkerError) {
		return Result{Success: false, Message: msg}
	}
	return Result{Success: true, Message: msg}
}

// ParseQuickStatus decodes the reply to "?", e.g. "EM P:0,500,1000,0,0,0".
// The flags token enables on 'E' and reports motion on 'M'. Positions are
// assigned to j1..j6 in order. This format carries neither targets nor
// distances, so those maps are returned empty.
func ParseQuickStatus(text string) (Status, error) {
	st := NewStatus()

	line, ok := firstPayloadLine(text)
	if !ok {
		return st, fmt.Errorf("%w: empty status", ErrMalformedReply)
	}

	fields := strings.Fields(line)
	if !strings.HasPrefix(fields[0], "P:") {
		flags := fields[0]
		st.Enabled = strings.ContainsRune(flags, 'E')
		st.Moving = strings.ContainsRune(flags, 'M')
		fields = fields[1:]
	}

	for _, f := range fields {
		if !strings.HasPrefix(f, "P:") {
			continue
		}
		for i, raw := range strings.Split(strings.TrimPrefix(f, "P:"), ",") {
			j, ok := JointAt(i)
			if !ok {
				break
			}
			v, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return st, fmt.Errorf("%w: position %s: %v", ErrMalformedReply, j, err)
			}
			st.Positions[j] = v
		}
	}
	return st, nil
}

// ParsePositionReport decodes the multi-line reply to M114.
func ParsePositionReport(text string) (PositionReport, error) {
	rep := PositionReport{
		Positions: map[Joint]int{},
		Targets:   map[Joint]int{},
	}
	seen := false
	for _, line := range splitLines(text) {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		var err error
		switch strings.TrimSpace(key) {
		case "Position":
			err = parseJointValues(value, rep.Positions)
		case "Target":
			err = parseJointValues(value, rep.Targets)
		case "Moving":
			rep.Moving = parseYes(value)
		case "Enabled":
			rep.Enabled = parseYes(value)
		default:
			continue
		}
		if err != nil {
			return rep, err
		}
		seen = true
	}
	if !seen {
		return rep, fmt.Errorf("%w: no position report", ErrMalformedReply)
	}
	return rep, nil
}

// ParseSettingsReport decodes the reply to M503. Each motor line looks like
// "J1-Base Step:2 Dir:4 SPR:200 uStep:8 MaxHz:1000 Accel:500" and motor lines
// are listed in joint order.
func ParseSettingsReport(text string) ([]MotorSettings, error) {
	var out []MotorSettings
	for _, line := range splitLines(text) {
		if !strings.Contains(line, "SPR:") {
			continue
		}
		j, ok := JointAt(len(out))
		if !ok {
			break
		}
		fields := strings.Fields(line)
		ms := MotorSettings{Joint: j, Name: fields[0]}
		for _, f := range fields[1:] {
			key, value, found := strings.Cut(f, ":")
			if !found {
				continue
			}
			var err error
			switch key {
			case "Step":
				ms.StepPin, err = strconv.Atoi(value)
			case "Dir":
				ms.DirPin, err = strconv.Atoi(value)
			case "SPR":
				ms.StepsPerRev, err = strconv.Atoi(value)
			case "uStep":
				ms.Microstepping, err = strconv.Atoi(value)
			case "MaxHz":
				ms.MaxSpeed, err = strconv.ParseFloat(value, 64)
			case "Accel":
				ms.Acceleration, err = strconv.ParseFloat(value, 64)
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %s %s: %v", ErrMalformedReply, j, key, err)
			}
		}
		out = append(out, ms)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no motor settings", ErrMalformedReply)
	}
	return out, nil
}

func parseJointValues(s string, into map[Joint]int) error {
	for _, tok := range strings.Fields(s) {
		name, value, found := strings.Cut(tok, ":")
		if !found {
			return fmt.Errorf("%w: token %q", ErrMalformedReply, tok)
		}
		j, err := ParseJoint(name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedReply, j, err)
		}
		into[j] = v
	}
	return nil
}

func parseYes(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "yes")
}

func firstPayloadLine(text string) (string, bool) {
	for _, line := range splitLines(text) {
		if IsTerminator(line) {
			continue
		}
		return line, true
	}
	return "", false
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
