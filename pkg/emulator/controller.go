// Package emulator provides a software stand-in for the arm controller. It
// executes the same command set as the firmware and can be reached over HTTP
// (Handler) or through a fake serial port (SerialPort).
package emulator

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gwillem/roboarm/pkg/protocol"
)

// Soft limits enforced on every target position.
const (
	MaxPosition = 100000
	MinPosition = -100000
)

// Motor is the static drive configuration of one joint.
type Motor struct {
	Name          string
	StepPin       int
	DirPin        int
	StepsPerRev   int
	Microstepping int
	MaxSpeed      float64
	Acceleration  float64
	InvertDir     bool
}

// DefaultMotors mirrors the stock firmware wiring.
func DefaultMotors() [protocol.JointCount]Motor {
	return [protocol.JointCount]Motor{
		{"J1-Base", 2, 4, 200, 8, 1000, 500, false},
		{"J2-Shoulder", 16, 17, 200, 8, 1000, 500, false},
		{"J3-Elbow", 18, 19, 200, 8, 1000, 500, false},
		{"J4-WristPitch", 21, 22, 200, 8, 1000, 500, false},
		{"J5-WristRoll", 23, 25, 200, 8, 1000, 500, false},
		{"J6-Gripper", 26, 27, 200, 8, 1000, 500, false},
	}
}

// EnablePin is the shared driver enable pin reported by /api/config.
const EnablePin = 15

// Config tunes the emulator.
type Config struct {
	// StepsPerTick is how far each joint travels per status query.
	// Zero or negative completes moves instantly.
	StepsPerTick int
	IP           string
	Motors       *[protocol.JointCount]Motor
}

// Controller holds the simulated arm state. It is safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	motors   [protocol.JointCount]Motor
	enabled  bool
	pos      [protocol.JointCount]int
	target   [protocol.JointCount]int
	started  time.Time
	commands []string
}

// NewController returns a disabled arm at the zero position.
func NewController(cfg Config) *Controller {
	c := &Controller{
		cfg:     cfg,
		motors:  DefaultMotors(),
		started: time.Now(),
	}
	if cfg.Motors != nil {
		c.motors = *cfg.Motors
	}
	return c
}

func ok(msg string) protocol.Result {
	if msg == "" {
		msg = protocol.MarkerOK
	}
	return protocol.Result{Success: true, Message: msg}
}

func fail(msg string) protocol.Result {
	return protocol.Result{Success: false, Message: protocol.MarkerError + " " + msg}
}

// Execute runs one command line and returns the controller's reply.
func (c *Controller) Execute(line string) protocol.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd := strings.TrimSpace(line)
	if cmd == "" {
		return ok("")
	}
	c.commands = append(c.commands, cmd)

	if cmd == protocol.CmdQuickStatus {
		c.tick()
		return ok(c.quickStatus())
	}

	kind := strings.ToUpper(cmd[:1])
	numEnd := 1
	for numEnd < len(cmd) && cmd[numEnd] >= '0' && cmd[numEnd] <= '9' {
		numEnd++
	}
	num := -1
	if numEnd > 1 {
		num, _ = strconv.Atoi(cmd[1:numEnd])
	}
	args := strings.TrimSpace(cmd[numEnd:])

	switch kind {
	case "G":
		switch num {
		case 0:
			return c.move(args, false)
		case 1:
			return c.move(args, true)
		case 28:
			c.pos = [protocol.JointCount]int{}
			c.target = [protocol.JointCount]int{}
			return ok("All joints homed (zeroed)")
		default:
			return fail(fmt.Sprintf("Unknown G-code: G%d", num))
		}
	case "M":
		switch num {
		case 17:
			c.enabled = true
			return ok("Motors enabled")
		case 18:
			c.enabled = false
			c.target = c.pos
			return ok("Motors disabled")
		case 112:
			c.target = c.pos
			c.enabled = false
			return ok("EMERGENCY STOP - Motors disabled")
		case 114:
			return ok(c.positionReport())
		case 503:
			return ok(c.settingsReport())
		default:
			return fail(fmt.Sprintf("Unknown M-code: M%d", num))
		}
	default:
		return fail("Unknown command: " + cmd)
	}
}

func (c *Controller) move(args string, relative bool) protocol.Result {
	targets, err := parseJointArgs(args)
	if err != nil {
		if relative {
			return fail("Invalid joint format")
		}
		return fail("Invalid joint format. Use: G0 J1:1000 J2:500")
	}
	if len(targets) == 0 {
		return fail("No joints specified")
	}
	if !c.enabled {
		return fail("Move failed - check limits or enable motors")
	}

	next := c.target
	for i, v := range targets {
		if relative {
			v += c.pos[i]
		}
		if v < MinPosition || v > MaxPosition {
			return fail("Move failed - check limits or enable motors")
		}
		next[i] = v
	}
	c.target = next
	if c.cfg.StepsPerTick <= 0 {
		c.pos = c.target
	}
	return ok("")
}

// parseJointArgs reads "J1:1000 J2:-5" into 0-based indices.
func parseJointArgs(args string) (map[int]int, error) {
	out := map[int]int{}
	for _, tok := range strings.Fields(strings.ToUpper(args)) {
		name, value, found := strings.Cut(tok, ":")
		if !found || !strings.HasPrefix(name, "J") {
			return nil, fmt.Errorf("bad token %q", tok)
		}
		n, err := strconv.Atoi(name[1:])
		if err != nil || n < 1 || n > protocol.JointCount {
			return nil, fmt.Errorf("bad joint %q", name)
		}
		v, err := strconv.Atoi(strings.TrimPrefix(value, "+"))
		if err != nil {
			return nil, fmt.Errorf("bad value %q", value)
		}
		out[n-1] = v
	}
	return out, nil
}

// tick advances every joint one step of motion towards its target.
func (c *Controller) tick() {
	step := c.cfg.StepsPerTick
	for i := range c.pos {
		d := c.target[i] - c.pos[i]
		switch {
		case step <= 0 || (d <= step && d >= -step):
			c.pos[i] = c.target[i]
		case d > 0:
			c.pos[i] += step
		default:
			c.pos[i] -= step
		}
	}
}

func (c *Controller) moving() bool {
	return c.pos != c.target
}

func (c *Controller) quickStatus() string {
	var sb strings.Builder
	if c.enabled {
		sb.WriteByte('E')
	} else {
		sb.WriteByte('D')
	}
	if c.moving() {
		sb.WriteByte('M')
	} else {
		sb.WriteByte('I')
	}
	sb.WriteString(" P:")
	for i, p := range c.pos {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(p))
	}
	return sb.String()
}

func (c *Controller) positionReport() string {
	var sb strings.Builder
	sb.WriteString("Position:")
	for i, p := range c.pos {
		fmt.Fprintf(&sb, " J%d:%d", i+1, p)
	}
	sb.WriteString("\nTarget:")
	for i, t := range c.target {
		fmt.Fprintf(&sb, " J%d:%d", i+1, t)
	}
	sb.WriteString("\nMoving: " + yesNo(c.moving()))
	sb.WriteString("\nEnabled: " + yesNo(c.enabled))
	return sb.String()
}

func (c *Controller) settingsReport() string {
	var sb strings.Builder
	sb.WriteString("Settings (FastAccelStepper):\n")
	for _, m := range c.motors {
		fmt.Fprintf(&sb, "%s Step:%d Dir:%d SPR:%d uStep:%d MaxHz:%g Accel:%g\n",
			m.Name, m.StepPin, m.DirPin, m.StepsPerRev, m.Microstepping, m.MaxSpeed, m.Acceleration)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Status advances motion by one tick and returns the full status record.
func (c *Controller) Status() protocol.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick()
	st := protocol.NewStatus()
	st.Enabled = c.enabled
	st.Moving = c.moving()
	for i, j := range protocol.AllJoints() {
		st.Positions[j] = c.pos[i]
		st.Targets[j] = c.target[i]
		st.Distances[j] = c.target[i] - c.pos[i]
	}
	if c.cfg.IP != "" {
		ip := c.cfg.IP
		st.IP = &ip
	}
	uptime := int(time.Since(c.started).Seconds())
	st.Uptime = &uptime
	return st
}

// SetEnabled switches the drivers on or off, stopping motion when disabling.
func (c *Controller) SetEnabled(enabled bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.target = c.pos
	}
	return c.enabled
}

// ConfigPayload returns the body served on /api/config.
func (c *Controller) ConfigPayload() protocol.ConfigPayload {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := protocol.ConfigPayload{
		MotorCount: protocol.JointCount,
		EnablePin:  EnablePin,
		Motors:     make([]protocol.MotorPayload, 0, protocol.JointCount),
	}
	for i, m := range c.motors {
		cfg.Motors = append(cfg.Motors, protocol.MotorPayload{
			Joint:        i + 1,
			Name:         m.Name,
			StepPin:      m.StepPin,
			DirPin:       m.DirPin,
			StepsPerRev:  m.StepsPerRev,
			MaxSpeed:     m.MaxSpeed,
			Acceleration: m.Acceleration,
			InvertDir:    m.InvertDir,
		})
	}
	return cfg
}

// Commands returns every non-empty command received so far.
func (c *Controller) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

// Positions returns the current joint positions.
func (c *Controller) Positions() map[protocol.Joint]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[protocol.Joint]int, protocol.JointCount)
	for i, j := range protocol.AllJoints() {
		out[j] = c.pos[i]
	}
	return out
}
