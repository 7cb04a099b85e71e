package protocol

// NoResponseMessage is the message of the result returned when the controller
// stays silent until the timeout.
const NoResponseMessage = "No response from controller"

// Result is the outcome of one command exchange.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NoResponse returns the failed result used when nothing was received in time.
func NoResponse() Result {
	return Result{Success: false, Message: NoResponseMessage}
}

// Status is a snapshot of the arm. Missing joints in the maps mean the value
// was not offered by the transport, not zero.
type Status struct {
	Enabled   bool          `json:"enabled"`
	Moving    bool          `json:"moving"`
	Positions map[Joint]int `json:"positions"`
	Targets   map[Joint]int `json:"targets"`
	Distances map[Joint]int `json:"distances"`
	IP        *string       `json:"ip,omitempty"`
	Uptime    *int          `json:"uptime,omitempty"`
}

// NewStatus returns a status with empty, non-nil maps.
func NewStatus() Status {
	return Status{
		Positions: map[Joint]int{},
		Targets:   map[Joint]int{},
		Distances: map[Joint]int{},
	}
}

// PositionReport is the decoded reply to M114.
type PositionReport struct {
	Positions map[Joint]int
	Targets   map[Joint]int
	Moving    bool
	Enabled   bool
}

// MotorSettings describes the drive configuration of one joint.
type MotorSettings struct {
	Joint         Joint
	Name          string
	StepPin       int
	DirPin        int
	StepsPerRev   int
	Microstepping int // 0 when the source does not report it
	MaxSpeed      float64
	Acceleration  float64
	InvertDir     bool
}
