package protocol

import (
	"strconv"
	"strings"
)

// Protocol command codes.
const (
	CmdMoveAbsolute   = "G0"
	CmdMoveRelative   = "G1"
	CmdHome           = "G28"
	CmdEnable         = "M17"
	CmdDisable        = "M18"
	CmdEmergencyStop  = "M112"
	CmdPositionReport = "M114"
	CmdSettingsReport = "M503"
	CmdQuickStatus    = "?"
)

// Reply markers on the serial line protocol.
const (
	MarkerOK    = "ok"
	MarkerError = "error:"
)

// Enable returns the command that energizes all stepper drivers.
func Enable() string { return CmdEnable }

// Disable returns the command that releases all stepper drivers.
func Disable() string { return CmdDisable }

// EmergencyStop returns the command that halts all motion and disables the drivers.
func EmergencyStop() string { return CmdEmergencyStop }

// Home returns the command that zeroes every joint at its current position.
func Home() string { return CmdHome }

// QuickStatus returns the single character status query.
func QuickStatus() string { return CmdQuickStatus }

// PositionReportCmd returns the command for the verbose position report.
func PositionReportCmd() string { return CmdPositionReport }

// SettingsReport returns the command for the motor settings report.
func SettingsReport() string { return CmdSettingsReport }

// Move encodes a joint move. Only joints present in targets are written,
// in ascending joint order; omitted joints stay where they are. Values are
// controller steps and are not range checked here.
func Move(targets map[Joint]int, relative bool) string {
	var sb strings.Builder
	if relative {
		sb.WriteString(CmdMoveRelative)
	} else {
		sb.WriteString(CmdMoveAbsolute)
	}
	for _, j := range AllJoints() {
		v, ok := targets[j]
		if !ok {
			continue
		}
		sb.WriteByte(' ')
		sb.WriteString(j.Wire())
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(v))
	}
	return sb.String()
}
