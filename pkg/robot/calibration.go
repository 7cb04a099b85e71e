package robot

import (
	"math"

	"github.com/gwillem/roboarm/pkg/protocol"
)

// JointCalibration converts between motor steps and joint angle.
type JointCalibration struct {
	StepsPerRev   int     `json:"steps_per_rev"`
	Microstepping int     `json:"microstepping,omitempty"`
	GearRatio     float64 `json:"gear_ratio,omitempty"`
	HomeOffset    int     `json:"home_offset,omitempty"`
	InvertDir     bool    `json:"invert_dir,omitempty"`
}

// Calibration holds calibration data for all joints.
type Calibration map[protocol.Joint]JointCalibration

// CalibrationFromSettings builds a calibration from the controller's motor
// settings with a 1:1 gear ratio.
func CalibrationFromSettings(settings []protocol.MotorSettings) Calibration {
	cal := make(Calibration, len(settings))
	for _, ms := range settings {
		if !ms.Joint.Valid() || ms.StepsPerRev <= 0 {
			continue
		}
		cal[ms.Joint] = JointCalibration{
			StepsPerRev:   ms.StepsPerRev,
			Microstepping: ms.Microstepping,
			InvertDir:     ms.InvertDir,
		}
	}
	return cal
}

// StepsPerDegree returns how many steps turn the joint by one degree. Zero
// microstepping or gear ratio count as 1.
func (c JointCalibration) StepsPerDegree() float64 {
	micro := c.Microstepping
	if micro <= 0 {
		micro = 1
	}
	gear := c.GearRatio
	if gear <= 0 {
		gear = 1
	}
	return float64(c.StepsPerRev*micro) * gear / 360
}

func (c JointCalibration) sign() float64 {
	if c.InvertDir {
		return -1
	}
	return 1
}

// Degrees converts a step position to an angle.
func (c JointCalibration) Degrees(steps int) float64 {
	spd := c.StepsPerDegree()
	if spd == 0 {
		return 0
	}
	return float64(steps-c.HomeOffset) / spd * c.sign()
}

// Steps converts an angle to the nearest step position.
func (c JointCalibration) Steps(degrees float64) int {
	return int(math.Round(degrees*c.StepsPerDegree()*c.sign())) + c.HomeOffset
}

// Degrees converts a step position of joint j. It reports false when j is not
// calibrated.
func (c Calibration) Degrees(j protocol.Joint, steps int) (float64, bool) {
	jc, ok := c[j]
	if !ok || jc.StepsPerDegree() == 0 {
		return 0, false
	}
	return jc.Degrees(steps), true
}

// Steps converts angles to step targets, skipping joints that are not
// calibrated.
func (c Calibration) Steps(degrees map[protocol.Joint]float64) map[protocol.Joint]int {
	out := make(map[protocol.Joint]int, len(degrees))
	for j, deg := range degrees {
		jc, ok := c[j]
		if !ok || jc.StepsPerDegree() == 0 {
			continue
		}
		out[j] = jc.Steps(deg)
	}
	return out
}
