// Package protocol encodes arm commands into the controller's text protocol
// and decodes its replies.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Joint identifies one of the six axes of the arm.
type Joint string

// Joint ids as used in status payloads.
const (
	J1 Joint = "j1" // base
	J2 Joint = "j2" // shoulder
	J3 Joint = "j3" // elbow
	J4 Joint = "j4" // wrist pitch
	J5 Joint = "j5" // wrist roll
	J6 Joint = "j6" // gripper
)

// JointCount is the number of joints the controller drives.
const JointCount = 6

// AllJoints returns all joints in wire order (J1 first).
func AllJoints() []Joint {
	return []Joint{J1, J2, J3, J4, J5, J6}
}

// JointAt returns the joint for a 0-based index.
func JointAt(i int) (Joint, bool) {
	if i < 0 || i >= JointCount {
		return "", false
	}
	return Joint("j" + strconv.Itoa(i+1)), true
}

// Index returns the 0-based index of the joint, or -1 if j is not a known joint.
func (j Joint) Index() int {
	if len(j) != 2 || j[0] != 'j' {
		return -1
	}
	n := int(j[1] - '1')
	if n < 0 || n >= JointCount {
		return -1
	}
	return n
}

// Valid reports whether j is one of j1..j6.
func (j Joint) Valid() bool {
	return j.Index() >= 0
}

// Wire returns the joint as written in commands, e.g. "J3".
func (j Joint) Wire() string {
	return strings.ToUpper(string(j))
}

// ParseJoint accepts "j3", "J3" or "3".
func ParseJoint(s string) (Joint, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "j") {
		s = "j" + s
	}
	j := Joint(s)
	if !j.Valid() {
		return "", fmt.Errorf("unknown joint %q", s)
	}
	return j, nil
}
