// Package message defines the messages exchanged between codelets and their
// FlatBuffers wire encoding.
package message

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Odometry2 is a planar pose and velocity estimate of a base.
// Only X and Y of the vectors are meaningful.
type Odometry2 struct {
	Translation  r3.Vector `json:"translation"`
	Heading      float64   `json:"heading"`
	LinearSpeed  r3.Vector `json:"linear_speed"`
	AngularSpeed float64   `json:"angular_speed"`
}

// DifferentialBaseControl is a command for a differential base:
// Data[0] is the linear speed (m/s), Data[1] the angular speed (rad/s).
type DifferentialBaseControl struct {
	Data []float64 `json:"data"`
}

// NewDifferentialBaseControl builds a two element command.
func NewDifferentialBaseControl(linearSpeed, angularSpeed float64) DifferentialBaseControl {
	return DifferentialBaseControl{Data: []float64{linearSpeed, angularSpeed}}
}

// LinearSpeed returns Data[0], or 0 when the command is empty.
func (c DifferentialBaseControl) LinearSpeed() float64 {
	if len(c.Data) < 1 {
		return 0
	}
	return c.Data[0]
}

// AngularSpeed returns Data[1], or 0 when the command has no angular part.
func (c DifferentialBaseControl) AngularSpeed() float64 {
	if len(c.Data) < 2 {
		return 0
	}
	return c.Data[1]
}

// TypeName returns the registry name of a message value.
func TypeName(v interface{}) string {
	switch v.(type) {
	case Odometry2, *Odometry2:
		return "Odometry2"
	case DifferentialBaseControl, *DifferentialBaseControl:
		return "DifferentialBaseControl"
	default:
		return fmt.Sprintf("%T", v)
	}
}
