// Package canbus sends differential base commands to a motor controller over
// SocketCAN.
package canbus

import (
	"errors"
	"math"

	"go.einride.tech/can"

	"github.com/open-teleop/codelets/pkg/message"
)

// Frame layout: two little-endian int16 signals.
const (
	linearStartBit  = 0
	angularStartBit = 16
	signalLength    = 16
	frameLength     = 4
)

// ErrInvalidFactor is returned for a zero or negative scale factor.
var ErrInvalidFactor = errors.New("scale factor must be positive")

// Scale converts physical speeds to raw signal values: raw = value / factor.
type Scale struct {
	LinearFactor  float64
	AngularFactor float64
}

// Validate checks both factors are positive.
func (s Scale) Validate() error {
	if s.LinearFactor <= 0 || s.AngularFactor <= 0 {
		return ErrInvalidFactor
	}
	return nil
}

// EncodeCommand packs cmd into a frame. Speeds outside the int16 range are
// saturated.
func EncodeCommand(id uint32, scale Scale, cmd message.DifferentialBaseControl) (can.Frame, error) {
	if err := scale.Validate(); err != nil {
		return can.Frame{}, err
	}

	frame := can.Frame{ID: id, Length: frameLength}
	frame.Data.SetSignedBitsLittleEndian(linearStartBit, signalLength, toRaw(cmd.LinearSpeed(), scale.LinearFactor))
	frame.Data.SetSignedBitsLittleEndian(angularStartBit, signalLength, toRaw(cmd.AngularSpeed(), scale.AngularFactor))
	return frame, nil
}

// DecodeCommand unpacks a frame built by EncodeCommand.
func DecodeCommand(frame can.Frame, scale Scale) (message.DifferentialBaseControl, error) {
	if err := scale.Validate(); err != nil {
		return message.DifferentialBaseControl{}, err
	}
	linear := float64(frame.Data.SignedBitsLittleEndian(linearStartBit, signalLength)) * scale.LinearFactor
	angular := float64(frame.Data.SignedBitsLittleEndian(angularStartBit, signalLength)) * scale.AngularFactor
	return message.NewDifferentialBaseControl(linear, angular), nil
}

func toRaw(value, factor float64) int64 {
	raw := math.Round(value / factor)
	switch {
	case math.IsNaN(raw):
		return 0
	case raw > math.MaxInt16:
		return math.MaxInt16
	case raw < math.MinInt16:
		return math.MinInt16
	}
	return int64(raw)
}
