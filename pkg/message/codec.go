package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/golang/geo/r3"

	fb "github.com/open-teleop/codelets/pkg/flatbuffers/codelets/message"
)

// Common errors
var (
	ErrUnknownContentType = errors.New("unknown content type")
	ErrMalformed          = errors.New("malformed flatbuffer")
)

// ContentType identifies the payload carried by an Envelope.
type ContentType = fb.ContentType

// Content types
const (
	ContentTypeNone                    = fb.ContentTypeNONE
	ContentTypeOdometry2               = fb.ContentTypeODOMETRY2
	ContentTypeDifferentialBaseControl = fb.ContentTypeDIFFERENTIAL_BASE_CONTROL
	ContentTypeJSON                    = fb.ContentTypeJSON
)

// Envelope wraps an encoded message with its routing header.
type Envelope struct {
	Channel     string
	ID          string
	Timestamp   time.Time
	ContentType ContentType
	Payload     []byte
}

// Marshal encodes a known message type as a FlatBuffer.
func Marshal(v interface{}) (ContentType, []byte, error) {
	switch m := v.(type) {
	case Odometry2:
		return ContentTypeOdometry2, encodeOdometry2(m), nil
	case *Odometry2:
		return ContentTypeOdometry2, encodeOdometry2(*m), nil
	case DifferentialBaseControl:
		return ContentTypeDifferentialBaseControl, encodeDifferentialBaseControl(m), nil
	case *DifferentialBaseControl:
		return ContentTypeDifferentialBaseControl, encodeDifferentialBaseControl(*m), nil
	default:
		return ContentTypeNone, nil, fmt.Errorf("%w: %T", ErrUnknownContentType, v)
	}
}

// Unmarshal decodes a FlatBuffer payload of the given content type.
// JSON payloads cannot be decoded without a target type and are rejected here.
func Unmarshal(contentType ContentType, data []byte) (v interface{}, err error) {
	defer recoverMalformed(&err)

	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}

	switch contentType {
	case ContentTypeOdometry2:
		odom := fb.GetRootAsOdometry2(data, 0)
		return Odometry2{
			Translation:  r3.Vector{X: odom.TranslationX(), Y: odom.TranslationY()},
			Heading:      odom.Heading(),
			LinearSpeed:  r3.Vector{X: odom.LinearSpeedX(), Y: odom.LinearSpeedY()},
			AngularSpeed: odom.AngularSpeed(),
		}, nil
	case ContentTypeDifferentialBaseControl:
		cmd := fb.GetRootAsDifferentialBaseControl(data, 0)
		out := DifferentialBaseControl{Data: make([]float64, cmd.DataLength())}
		for i := range out.Data {
			out.Data[i] = cmd.Data(i)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownContentType, contentType)
	}
}

// UnmarshalInto decodes data into target, which must point to the message
// type matching contentType. JSON payloads are decoded with encoding/json.
func UnmarshalInto(contentType ContentType, data []byte, target interface{}) error {
	if contentType == ContentTypeJSON {
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("failed to decode JSON payload: %w", err)
		}
		return nil
	}

	v, err := Unmarshal(contentType, data)
	if err != nil {
		return err
	}

	switch t := target.(type) {
	case *Odometry2:
		odom, ok := v.(Odometry2)
		if !ok {
			return fmt.Errorf("cannot decode %s into %T", contentType, target)
		}
		*t = odom
	case *DifferentialBaseControl:
		cmd, ok := v.(DifferentialBaseControl)
		if !ok {
			return fmt.Errorf("cannot decode %s into %T", contentType, target)
		}
		*t = cmd
	default:
		return fmt.Errorf("%w: target %T", ErrUnknownContentType, target)
	}
	return nil
}

// EncodeEnvelope serializes an Envelope.
func EncodeEnvelope(env Envelope) []byte {
	builder := flatbuffers.NewBuilder(64 + len(env.Payload))

	channelOffset := builder.CreateString(env.Channel)
	idOffset := builder.CreateString(env.ID)
	payloadOffset := builder.CreateByteVector(env.Payload)

	fb.EnvelopeStart(builder)
	fb.EnvelopeAddChannel(builder, channelOffset)
	fb.EnvelopeAddId(builder, idOffset)
	fb.EnvelopeAddTimestampNs(builder, env.Timestamp.UnixNano())
	fb.EnvelopeAddContentType(builder, env.ContentType)
	fb.EnvelopeAddPayload(builder, payloadOffset)
	fb.FinishEnvelopeBuffer(builder, fb.EnvelopeEnd(builder))

	return builder.FinishedBytes()
}

// DecodeEnvelope parses an Envelope. Truncated buffers return ErrMalformed
// instead of panicking.
func DecodeEnvelope(data []byte) (env Envelope, err error) {
	defer recoverMalformed(&err)

	if len(data) < flatbuffers.SizeUOffsetT {
		return Envelope{}, fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}

	root := fb.GetRootAsEnvelope(data, 0)
	payload := root.PayloadBytes()

	env = Envelope{
		Channel:     string(root.Channel()),
		ID:          string(root.Id()),
		Timestamp:   time.Unix(0, root.TimestampNs()),
		ContentType: root.ContentType(),
		Payload:     append([]byte(nil), payload...),
	}
	if env.Channel == "" {
		return Envelope{}, fmt.Errorf("%w: envelope without channel", ErrMalformed)
	}
	return env, nil
}

func recoverMalformed(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrMalformed, r)
	}
}

func encodeOdometry2(m Odometry2) []byte {
	builder := flatbuffers.NewBuilder(64)

	fb.Odometry2Start(builder)
	fb.Odometry2AddTranslationX(builder, m.Translation.X)
	fb.Odometry2AddTranslationY(builder, m.Translation.Y)
	fb.Odometry2AddHeading(builder, m.Heading)
	fb.Odometry2AddLinearSpeedX(builder, m.LinearSpeed.X)
	fb.Odometry2AddLinearSpeedY(builder, m.LinearSpeed.Y)
	fb.Odometry2AddAngularSpeed(builder, m.AngularSpeed)
	fb.FinishOdometry2Buffer(builder, fb.Odometry2End(builder))

	return builder.FinishedBytes()
}

func encodeDifferentialBaseControl(m DifferentialBaseControl) []byte {
	builder := flatbuffers.NewBuilder(32 + 8*len(m.Data))

	fb.DifferentialBaseControlStartDataVector(builder, len(m.Data))
	for i := len(m.Data) - 1; i >= 0; i-- {
		builder.PrependFloat64(m.Data[i])
	}
	data := builder.EndVector(len(m.Data))

	fb.DifferentialBaseControlStart(builder)
	fb.DifferentialBaseControlAddData(builder, data)
	fb.FinishDifferentialBaseControlBuffer(builder, fb.DifferentialBaseControlEnd(builder))

	return builder.FinishedBytes()
}
