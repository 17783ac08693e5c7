package message

import (
	"errors"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOdometry2Codec(t *testing.T) {
	in := Odometry2{
		Translation:  r3.Vector{X: 0.25, Y: -1.5},
		Heading:      0.3,
		LinearSpeed:  r3.Vector{X: 0.75},
		AngularSpeed: -0.1,
	}

	ct, data, err := Marshal(&in)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeOdometry2, ct)

	out, err := Unmarshal(ct, data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDifferentialBaseControlCodec(t *testing.T) {
	in := NewDifferentialBaseControl(0.75, 0)

	ct, data, err := Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeDifferentialBaseControl, ct)

	var out DifferentialBaseControl
	require.NoError(t, UnmarshalInto(ct, data, &out))
	assert.Equal(t, []float64{0.75, 0}, out.Data)
	assert.Equal(t, 0.75, out.LinearSpeed())
	assert.Equal(t, 0.0, out.AngularSpeed())
}

func TestUnmarshalIntoJSON(t *testing.T) {
	var odom Odometry2
	err := UnmarshalInto(ContentTypeJSON, []byte(`{"translation":{"X":0.5},"heading":1}`), &odom)
	require.NoError(t, err)
	assert.Equal(t, 0.5, odom.Translation.X)
	assert.Equal(t, 1.0, odom.Heading)

	err = UnmarshalInto(ContentTypeJSON, []byte(`{`), &odom)
	assert.Error(t, err)
}

func TestUnmarshalIntoWrongTarget(t *testing.T) {
	_, data, err := Marshal(NewDifferentialBaseControl(1, 2))
	require.NoError(t, err)

	var odom Odometry2
	assert.Error(t, UnmarshalInto(ContentTypeDifferentialBaseControl, data, &odom))
}

func TestMarshalUnknownType(t *testing.T) {
	_, _, err := Marshal("not a message")
	assert.True(t, errors.Is(err, ErrUnknownContentType))

	_, err = Unmarshal(ContentType(42), []byte{0, 0, 0, 0, 0, 0, 0, 0})
	assert.True(t, errors.Is(err, ErrUnknownContentType))
}

func TestEnvelopeRoundTrip(t *testing.T) {
	ct, payload, err := Marshal(NewDifferentialBaseControl(0.5, 0))
	require.NoError(t, err)

	ts := time.Unix(1700000000, 123456789)
	data := EncodeEnvelope(Envelope{
		Channel:     "controller/cmd",
		ID:          "abc",
		Timestamp:   ts,
		ContentType: ct,
		Payload:     payload,
	})

	env, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, "controller/cmd", env.Channel)
	assert.Equal(t, "abc", env.ID)
	assert.True(t, ts.Equal(env.Timestamp))
	assert.Equal(t, ct, env.ContentType)
	assert.Equal(t, payload, env.Payload)
}

func TestDecodeEnvelopeMalformed(t *testing.T) {
	_, err := DecodeEnvelope([]byte{1, 2})
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = DecodeEnvelope([]byte{0xff, 0xff, 0xff, 0x7f, 0, 0, 0, 0})
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "Odometry2", TypeName(Odometry2{}))
	assert.Equal(t, "DifferentialBaseControl", TypeName(&DifferentialBaseControl{}))
	assert.Equal(t, "int", TypeName(3))
}
