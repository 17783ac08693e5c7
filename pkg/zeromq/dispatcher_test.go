package zeromq

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/codelets/pkg/channel"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/message"
)

type fakeParams struct {
	values map[string]map[string]interface{}
}

func (p *fakeParams) Nodes() []string { return []string{"controller"} }

func (p *fakeParams) Get(node string) (interface{}, error) {
	v, ok := p.values[node]
	if !ok {
		return nil, fmt.Errorf("unknown node: %s", node)
	}
	return v, nil
}

func (p *fakeParams) Update(node string, doc []byte) (interface{}, error) {
	var patch map[string]interface{}
	if err := json.Unmarshal(doc, &patch); err != nil {
		return nil, err
	}
	for k, v := range patch {
		p.values[node][k] = v
	}
	return p.values[node], nil
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	messages [][]byte
}

func (p *fakePublisher) PublishMessage(topic string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, data)
	return nil
}

func (p *fakePublisher) PublishJSON(topic string, messageType string, data interface{}) error {
	msg, err := NewResponse(messageType, data)
	if err != nil {
		return err
	}
	return p.PublishMessage(topic, msg)
}

func request(t *testing.T, msgType string, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	req, err := json.Marshal(ZeroMQMessage{Type: msgType, Timestamp: float64(time.Now().Unix()), Data: raw})
	require.NoError(t, err)
	return req
}

func newDispatcher(t *testing.T) (*MessageDispatcher, *channel.Hub, *fakeParams) {
	t.Helper()
	logger := customlog.Discard()
	hub := channel.NewHub(logger)
	params := &fakeParams{values: map[string]map[string]interface{}{
		"controller": {"gain": 1.0, "desired_position_meters": 1.0},
	}}
	d := NewMessageDispatcher(hub, logger)
	require.NoError(t, RegisterParamsHandlers(d, params, logger))
	return d, hub, params
}

func TestDispatchParamsRequest(t *testing.T) {
	d, _, _ := newDispatcher(t)

	resp, err := d.Dispatch(request(t, MsgTypeParamsRequest, ParamsRequest{}))
	require.NoError(t, err)

	var msg ZeroMQMessage
	require.NoError(t, json.Unmarshal(resp, &msg))
	assert.Equal(t, MsgTypeParamsResponse, msg.Type)

	var data map[string]map[string]float64
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, 1.0, data["controller"]["gain"])
}

func TestDispatchParamsUpdate(t *testing.T) {
	d, _, params := newDispatcher(t)

	_, err := d.Dispatch(request(t, MsgTypeParamsUpdate, ParamsRequest{
		Node:   "controller",
		Params: json.RawMessage(`{"gain": 0}`),
	}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, params.values["controller"]["gain"])

	_, err = d.Dispatch(request(t, MsgTypeParamsUpdate, ParamsRequest{Node: "controller"}))
	assert.True(t, errors.Is(err, ErrInvalidMessage))
}

func TestDispatchUnknownType(t *testing.T) {
	d, _, _ := newDispatcher(t)

	_, err := d.Dispatch(request(t, "NOPE", nil))
	assert.True(t, errors.Is(err, ErrUnknownMessageType))

	var msg ZeroMQMessage
	require.NoError(t, json.Unmarshal(d.Respond(request(t, "NOPE", nil)), &msg))
	assert.Equal(t, MsgTypeError, msg.Type)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(msg.Data, &errResp))
	assert.Equal(t, 400, errResp.Code)
}

func encodedOdometry(t *testing.T, target string, x float64) []byte {
	t.Helper()
	ct, payload, err := message.Marshal(message.Odometry2{Translation: r3.Vector{X: x}})
	require.NoError(t, err)
	return message.EncodeEnvelope(message.Envelope{
		Channel:     target,
		ID:          "remote-1",
		Timestamp:   time.Now(),
		ContentType: ct,
		Payload:     payload,
	})
}

func TestDispatchRawEnvelope(t *testing.T) {
	d, hub, _ := newDispatcher(t)
	rx, err := channel.NewRx[message.Odometry2](hub, "controller", "odometry")
	require.NoError(t, err)

	resp, err := d.Dispatch(encodedOdometry(t, "controller/odometry", 0.25))
	require.NoError(t, err)

	var msg ZeroMQMessage
	require.NoError(t, json.Unmarshal(resp, &msg))
	assert.Equal(t, MsgTypeAck, msg.Type)

	odom, header := rx.Read()
	assert.Equal(t, 0.25, odom.Translation.X)
	assert.Equal(t, "remote-1", header.ID)

	_, err = d.Dispatch(encodedOdometry(t, "nobody/odometry", 1))
	assert.True(t, errors.Is(err, channel.ErrUnknownChannel))

	_, err = d.Dispatch([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, ErrInvalidMessage))
}

func TestDispatchBase64Envelope(t *testing.T) {
	d, hub, _ := newDispatcher(t)
	rx, err := channel.NewRx[message.Odometry2](hub, "controller", "odometry")
	require.NoError(t, err)

	data := base64.StdEncoding.EncodeToString(encodedOdometry(t, "controller/odometry", 0.5))
	_, err = d.Dispatch(request(t, MsgTypeEnvelope, EnvelopeData{Base64Data: data}))
	require.NoError(t, err)

	odom, _ := rx.Read()
	assert.Equal(t, 0.5, odom.Translation.X)

	_, err = d.Dispatch(request(t, MsgTypeEnvelope, EnvelopeData{Base64Data: "%%%"}))
	assert.True(t, errors.Is(err, ErrInvalidMessage))
}

func TestChannelForwarder(t *testing.T) {
	logger := customlog.Discard()
	hub := channel.NewHub(logger)
	tx, err := channel.NewTx[message.DifferentialBaseControl](hub, "controller", "cmd")
	require.NoError(t, err)

	pub := &fakePublisher{}
	f := NewChannelForwarder(pub, logger)
	require.NoError(t, f.Attach(hub, []string{"controller/cmd"}))
	assert.Error(t, f.Attach(hub, []string{"controller/missing"}))

	header := tx.Publish(message.NewDifferentialBaseControl(0.75, 0))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "controller/cmd", pub.topics[0])

	env, err := message.DecodeEnvelope(pub.messages[0])
	require.NoError(t, err)
	assert.Equal(t, header.ID, env.ID)
	assert.Equal(t, message.ContentTypeDifferentialBaseControl, env.ContentType)

	var cmd message.DifferentialBaseControl
	require.NoError(t, message.UnmarshalInto(env.ContentType, env.Payload, &cmd))
	assert.Equal(t, []float64{0.75, 0}, cmd.Data)
}

func TestParamPublisher(t *testing.T) {
	pub := &fakePublisher{}
	p := NewParamPublisher(pub, customlog.Discard())
	require.NoError(t, p.PublishParamsUpdatedNotification("controller"))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, TopicParamsNotification, pub.topics[0])

	var msg ZeroMQMessage
	require.NoError(t, json.Unmarshal(pub.messages[0], &msg))
	assert.Equal(t, MsgTypeParamsUpdated, msg.Type)
	assert.Contains(t, string(msg.Data), `"node":"controller"`)
}
