package zeromq

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	customlog "github.com/open-teleop/codelets/pkg/log"
)

// ParamStore is the parameter surface exposed over the bus.
type ParamStore interface {
	Nodes() []string
	Get(node string) (interface{}, error)
	Update(node string, doc []byte) (interface{}, error)
}

// ParamsRequest is the data of PARAMS_REQUEST and PARAMS_UPDATE messages.
type ParamsRequest struct {
	Node   string          `json:"node,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ParamsHandler answers PARAMS_REQUEST and applies PARAMS_UPDATE messages
type ParamsHandler struct {
	params ParamStore
	logger customlog.Logger
}

// NewParamsHandler creates a new handler for parameter requests
func NewParamsHandler(params ParamStore, logger customlog.Logger) *ParamsHandler {
	return &ParamsHandler{
		params: params,
		logger: logger,
	}
}

// HandleMessage returns a PARAMS_RESPONSE with the parameters of one node,
// or of every node when none is named.
func (h *ParamsHandler) HandleMessage(msg ZeroMQMessage) ([]byte, error) {
	var req ParamsRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
	}

	switch msg.Type {
	case MsgTypeParamsRequest:
		return h.handleRequest(req)
	case MsgTypeParamsUpdate:
		return h.handleUpdate(req)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}
}

func (h *ParamsHandler) handleRequest(req ParamsRequest) ([]byte, error) {
	h.logger.Debugf("Processing parameter request for '%s'", req.Node)

	result := make(map[string]interface{})
	nodes := h.params.Nodes()
	if req.Node != "" {
		nodes = []string{req.Node}
	}
	for _, node := range nodes {
		value, err := h.params.Get(node)
		if err != nil {
			return nil, err
		}
		result[node] = value
	}

	return NewResponse(MsgTypeParamsResponse, result)
}

func (h *ParamsHandler) handleUpdate(req ParamsRequest) ([]byte, error) {
	if req.Node == "" || len(req.Params) == 0 {
		return nil, fmt.Errorf("%w: PARAMS_UPDATE requires node and params", ErrInvalidMessage)
	}

	value, err := h.params.Update(req.Node, req.Params)
	if err != nil {
		return nil, err
	}
	h.logger.Infof("Updated parameters of %s over ZeroMQ", req.Node)

	return NewResponse(MsgTypeParamsResponse, map[string]interface{}{req.Node: value})
}

// EnvelopeData is the data of an ENVELOPE message
type EnvelopeData struct {
	Base64Data string `json:"base64_data"`
}

// EnvelopeMessageHandler delivers base64 encoded envelopes carried in JSON
type EnvelopeMessageHandler struct {
	dispatcher *MessageDispatcher
	logger     customlog.Logger
}

// NewEnvelopeMessageHandler creates a new handler for ENVELOPE messages
func NewEnvelopeMessageHandler(dispatcher *MessageDispatcher, logger customlog.Logger) *EnvelopeMessageHandler {
	return &EnvelopeMessageHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleMessage decodes the envelope and acknowledges delivery
func (h *EnvelopeMessageHandler) HandleMessage(msg ZeroMQMessage) ([]byte, error) {
	var data EnvelopeData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if data.Base64Data == "" {
		return nil, fmt.Errorf("%w: missing base64_data", ErrInvalidMessage)
	}

	raw, err := base64.StdEncoding.DecodeString(data.Base64Data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode base64 data: %v", ErrInvalidMessage, err)
	}

	env, err := h.dispatcher.DeliverEnvelope(raw)
	if err != nil {
		return nil, err
	}
	h.logger.Debugf("Delivered envelope for %s (%d bytes)", env.Channel, len(raw))

	return NewResponse(MsgTypeAck, map[string]interface{}{
		"status":  "OK",
		"channel": env.Channel,
		"id":      env.ID,
	})
}

// RegisterParamsHandlers registers parameter and envelope handlers on the dispatcher
func RegisterParamsHandlers(dispatcher *MessageDispatcher, params ParamStore, logger customlog.Logger) error {
	if dispatcher == nil {
		return errors.New("dispatcher cannot be nil")
	}
	if params != nil {
		h := NewParamsHandler(params, logger)
		dispatcher.RegisterHandler(MsgTypeParamsRequest, h)
		dispatcher.RegisterHandler(MsgTypeParamsUpdate, h)
	}
	dispatcher.RegisterHandler(MsgTypeEnvelope, NewEnvelopeMessageHandler(dispatcher, logger))
	return nil
}
