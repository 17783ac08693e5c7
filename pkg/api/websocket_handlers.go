package api

import (
	"encoding/json"
	"errors"
	"syscall"

	"github.com/gofiber/contrib/websocket"

	"github.com/open-teleop/codelets/pkg/channel"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/message"
	"github.com/open-teleop/codelets/pkg/sight"
)

const sightStreamBuffer = 64

// SightWebSocketHandler streams every shown value as a JSON sight.Sample
// until the client disconnects.
func SightWebSocketHandler(conn *websocket.Conn, store *sight.Store, logger customlog.Logger) {
	logger.Infof("Sight WebSocket connected: %s", conn.RemoteAddr())
	samples, cancel := store.Subscribe(sightStreamBuffer)
	defer cancel()

	// the client never sends; a read error means it went away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			logger.Infof("Sight WebSocket disconnected: %s", conn.RemoteAddr())
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			if err := conn.WriteJSON(sample); err != nil {
				logClose(logger, "Sight", err)
				return
			}
		}
	}
}

// ChannelWebSocketHandler injects each text message into the rx endpoint
// target. DifferentialBaseControl endpoints also accept a TwistMsg.
func ChannelWebSocketHandler(conn *websocket.Conn, hub *channel.Hub, target channel.Endpoint, logger customlog.Logger) {
	logger.Infof("Channel WebSocket for %s connected: %s", target.Name(), conn.RemoteAddr())
	var (
		mt  int
		msg []byte
		err error
	)
	for {
		if mt, msg, err = conn.ReadMessage(); err != nil {
			logClose(logger, "Channel", err)
			break
		}
		if mt != websocket.TextMessage {
			logger.Infof("Ignoring non-text Channel WS message type: %d", mt)
			continue
		}

		if err := inject(hub, target, msg); err != nil {
			logger.Warnf("Failed to deliver WS message to %s: %v", target.Name(), err)
			conn.WriteJSON(map[string]string{"error": err.Error()})
			continue
		}
		logger.Debugf("Delivered WS message to %s", target.Name())
	}
	logger.Infof("Channel WebSocket for %s disconnected: %s", target.Name(), conn.RemoteAddr())
}

func inject(hub *channel.Hub, target channel.Endpoint, msg []byte) error {
	if target.MessageType() == message.TypeName(message.DifferentialBaseControl{}) {
		var twist TwistMsg
		if err := json.Unmarshal(msg, &twist); err == nil && (twist.Linear != nil || twist.Angular != nil) {
			return hub.Deliver(target.Name(), twist.Command())
		}
	}
	return hub.DeliverJSON(target.Name(), msg)
}

func logClose(logger customlog.Logger, kind string, err error) {
	switch {
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		logger.Errorf("%s WS read error: %v", kind, err)
	case errors.Is(err, websocket.ErrCloseSent), errors.Is(err, syscall.EPIPE), errors.Is(err, syscall.ECONNRESET):
		logger.Infof("%s WS connection closed normally.", kind)
	default:
		logger.Infof("%s WS connection closed: %v", kind, err)
	}
}
