package api

import (
	"github.com/open-teleop/codelets/pkg/message"
	"github.com/open-teleop/codelets/pkg/scheduler"
)

// --- Data Structures for API and WebSocket Messages ---

// Vector3 defines a standard 3D vector.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// TwistMsg represents a command velocity message, matching geometry_msgs/Twist.
// It is accepted on DifferentialBaseControl channels.
type TwistMsg struct {
	Linear  *Vector3 `json:"linear"`
	Angular *Vector3 `json:"angular"`
}

// Command converts the planar part of the twist: linear.x and angular.z.
func (t TwistMsg) Command() message.DifferentialBaseControl {
	var linear, angular float64
	if t.Linear != nil {
		linear = t.Linear.X
	}
	if t.Angular != nil {
		angular = t.Angular.Z
	}
	return message.NewDifferentialBaseControl(linear, angular)
}

// NodeInfo describes one node of the running application.
type NodeInfo struct {
	Name      string   `json:"name"`
	Component string   `json:"component"`
	Schedule  string   `json:"schedule"`
	Channels  []string `json:"channels"`
	HasParams bool     `json:"has_params"`

	Metrics scheduler.JobMetrics `json:"metrics"`
}

// NodeLister lists the nodes of the running application.
type NodeLister interface {
	NodeInfos() []NodeInfo
}

// ParamStore reads and patches node parameters.
type ParamStore interface {
	Nodes() []string
	Get(node string) (interface{}, error)
	Update(node string, doc []byte) (interface{}, error)
	ConfigYAML() ([]byte, error)
}

// ChannelStatus is one entry of the channel listing.
type ChannelStatus struct {
	Name         string `json:"name"`
	MessageType  string `json:"message_type"`
	Direction    string `json:"direction"`
	Count        int64  `json:"count"`
	Dropped      int64  `json:"dropped"`
	LastReceived int64  `json:"last_received"`
}
