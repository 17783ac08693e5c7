package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BootstrapFileName is the host configuration file looked up in the config directory.
const BootstrapFileName = "controller_config.yaml"

// DefaultHTTPPort is the Sight port used when server.http_port is unset.
const DefaultHTTPPort = 3000

// BootstrapConfig holds the host settings loaded from controller_config.yaml
type BootstrapConfig struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	ZeroMQ   ZeroMQConfig   `yaml:"zeromq"`
	CAN      CANConfig      `yaml:"can"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Recorder RecorderConfig `yaml:"recorder"`
	Data     DataConfig     `yaml:"data"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogPath string `yaml:"log_path,omitempty"`
}

// ServerConfig holds the Sight web server settings
type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`
}

// ZeroMQConfig configures the message bus bridge.
// Forward lists tx channels (node/tag) published on the PUB socket; empty means all.
type ZeroMQConfig struct {
	Enabled                 bool     `yaml:"enabled"`
	PublishBindAddress      string   `yaml:"publish_bind_address"`
	SubscribeConnectAddress string   `yaml:"subscribe_connect_address,omitempty"`
	RequestBindAddress      string   `yaml:"request_bind_address,omitempty"`
	Forward                 []string `yaml:"forward,omitempty"`
}

// CANConfig configures the CAN sink for differential base commands.
type CANConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Interface     string  `yaml:"interface"`
	Channel       string  `yaml:"channel"`
	FrameID       uint32  `yaml:"frame_id"`
	LinearFactor  float64 `yaml:"linear_factor"`
	AngularFactor float64 `yaml:"angular_factor"`
}

// MQTTConfig configures the Sight telemetry bridge.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// RecorderConfig configures the sqlite recorder of Sight samples.
type RecorderConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	BatchSize int    `yaml:"batch_size"`
}

// DataConfig holds the directory the app graph and config files are resolved against.
type DataConfig struct {
	Directory string `yaml:"directory"`
}

// LoadBootstrapConfig loads the host configuration from configDir/controller_config.yaml
func LoadBootstrapConfig(configDir string) (*BootstrapConfig, error) {
	bootstrapConfigPath := filepath.Join(configDir, BootstrapFileName)

	data, err := os.ReadFile(bootstrapConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	var bootstrapCfg BootstrapConfig
	if err := yaml.Unmarshal(data, &bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	bootstrapCfg.applyDefaults()
	if err := bootstrapCfg.Validate(); err != nil {
		return nil, err
	}

	return &bootstrapCfg, nil
}

func (c *BootstrapConfig) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = DefaultHTTPPort
	}
	if c.CAN.FrameID == 0 {
		c.CAN.FrameID = 0x200
	}
	if c.CAN.LinearFactor == 0 {
		c.CAN.LinearFactor = 0.001
	}
	if c.CAN.AngularFactor == 0 {
		c.CAN.AngularFactor = 0.001
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "codelets"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "sight"
	}
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = 1000
	}
}

// Validate checks required fields of the enabled sections.
func (c *BootstrapConfig) Validate() error {
	if c.Data.Directory == "" {
		return fmt.Errorf("missing required field in bootstrap config: data.directory")
	}
	if c.ZeroMQ.Enabled && c.ZeroMQ.PublishBindAddress == "" {
		return fmt.Errorf("missing required field in bootstrap config: zeromq.publish_bind_address")
	}
	if c.CAN.Enabled {
		if c.CAN.Interface == "" {
			return fmt.Errorf("missing required field in bootstrap config: can.interface")
		}
		if c.CAN.Channel == "" {
			return fmt.Errorf("missing required field in bootstrap config: can.channel")
		}
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("missing required field in bootstrap config: mqtt.broker")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid mqtt.qos %d: must be 0, 1 or 2", c.MQTT.QoS)
	}
	if c.Recorder.Enabled && c.Recorder.Path == "" {
		return fmt.Errorf("missing required field in bootstrap config: recorder.path")
	}
	return nil
}

// ResolveDataPath joins a relative path onto data.directory.
func (c *BootstrapConfig) ResolveDataPath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Data.Directory, path)
}
