package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/open-teleop/codelets/pkg/app"
	"github.com/open-teleop/codelets/pkg/canbus"
	"github.com/open-teleop/codelets/pkg/config"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/recorder"
	"github.com/open-teleop/codelets/pkg/telemetry"
	"github.com/open-teleop/codelets/pkg/zeromq"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "codelets",
	Short: "Run tick-driven codelet applications.",
	Long: `codelets hosts small tick-driven programs ("codelets") wired into ` +
		`a graph, serves their shown values and parameters over HTTP, and ` +
		`bridges their channels to ZeroMQ, CAN and MQTT.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", defaultConfigDir(),
		"directory holding "+config.BootstrapFileName)

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(proportionalControlCmd)
}

func defaultConfigDir() string {
	if dir := os.Getenv("CODELETS_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "configs"
}

// environment carries what every application command needs.
type environment struct {
	cfg    *config.BootstrapConfig
	logger customlog.Logger
}

func setup() (*environment, error) {
	// a missing .env file is fine
	_ = godotenv.Load()

	cfg, err := config.LoadBootstrapConfig(configDir)
	if err != nil {
		return nil, err
	}

	logger, err := customlog.NewLogrusLogger(cfg.Logging.Level, cfg.Logging.LogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Infof("Loaded bootstrap config from %s", configDir)
	return &environment{cfg: cfg, logger: logger}, nil
}

func (e *environment) port() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return fmt.Sprintf("%d", e.cfg.Server.HTTPPort)
}

// addBridges attaches every bridge enabled in the bootstrap config.
func (e *environment) addBridges(a *app.Application) error {
	if e.cfg.ZeroMQ.Enabled {
		b, err := zeromq.NewBridge(e.cfg.ZeroMQ, a.Hub(), a.Params(), e.logger)
		if err != nil {
			return err
		}
		a.Params().SetPublisher(b.ParamPublisher())
		a.AddBridge(b)
	}

	if e.cfg.CAN.Enabled {
		sink, err := canbus.NewSink(e.cfg.CAN, a.Hub(), e.logger)
		if err != nil {
			return err
		}
		a.AddBridge(sink)
	}

	if e.cfg.MQTT.Enabled {
		a.AddBridge(telemetry.NewPublisher(e.cfg.MQTT, a.Sight(), e.logger))
	}

	if e.cfg.Recorder.Enabled {
		recCfg := e.cfg.Recorder
		recCfg.Path = e.cfg.ResolveDataPath(recCfg.Path)
		rec, err := recorder.Open(recCfg, a.Sight(), e.logger)
		if err != nil {
			return err
		}
		a.AddBridge(rec)
	}
	return nil
}

// run serves a and blocks until SIGINT or SIGTERM.
func (e *environment) run(a *app.Application) error {
	if err := e.addBridges(a); err != nil {
		return err
	}
	a.StartWebServer(":" + e.port())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}
