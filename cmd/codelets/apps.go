package main

import (
	"github.com/spf13/cobra"

	"github.com/open-teleop/codelets/domain/control"
	"github.com/open-teleop/codelets/domain/ping"
	"github.com/open-teleop/codelets/domain/sim"
	"github.com/open-teleop/codelets/pkg/app"
	"github.com/open-teleop/codelets/pkg/codelet"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Print a message every second.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return err
		}

		a := app.New("ping", nil, app.WithLogger(env.logger))
		if err := a.LoadGraph(env.cfg.ResolveDataPath("apps/ping/ping.graph.json")); err != nil {
			return err
		}
		if err := a.Register("ping_node", func(string) (codelet.Codelet, error) {
			return ping.NewHelloTicker(), nil
		}); err != nil {
			return err
		}
		return env.run(a)
	},
}

var proportionalControlCmd = &cobra.Command{
	Use:   "proportional-control",
	Short: "Drive a differential base to a reference x position.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return err
		}

		a := app.New("proportional_control", []string{sim.ModuleName}, app.WithLogger(env.logger))
		if err := a.LoadGraph(env.cfg.ResolveDataPath("apps/proportional_control/proportional_control.graph.json")); err != nil {
			return err
		}
		if err := a.LoadConfig(env.cfg.ResolveDataPath("apps/proportional_control/proportional_control.config.json")); err != nil {
			return err
		}
		if err := a.Register("controller", func(string) (codelet.Codelet, error) {
			return control.NewProportionalController(control.DefaultParams()), nil
		}); err != nil {
			return err
		}
		return env.run(a)
	},
}
