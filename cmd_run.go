//go:build !tinygo

package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"tickos/app"
	"tickos/hal"
	"tickos/internal/config"
	"tickos/internal/ctxlog"
)

var (
	runOpts = struct {
		config   string
		headless bool
		hz       int
		ticks    uint32
		echoLEDs bool
	}{}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the kernel on the virtual board",
		Long:  "Run the kernel in real time, in a window showing the status panel or headless with log output only.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := ctxlog.FromContext(ctx)

			prof, err := config.Load(runOpts.config)
			if err != nil {
				return err
			}
			hz := runOpts.hz
			if hz <= 0 {
				hz = int(prof.Board.TickHz)
			}

			newApp := func(h hal.HAL) func() error {
				return app.New(h, app.Config{
					Profile:     prof,
					Logger:      logger,
					MaxTicks:    runOpts.ticks,
					HoldOnFault: !runOpts.headless,
				})
			}

			if runOpts.headless {
				err := hal.RunHeadless(ctx, newApp, hal.HeadlessConfig{
					Enabled:  true,
					Hz:       hz,
					EchoLEDs: runOpts.echoLEDs,
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			return hal.RunWindow(newApp, hal.WindowConfig{TickHz: hz, EchoLEDs: runOpts.echoLEDs})
		},
	}
)

func init() {
	runCmd.Flags().StringVarP(&runOpts.config, "config", "c", "", "board profile (.hcl); empty runs the reference deployment")
	runCmd.Flags().BoolVar(&runOpts.headless, "headless", false, "run without a window")
	runCmd.Flags().IntVar(&runOpts.hz, "hz", 0, "tick rate in Hz; 0 uses the profile's tick_hz")
	runCmd.Flags().Uint32Var(&runOpts.ticks, "ticks", 0, "stop after N ticks (0 = run forever)")
	runCmd.Flags().BoolVar(&runOpts.echoLEDs, "echo-leds", false, "log every LED write")
}
