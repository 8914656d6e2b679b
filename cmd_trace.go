//go:build !tinygo

package main

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tickos/app"
	"tickos/hal"
	"tickos/internal/config"
	"tickos/internal/ctxlog"
	"tickos/internal/trace"
	"tickos/kernel"
)

var (
	traceOpts = struct {
		config    string
		ticks     int
		output    string
		limit     int
		withTicks bool
	}{}

	traceCmd = &cobra.Command{
		Use:   "trace",
		Short: "Record a scheduling trace in simulated time",
		Long:  "Run the kernel for a fixed number of ticks without wall-clock pacing and write the event trace as YAML.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prof, err := config.Load(traceOpts.config)
			if err != nil {
				return err
			}

			h := hal.NewHost(hal.HostConfig{Output: os.Stderr})
			opts := []trace.Option{
				trace.WithLimit(traceOpts.limit),
				trace.WithNames(append([]string{"idle"}, taskNames(prof)...)...),
			}
			if traceOpts.withTicks {
				opts = append(opts, trace.WithTicks())
			}
			rec := trace.NewRecorder(opts...)

			s, err := app.NewSystem(h, app.Config{
				Profile:   prof,
				Logger:    ctxlog.FromContext(cmd.Context()),
				Observers: []kernel.Observer{rec},
			})
			if err != nil {
				return err
			}
			defer s.Close()

			runErr := s.Advance(traceOpts.ticks)
			var fe *kernel.FaultError
			if runErr != nil && !errors.As(runErr, &fe) {
				return runErr
			}

			var w io.Writer = cmd.OutOrStdout()
			if traceOpts.output != "" && traceOpts.output != "-" {
				f, err := os.Create(traceOpts.output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := rec.WriteYAML(w); err != nil {
				return err
			}
			return runErr
		},
	}
)

func init() {
	traceCmd.Flags().StringVarP(&traceOpts.config, "config", "c", "", "board profile (.hcl); empty runs the reference deployment")
	traceCmd.Flags().IntVarP(&traceOpts.ticks, "ticks", "n", 8, "number of ticks to simulate")
	traceCmd.Flags().StringVarP(&traceOpts.output, "output", "o", "-", "output file; - writes to stdout")
	traceCmd.Flags().IntVar(&traceOpts.limit, "limit", 0, "keep only the last N events (0 = all)")
	traceCmd.Flags().BoolVar(&traceOpts.withTicks, "with-ticks", false, "record tick events too")
}
