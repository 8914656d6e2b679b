//go:build !tinygo

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"tickos/internal/buildinfo"
	"tickos/internal/ctxlog"
)

var (
	rootOpts = struct {
		logLevel  string
		logFormat string
	}{}

	rootCmd = &cobra.Command{
		Use:           "tickos",
		Short:         "Round-robin kernel on a virtual Cortex-M board",
		Long:          "tickos runs a preemptive round-robin kernel on a simulated Cortex-M core wired to a virtual STM32F4 Discovery board.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctxlog.New(rootOpts.logLevel, rootOpts.logFormat, os.Stderr)
			if err != nil {
				return err
			}
			cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tickos %s (commit %s, built %s)\n",
				buildinfo.Short(), buildinfo.Commit, buildinfo.Date)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootOpts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rootOpts.logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.AddCommand(runCmd, traceCmd, layoutCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "tickos:", err)
		os.Exit(1)
	}
}
