//go:build !tinygo

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tickos/internal/config"
	"tickos/kernel"
)

var (
	layoutConfig string

	layoutCmd = &cobra.Command{
		Use:   "layout",
		Short: "Print the stack layout of a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prof, err := config.Load(layoutConfig)
			if err != nil {
				return err
			}
			l := prof.Layout()
			n := len(prof.Tasks) + 1

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tNAME\tSTACK\tINITIAL SP\n")
			names := append([]string{"idle"}, taskNames(prof)...)
			for id := 0; id < n; id++ {
				r := l.TaskRegion(n, kernel.TaskID(id))
				fmt.Fprintf(w, "%d\t%s\t%s\t0x%08x\n", id, names[id], r, r.Top-kernel.FrameBytes)
			}
			fmt.Fprintf(w, "-\tscheduler\t%s\t0x%08x\n", l.SchedRegion(n), l.SchedRegion(n).Top)
			return w.Flush()
		},
	}
)

func taskNames(p config.Profile) []string {
	out := make([]string, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		out = append(out, t.Name)
	}
	return out
}

func init() {
	layoutCmd.Flags().StringVarP(&layoutConfig, "config", "c", "", "board profile (.hcl); empty uses the reference deployment")
}
