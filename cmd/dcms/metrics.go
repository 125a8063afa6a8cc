package main

import (
	"github.com/spf13/cobra"
)

func newMetricsCommand(current appFunc) *cobra.Command {
	var restore bool
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print this run's counters in Prometheus text format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			if restore {
				if _, err := a.service.Bootstrap(cmd.Context()); err != nil {
					a.logger.Warn("bootstrap before metrics dump failed", "err", err)
				}
			}
			return a.metrics.WriteText(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&restore, "restore", false, "restore the session first so bootstrap timings are included")
	return cmd
}
