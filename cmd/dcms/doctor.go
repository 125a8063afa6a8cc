package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dcms-nepal/dcms/internal/doctor"
	"github.com/dcms-nepal/dcms/internal/faults"
	"github.com/dcms-nepal/dcms/internal/render"
	"github.com/spf13/cobra"
)

func newDoctorCommand(current appFunc) *cobra.Command {
	var watch time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check backend reachability and the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			manager, err := doctor.NewManager(a.client, a.store, a.bus, doctor.Config{Interval: watch})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if watch > 0 {
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				manager.Start(ctx, func(report doctor.HealthReport) {
					fmt.Fprintln(out, render.Health(report))
				})
				return nil
			}

			report := manager.RunOnce(cmd.Context())
			fmt.Fprintln(out, render.Health(report))
			if !report.Healthy() {
				return faults.New(faults.KindRemoteFailure, "doctor", "one or more checks failed")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&watch, "watch", 0, "repeat the checks at this interval until interrupted")
	return cmd
}
