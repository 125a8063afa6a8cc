package main

import (
	"fmt"
	"strconv"

	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/dcms-nepal/dcms/internal/faults"
	"github.com/dcms-nepal/dcms/internal/render"
	"github.com/spf13/cobra"
)

func newAdminCommand(current appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Review and update complaints in your assignment",
	}

	var status string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List complaints in your assignment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			filter, err := parseStatusFilter(status)
			if err != nil {
				return err
			}
			if _, err := a.service.Bootstrap(cmd.Context()); err != nil {
				return err
			}
			list, err := a.service.AdminList(cmd.Context(), filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.ComplaintTable(list))
			return nil
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "only complaints in this status")

	showCmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one complaint and its next states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			id, err := parseComplaintID(args[0])
			if err != nil {
				return err
			}
			if _, err := a.service.Bootstrap(cmd.Context()); err != nil {
				return err
			}
			complaint, err := a.service.AdminShow(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.ComplaintCard(complaint))
			return nil
		},
	}

	var remarks string
	setStatusCmd := &cobra.Command{
		Use:   "set-status ID STATUS",
		Short: "Move a complaint to its next status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			id, err := parseComplaintID(args[0])
			if err != nil {
				return err
			}
			requested, err := domain.ParseStatus(args[1])
			if err != nil {
				return faults.New(faults.KindValidationFailed, "parse status", err.Error())
			}
			if _, err := a.service.Bootstrap(cmd.Context()); err != nil {
				return err
			}
			updated, err := a.service.Transition(cmd.Context(), id, requested, remarks)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.ComplaintCard(updated))
			return nil
		},
	}
	setStatusCmd.Flags().StringVar(&remarks, "remarks", "", "note shown to the citizen")

	cmd.AddCommand(listCmd, showCmd, setStatusCmd)
	return cmd
}

func parseComplaintID(value string) (int, error) {
	id, err := strconv.Atoi(value)
	if err != nil || id <= 0 {
		return 0, faults.Newf(faults.KindValidationFailed, "parse complaint id", "complaint id must be a positive number, got %q", value)
	}
	return id, nil
}
