package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/dcms-nepal/dcms/internal/faults"
	"github.com/dcms-nepal/dcms/internal/location"
	"github.com/dcms-nepal/dcms/internal/render"
	"github.com/spf13/cobra"
)

const recentLimit = 5

func newLocationsCommand(current appFunc) *cobra.Command {
	var province, district string
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List provinces, districts and offices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			catalog, err := a.service.LoadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.LocationTree(catalog, province, district))
			return nil
		},
	}
	cmd.Flags().StringVar(&province, "province", "", "only this province")
	cmd.Flags().StringVar(&district, "district", "", "only this district of --province")
	return cmd
}

func newDashboardCommand(current appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show complaint counts and recent complaints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			actor, err := a.service.Bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			stats, list, err := a.service.Dashboard(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, render.TitleStyle.Render("Welcome, "+actor.DisplayName))
			fmt.Fprintln(out, render.StatsPanel(stats))
			if len(list) > recentLimit {
				list = list[:recentLimit]
			}
			fmt.Fprintln(out, render.ComplaintTable(list))
			return nil
		},
	}
}

func newSubmitCommand(current appFunc) *cobra.Command {
	var title, category, description, province, district, office string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "File a new complaint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			if _, err := a.service.Bootstrap(cmd.Context()); err != nil {
				return err
			}

			selection := location.NewSelection(a.service.Catalog())
			selection.ChooseProvince(province)
			selection.ChooseDistrict(district)
			selection.ChooseOffice(office)
			if !selection.Complete() {
				printLocationHints(cmd.ErrOrStderr(), a.service.Catalog(), selection)
			}

			created, err := a.service.Submit(cmd.Context(), domain.Draft{
				Title:       title,
				Category:    domain.Category(category),
				Description: description,
				Location:    selection.Location(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.InfoStyle.Render(fmt.Sprintf("Complaint #%d submitted.", created.ID)))
			fmt.Fprintln(cmd.OutOrStdout(), render.ComplaintCard(created))
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "short summary")
	cmd.Flags().StringVar(&category, "category", "", "one of: "+categoryNames())
	cmd.Flags().StringVar(&description, "description", "", "what happened")
	cmd.Flags().StringVar(&province, "province", "", "province")
	cmd.Flags().StringVar(&district, "district", "", "district within --province")
	cmd.Flags().StringVar(&office, "office", "", "office within --district")
	return cmd
}

// printLocationHints lists the choices for the first level of the selection
// that is missing or unknown.
func printLocationHints(w io.Writer, catalog *location.Catalog, selection *location.Selection) {
	if !catalog.Loaded() {
		return
	}
	chosen := selection.Location()
	var label string
	var options []string
	switch {
	case len(catalog.DistrictsFor(chosen.Province)) == 0:
		label, options = "provinces", catalog.Provinces()
	case len(selection.OfficeOptions()) == 0:
		label, options = "districts in "+chosen.Province, selection.DistrictOptions()
	default:
		label, options = "offices in "+chosen.District, selection.OfficeOptions()
	}
	fmt.Fprintln(w, render.MutedStyle.Render("Available "+label+": ")+strings.Join(options, ", "))
}

func newTrackCommand(current appFunc) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Follow your complaints and their progress",
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
			list, err := a.service.Track(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, render.MutedStyle.Render("No complaints."))
				return nil
			}
			for _, complaint := range list {
				fmt.Fprintln(out, render.ComplaintCard(complaint))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only complaints in this status")
	return cmd
}

func parseStatusFilter(value string) (*domain.Status, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	status, err := domain.ParseStatus(value)
	if err != nil {
		return nil, faults.New(faults.KindValidationFailed, "parse status", err.Error())
	}
	return &status, nil
}

func categoryNames() string {
	categories := domain.Categories()
	names := make([]string, 0, len(categories))
	for _, category := range categories {
		names = append(names, string(category))
	}
	return strings.Join(names, ", ")
}
