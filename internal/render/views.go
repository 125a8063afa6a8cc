package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dcms-nepal/dcms/internal/complaints"
	"github.com/dcms-nepal/dcms/internal/doctor"
	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/dcms-nepal/dcms/internal/lifecycle"
	"github.com/dcms-nepal/dcms/internal/location"
)

const dateFormat = "2006-01-02 15:04"

// ComplaintCard renders one complaint with its progress and remarks.
func ComplaintCard(complaint domain.Complaint) string {
	lines := []string{
		TitleStyle.Render(fmt.Sprintf("#%d %s", complaint.ID, complaint.Title)) + "  " + StatusBadge(complaint.Status),
		field("Category", string(complaint.Category)),
		field("Location", LocationLine(complaint.Location)),
		field("Filed", formatTime(complaint.CreatedAt)),
	}
	if complaint.SubmittedBy != "" {
		lines = append(lines, field("By", complaint.SubmittedBy))
	}
	if !complaint.UpdatedAt.IsZero() && !complaint.UpdatedAt.Equal(complaint.CreatedAt) {
		lines = append(lines, field("Updated", formatTime(complaint.UpdatedAt)))
	}
	lines = append(lines, field("Progress", ProgressBar(complaint.Status)))
	if description := strings.TrimSpace(complaint.Description); description != "" {
		lines = append(lines, "", description)
	}
	if remarks := complaint.RemarksText(); remarks != "" {
		lines = append(lines, "", MutedStyle.Render("Remarks: ")+remarks)
	}
	if next := lifecycle.AllowedNextStates(complaint.Status); len(next) > 0 {
		names := make([]string, 0, len(next))
		for _, status := range next {
			names = append(names, string(status))
		}
		lines = append(lines, MutedStyle.Render("Next: "+strings.Join(names, ", ")))
	}
	return PanelBorder.Render(strings.Join(lines, "\n"))
}

// ComplaintTable renders one row per complaint in the given order.
func ComplaintTable(list []domain.Complaint) string {
	if len(list) == 0 {
		return MutedStyle.Render("No complaints.")
	}

	idWidth, titleWidth, categoryWidth := 2, 5, 8
	for _, complaint := range list {
		idWidth = max(idWidth, len(strconv.Itoa(complaint.ID))+1)
		titleWidth = max(titleWidth, lipgloss.Width(truncate(complaint.Title, 40)))
		categoryWidth = max(categoryWidth, len(complaint.Category))
	}

	rows := make([]string, 0, len(list)+1)
	rows = append(rows, MutedStyle.Render(fmt.Sprintf("%-*s  %-14s  %-*s  %-*s  %s",
		idWidth, "ID", "STATUS", titleWidth, "TITLE", categoryWidth, "CATEGORY", "OFFICE")))
	for _, complaint := range list {
		badge := StatusBadge(complaint.Status)
		padding := max(0, 14-lipgloss.Width(badge))
		rows = append(rows, fmt.Sprintf("%-*s  %s%s  %-*s  %-*s  %s",
			idWidth, "#"+strconv.Itoa(complaint.ID),
			badge, strings.Repeat(" ", padding),
			titleWidth, truncate(complaint.Title, 40),
			categoryWidth, complaint.Category,
			complaint.Location.Office,
		))
	}
	return strings.Join(rows, "\n")
}

// StatsPanel renders status counts.
func StatsPanel(stats complaints.Stats) string {
	cell := func(label string, value int, color lipgloss.TerminalColor) string {
		return lipgloss.NewStyle().Foreground(color).Bold(true).Render(strconv.Itoa(value)) + " " + MutedStyle.Render(label)
	}
	row := strings.Join([]string{
		cell("total", stats.Total, WhiteColor),
		cell("pending", stats.Pending, AmberColor),
		cell("in progress", stats.InProgress, BlueColor),
		cell("resolved", stats.Resolved, GreenColor),
		cell("rejected", stats.Rejected, RedColor),
	}, "   ")
	return PanelBorder.Render(row)
}

// Profile renders the confirmed actor.
func Profile(actor domain.Actor) string {
	lines := []string{
		TitleStyle.Render(actor.DisplayName),
		field("Email", actor.Email),
		field("Role", string(actor.Role)),
	}
	if assignment := LocationLine(actor.Assignment); assignment != "" {
		lines = append(lines, field("Assigned", assignment))
	}
	return strings.Join(lines, "\n")
}

// LocationTree renders the catalog as an indented tree. A non-empty province
// or district narrows the output to that branch.
func LocationTree(catalog *location.Catalog, province, district string) string {
	if !catalog.Loaded() {
		return MutedStyle.Render("No locations available.")
	}

	provinces := catalog.Provinces()
	if province = strings.TrimSpace(province); province != "" {
		provinces = []string{province}
	}

	var b strings.Builder
	for _, p := range provinces {
		districts := catalog.DistrictsFor(p)
		if len(districts) == 0 {
			fmt.Fprintf(&b, "%s %s\n", TitleStyle.Render(p), MutedStyle.Render("(unknown province)"))
			continue
		}
		fmt.Fprintln(&b, TitleStyle.Render(p))
		if district = strings.TrimSpace(district); district != "" {
			districts = []string{district}
		}
		for _, d := range districts {
			offices := catalog.OfficesFor(p, d)
			if len(offices) == 0 {
				fmt.Fprintf(&b, "  %s %s\n", d, MutedStyle.Render("(no offices)"))
				continue
			}
			fmt.Fprintf(&b, "  %s\n", d)
			for _, office := range offices {
				fmt.Fprintf(&b, "    %s %s\n", MutedStyle.Render("-"), office)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// LocationLine joins the non-empty parts of loc.
func LocationLine(loc domain.Location) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{loc.Province, loc.District, loc.Office} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " / ")
}

// Health renders one doctor report as check lines.
func Health(report doctor.HealthReport) string {
	check := func(ok bool, label, detail string) string {
		mark := lipgloss.NewStyle().Foreground(GreenColor).Render(IconResolved)
		if !ok {
			mark = lipgloss.NewStyle().Foreground(RedColor).Render(IconRejected)
		}
		return fmt.Sprintf("%s %-8s %s", mark, label, detail)
	}

	backend := fmt.Sprintf("reachable in %s, %d provinces", report.BackendLatency.Round(time.Millisecond), report.Provinces)
	if !report.BackendOK {
		backend = report.BackendError
	}
	sessionDetail := report.SessionError
	if report.SessionSaved {
		sessionDetail = fmt.Sprintf("%s, access %s, refresh %s", report.SessionUser, ttl(report.AccessTTL), ttl(report.RefreshTTL))
	}
	usable := report.SessionSaved && (report.AccessTTL > 0 || report.RefreshTTL > 0)

	return strings.Join([]string{
		MutedStyle.Render("Checked " + formatTime(report.Checked)),
		check(report.BackendOK, "backend", backend),
		check(usable, "session", sessionDetail),
	}, "\n")
}

func ttl(value time.Duration) string {
	switch {
	case value == 0:
		return "unknown"
	case value < 0:
		return "expired"
	default:
		return "valid for " + value.Round(time.Second).String()
	}
}

func field(label, value string) string {
	return MutedStyle.Render(fmt.Sprintf("%-9s", label+":")) + " " + value
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Local().Format(dateFormat)
}

func truncate(value string, limit int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-1]) + "…"
}
