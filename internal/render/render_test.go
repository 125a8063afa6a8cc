package render

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dcms-nepal/dcms/internal/complaints"
	"github.com/dcms-nepal/dcms/internal/doctor"
	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/dcms-nepal/dcms/internal/location"
	"github.com/muesli/termenv"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	m.Run()
}

func TestStatusBadgeVariants(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		status domain.Status
		want   string
	}{
		{status: domain.StatusPending, want: "⏸ PENDING"},
		{status: domain.StatusInProgress, want: "● IN PROGRESS"},
		{status: domain.StatusResolved, want: "✓ RESOLVED"},
		{status: domain.StatusRejected, want: "✗ REJECTED"},
		{status: domain.Status("Escalated"), want: "⚠ ESCALATED"},
		{status: domain.Status(""), want: "⚠ UNKNOWN"},
	}

	for _, testCase := range testCases {
		t.Run(string(testCase.status), func(t *testing.T) {
			t.Parallel()
			if rendered := StatusBadge(testCase.status); !strings.Contains(rendered, testCase.want) {
				t.Fatalf("StatusBadge(%q) = %q, want %q", testCase.status, rendered, testCase.want)
			}
		})
	}
}

func TestStatusBadgeOptions(t *testing.T) {
	t.Parallel()

	withoutIcon := StatusBadge(domain.StatusResolved, WithBadgeIcon(false))
	if strings.Contains(withoutIcon, "✓") || !strings.Contains(withoutIcon, "RESOLVED") {
		t.Fatalf("unexpected icon-less badge %q", withoutIcon)
	}
	if bold := StatusBadge(domain.StatusResolved, WithBadgeBold(true)); !strings.Contains(bold, "✓ RESOLVED") {
		t.Fatalf("bold badge lost content: %q", bold)
	}
}

func TestProgressBar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  domain.Status
		percent string
		filled  int
	}{
		{status: domain.StatusPending, percent: " 33%", filled: 3},
		{status: domain.StatusInProgress, percent: " 66%", filled: 7},
		{status: domain.StatusResolved, percent: "100%", filled: 12},
		{status: domain.StatusRejected, percent: "100%", filled: 12},
	}
	for _, tt := range tests {
		bar := ProgressBar(tt.status)
		if !strings.HasSuffix(bar, tt.percent) {
			t.Fatalf("ProgressBar(%q) = %q, want suffix %q", tt.status, bar, tt.percent)
		}
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Fatalf("ProgressBar(%q) filled = %d, want %d", tt.status, got, tt.filled)
		}
	}
}

func TestComplaintCard(t *testing.T) {
	t.Parallel()

	remarks := "crew dispatched"
	card := ComplaintCard(domain.Complaint{
		ID:          12,
		Title:       "Broken water main",
		Category:    domain.CategoryWater,
		Description: "Flooding near the school gate.",
		Location:    domain.Location{Province: "Bagmati", District: "Lalitpur", Office: "Water Supply"},
		Status:      domain.StatusInProgress,
		Remarks:     &remarks,
		CreatedAt:   time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	})

	for _, want := range []string{
		"#12 Broken water main",
		"● IN PROGRESS",
		"Bagmati / Lalitpur / Water Supply",
		"Remarks: crew dispatched",
		"Next: Resolved",
		"66%",
	} {
		if !strings.Contains(card, want) {
			t.Fatalf("card missing %q:\n%s", want, card)
		}
	}

	terminal := ComplaintCard(domain.Complaint{ID: 3, Title: "Done", Status: domain.StatusResolved})
	if strings.Contains(terminal, "Next:") {
		t.Fatalf("terminal complaint should list no next states:\n%s", terminal)
	}
	if strings.Contains(terminal, "Remarks:") {
		t.Fatalf("absent remarks should not render:\n%s", terminal)
	}
}

func TestComplaintTable(t *testing.T) {
	t.Parallel()

	if got := ComplaintTable(nil); !strings.Contains(got, "No complaints.") {
		t.Fatalf("empty table = %q", got)
	}

	table := ComplaintTable([]domain.Complaint{
		{ID: 2, Title: "Second", Category: domain.CategoryRoad, Status: domain.StatusPending, Location: domain.Location{Office: "Ward Office"}},
		{ID: 1, Title: strings.Repeat("long title ", 10), Category: domain.CategoryHealth, Status: domain.StatusRejected},
	})
	lines := strings.Split(table, "\n")
	if len(lines) != 3 {
		t.Fatalf("table lines = %d, want 3:\n%s", len(lines), table)
	}
	if !strings.HasPrefix(lines[1], "#2") || !strings.HasPrefix(lines[2], "#1") {
		t.Fatalf("table did not keep input order:\n%s", table)
	}
	if !strings.Contains(lines[2], "…") {
		t.Fatalf("long title not truncated:\n%s", table)
	}
}

func TestStatsPanel(t *testing.T) {
	t.Parallel()

	panel := StatsPanel(complaints.Stats{Total: 5, Pending: 2, InProgress: 1, Resolved: 1, Rejected: 1})
	for _, want := range []string{"5 total", "2 pending", "1 in progress", "1 resolved", "1 rejected"} {
		if !strings.Contains(panel, want) {
			t.Fatalf("stats panel missing %q:\n%s", want, panel)
		}
	}
}

func TestLocationTree(t *testing.T) {
	t.Parallel()

	catalog := location.FromPayload(location.Payload{
		Provinces: []string{"Bagmati", "Koshi"},
		Districts: map[string][]string{"Bagmati": {"Kathmandu", "Lalitpur"}, "Koshi": {"Morang"}},
		Offices: map[string]map[string][]string{
			"Bagmati": {"Kathmandu": {"Ward Office"}},
			"Koshi":   {"Morang": {"Municipality Office"}},
		},
	})

	full := LocationTree(catalog, "", "")
	for _, want := range []string{"Bagmati", "Kathmandu", "- Ward Office", "Lalitpur (no offices)", "Koshi", "Morang"} {
		if !strings.Contains(full, want) {
			t.Fatalf("tree missing %q:\n%s", want, full)
		}
	}

	narrowed := LocationTree(catalog, "Bagmati", "Kathmandu")
	if strings.Contains(narrowed, "Koshi") || strings.Contains(narrowed, "Lalitpur") {
		t.Fatalf("narrowed tree leaked other branches:\n%s", narrowed)
	}

	if got := LocationTree(catalog, "Gandaki", ""); !strings.Contains(got, "(unknown province)") {
		t.Fatalf("unknown province = %q", got)
	}
	if got := LocationTree(nil, "", ""); !strings.Contains(got, "No locations") {
		t.Fatalf("nil catalog = %q", got)
	}
}

func TestProfile(t *testing.T) {
	t.Parallel()

	profile := Profile(domain.Actor{
		DisplayName: "Ward Admin",
		Email:       "admin@example.com",
		Role:        domain.RoleAdmin,
		Assignment:  domain.Location{Province: "Bagmati"},
	})
	for _, want := range []string{"Ward Admin", "admin@example.com", "admin", "Assigned: Bagmati"} {
		if !strings.Contains(profile, want) {
			t.Fatalf("profile missing %q:\n%s", want, profile)
		}
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	healthy := Health(doctor.HealthReport{
		BackendOK:      true,
		BackendLatency: 42 * time.Millisecond,
		Provinces:      7,
		SessionSaved:   true,
		SessionUser:    "sita@example.com",
		AccessTTL:      -time.Minute,
		RefreshTTL:     2 * time.Hour,
	})
	for _, want := range []string{"✓ backend", "42ms, 7 provinces", "✓ session", "access expired", "refresh valid for 2h0m0s"} {
		if !strings.Contains(healthy, want) {
			t.Fatalf("health missing %q:\n%s", want, healthy)
		}
	}

	down := Health(doctor.HealthReport{BackendError: "request failed, please try again", SessionError: "not logged in"})
	for _, want := range []string{"✗ backend", "request failed", "✗ session", "not logged in"} {
		if !strings.Contains(down, want) {
			t.Fatalf("health missing %q:\n%s", want, down)
		}
	}
}
