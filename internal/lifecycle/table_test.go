package lifecycle

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/dcms-nepal/dcms/internal/faults"
)

var (
	admin   = domain.Actor{ID: 1, DisplayName: "Ward Admin", Role: domain.RoleAdmin}
	citizen = domain.Actor{ID: 2, DisplayName: "Sita", Role: domain.RoleUser}
)

func complaintIn(status domain.Status) domain.Complaint {
	return domain.Complaint{ID: 7, Title: "No water", Status: status}
}

func TestAllowedNextStates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status domain.Status
		want   []domain.Status
	}{
		{status: domain.StatusPending, want: []domain.Status{domain.StatusInProgress, domain.StatusRejected}},
		{status: domain.StatusInProgress, want: []domain.Status{domain.StatusResolved}},
		{status: domain.StatusResolved, want: []domain.Status{}},
		{status: domain.StatusRejected, want: []domain.Status{}},
		{status: domain.Status("Closed"), want: []domain.Status{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			got := AllowedNextStates(tt.status)
			if got == nil {
				t.Fatal("AllowedNextStates returned nil, want empty slice")
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("AllowedNextStates(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTerminalStatesHaveNoSuccessors(t *testing.T) {
	t.Parallel()

	for _, status := range domain.Statuses() {
		if IsTerminal(status) && len(AllowedNextStates(status)) != 0 {
			t.Fatalf("terminal status %q has successors", status)
		}
		if !IsTerminal(status) && len(AllowedNextStates(status)) == 0 {
			t.Fatalf("non-terminal status %q has no successors", status)
		}
	}
}

func TestAllowedNextStatesIsIdempotent(t *testing.T) {
	t.Parallel()

	for _, status := range domain.Statuses() {
		first := AllowedNextStates(status)
		second := AllowedNextStates(status)
		if !slices.Equal(first, second) {
			t.Fatalf("AllowedNextStates(%q) not idempotent: %v vs %v", status, first, second)
		}
		if len(first) > 0 {
			first[0] = domain.Status("tampered")
			if slices.Contains(AllowedNextStates(status), domain.Status("tampered")) {
				t.Fatal("mutating a returned slice leaked into the table")
			}
		}
	}
}

func TestApplyTransitionSucceedsOnlyForAdminOnTableRows(t *testing.T) {
	t.Parallel()

	roles := []domain.Role{domain.RoleUser, domain.RoleAdmin, domain.Role("")}
	for _, from := range domain.Statuses() {
		for _, to := range domain.Statuses() {
			for _, role := range roles {
				actor := domain.Actor{Role: role}
				_, err := ApplyTransition(complaintIn(from), to, actor, "")
				wantOK := role == domain.RoleAdmin && slices.Contains(AllowedNextStates(from), to)
				if wantOK && err != nil {
					t.Fatalf("%s -> %s as %q: unexpected error %v", from, to, role, err)
				}
				if !wantOK && err == nil {
					t.Fatalf("%s -> %s as %q: expected error", from, to, role)
				}
			}
		}
	}
}

func TestSkipHopIsIllegalForAdmin(t *testing.T) {
	t.Parallel()

	_, err := ApplyTransition(complaintIn(domain.StatusPending), domain.StatusResolved, admin, "done")
	var illegal *IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("error = %T (%v), want *IllegalTransitionError", err, err)
	}
	if !errors.Is(err, faults.ErrIllegalTransition) {
		t.Fatal("errors.Is(err, faults.ErrIllegalTransition) = false")
	}
	if faults.KindOf(err) != faults.KindIllegalTransition {
		t.Fatalf("KindOf = %q", faults.KindOf(err))
	}
}

func TestUserCannotStartProgress(t *testing.T) {
	t.Parallel()

	_, err := ApplyTransition(complaintIn(domain.StatusPending), domain.StatusInProgress, citizen, "")
	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("error = %T (%v), want *ForbiddenError", err, err)
	}
	if !errors.Is(err, faults.ErrForbidden) {
		t.Fatal("errors.Is(err, faults.ErrForbidden) = false")
	}
	if forbidden.Role != domain.RoleUser {
		t.Fatalf("role = %q, want user", forbidden.Role)
	}
}

func TestUnreachableRequestFromUserIsIllegalNotForbidden(t *testing.T) {
	t.Parallel()

	_, err := ApplyTransition(complaintIn(domain.StatusResolved), domain.StatusPending, citizen, "")
	if !errors.Is(err, faults.ErrIllegalTransition) {
		t.Fatalf("error = %v, want illegal transition", err)
	}
	if !strings.Contains(err.Error(), "no further status changes") {
		t.Fatalf("terminal message missing: %v", err)
	}
}

func TestAdminResolvesInProgressComplaint(t *testing.T) {
	t.Parallel()

	intent, err := ApplyTransition(complaintIn(domain.StatusInProgress), domain.StatusResolved, admin, "Transformer replaced")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := Intent{ComplaintID: 7, From: domain.StatusInProgress, Status: domain.StatusResolved, Remarks: "Transformer replaced"}
	if intent != want {
		t.Fatalf("intent = %+v, want %+v", intent, want)
	}
}

func TestProgress(t *testing.T) {
	t.Parallel()

	cases := map[domain.Status]int{
		domain.StatusPending:    33,
		domain.StatusInProgress: 66,
		domain.StatusResolved:   100,
		domain.StatusRejected:   100,
		domain.Status("?"):      0,
	}
	for status, want := range cases {
		if got := Progress(status); got != want {
			t.Fatalf("Progress(%q) = %d, want %d", status, got, want)
		}
	}
}

func TestTableReturnsCopy(t *testing.T) {
	t.Parallel()

	table := Table()
	table[0].AllowedRoles[0] = domain.RoleUser
	if _, err := ApplyTransition(complaintIn(domain.StatusPending), domain.StatusInProgress, citizen, ""); err == nil {
		t.Fatal("mutating Table() result changed the transition rules")
	}
}
