package lifecycle

import (
	"fmt"
	"slices"

	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/dcms-nepal/dcms/internal/faults"
)

// Transition is one legal status move and the roles allowed to make it.
type Transition struct {
	From         domain.Status
	To           domain.Status
	AllowedRoles []domain.Role
}

var transitions = []Transition{
	{From: domain.StatusPending, To: domain.StatusInProgress, AllowedRoles: []domain.Role{domain.RoleAdmin}},
	{From: domain.StatusPending, To: domain.StatusRejected, AllowedRoles: []domain.Role{domain.RoleAdmin}},
	{From: domain.StatusInProgress, To: domain.StatusResolved, AllowedRoles: []domain.Role{domain.RoleAdmin}},
}

// Table returns a copy of the transition table in declaration order.
func Table() []Transition {
	out := make([]Transition, len(transitions))
	for i, transition := range transitions {
		transition.AllowedRoles = slices.Clone(transition.AllowedRoles)
		out[i] = transition
	}
	return out
}

// AllowedNextStates returns the statuses reachable in one step from status.
// Terminal and unknown statuses yield an empty slice.
func AllowedNextStates(status domain.Status) []domain.Status {
	next := make([]domain.Status, 0, 2)
	for _, transition := range transitions {
		if transition.From == status {
			next = append(next, transition.To)
		}
	}
	return next
}

// IsTerminal reports whether status admits no outgoing transition.
func IsTerminal(status domain.Status) bool {
	return status == domain.StatusResolved || status == domain.StatusRejected
}

// Progress is the completion percentage shown to complainants.
func Progress(status domain.Status) int {
	switch status {
	case domain.StatusPending:
		return 33
	case domain.StatusInProgress:
		return 66
	case domain.StatusResolved, domain.StatusRejected:
		return 100
	default:
		return 0
	}
}

func lookup(from, to domain.Status) (Transition, bool) {
	for _, transition := range transitions {
		if transition.From == from && transition.To == to {
			return transition, true
		}
	}
	return Transition{}, false
}

// Intent is the validated request to send to the complaint store.
type Intent struct {
	ComplaintID int
	From        domain.Status
	Status      domain.Status
	Remarks     string
}

// IllegalTransitionError is returned when the requested status is not reachable.
type IllegalTransitionError struct {
	ComplaintID int
	From        domain.Status
	To          domain.Status
}

func (e *IllegalTransitionError) Error() string {
	if IsTerminal(e.From) {
		return fmt.Sprintf("complaint #%d is %s; no further status changes are possible", e.ComplaintID, e.From)
	}
	return fmt.Sprintf("cannot change complaint #%d from %s to %s", e.ComplaintID, e.From, e.To)
}

// FaultKind maps the error onto the shared taxonomy.
func (e *IllegalTransitionError) FaultKind() faults.Kind {
	return faults.KindIllegalTransition
}

// Is enables errors.Is against both this type and faults.ErrIllegalTransition.
func (e *IllegalTransitionError) Is(target error) bool {
	switch typed := target.(type) {
	case *IllegalTransitionError:
		return true
	case *faults.Error:
		return typed.Kind == faults.KindIllegalTransition
	default:
		return false
	}
}

// ForbiddenError is returned when the actor's role may not make the transition.
type ForbiddenError struct {
	ComplaintID int
	Role        domain.Role
	To          domain.Status
}

func (e *ForbiddenError) Error() string {
	role := string(e.Role)
	if role == "" {
		role = "unknown"
	}
	return fmt.Sprintf("role %s may not move complaint #%d to %s", role, e.ComplaintID, e.To)
}

// FaultKind maps the error onto the shared taxonomy.
func (e *ForbiddenError) FaultKind() faults.Kind {
	return faults.KindForbidden
}

// Is enables errors.Is against both this type and faults.ErrForbidden.
func (e *ForbiddenError) Is(target error) bool {
	switch typed := target.(type) {
	case *ForbiddenError:
		return true
	case *faults.Error:
		return typed.Kind == faults.KindForbidden
	default:
		return false
	}
}

// ApplyTransition decides whether actor may move complaint to requested.
// Reachability is checked before role so an unreachable request is always
// reported as illegal. It never contacts the store.
func ApplyTransition(complaint domain.Complaint, requested domain.Status, actor domain.Actor, remarks string) (Intent, error) {
	transition, ok := lookup(complaint.Status, requested)
	if !ok {
		return Intent{}, &IllegalTransitionError{
			ComplaintID: complaint.ID,
			From:        complaint.Status,
			To:          requested,
		}
	}
	if !slices.Contains(transition.AllowedRoles, actor.Role) {
		return Intent{}, &ForbiddenError{
			ComplaintID: complaint.ID,
			Role:        actor.Role,
			To:          requested,
		}
	}
	return Intent{
		ComplaintID: complaint.ID,
		From:        complaint.Status,
		Status:      requested,
		Remarks:     remarks,
	}, nil
}
