package lifecycle

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/dcms-nepal/dcms/internal/telemetry/invariants"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Option configures Machine construction.
type Option func(*Machine)

// WithTracer configures the tracer used for transition decision spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(machine *Machine) {
		if tracer == nil {
			return
		}
		machine.tracer = tracer
	}
}

// WithClock overrides the decision timestamp source.
func WithClock(now func() time.Time) Option {
	return func(machine *Machine) {
		if now == nil {
			return
		}
		machine.now = now
	}
}

// Decision records one evaluated transition request.
type Decision struct {
	ComplaintID int
	FromStatus  domain.Status
	ToStatus    domain.Status
	Actor       string
	Role        domain.Role
	Remarks     string
	Accepted    bool
	Reason      string
	Timestamp   time.Time
}

// Machine evaluates transition requests, tracing each one and keeping a local
// decision history. It holds no complaint state of its own.
type Machine struct {
	tracer  trace.Tracer
	now     func() time.Time
	mu      sync.Mutex
	history []Decision
}

// NewMachine builds a lifecycle machine.
func NewMachine(options ...Option) *Machine {
	machine := &Machine{
		tracer:  otel.Tracer("dcms/lifecycle"),
		now:     time.Now,
		history: []Decision{},
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(machine)
	}
	return machine
}

// Next returns the statuses reachable from status.
func (m *Machine) Next(status domain.Status) []domain.Status {
	return AllowedNextStates(status)
}

// Apply validates a transition request and returns the intent to send to the store.
func (m *Machine) Apply(
	ctx context.Context,
	complaint domain.Complaint,
	requested domain.Status,
	actor domain.Actor,
	remarks string,
) (Intent, error) {
	if m == nil {
		return Intent{}, errors.New("machine is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()

	ctx, span := m.tracer.Start(ctx, "lifecycle.apply")
	defer func() {
		span.SetAttributes(attribute.Int64("duration_ms", time.Since(started).Milliseconds()))
		span.End()
	}()

	remarks = strings.TrimSpace(remarks)
	span.SetAttributes(
		attribute.Int("complaint_id", complaint.ID),
		attribute.String("from_status", string(complaint.Status)),
		attribute.String("to_status", string(requested)),
		attribute.String("actor_role", string(actor.Role)),
	)

	intent, err := ApplyTransition(complaint, requested, actor, remarks)
	decision := Decision{
		ComplaintID: complaint.ID,
		FromStatus:  complaint.Status,
		ToStatus:    requested,
		Actor:       actor.DisplayName,
		Role:        actor.Role,
		Remarks:     remarks,
		Accepted:    err == nil,
		Timestamp:   m.now().UTC(),
	}

	if err != nil {
		decision.Reason = err.Error()
		where := "lifecycle.apply#" + strconv.Itoa(complaint.ID)
		var illegal *IllegalTransitionError
		if errors.As(err, &illegal) {
			invariants.CheckStatusTransitionLegal(ctx, where, string(complaint.Status), string(requested), false)
		} else {
			invariants.CheckTransitionRolePermitted(ctx, where, string(actor.Role), string(requested), false)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.record(decision)
		return Intent{}, err
	}

	span.SetStatus(codes.Ok, "transition permitted")
	m.record(decision)
	return intent, nil
}

// History returns a copy of the decisions evaluated by this machine.
func (m *Machine) History() []Decision {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Decision, len(m.history))
	copy(out, m.history)
	return out
}

func (m *Machine) record(decision Decision) {
	m.mu.Lock()
	m.history = append(m.history, decision)
	m.mu.Unlock()
}
