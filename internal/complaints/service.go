// Package complaints coordinates submission, tracking and status changes. It
// consults the access guard before every operation, runs local validation
// before any network call, and re-reads a complaint before deciding a
// transition so the decision is never made against a stale status.
package complaints

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dcms-nepal/dcms/internal/access"
	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/dcms-nepal/dcms/internal/events"
	"github.com/dcms-nepal/dcms/internal/faults"
	"github.com/dcms-nepal/dcms/internal/lifecycle"
	"github.com/dcms-nepal/dcms/internal/location"
	"github.com/dcms-nepal/dcms/internal/metrics"
	"github.com/dcms-nepal/dcms/internal/telemetry"
	"github.com/dcms-nepal/dcms/internal/telemetry/invariants"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ComplaintStore is the backend surface the service needs.
type ComplaintStore interface {
	Locations(ctx context.Context) (*location.Catalog, error)
	ListComplaints(ctx context.Context) ([]domain.Complaint, error)
	GetComplaint(ctx context.Context, id int) (domain.Complaint, error)
	CreateComplaint(ctx context.Context, draft domain.Draft) (domain.Complaint, error)
	UpdateStatus(ctx context.Context, intent lifecycle.Intent) (domain.Complaint, error)
}

// Session is the authenticated identity the service acts for.
type Session interface {
	Guard() *access.Guard
	Actor() (domain.Actor, bool)
	Restore(ctx context.Context) (domain.Actor, error)
	Observe(ctx context.Context, err error) error
}

// Option configures a Service.
type Option func(*Service)

// WithLogger configures service logging.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPublisher configures the event sink.
func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithMetrics configures counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer configures the tracer for service spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithMachine replaces the lifecycle machine.
func WithMachine(machine *lifecycle.Machine) Option {
	return func(s *Service) {
		if machine != nil {
			s.machine = machine
		}
	}
}

// Service is safe for concurrent use.
type Service struct {
	store     ComplaintStore
	session   Session
	machine   *lifecycle.Machine
	logger    *log.Logger
	publisher events.Publisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	mu      sync.RWMutex
	catalog *location.Catalog
	held    map[int]domain.Complaint
}

// NewService wires a service over store and session.
func NewService(store ComplaintStore, session Session, options ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("complaint store must not be nil")
	}
	if session == nil {
		return nil, errors.New("session must not be nil")
	}
	service := &Service{
		store:     store,
		session:   session,
		logger:    log.New(io.Discard),
		publisher: events.Discard,
		tracer:    otel.Tracer("dcms/complaints"),
		held:      map[int]domain.Complaint{},
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if service.machine == nil {
		service.machine = lifecycle.NewMachine(lifecycle.WithTracer(service.tracer))
	}
	return service, nil
}

// Machine exposes the lifecycle machine for history inspection.
func (s *Service) Machine() *lifecycle.Machine {
	return s.machine
}

// Bootstrap restores the session and loads the location catalog concurrently.
// A catalog failure is logged and left for Submit to retry; a session failure
// is returned.
func (s *Service) Bootstrap(ctx context.Context) (domain.Actor, error) {
	defer s.metrics.ObserveOperation("bootstrap", time.Now())

	g, gctx := errgroup.WithContext(ctx)
	var actor domain.Actor
	g.Go(func() error {
		restored, err := s.session.Restore(gctx)
		if err != nil {
			return err
		}
		actor = restored
		return nil
	})
	g.Go(func() error {
		if _, err := s.LoadCatalog(gctx); err != nil {
			s.logger.Warn("location catalog unavailable", "kind", faults.KindOf(err), "err", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Actor{}, err
	}
	return actor, nil
}

// LoadCatalog fetches the location hierarchy and caches it.
func (s *Service) LoadCatalog(ctx context.Context) (*location.Catalog, error) {
	catalog, err := s.store.Locations(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()
	return catalog, nil
}

// Catalog returns the cached catalog. It may be nil before LoadCatalog succeeds.
func (s *Service) Catalog() *location.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Submit validates draft locally and creates it on the backend.
func (s *Service) Submit(ctx context.Context, draft domain.Draft) (domain.Complaint, error) {
	const op = "submit complaint"
	defer s.metrics.ObserveOperation("submit", time.Now())

	ctx, span := s.tracer.Start(ctx, "complaints.submit")
	defer span.End()

	if err := s.session.Guard().Require(access.RouteSubmit); err != nil {
		return domain.Complaint{}, s.fail(span, err)
	}

	draft = draft.Normalized()
	if err := draft.Validate(); err != nil {
		s.metrics.CountBlocked(string(faults.KindValidationFailed))
		return domain.Complaint{}, s.fail(span, faults.Wrap(faults.KindValidationFailed, op, err, err.Error()))
	}
	category, _ := domain.ParseCategory(string(draft.Category))
	draft.Category = category

	catalog := s.Catalog()
	if !catalog.Loaded() {
		loaded, err := s.LoadCatalog(ctx)
		if err != nil {
			return domain.Complaint{}, s.fail(span, err)
		}
		catalog = loaded
	}
	loc := draft.Location
	resolvable := catalog.ValidateLocation(loc)
	invariants.CheckLocationResolvable(ctx, "complaints.submit", loc.Province, loc.District, loc.Office, resolvable)
	if !resolvable {
		s.metrics.CountBlocked(string(faults.KindValidationFailed))
		err := faults.Newf(faults.KindValidationFailed, op, "location: %s / %s / %s is not a known office", loc.Province, loc.District, loc.Office)
		return domain.Complaint{}, s.fail(span, err)
	}

	created, err := s.store.CreateComplaint(ctx, draft)
	if err != nil {
		s.metrics.CountBlocked(string(faults.KindOf(err)))
		return domain.Complaint{}, s.fail(span, s.session.Observe(ctx, err))
	}

	s.hold(created)
	span.SetAttributes(attribute.Int("complaint_id", created.ID))
	span.SetStatus(codes.Ok, "")
	s.metrics.CountSubmission(string(created.Category))
	s.logger.Info("complaint submitted", "complaint_id", created.ID, "category", created.Category, "office", created.Location.Office)
	s.publisher.Publish(events.ComplaintEvent(events.TypeComplaintSubmitted, created.ID, events.SeverityInfo, created))
	return created, nil
}

// Dashboard returns status counts and the visible complaints.
func (s *Service) Dashboard(ctx context.Context) (Stats, []domain.Complaint, error) {
	list, err := s.list(ctx, access.RouteDashboard, nil)
	if err != nil {
		return Stats{}, nil, err
	}
	return Summarize(list), list, nil
}

// Track lists the caller's own complaints, optionally filtered by status.
func (s *Service) Track(ctx context.Context, filter *domain.Status) ([]domain.Complaint, error) {
	return s.list(ctx, access.RouteTrack, filter)
}

// AdminList lists the complaints scoped to the admin's assignment.
func (s *Service) AdminList(ctx context.Context, filter *domain.Status) ([]domain.Complaint, error) {
	return s.list(ctx, access.RouteAdminPanel, filter)
}

// AdminShow fetches one complaint for review.
func (s *Service) AdminShow(ctx context.Context, id int) (domain.Complaint, error) {
	if err := s.session.Guard().Require(access.RouteAdminPanel); err != nil {
		return domain.Complaint{}, err
	}
	complaint, err := s.store.GetComplaint(ctx, id)
	if err != nil {
		return domain.Complaint{}, s.session.Observe(ctx, err)
	}
	s.hold(complaint)
	return complaint, nil
}

func (s *Service) list(ctx context.Context, route access.Route, filter *domain.Status) ([]domain.Complaint, error) {
	defer s.metrics.ObserveOperation("list", time.Now())
	if err := s.session.Guard().Require(route); err != nil {
		return nil, err
	}
	list, err := s.store.ListComplaints(ctx)
	if err != nil {
		return nil, s.session.Observe(ctx, err)
	}
	for _, complaint := range list {
		s.hold(complaint)
	}
	return FilterByStatus(list, filter), nil
}

// Transition moves complaint id to requested. Actors without the admin panel
// are refused before anything is sent. Otherwise the complaint is re-read and
// the lifecycle table decides locally before the update goes out.
func (s *Service) Transition(ctx context.Context, id int, requested domain.Status, remarks string) (domain.Complaint, error) {
	const op = "transition complaint"
	defer s.metrics.ObserveOperation("transition", time.Now())

	ctx, span := s.tracer.Start(ctx, "complaints.transition", trace.WithAttributes(
		attribute.Int("complaint_id", id),
		attribute.String("to_status", string(requested)),
	))
	defer span.End()

	actor, ok := s.session.Actor()
	if !ok {
		return domain.Complaint{}, s.fail(span, faults.New(faults.KindUnauthorized, op, "please log in first"))
	}
	if err := s.session.Guard().Require(access.RouteAdminPanel); err != nil {
		held, _ := s.heldCopy(id)
		s.reject(id, held.Status, requested, actor, err, metrics.OutcomeRejectedLocally)
		return domain.Complaint{}, s.fail(span, err)
	}

	current, err := s.store.GetComplaint(ctx, id)
	if err != nil {
		return domain.Complaint{}, s.fail(span, s.session.Observe(ctx, err))
	}
	if held, ok := s.heldCopy(id); ok {
		invariants.CheckStatusConfirmed(ctx, "complaints.transition#"+strconv.Itoa(id), string(held.Status), string(current.Status))
		if held.Status != current.Status {
			s.logger.Info("complaint status changed since last read", "complaint_id", id, "held", held.Status, "current", current.Status)
		}
	}
	s.hold(current)

	intent, err := s.machine.Apply(ctx, current, requested, actor, remarks)
	if err != nil {
		s.reject(id, current.Status, requested, actor, err, metrics.OutcomeRejectedLocally)
		return domain.Complaint{}, s.fail(span, err)
	}

	updated, err := s.store.UpdateStatus(ctx, intent)
	if err != nil {
		err = s.session.Observe(ctx, err)
		s.reject(id, current.Status, requested, actor, err, metrics.OutcomeRejectedRemotely)
		return domain.Complaint{}, s.fail(span, err)
	}

	s.hold(updated)
	span.SetStatus(codes.Ok, "")
	s.metrics.CountTransition(string(current.Status), string(updated.Status), metrics.OutcomeApplied)
	s.logger.Info("complaint status changed", "complaint_id", id, "from", current.Status, "to", updated.Status, "actor", actor.Email)
	s.publisher.Publish(events.ComplaintEvent(events.TypeStatusTransitioned, id, events.SeverityInfo, events.Transition{
		ComplaintID: id,
		From:        current.Status,
		To:          updated.Status,
		Actor:       actor.DisplayName,
	}))
	return updated, nil
}

// Held returns the last copy of a complaint this service saw.
func (s *Service) Held(id int) (domain.Complaint, bool) {
	return s.heldCopy(id)
}

func (s *Service) reject(id int, from, to domain.Status, actor domain.Actor, err error, outcome string) {
	s.metrics.CountTransition(string(from), string(to), outcome)
	s.logger.Warn("complaint status change rejected", "complaint_id", id, "from", from, "to", to, "kind", faults.KindOf(err), "outcome", outcome)
	s.publisher.Publish(events.ComplaintEvent(events.TypeTransitionRejected, id, events.SeverityWarn, events.Transition{
		ComplaintID: id,
		From:        from,
		To:          to,
		Actor:       actor.DisplayName,
		Reason:      err.Error(),
	}))
}

func (s *Service) fail(span trace.Span, err error) error {
	telemetry.RecordError(span, err)
	return err
}

func (s *Service) hold(complaint domain.Complaint) {
	s.mu.Lock()
	s.held[complaint.ID] = complaint
	s.mu.Unlock()
}

func (s *Service) heldCopy(id int) (domain.Complaint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	complaint, ok := s.held[id]
	return complaint, ok
}
