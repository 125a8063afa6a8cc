package invariants

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// InvariantStatusTransitionLegal requires status changes to follow the lifecycle table.
	InvariantStatusTransitionLegal = "status_transition_legal"
	// InvariantTransitionRolePermitted requires the acting role to be allowed on the transition.
	InvariantTransitionRolePermitted = "transition_role_permitted"
	// InvariantLocationResolvable requires a submitted location to exist in the catalog.
	InvariantLocationResolvable = "location_resolvable"
	// InvariantStatusConfirmed requires a transition to be decided against a freshly fetched status.
	InvariantStatusConfirmed = "status_confirmed_before_transition"
)

const (
	// SeverityWarn is used for non-fatal invariant violations.
	SeverityWarn = "warn"
	// SeverityError is used for fatal invariant violations.
	SeverityError = "error"
)

var invariantChecksEnabled atomic.Bool

func init() {
	invariantChecksEnabled.Store(true)
}

// ViolationDetails captures invariant violation context for telemetry events.
type ViolationDetails struct {
	WhatInvariant string
	WhereDetected string
	WhyViolated   string
	Additional    map[string]string
}

// SetEnabled globally enables or disables invariant checks.
func SetEnabled(enabled bool) {
	invariantChecksEnabled.Store(enabled)
}

// Enabled reports whether invariant checks are currently enabled.
func Enabled() bool {
	return invariantChecksEnabled.Load()
}

// InvariantViolation emits an invariant.violation event on the active span.
// If the context has no active span, a short synthetic span is created.
func InvariantViolation(
	ctx context.Context,
	invariantName string,
	severity string,
	details ViolationDetails,
) {
	if !Enabled() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	invariantName = strings.TrimSpace(invariantName)
	if invariantName == "" {
		invariantName = "unknown_invariant"
	}

	attrs := []attribute.KeyValue{
		attribute.String("invariant_name", invariantName),
		attribute.String("severity", normalizeSeverity(severity)),
		attribute.String("what_invariant", strings.TrimSpace(details.WhatInvariant)),
		attribute.String("where_detected", strings.TrimSpace(details.WhereDetected)),
		attribute.String("why_violated", strings.TrimSpace(details.WhyViolated)),
	}

	if len(details.Additional) > 0 {
		keys := make([]string, 0, len(details.Additional))
		for key := range details.Additional {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			value := strings.TrimSpace(details.Additional[key])
			if value == "" {
				continue
			}
			attrs = append(attrs, attribute.String("context."+key, value))
		}
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent("invariant.violation", trace.WithAttributes(attrs...))
		return
	}

	_, temporarySpan := otel.Tracer("dcms/invariants").Start(ctx, "invariant.violation")
	defer temporarySpan.End()
	temporarySpan.AddEvent("invariant.violation", trace.WithAttributes(attrs...))
}

// CheckStatusTransitionLegal validates the status_transition_legal invariant.
func CheckStatusTransitionLegal(ctx context.Context, whereDetected, fromStatus, toStatus string, legal bool) bool {
	if legal {
		return true
	}
	InvariantViolation(ctx, InvariantStatusTransitionLegal, SeverityError, ViolationDetails{
		WhatInvariant: "complaint status transition follows the lifecycle table",
		WhereDetected: whereDetected,
		WhyViolated:   fmt.Sprintf("no transition from %q to %q", fromStatus, toStatus),
		Additional: map[string]string{
			"from_status": fromStatus,
			"to_status":   toStatus,
		},
	})
	return false
}

// CheckTransitionRolePermitted validates the transition_role_permitted invariant.
func CheckTransitionRolePermitted(ctx context.Context, whereDetected, role, toStatus string, permitted bool) bool {
	if permitted {
		return true
	}
	InvariantViolation(ctx, InvariantTransitionRolePermitted, SeverityError, ViolationDetails{
		WhatInvariant: "only permitted roles change complaint status",
		WhereDetected: whereDetected,
		WhyViolated:   fmt.Sprintf("role %q may not move a complaint to %q", role, toStatus),
		Additional: map[string]string{
			"role":      role,
			"to_status": toStatus,
		},
	})
	return false
}

// CheckLocationResolvable validates the location_resolvable invariant.
func CheckLocationResolvable(ctx context.Context, whereDetected, province, district, office string, resolvable bool) bool {
	if resolvable {
		return true
	}
	InvariantViolation(ctx, InvariantLocationResolvable, SeverityWarn, ViolationDetails{
		WhatInvariant: "submitted location exists in the province/district/office hierarchy",
		WhereDetected: whereDetected,
		WhyViolated:   fmt.Sprintf("unresolvable location %s / %s / %s", province, district, office),
		Additional: map[string]string{
			"province": province,
			"district": district,
			"office":   office,
		},
	})
	return false
}

// CheckStatusConfirmed validates the status_confirmed_before_transition invariant.
// A mismatch means the locally held status was stale.
func CheckStatusConfirmed(ctx context.Context, whereDetected, heldStatus, confirmedStatus string) bool {
	if heldStatus == "" || heldStatus == confirmedStatus {
		return true
	}
	InvariantViolation(ctx, InvariantStatusConfirmed, SeverityWarn, ViolationDetails{
		WhatInvariant: "transition decided against the backend's current status",
		WhereDetected: whereDetected,
		WhyViolated:   fmt.Sprintf("held status %q but backend reports %q", heldStatus, confirmedStatus),
		Additional: map[string]string{
			"held_status":      heldStatus,
			"confirmed_status": confirmedStatus,
		},
	})
	return false
}

func normalizeSeverity(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case SeverityWarn:
		return SeverityWarn
	default:
		return SeverityError
	}
}
