package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestParseStatusAcceptsVariantsAndRejectsUnknown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{input: "Pending", want: StatusPending},
		{input: "In Progress", want: StatusInProgress},
		{input: "in_progress", want: StatusInProgress},
		{input: "InProgress", want: StatusInProgress},
		{input: "  resolved ", want: StatusResolved},
		{input: "REJECTED", want: StatusRejected},
		{input: "Closed", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseStatus(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatus(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("ParseStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRoleOrDefaultDegradesToUser(t *testing.T) {
	t.Parallel()

	if got := RoleOrDefault("admin"); got != RoleAdmin {
		t.Fatalf("RoleOrDefault(admin) = %q", got)
	}
	for _, value := range []string{"", "superuser", "staff"} {
		if got := RoleOrDefault(value); got != RoleUser {
			t.Fatalf("RoleOrDefault(%q) = %q, want user", value, got)
		}
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	got, err := ParseCategory("water")
	if err != nil || got != CategoryWater {
		t.Fatalf("ParseCategory(water) = %q, %v", got, err)
	}
	if _, err := ParseCategory("Potholes"); err == nil {
		t.Fatal("expected unknown category error")
	}
}

func TestStatusSlug(t *testing.T) {
	t.Parallel()

	if got := StatusInProgress.Slug(); got != "in-progress" {
		t.Fatalf("slug = %q, want in-progress", got)
	}
}

func TestDraftValidateListsMissingFields(t *testing.T) {
	t.Parallel()

	err := Draft{Title: "Street light out", Category: CategoryElectricity}.Validate()
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("error = %v, want ErrMissingField", err)
	}
	for _, field := range []string{"description", "province", "district", "office"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error %q missing field %q", err, field)
		}
	}
}

func TestDraftValidateRejectsUnknownCategory(t *testing.T) {
	t.Parallel()

	draft := Draft{
		Title:       "Broken pipe",
		Category:    Category("Plumbing"),
		Description: "Leaking since Monday",
		Location:    Location{Province: "Bagmati", District: "Kathmandu", Office: "Water Supply"},
	}
	if err := draft.Validate(); err == nil {
		t.Fatal("expected unknown category error")
	}
}
