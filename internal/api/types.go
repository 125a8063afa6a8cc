package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/dcms-nepal/dcms/internal/domain"
)

// Tokens is the credential pair returned by the login endpoint.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Registration is the body of the account registration endpoint.
type Registration struct {
	FullName        string `json:"full_name,omitempty"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password,omitempty"`
}

// Channel selects how a password reset code is delivered.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

// ParseChannel accepts "email" or "phone".
func ParseChannel(value string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(value))) {
	case ChannelEmail:
		return ChannelEmail, nil
	case ChannelPhone:
		return ChannelPhone, nil
	default:
		return "", fmt.Errorf("unknown reset channel %q", value)
	}
}

type complaintWire struct {
	ID          int     `json:"id"`
	User        *string `json:"user"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Province    string  `json:"province"`
	District    string  `json:"district"`
	Office      string  `json:"office"`
	Remarks     *string `json:"remarks"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type draftWire struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Province    string `json:"province"`
	District    string `json:"district"`
	Office      string `json:"office"`
}

type statusPatchWire struct {
	Status  string `json:"status"`
	Remarks string `json:"remarks"`
}

type profileWire struct {
	ID               int    `json:"id"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	FullName         string `json:"full_name"`
	Role             string `json:"role"`
	AssignedProvince string `json:"assigned_province"`
	AssignedDistrict string `json:"assigned_district"`
	AssignedOffice   string `json:"assigned_office"`
}

// toDomain rejects records whose status or category is outside the known sets.
func (w complaintWire) toDomain() (domain.Complaint, error) {
	status, err := domain.ParseStatus(w.Status)
	if err != nil {
		return domain.Complaint{}, fmt.Errorf("complaint %d: %w", w.ID, err)
	}
	category, err := domain.ParseCategory(w.Category)
	if err != nil {
		return domain.Complaint{}, fmt.Errorf("complaint %d: %w", w.ID, err)
	}
	created, err := parseTimestamp(w.CreatedAt)
	if err != nil {
		return domain.Complaint{}, fmt.Errorf("complaint %d created_at: %w", w.ID, err)
	}
	updated, err := parseTimestamp(w.UpdatedAt)
	if err != nil {
		return domain.Complaint{}, fmt.Errorf("complaint %d updated_at: %w", w.ID, err)
	}

	complaint := domain.Complaint{
		ID:          w.ID,
		Title:       w.Title,
		Category:    category,
		Description: w.Description,
		Location: domain.Location{
			Province: w.Province,
			District: w.District,
			Office:   w.Office,
		},
		Status:    status,
		CreatedAt: created,
		UpdatedAt: updated,
	}
	if w.Remarks != nil {
		remarks := *w.Remarks
		complaint.Remarks = &remarks
	}
	if w.User != nil {
		complaint.SubmittedBy = *w.User
	}
	return complaint, nil
}

func (w profileWire) toDomain() domain.Actor {
	display := strings.TrimSpace(w.FullName)
	if display == "" {
		display = strings.TrimSpace(strings.TrimSpace(w.FirstName) + " " + strings.TrimSpace(w.LastName))
	}
	if display == "" {
		display = w.Email
	}
	return domain.Actor{
		ID:          w.ID,
		DisplayName: display,
		Email:       w.Email,
		Role:        domain.RoleOrDefault(w.Role),
		Assignment: domain.Location{
			Province: strings.TrimSpace(w.AssignedProvince),
			District: strings.TrimSpace(w.AssignedDistrict),
			Office:   strings.TrimSpace(w.AssignedOffice),
		},
	}
}

func draftToWire(draft domain.Draft) draftWire {
	return draftWire{
		Title:       draft.Title,
		Category:    string(draft.Category),
		Description: draft.Description,
		Province:    draft.Location.Province,
		District:    draft.Location.District,
		Office:      draft.Location.Office,
	}
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}
