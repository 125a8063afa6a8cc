package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Actor is an authenticated principal. Role comes from the profile endpoint only.
type Actor struct {
	ID          int
	DisplayName string
	Email       string
	Role        Role
	Assignment  Location
}

// IsAdmin reports whether the actor holds the staff role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Location is one (province, district, office) triple.
type Location struct {
	Province string
	District string
	Office   string
}

// Complaint is a transient copy of a backend complaint record.
type Complaint struct {
	ID          int
	Title       string
	Category    Category
	Description string
	Location    Location
	Status      Status
	Remarks     *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	SubmittedBy string
}

// RemarksText returns the remarks or an empty string when none were recorded.
func (c Complaint) RemarksText() string {
	if c.Remarks == nil {
		return ""
	}
	return *c.Remarks
}

// Draft is a complaint as entered by a user, before the backend assigns an id.
type Draft struct {
	Title       string
	Category    Category
	Description string
	Location    Location
}

// ErrMissingField is wrapped by Draft.Validate for every absent required field.
var ErrMissingField = errors.New("required field missing")

// Validate checks that every required field is present. Location membership is
// checked separately against the catalog.
func (d Draft) Validate() error {
	missing := make([]string, 0, 6)
	if strings.TrimSpace(d.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(string(d.Category)) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(d.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(d.Location.Province) == "" {
		missing = append(missing, "province")
	}
	if strings.TrimSpace(d.Location.District) == "" {
		missing = append(missing, "district")
	}
	if strings.TrimSpace(d.Location.Office) == "" {
		missing = append(missing, "office")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	if _, err := ParseCategory(string(d.Category)); err != nil {
		return err
	}
	return nil
}

// Normalized returns a copy with surrounding whitespace trimmed from every field.
func (d Draft) Normalized() Draft {
	return Draft{
		Title:       strings.TrimSpace(d.Title),
		Category:    Category(strings.TrimSpace(string(d.Category))),
		Description: strings.TrimSpace(d.Description),
		Location: Location{
			Province: strings.TrimSpace(d.Location.Province),
			District: strings.TrimSpace(d.Location.District),
			Office:   strings.TrimSpace(d.Location.Office),
		},
	}
}
