package domain

import (
	"fmt"
	"strings"
)

// Role is the capability class of an authenticated actor.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole accepts the backend role strings and rejects anything else.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

// RoleOrDefault parses value and degrades to the least-privileged role when it is unknown.
func RoleOrDefault(value string) Role {
	role, err := ParseRole(value)
	if err != nil {
		return RoleUser
	}
	return role
}

// Status is the lifecycle position of a complaint.
type Status string

// Wire values match the backend's choice labels.
const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusRejected   Status = "Rejected"
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusResolved, StatusRejected}
}

// ParseStatus accepts the wire spelling plus case, space, hyphen and underscore variants
// ("in_progress", "InProgress", "in-progress") and rejects everything else.
func ParseStatus(value string) (Status, error) {
	key := foldKey(value)
	for _, status := range Statuses() {
		if foldKey(string(status)) == key {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown complaint status %q", value)
}

// Slug is the lowercase hyphenated form used for rendering and flags.
func (s Status) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), " ", "-")
}

// Category is the closed set of complaint subjects offered at submission.
type Category string

const (
	CategoryElectricity Category = "Electricity"
	CategoryWater       Category = "Water"
	CategoryCollege     Category = "College"
	CategoryRoad        Category = "Road"
	CategoryHealth      Category = "Health"
	CategoryOther       Category = "Other"
)

// Categories lists the submission categories in display order.
func Categories() []Category {
	return []Category{
		CategoryElectricity,
		CategoryWater,
		CategoryCollege,
		CategoryRoad,
		CategoryHealth,
		CategoryOther,
	}
}

// ParseCategory accepts a category name case-insensitively.
func ParseCategory(value string) (Category, error) {
	key := foldKey(value)
	for _, category := range Categories() {
		if foldKey(string(category)) == key {
			return category, nil
		}
	}
	return "", fmt.Errorf("unknown complaint category %q", value)
}

func foldKey(value string) string {
	replacer := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(replacer.Replace(strings.TrimSpace(value)))
}
