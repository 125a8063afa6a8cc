package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/dcms-nepal/dcms/internal/faults"
	"github.com/dcms-nepal/dcms/internal/lifecycle"
	"github.com/dcms-nepal/dcms/internal/location"
)

// Login exchanges a username or email and password for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (Tokens, error) {
	const op = "login"
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Tokens{}, faults.New(faults.KindValidationFailed, op, "username and password are required")
	}

	var tokens Tokens
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, op, http.MethodPost, "auth/login/", body, &tokens); err != nil {
		return Tokens{}, err
	}
	if strings.TrimSpace(tokens.Access) == "" {
		return Tokens{}, faults.New(faults.KindRemoteFailure, op, "login response missing access token")
	}
	return tokens, nil
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refresh string) (string, error) {
	const op = "refresh"
	if strings.TrimSpace(refresh) == "" {
		return "", faults.New(faults.KindUnauthorized, op, "no refresh token")
	}

	var tokens Tokens
	if err := c.do(ctx, op, http.MethodPost, "auth/refresh/", map[string]string{"refresh": refresh}, &tokens); err != nil {
		return "", err
	}
	if strings.TrimSpace(tokens.Access) == "" {
		return "", faults.New(faults.KindRemoteFailure, op, "refresh response missing access token")
	}
	return tokens.Access, nil
}

// Register creates an end-user account.
func (c *Client) Register(ctx context.Context, registration Registration) error {
	const op = "register"
	registration.Email = strings.TrimSpace(registration.Email)
	registration.FullName = strings.TrimSpace(registration.FullName)
	registration.Phone = strings.TrimSpace(registration.Phone)
	if registration.Email == "" || registration.Password == "" {
		return faults.New(faults.KindValidationFailed, op, "email and password are required")
	}
	if registration.ConfirmPassword != "" && registration.ConfirmPassword != registration.Password {
		return faults.New(faults.KindValidationFailed, op, "password: Passwords do not match")
	}
	return c.do(ctx, op, http.MethodPost, "auth/register/", registration, nil)
}

// RequestPasswordReset asks the backend to send a one-time code.
func (c *Client) RequestPasswordReset(ctx context.Context, channel Channel, identifier string) error {
	const op = "forgot password"
	path, key, err := resetRoute(op, channel, "forgot-password")
	if err != nil {
		return err
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return faults.Newf(faults.KindValidationFailed, op, "%s is required", key)
	}
	return c.do(ctx, op, http.MethodPost, path, map[string]string{key: identifier}, nil)
}

// VerifyResetCode checks a one-time code and returns the reset token.
func (c *Client) VerifyResetCode(ctx context.Context, channel Channel, identifier, code string) (string, error) {
	const op = "verify reset code"
	path, key, err := resetRoute(op, channel, "verify-otp")
	if err != nil {
		return "", err
	}
	identifier = strings.TrimSpace(identifier)
	code = strings.TrimSpace(code)
	if identifier == "" || code == "" {
		return "", faults.Newf(faults.KindValidationFailed, op, "%s and code are required", key)
	}

	var out struct {
		ResetToken string `json:"reset_token"`
	}
	if err := c.do(ctx, op, http.MethodPost, path, map[string]string{key: identifier, "otp": code}, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ResetToken) == "" {
		return "", faults.New(faults.KindRemoteFailure, op, "verify response missing reset token")
	}
	return out.ResetToken, nil
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, channel Channel, identifier, resetToken, newPassword string) error {
	const op = "reset password"
	path, key, err := resetRoute(op, channel, "reset-password")
	if err != nil {
		return err
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || strings.TrimSpace(resetToken) == "" || newPassword == "" {
		return faults.Newf(faults.KindValidationFailed, op, "%s, reset token, and new password are required", key)
	}
	body := map[string]string{
		key:            identifier,
		"reset_token":  resetToken,
		"new_password": newPassword,
	}
	return c.do(ctx, op, http.MethodPost, path, body, nil)
}

func resetRoute(op string, channel Channel, action string) (string, string, error) {
	switch channel {
	case ChannelEmail:
		return "auth/" + action + "/", "email", nil
	case ChannelPhone:
		return "auth/" + action + "-phone/", "phone", nil
	default:
		return "", "", faults.Newf(faults.KindValidationFailed, op, "unknown reset channel %q", channel)
	}
}

// Me returns the authenticated actor. The role in the result is authoritative.
func (c *Client) Me(ctx context.Context) (domain.Actor, error) {
	var profile profileWire
	if err := c.do(ctx, "profile", http.MethodGet, "me/", nil, &profile); err != nil {
		return domain.Actor{}, err
	}
	return profile.toDomain(), nil
}

// Locations fetches the location hierarchy.
func (c *Client) Locations(ctx context.Context) (*location.Catalog, error) {
	var payload location.Payload
	if err := c.do(ctx, "locations", http.MethodGet, "locations/", nil, &payload); err != nil {
		return nil, err
	}
	return location.FromPayload(payload), nil
}

// ListComplaints returns the complaints visible to the current credential.
// The whole list is rejected if any record is malformed.
func (c *Client) ListComplaints(ctx context.Context) ([]domain.Complaint, error) {
	const op = "list complaints"
	var records []complaintWire
	if err := c.do(ctx, op, http.MethodGet, "complaints/", nil, &records); err != nil {
		return nil, err
	}

	out := make([]domain.Complaint, 0, len(records))
	for _, record := range records {
		complaint, err := record.toDomain()
		if err != nil {
			return nil, faults.Wrap(faults.KindRemoteFailure, op, err, "")
		}
		out = append(out, complaint)
	}
	return out, nil
}

// GetComplaint returns one complaint by id.
func (c *Client) GetComplaint(ctx context.Context, id int) (domain.Complaint, error) {
	const op = "get complaint"
	if id <= 0 {
		return domain.Complaint{}, faults.Newf(faults.KindValidationFailed, op, "invalid complaint id %d", id)
	}
	var record complaintWire
	if err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("complaints/%d/", id), nil, &record); err != nil {
		return domain.Complaint{}, err
	}
	return c.convert(op, record)
}

// CreateComplaint submits a validated draft and returns the stored complaint.
func (c *Client) CreateComplaint(ctx context.Context, draft domain.Draft) (domain.Complaint, error) {
	const op = "create complaint"
	var record complaintWire
	if err := c.do(ctx, op, http.MethodPost, "complaints/", draftToWire(draft), &record); err != nil {
		return domain.Complaint{}, err
	}
	return c.convert(op, record)
}

// UpdateStatus sends a status change intent and returns the updated complaint.
func (c *Client) UpdateStatus(ctx context.Context, intent lifecycle.Intent) (domain.Complaint, error) {
	const op = "update complaint status"
	if intent.ComplaintID <= 0 {
		return domain.Complaint{}, faults.Newf(faults.KindValidationFailed, op, "invalid complaint id %d", intent.ComplaintID)
	}
	body := statusPatchWire{Status: string(intent.Status), Remarks: intent.Remarks}
	var record complaintWire
	if err := c.do(ctx, op, http.MethodPatch, fmt.Sprintf("complaints/%d/", intent.ComplaintID), body, &record); err != nil {
		return domain.Complaint{}, err
	}
	return c.convert(op, record)
}

func (c *Client) convert(op string, record complaintWire) (domain.Complaint, error) {
	complaint, err := record.toDomain()
	if err != nil {
		return domain.Complaint{}, faults.Wrap(faults.KindRemoteFailure, op, err, "")
	}
	return complaint, nil
}
