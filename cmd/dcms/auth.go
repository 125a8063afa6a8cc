package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dcms-nepal/dcms/internal/api"
	"github.com/dcms-nepal/dcms/internal/faults"
	"github.com/dcms-nepal/dcms/internal/render"
	"github.com/spf13/cobra"
)

// appFunc returns the app built by the root PersistentPreRunE.
type appFunc func() *app

func (f appFunc) get() (*app, error) {
	if f == nil {
		return nil, errors.New("command is not wired to an app")
	}
	built := f()
	if built == nil {
		return nil, errors.New("command is not wired to an app")
	}
	return built, nil
}

func newLoginCommand(current appFunc) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			actor, err := a.session.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Profile(actor))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(current appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			if err := a.session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.MutedStyle.Render("Logged out."))
			return nil
		},
	}
}

func newWhoamiCommand(current appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account and role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			actor, err := a.session.Restore(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Profile(actor))
			return nil
		},
	}
}

func newRegisterCommand(current appFunc) *cobra.Command {
	var registration api.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a citizen account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			if err := a.client.Register(cmd.Context(), registration); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.InfoStyle.Render("Account created. Log in with dcms login."))
			return nil
		},
	}
	cmd.Flags().StringVar(&registration.Email, "email", "", "account email")
	cmd.Flags().StringVar(&registration.Password, "password", "", "account password")
	cmd.Flags().StringVar(&registration.ConfirmPassword, "confirm-password", "", "repeat the password")
	cmd.Flags().StringVar(&registration.FullName, "full-name", "", "display name")
	cmd.Flags().StringVar(&registration.Phone, "phone", "", "phone number")
	return cmd
}

func newPasswordCommand(current appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Recover a forgotten password",
	}

	var forgot resetTarget
	forgotCmd := &cobra.Command{
		Use:   "forgot",
		Short: "Send a one-time reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			channel, identifier, err := forgot.resolve("forgot password")
			if err != nil {
				return err
			}
			if err := a.client.RequestPasswordReset(cmd.Context(), channel, identifier); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset code sent to %s.\n", identifier)
			return nil
		},
	}
	forgot.bind(forgotCmd)

	var verify resetTarget
	var code string
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Exchange a reset code for a reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			channel, identifier, err := verify.resolve("verify reset code")
			if err != nil {
				return err
			}
			token, err := a.client.VerifyResetCode(cmd.Context(), channel, identifier, code)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	verify.bind(verifyCmd)
	verifyCmd.Flags().StringVar(&code, "code", "", "one-time code")

	var reset resetTarget
	var token, newPassword string
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password with a reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := current.get()
			if err != nil {
				return err
			}
			channel, identifier, err := reset.resolve("reset password")
			if err != nil {
				return err
			}
			if err := a.client.ResetPassword(cmd.Context(), channel, identifier, token, newPassword); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.InfoStyle.Render("Password updated."))
			return nil
		},
	}
	reset.bind(resetCmd)
	resetCmd.Flags().StringVar(&token, "reset-token", "", "token from password verify")
	resetCmd.Flags().StringVar(&newPassword, "new-password", "", "new account password")

	cmd.AddCommand(forgotCmd, verifyCmd, resetCmd)
	return cmd
}

// resetTarget is the --email/--phone pair shared by the password commands.
type resetTarget struct {
	email string
	phone string
}

func (r *resetTarget) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.email, "email", "", "account email")
	cmd.Flags().StringVar(&r.phone, "phone", "", "account phone number")
	cmd.MarkFlagsMutuallyExclusive("email", "phone")
}

func (r *resetTarget) resolve(op string) (api.Channel, string, error) {
	email := strings.TrimSpace(r.email)
	phone := strings.TrimSpace(r.phone)
	switch {
	case email != "":
		return api.ChannelEmail, email, nil
	case phone != "":
		return api.ChannelPhone, phone, nil
	default:
		return "", "", faults.New(faults.KindValidationFailed, op, "either --email or --phone is required")
	}
}
