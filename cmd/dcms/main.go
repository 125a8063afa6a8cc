package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dcms-nepal/dcms/internal/config"
	"github.com/dcms-nepal/dcms/internal/faults"
	"github.com/dcms-nepal/dcms/internal/logging"
	"github.com/dcms-nepal/dcms/internal/render"
	"github.com/dcms-nepal/dcms/internal/telemetry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runID := uuid.NewString()
	logger, err := logging.New(ctx, logging.WithRunID(runID), logging.WithLevel(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() {
		if closeErr := logger.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close logger: %v\n", closeErr)
		}
	}()

	telemetry.ServiceVersion = Version
	shutdown, err := telemetry.Init(ctx, cfg.OTelEndpoint)
	if err != nil {
		logger.Logger.Warn("tracing disabled", "err", err)
	} else {
		defer shutdown()
	}

	ctx, span := telemetry.StartCommand(ctx, resolveCommandName(args), redactArgs(args), runID)
	defer span.End()

	cmd, release := newRootCommand(cfg, logger.WithSpan(ctx).Logger)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(ctx)
	if releaseErr := release(); releaseErr != nil {
		logger.Logger.Warn("release command resources", "err", releaseErr)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	return nil
}

// newRootCommand builds the command tree. The returned release func closes
// whatever the invoked command opened and must run after Execute.
func newRootCommand(cfg *config.Config, logger *log.Logger) (*cobra.Command, func() error) {
	var state *app

	root := &cobra.Command{
		Use:           "dcms",
		Short:         "File and track public service complaints",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		if logger == nil {
			return errors.New("logger is required")
		}
		if cfg == nil {
			return errors.New("config is required")
		}
		logger.With("command", cmd.CommandPath()).Debug("command invocation")
		if cmd.Annotations[annotationStandalone] == "true" {
			return nil
		}
		built, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		state = built
		return nil
	}

	current := func() *app { return state }
	root.AddCommand(
		newLoginCommand(current),
		newLogoutCommand(current),
		newWhoamiCommand(current),
		newRegisterCommand(current),
		newPasswordCommand(current),
		newLocationsCommand(current),
		newDashboardCommand(current),
		newSubmitCommand(current),
		newTrackCommand(current),
		newAdminCommand(current),
		newMetricsCommand(current),
		newDoctorCommand(current),
		newBugreportCommand(cfg, logger),
	)

	release := func() error {
		if state == nil {
			return nil
		}
		err := state.Close()
		state = nil
		return err
	}
	return root, release
}

// printError writes the user-facing form of err. Remote failures without a
// backend message fall back to a generic line.
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, render.ErrorStyle.Render("error:")+" "+faults.UserMessage(err))
}
