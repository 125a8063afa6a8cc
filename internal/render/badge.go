package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/dcms-nepal/dcms/internal/lifecycle"
)

// BadgeOpt configures optional rendering behavior for StatusBadge.
type BadgeOpt func(*badgeOptions)

type badgeOptions struct {
	showIcon bool
	bold     bool
}

type badgeVariant struct {
	icon  string
	color lipgloss.TerminalColor
}

var statusBadgeVariants = map[domain.Status]badgeVariant{
	domain.StatusPending:    {icon: IconPending, color: AmberColor},
	domain.StatusInProgress: {icon: IconInProgress, color: BlueColor},
	domain.StatusResolved:   {icon: IconResolved, color: GreenColor},
	domain.StatusRejected:   {icon: IconRejected, color: RedColor},
}

// WithBadgeIcon controls whether the icon is shown (default: true).
func WithBadgeIcon(show bool) BadgeOpt {
	return func(options *badgeOptions) {
		options.showIcon = show
	}
}

// WithBadgeBold controls whether the badge text is bold (default: false).
func WithBadgeBold(bold bool) BadgeOpt {
	return func(options *badgeOptions) {
		options.bold = bold
	}
}

// StatusBadge renders `[icon] LABEL` colored by status.
func StatusBadge(status domain.Status, opts ...BadgeOpt) string {
	options := badgeOptions{showIcon: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	label := strings.ToUpper(strings.TrimSpace(string(status)))
	variant, ok := statusBadgeVariants[status]
	if !ok {
		variant = badgeVariant{icon: IconUnknown, color: GrayColor}
		if label == "" {
			label = "UNKNOWN"
		}
	}

	content := label
	if options.showIcon {
		content = variant.icon + " " + label
	}
	return lipgloss.NewStyle().
		Foreground(variant.color).
		Bold(options.bold).
		Render(content)
}

const progressWidth = 12

// ProgressBar renders the lifecycle progress of status as a bar and percentage.
func ProgressBar(status domain.Status) string {
	percent := lifecycle.Progress(status)
	filled := percent * progressWidth / 100
	color := BlueColor
	switch status {
	case domain.StatusResolved:
		color = GreenColor
	case domain.StatusRejected:
		color = RedColor
	}
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		MutedStyle.Render(strings.Repeat("░", progressWidth-filled))
	return fmt.Sprintf("%s %3d%%", bar, percent)
}
