// Package dryrun provides dry-run mode for previewing outbound actions.
package dryrun

import (
	"context"
	"fmt"
	"io"
)

type contextKey string

const dryRunKey contextKey = "dry_run_enabled"

// WithDryRun returns a context with dry-run mode enabled/disabled.
func WithDryRun(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, dryRunKey, enabled)
}

// IsEnabled returns true if dry-run mode is enabled.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(dryRunKey).(bool); ok {
		return v
	}
	return false
}

// Preview describes an outbound action that was skipped in dry-run mode.
type Preview struct {
	Action   string
	Target   string
	Details  []Detail
	Warnings []string
}

// Detail is one labeled line in a preview.
type Detail struct {
	Label string
	Value string
}

// Write outputs the preview to the writer.
func (p *Preview) Write(w io.Writer) {
	_, _ = fmt.Fprintf(w, "[dry-run] would %s %s\n", p.Action, p.Target)

	for _, d := range p.Details {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", d.Label, d.Value)
	}
	for _, warning := range p.Warnings {
		_, _ = fmt.Fprintf(w, "  ! %s\n", warning)
	}

	_, _ = fmt.Fprintln(w, "no changes made")
}
