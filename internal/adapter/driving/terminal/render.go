// Package terminal renders the build badge for a terminal using ANSI colors.
package terminal

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ericfisherdev/buildstatus/internal/adapter/driving/web/viewmodel"
)

var (
	successColor = color.New(color.FgGreen)
	pendingColor = color.New(color.FgYellow)
	failureColor = color.New(color.FgRed)
	neutralColor = color.New(color.FgWhite)
	dimColor     = color.New(color.Faint)
	boldColor    = color.New(color.Bold)
)

func stateColor(state string) *color.Color {
	switch state {
	case "success":
		return successColor
	case "pending":
		return pendingColor
	case "failure", "error":
		return failureColor
	default:
		return neutralColor
	}
}

// Render writes vm to w. Collapsed badges write nothing; loading and
// placeholder badges write a single header line.
func Render(w io.Writer, vm viewmodel.BadgeViewModel) error {
	var b strings.Builder

	header := fmt.Sprintf("%s@%s", vm.RepoFullName, vm.Branch)
	switch vm.Kind {
	case viewmodel.BadgeCollapsed:
		return nil
	case viewmodel.BadgeLoading:
		fmt.Fprintf(&b, "%s %s\n", pendingColor.Sprint(viewmodel.IconPending), dimColor.Sprintf("%s loading build status", header))
	case viewmodel.BadgePlaceholder:
		fmt.Fprintf(&b, "%s %s\n", neutralColor.Sprint(viewmodel.IconNeutral), dimColor.Sprint(header))
	default:
		writeStatus(&b, header, vm)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write badge: %w", err)
	}
	return nil
}

func writeStatus(b *strings.Builder, header string, vm viewmodel.BadgeViewModel) {
	c := stateColor(vm.State)
	fmt.Fprintf(b, "%s %s  %s", c.Sprint(vm.Icon), boldColor.Sprint(vm.Text), dimColor.Sprint(vm.Subtext))
	if vm.Paused {
		fmt.Fprintf(b, "  %s", dimColor.Sprint("(paused)"))
	}
	fmt.Fprintf(b, "\n  %s %s\n", header, dimColor.Sprint(vm.ShortSHA))

	for _, cr := range vm.CheckRuns {
		line := fmt.Sprintf("  %s %s", stateColor(cr.State).Sprint(cr.Icon), cr.Name)
		if cr.Timing != "" {
			line += "  " + dimColor.Sprint(cr.Timing)
		}
		b.WriteString(line + "\n")
	}
	if vm.MoreCheckRuns > 0 {
		fmt.Fprintf(b, "  %s\n", dimColor.Sprintf("+%d more", vm.MoreCheckRuns))
	}

	for _, cs := range vm.Statuses {
		line := fmt.Sprintf("  %s %s", stateColor(cs.State).Sprint(cs.Icon), cs.Context)
		if cs.Description != "" {
			line += " " + dimColor.Sprint(cs.Description)
		}
		line += "  " + dimColor.Sprint(cs.TimeAgo)
		b.WriteString(line + "\n")
	}
	if vm.MoreStatuses > 0 {
		fmt.Fprintf(b, "  %s\n", dimColor.Sprintf("+%d more", vm.MoreStatuses))
	}

	fmt.Fprintf(b, "  %s\n", dimColor.Sprint(vm.ActionsURL))
}
