package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/core-tools/hsu-stack/pkg/orchestrator"
)

var (
	phaseStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
)

// consoleReporter renders orchestrator progress for a terminal.
type consoleReporter struct {
	out io.Writer
}

var _ orchestrator.Reporter = (*consoleReporter)(nil)

func newConsoleReporter(out io.Writer) *consoleReporter {
	return &consoleReporter{out: out}
}

func (c *consoleReporter) Phase(title string) {
	fmt.Fprintln(c.out, phaseStyle.Render("==> "+title))
}

func (c *consoleReporter) Waiting(name string, wait time.Duration) {
	fmt.Fprintln(c.out, dimStyle.Render(fmt.Sprintf("    waiting %v for %s", wait, name)))
}

func (c *consoleReporter) Result(result orchestrator.Result) {
	fmt.Fprintln(c.out, formatResult(result))
}

func (c *consoleReporter) Warning(message string) {
	fmt.Fprintln(c.out, warningStyle.Render("  ! "+message))
}

func (c *consoleReporter) Section(section orchestrator.Section) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, titleStyle.Render(section.Title))
	fmt.Fprintln(c.out, strings.TrimRight(section.Text, "\n"))
}

func (c *consoleReporter) Notice(message string) {
	fmt.Fprintln(c.out, phaseStyle.Render(message))
}

func (c *consoleReporter) Summary(report *orchestrator.Report) {
	style := successStyle
	if report.PartialSuccess() {
		style = warningStyle
	}
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, style.Render(report.Summary()))
	for _, result := range report.Results {
		if result.Err != nil {
			fmt.Fprintln(c.out, failureStyle.Render(fmt.Sprintf("  %s: %v", result.Name, result.Err)))
		}
	}
}

func formatResult(result orchestrator.Result) string {
	name := result.Name
	if result.Tier != "" {
		name = fmt.Sprintf("%s [%s]", result.Name, result.Tier)
	}

	switch result.Status {
	case orchestrator.StatusLaunched:
		detail := "completed"
		if !result.Handle.IsForeground() {
			detail = result.Handle.String()
		}
		return successStyle.Render(fmt.Sprintf("  + %s launched, %s", name, detail))
	case orchestrator.StatusStopped:
		return successStyle.Render(fmt.Sprintf("  - %s stopped (%s)", name, result.Outcome))
	case orchestrator.StatusSucceeded:
		line := fmt.Sprintf("  + %s", name)
		if result.Detail != "" {
			line += ", " + result.Detail
		}
		return successStyle.Render(line)
	case orchestrator.StatusSkipped:
		return dimStyle.Render(fmt.Sprintf("  = %s skipped, %s", name, result.Detail))
	default:
		return failureStyle.Render(fmt.Sprintf("  x %s failed: %v", name, result.Err))
	}
}
