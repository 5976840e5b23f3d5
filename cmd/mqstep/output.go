package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"

	"github.com/glimte/mqstep/config"
	"github.com/glimte/mqstep/health"
	"github.com/glimte/mqstep/template"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	gray   = color.New(color.FgHiBlack)
	bold   = color.New(color.Bold)

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	// color already honours NO_COLOR and TTY detection
	noColor = color.NoColor
)

func successf(format string, a ...any) {
	_, _ = fmt.Fprintf(stderr, green.Sprint("✓")+" "+format+"\n", a...)
}

func warningf(format string, a ...any) {
	_, _ = fmt.Fprintf(stderr, yellow.Sprint("⚠")+" "+format+"\n", a...)
}

func errorf(format string, a ...any) {
	_, _ = fmt.Fprintf(stderr, red.Sprint("✗")+" "+format+"\n", a...)
}

func keyValue(key, value string) {
	_, _ = fmt.Fprintf(stdout, "  %s: %s\n", gray.Sprint(key), value)
}

// printFormatError lists every malformed template line
func printFormatError(err error) {
	var formatErr *template.DataFormatError
	if !errors.As(err, &formatErr) {
		return
	}
	for _, line := range formatErr.Lines {
		warningf("line %d: %s (%v)", line.Number, line.Text, line.Reason)
	}
}

func printProfiles(profiles []config.Profile) {
	if len(profiles) == 0 {
		fmt.Fprintln(stdout, "No broker profiles configured")
		return
	}

	fmt.Fprintf(stdout, "%-20s %-30s %-6s %-15s %-6s\n", "Name", "Host", "Port", "Username", "TLS")
	for _, p := range profiles {
		fmt.Fprintf(stdout, "%-20s %-30s %-6d %-15s %-6t\n",
			truncate(p.Name, 20),
			truncate(p.Host, 30),
			p.Port,
			truncate(p.Username, 15),
			p.Secure,
		)
	}
}

func printCheckResult(result health.CheckResult) {
	var status string
	switch result.Status {
	case health.StatusHealthy:
		status = green.Sprint(result.Status)
	case health.StatusDegraded:
		status = yellow.Sprint(result.Status)
	default:
		status = red.Sprint(result.Status)
	}

	fmt.Fprintf(stdout, "%s\n", bold.Sprint(result.Name))
	keyValue("Status", status)
	keyValue("Message", result.Message)
	if result.Error != "" {
		keyValue("Error", result.Error)
	}
	keyValue("Duration", result.Duration.String())
	if ms, ok := result.Details["response_time_ms"].(int64); ok {
		keyValue("Response time", strconv.FormatInt(ms, 10)+"ms")
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
