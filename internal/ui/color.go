// Package ui provides colored console output for the CLI.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	// Colors
	Red    = color.New(color.FgRed)
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Blue   = color.New(color.FgBlue)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
)

// Out is where status messages go. Values and rendered output are written
// by commands directly to their own writer so they stay pipeable.
var Out io.Writer = os.Stderr

// Success prints a green success message with checkmark.
func Success(format string, args ...any) {
	Green.Fprintf(Out, "✓ "+format+"\n", args...)
}

// Error prints a red error message with X.
func Error(format string, args ...any) {
	Red.Fprintf(Out, "✗ "+format+"\n", args...)
}

// Warning prints a yellow warning message.
func Warning(format string, args ...any) {
	Yellow.Fprintf(Out, "⚠ "+format+"\n", args...)
}

// Info prints a blue info message.
func Info(format string, args ...any) {
	Blue.Fprintf(Out, format+"\n", args...)
}

// Step prints a numbered step in cyan.
func Step(n int, format string, args ...any) {
	Cyan.Fprintf(Out, "[%d] ", n)
	fmt.Fprintf(Out, format+"\n", args...)
}

// Header prints a bold header.
func Header(format string, args ...any) {
	Bold.Fprintf(Out, format+"\n", args...)
}

// Deploy prints a deployment progress line.
func Deploy(format string, args ...any) {
	Cyan.Fprintf(Out, "🚀 "+format+"\n", args...)
}

// State colors a deployment state name.
func State(state string) string {
	switch state {
	case "SUCCEEDED":
		return Green.Sprint(state)
	case "FAILED", "TIMED_OUT":
		return Red.Sprint(state)
	case "RUNNING":
		return Cyan.Sprint(state)
	default:
		return Yellow.Sprint(state)
	}
}

// Fatal prints an error to stderr and exits.
func Fatal(format string, args ...any) {
	Red.Fprintf(os.Stderr, "✗ "+format+"\n", args...)
	os.Exit(1)
}
