// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	addressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	dataStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// SupportsColor checks if the terminal supports ANSI color codes
func SupportsColor() bool {
	// Check if stdout is a terminal
	if !term.IsTerminal(int(os.Stdout.Fd())) { // #nosec G115 - file descriptors are small integers
		return false
	}

	// Check TERM environment variable
	termEnv := os.Getenv("TERM")
	if termEnv == "" || termEnv == "dumb" {
		return false
	}

	return true
}

func render(style lipgloss.Style, s string) string {
	if !SupportsColor() {
		return s
	}
	return style.Render(s)
}

// Label renders a field label.
func Label(s string) string { return render(labelStyle, s) }

// Address renders an account address.
func Address(s string) string { return render(addressStyle, s) }

// Data renders buffer contents.
func Data(s string) string { return render(dataStyle, s) }

// ErrorText renders an error message.
func ErrorText(s string) string { return render(errorStyle, s) }
