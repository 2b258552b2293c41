package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#E8A317") // Dashboard amber
	accentColor  = lipgloss.Color("#FF5F5F") // Warning red
	mutedColor   = lipgloss.Color("#888888") // Gray
	textColor    = lipgloss.Color("#FFFFFF") // White
)

// Styles
var (
	// Title style - bold amber with car emoji
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// Error message style
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	// Warning style for fallback and held readings
	WarnStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	// Key-value pair styles
	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)
)

// PrintVersion prints version information
func PrintVersion(name, version string) {
	fmt.Println(TitleStyle.Render(name + " 🚗"))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintField prints one "Key: value" line to stderr
func PrintField(key, value string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", KeyStyle.Render(key+":"), ValueStyle.Render(value))
}
