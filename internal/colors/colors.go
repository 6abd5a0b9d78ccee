// Package colors provides the color palette used by command output.
//
// Colors are disabled automatically when stdout is not a terminal. Init
// overrides the detected setting from config or flags.
package colors

import "github.com/fatih/color"

// Init overrides the auto-detected color setting. A nil value keeps it.
func Init(forceColor *bool) {
	if forceColor != nil {
		color.NoColor = !*forceColor
	}
}

// Enabled returns true if colors are currently enabled.
func Enabled() bool {
	return !color.NoColor
}

// Faint dims low-signal text such as hex dump offsets.
func Faint() *color.Color { return color.New(color.Faint) }

// Command renders command names in listings.
func Command() *color.Color { return color.New(color.Bold, color.FgHiCyan) }

// Prompt renders the interactive prompt.
func Prompt() *color.Color { return color.New(color.Bold, color.FgHiBlue) }
