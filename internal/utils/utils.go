package utils

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/atotto/clipboard"
)

var normalPadding = cli.Default.Padding

// Indent indents apex log line to supplied level
func Indent(f func(s string), level int) func(string) {
	return func(s string) {
		cli.Default.Padding = normalPadding * level
		f(s)
		cli.Default.Padding = normalPadding
	}
}

// Pad creates left padding for printf members
func Pad(length int) string {
	if length > 0 {
		return strings.Repeat(" ", length)
	}
	return " "
}

// StrSliceHas returns true if string slice has an exact given string
func StrSliceHas(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// CopyToClipboard puts text on the host clipboard.
func CopyToClipboard(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard is not supported on this host")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %v", err)
	}
	return nil
}

// Open opens path on the host with command (e.g. `open` on macOS).
func Open(command, path string) error {
	if command == "" {
		command = "open"
	}
	log.WithFields(log.Fields{
		"command": command,
		"path":    path,
	}).Debug("Opening")
	if out, err := exec.Command(command, path).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to open %s: %v: %s", path, err, strings.TrimSpace(string(out)))
	}
	return nil
}
