package utils

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// DisplayImageInTerminal writes data as an inline image (supported in iTerm2 and VSCode)
func DisplayImageInTerminal(w io.Writer, data []byte, width, height int) error {
	if _, err := fmt.Fprintf(w, "\033]1337;File=inline=1;size=%d", len(data)); err != nil {
		return fmt.Errorf("failed to write terminal image: %w", err)
	}
	if width > 0 {
		fmt.Fprintf(w, ";width=%dpx", width)
	}
	if height > 0 {
		fmt.Fprintf(w, ";height=%dpx", height)
	}
	fmt.Fprintf(w, ":%s\a\n", base64.StdEncoding.EncodeToString(data))
	return nil
}
