package colors

import (
	"testing"

	"github.com/fatih/color"
)

func TestInit(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	on, off := true, false
	tests := []struct {
		name    string
		start   bool
		force   *bool
		enabled bool
	}{
		{"force on", true, &on, true},
		{"force off", false, &off, false},
		{"nil keeps enabled", false, nil, true},
		{"nil keeps disabled", true, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			color.NoColor = tt.start
			Init(tt.force)
			if Enabled() != tt.enabled {
				t.Errorf("Enabled() = %v, want %v", Enabled(), tt.enabled)
			}
		})
	}
}

func TestPaletteDisabled(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()
	color.NoColor = true

	for name, c := range map[string]*color.Color{
		"faint":   Faint(),
		"command": Command(),
		"prompt":  Prompt(),
	} {
		if got := c.Sprint("x"); got != "x" {
			t.Errorf("%s: Sprint() = %q with colors disabled", name, got)
		}
	}
}
