// Package config is used to load the configuration file
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/blacktop/chisel/pkg/hierarchy"
)

const (
	EngineLLDB      = "lldb"
	EngineGDBRemote = "gdb-remote"

	DefaultCopyDir  = "/tmp/chisel_copy"
	DefaultImageDir = "/tmp/xcode_debug_images"
)

type engineConfig struct {
	Kind     string        `mapstructure:"kind"`
	LLDBPath string        `mapstructure:"lldb-path"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Connect  string        `mapstructure:"connect"`
}

type walk struct {
	GuardCycles bool `mapstructure:"guard-cycles"`
	MaxDepth    int  `mapstructure:"max-depth"`
}

type output struct {
	Color     bool   `mapstructure:"color"`
	Highlight bool   `mapstructure:"highlight"`
	Style     string `mapstructure:"style"`
}

type paths struct {
	CopyDir  string `mapstructure:"copy-dir"`
	ImageDir string `mapstructure:"image-dir"`
}

// Config is the configuration struct
type Config struct {
	Engine      engineConfig `mapstructure:"engine"`
	Walk        walk         `mapstructure:"walk"`
	Output      output       `mapstructure:"output"`
	Paths       paths        `mapstructure:"paths"`
	OpenCommand string       `mapstructure:"open-command"`
	Clipboard   bool         `mapstructure:"clipboard"`
}

// SetDefaults registers the default values with viper.
func SetDefaults() {
	viper.SetDefault("engine.kind", EngineLLDB)
	viper.SetDefault("engine.lldb-path", "lldb")
	viper.SetDefault("engine.timeout", 30*time.Second)
	viper.SetDefault("walk.guard-cycles", true)
	viper.SetDefault("walk.max-depth", 0)
	viper.SetDefault("output.color", true)
	viper.SetDefault("output.highlight", true)
	viper.SetDefault("output.style", "nord")
	viper.SetDefault("paths.copy-dir", DefaultCopyDir)
	viper.SetDefault("paths.image-dir", DefaultImageDir)
	viper.SetDefault("open-command", "open")
	viper.SetDefault("clipboard", true)
}

// Default returns a verified configuration that only holds defaults.
func Default() *Config {
	c := &Config{
		Walk:      walk{GuardCycles: true},
		Output:    output{Color: true, Highlight: true},
		Clipboard: true,
	}
	_ = c.verify()
	return c
}

// WalkOptions returns the hierarchy walk settings.
func (c *Config) WalkOptions() hierarchy.Options {
	return hierarchy.Options{
		GuardCycles: c.Walk.GuardCycles,
		MaxDepth:    c.Walk.MaxDepth,
	}
}

func (c *Config) verify() error {
	switch c.Engine.Kind {
	case "":
		c.Engine.Kind = EngineLLDB
	case EngineLLDB, EngineGDBRemote:
	default:
		return fmt.Errorf("config: unknown engine kind %q (expected %s or %s)", c.Engine.Kind, EngineLLDB, EngineGDBRemote)
	}
	if c.Engine.Kind == EngineGDBRemote && c.Engine.Connect == "" {
		return fmt.Errorf("config: engine.connect must be set for the %s engine", EngineGDBRemote)
	}
	if c.Engine.LLDBPath == "" {
		c.Engine.LLDBPath = "lldb"
	}
	if c.Engine.Timeout < 0 {
		return fmt.Errorf("config: engine.timeout cannot be negative")
	} else if c.Engine.Timeout == 0 {
		c.Engine.Timeout = 30 * time.Second
	}
	if c.Walk.MaxDepth < 0 {
		return fmt.Errorf("config: walk.max-depth cannot be negative")
	}
	if c.Output.Style == "" {
		c.Output.Style = "nord"
	}
	if c.Paths.CopyDir == "" {
		c.Paths.CopyDir = DefaultCopyDir
	}
	if c.Paths.ImageDir == "" {
		c.Paths.ImageDir = DefaultImageDir
	}
	if c.OpenCommand == "" {
		c.OpenCommand = "open"
	}
	return nil
}

// LoadConfig loads the configuration file
func LoadConfig() (*Config, error) {
	var c *Config

	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}
	if c == nil {
		c = &Config{}
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return c, nil
}
