package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		wantErr string
		check   func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, c *Config) {
				if c.Engine.Kind != EngineLLDB || c.Engine.Timeout != 30*time.Second {
					t.Errorf("engine = %+v", c.Engine)
				}
				if !c.Walk.GuardCycles || c.Walk.MaxDepth != 0 {
					t.Errorf("walk = %+v", c.Walk)
				}
				if c.Paths.CopyDir != DefaultCopyDir || c.Paths.ImageDir != DefaultImageDir {
					t.Errorf("paths = %+v", c.Paths)
				}
			},
		},
		{
			name: "overrides",
			set: map[string]any{
				"engine.timeout":    "5s",
				"walk.guard-cycles": false,
				"walk.max-depth":    12,
				"paths.copy-dir":    "/var/tmp/copies",
			},
			check: func(t *testing.T, c *Config) {
				if c.Engine.Timeout != 5*time.Second {
					t.Errorf("timeout = %v", c.Engine.Timeout)
				}
				opts := c.WalkOptions()
				if opts.GuardCycles || opts.MaxDepth != 12 {
					t.Errorf("WalkOptions() = %+v", opts)
				}
				if c.Paths.CopyDir != "/var/tmp/copies" {
					t.Errorf("copy-dir = %q", c.Paths.CopyDir)
				}
			},
		},
		{
			name:    "gdb-remote without address",
			set:     map[string]any{"engine.kind": EngineGDBRemote},
			wantErr: "engine.connect",
		},
		{
			name:    "unknown engine",
			set:     map[string]any{"engine.kind": "windbg"},
			wantErr: "unknown engine kind",
		},
		{
			name:    "negative depth",
			set:     map[string]any{"walk.max-depth": -1},
			wantErr: "max-depth",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			SetDefaults()
			for k, v := range tt.set {
				viper.Set(k, v)
			}
			c, err := LoadConfig()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("LoadConfig() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			tt.check(t, c)
		})
	}
	viper.Reset()
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Engine.Kind != EngineLLDB || c.OpenCommand != "open" || !c.Walk.GuardCycles {
		t.Errorf("Default() = %+v", c)
	}
}
