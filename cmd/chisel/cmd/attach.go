/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/apex/log"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blacktop/chisel/internal/config"
	"github.com/blacktop/chisel/internal/utils"
	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/commands"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/engine/gdbremote"
	"github.com/blacktop/chisel/pkg/engine/lldb"
)

// target is the process a session debugs.
type target struct {
	PID  int
	Name string
	Wait bool
	File string
	Args []string
}

func (t target) empty() bool {
	return t.PID == 0 && t.Name == "" && t.File == ""
}

func addAttachFlags(cmd *cobra.Command) {
	cmd.Flags().String("engine", "", "Debugger engine (lldb or gdb-remote)")
	cmd.Flags().IntP("pid", "p", 0, "PID of process to attach to")
	cmd.Flags().StringP("name", "n", "", "Name of process to attach to")
	cmd.Flags().BoolP("wait", "w", false, "Wait for a process called --name to launch")
	cmd.Flags().StringP("file", "f", "", "Executable to launch")
	cmd.Flags().StringSlice("args", nil, "Arguments for the --file launch")
	cmd.Flags().String("connect", "", "host:port of a debugserver/gdb-remote stub")
	cmd.Flags().String("lldb", "", "Path to lldb")
	cmd.Flags().Duration("timeout", 0, "Timeout for each engine request")
}

// bindAttachFlags binds the flags of the running command only, since several
// commands share the same viper keys.
func bindAttachFlags(cmd *cobra.Command) {
	viper.BindPFlag("engine.kind", cmd.Flags().Lookup("engine"))
	viper.BindPFlag("engine.connect", cmd.Flags().Lookup("connect"))
	viper.BindPFlag("engine.lldb-path", cmd.Flags().Lookup("lldb"))
	viper.BindPFlag("engine.timeout", cmd.Flags().Lookup("timeout"))
	viper.BindPFlag("attach.pid", cmd.Flags().Lookup("pid"))
	viper.BindPFlag("attach.name", cmd.Flags().Lookup("name"))
	viper.BindPFlag("attach.wait", cmd.Flags().Lookup("wait"))
	viper.BindPFlag("attach.file", cmd.Flags().Lookup("file"))
	viper.BindPFlag("attach.args", cmd.Flags().Lookup("args"))
}

func targetFromFlags() (target, error) {
	t := target{
		PID:  viper.GetInt("attach.pid"),
		Name: viper.GetString("attach.name"),
		Wait: viper.GetBool("attach.wait"),
		File: viper.GetString("attach.file"),
		Args: viper.GetStringSlice("attach.args"),
	}
	switch {
	case t.PID != 0 && t.Name != "":
		return t, errors.New("cannot specify both --name AND --pid")
	case t.File != "" && (t.PID != 0 || t.Name != ""):
		return t, errors.New("cannot specify --file AND --name OR --pid")
	case t.Wait && t.Name == "":
		return t, errors.New("--wait requires --name")
	case len(t.Args) > 0 && t.File == "":
		return t, errors.New("--args requires --file")
	}
	return t, nil
}

// promptTarget asks how to attach when no target was given on the command line.
func promptTarget(conf *config.Config, t *target) error {
	choices := []string{
		"lldb: attach to a process by PID",
		"lldb: attach to a process by name",
		"gdb-remote: connect to a debugserver",
	}
	var selected int
	if err := survey.AskOne(&survey.Select{
		Message: "Select how to start the session:",
		Options: choices,
	}, &selected); err != nil {
		return err
	}
	var answer string
	switch selected {
	case 0:
		if err := survey.AskOne(&survey.Input{Message: "PID:"}, &answer, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
		pid, err := cast.ToIntE(answer)
		if err != nil {
			return fmt.Errorf("invalid PID %q: %v", answer, err)
		}
		t.PID = pid
	case 1:
		if err := survey.AskOne(&survey.Input{Message: "Process name:"}, &answer, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
		t.Name = answer
	case 2:
		if err := survey.AskOne(&survey.Input{Message: "host:port:", Default: "localhost:1234"}, &answer, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
		conf.Engine.Kind = config.EngineGDBRemote
		conf.Engine.Connect = answer
	}
	return nil
}

func attach(ctx context.Context, conf *config.Config, t target) (engine.Engine, error) {
	switch conf.Engine.Kind {
	case config.EngineGDBRemote:
		log.WithField("address", conf.Engine.Connect).Info("Connecting to gdb-remote stub")
		e, err := gdbremote.Dial(ctx, conf.Engine.Connect)
		if err != nil {
			return nil, err
		}
		e.Output = os.Stdout
		return e, nil
	default:
		if t.empty() && conf.Engine.Connect == "" {
			return nil, fmt.Errorf("must specify --pid, --name, --file or --connect")
		}
		log.WithFields(log.Fields{
			"pid":  t.PID,
			"name": t.Name,
			"file": t.File,
		}).Info("Starting lldb")
		e, err := lldb.Start(ctx, lldb.Config{
			Path:    conf.Engine.LLDBPath,
			PID:     t.PID,
			Name:    t.Name,
			Wait:    t.Wait,
			File:    t.File,
			Args:    t.Args,
			Connect: conf.Engine.Connect,
			Timeout: conf.Engine.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

// newSession loads the config, attaches and wires the command registry.
func newSession(ctx context.Context, interactive bool) (*chisel.Session, *chisel.Registry, error) {
	conf, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	t, err := targetFromFlags()
	if err != nil {
		return nil, nil, err
	}
	if interactive && t.empty() && conf.Engine.Connect == "" && utils.IsTerminal(os.Stdin) {
		if err := promptTarget(conf, &t); err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				log.Warn("Exiting...")
				os.Exit(0)
			}
			return nil, nil, err
		}
	}

	reg, err := commands.NewRegistry()
	if err != nil {
		return nil, nil, err
	}
	eng, err := attach(ctx, conf, t)
	if err != nil {
		return nil, nil, err
	}
	s := chisel.NewSession(eng, conf, os.Stdout)
	s.Exec = func(ctx context.Context, line string) error {
		return reg.Execute(ctx, s, line)
	}
	if info, err := eng.Target(ctx); err == nil {
		log.Info("Attached")
		utils.Indent(log.WithFields(log.Fields{
			"triple": info.Triple,
			"arch":   info.Arch,
		}).Info, 2)("Target")
	}
	return s, reg, nil
}
