package commands

import (
	"context"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/spf13/cast"

	"github.com/blacktop/chisel/pkg/chisel"
)

const defaultDelayedCommand = "process interrupt"

func delayCommands() []chisel.Command {
	return []chisel.Command{
		chisel.NewRaw(chisel.Spec{
			Name:        "zzz",
			Description: "Executes specified lldb command after delay.",
			Args: []chisel.Argument{
				{Arg: "delay in seconds", Type: "float", Help: "time to wait before executing specified command"},
				{Arg: "lldb command", Type: "string", Help: "another lldb command to execute after specified delay", Default: defaultDelayedCommand},
			},
		}, runDelay),
	}
}

func runDelay(ctx context.Context, s *chisel.Session, tokens []string) error {
	if len(tokens) == 0 {
		s.Println("Please provide a delay in seconds")
		return nil
	}
	secs, err := cast.ToFloat64E(tokens[0])
	if err != nil {
		s.Printf("Invalid delay %q\n", tokens[0])
		return nil
	}
	command := strings.TrimSpace(strings.Join(tokens[1:], " "))
	if command == "" {
		command = defaultDelayedCommand
	}

	if err := s.Engine.Continue(ctx); err != nil {
		return err
	}
	s.After(time.Duration(secs*float64(time.Second)), func() {
		// the timer outlives the command's context
		bg := context.Background()
		if err := s.Engine.Interrupt(bg); err != nil {
			log.WithError(err).Error("zzz: interrupt failed")
			return
		}
		if command == defaultDelayedCommand {
			return
		}
		log.WithField("command", command).Debug("zzz: running delayed command")
		var err error
		if s.Exec != nil {
			err = s.Exec(bg, command)
		} else {
			var out string
			out, err = s.Engine.HandleCommand(bg, command)
			if out != "" {
				s.Printf("%s\n", strings.TrimRight(out, "\n"))
			}
		}
		if err != nil {
			log.WithError(err).WithField("command", command).Error("zzz: delayed command failed")
		}
	})
	return nil
}
