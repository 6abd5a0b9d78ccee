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
	"io"
	"strings"

	"github.com/apex/log"
	"github.com/caarlos0/ctrlc"
	"github.com/spf13/cobra"

	"github.com/blacktop/chisel/internal/colors"
	"github.com/blacktop/chisel/internal/utils"
	"github.com/blacktop/chisel/pkg/chisel"
)

const prompt = "(chisel) "

var quitCommands = []string{"quit", "exit", "q"}

var promptColor = colors.Prompt().SprintFunc()

func init() {
	rootCmd.AddCommand(replCmd)
	addAttachFlags(replCmd)
}

// replCmd represents the repl command
var replCmd = &cobra.Command{
	Use:     "repl",
	Aliases: []string{"r", "attach"},
	Short:   "Attach to a process and run chisel commands interactively",
	Example: `  # Attach to a running simulator app by name
  ❯ chisel repl --name MobileSafari
  # Connect to a debugserver
  ❯ chisel repl --engine gdb-remote --connect localhost:1234`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindAttachFlags(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		s, reg, err := newSession(ctx, true)
		if err != nil {
			return err
		}
		defer s.Close()

		return repl(ctx, s, reg)
	},
}

func repl(ctx context.Context, s *chisel.Session, reg *chisel.Registry) error {
	for {
		fmt.Fprint(s.Out, promptColor(prompt))
		line, err := s.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(s.Out)
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case utils.StrSliceHas(quitCommands, line):
			return nil
		case line == "help":
			printCommandList(s.Out, reg)
			continue
		}
		if name, rest := chisel.SplitCommand(line); name == "help" {
			if c, ok := reg.Lookup(rest); ok {
				fmt.Fprintln(s.Out, chisel.Help(c))
				continue
			}
		}
		if err := runLine(ctx, s, reg, line); err != nil {
			log.Error(err.Error())
		}
	}
}

// runLine executes one command; Ctrl-C while it runs interrupts the inferior.
func runLine(ctx context.Context, s *chisel.Session, reg *chisel.Registry, line string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	err := ctrlc.Default.Run(ctx, func() error {
		return reg.Execute(ctx, s, line)
	})
	if errors.As(err, &ctrlc.ErrorCtrlC{}) {
		log.Warn("Interrupting process...")
		cancel()
		return s.Engine.Interrupt(context.Background())
	}
	return err
}
