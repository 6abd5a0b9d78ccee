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
	"strings"

	"github.com/apex/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(execCmd)
	addAttachFlags(execCmd)
	execCmd.Flags().Bool("keep-going", false, "Keep running commands after one fails")
}

// execCmd represents the exec command
var execCmd = &cobra.Command{
	Use:   "exec <COMMAND>...",
	Short: "Attach to a process and run chisel commands non-interactively",
	Example: `  # Print the key window's view hierarchy then resume
  ❯ chisel exec --pid 1234 -- "pviews --short" "continue"`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindAttachFlags(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		keepGoing, _ := cmd.Flags().GetBool("keep-going")

		ctx := context.Background()
		s, reg, err := newSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		for _, line := range args {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			log.WithField("command", line).Debug("Executing")
			if err := runLine(ctx, s, reg, line); err != nil {
				if !keepGoing {
					return err
				}
				log.WithError(err).Error(line)
			}
		}
		return nil
	},
}
