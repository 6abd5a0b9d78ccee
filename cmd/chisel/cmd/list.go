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
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blacktop/chisel/internal/colors"
	"github.com/blacktop/chisel/internal/utils"
	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/commands"
)

var colorName = colors.Command().SprintFunc()

type argumentInfo struct {
	Name    string `yaml:"name"`
	Flag    string `yaml:"flag,omitempty"`
	Type    string `yaml:"type,omitempty"`
	Help    string `yaml:"help,omitempty"`
	Default any    `yaml:"default,omitempty"`
}

type commandInfo struct {
	Name        string         `yaml:"name"`
	Summary     string         `yaml:"summary"`
	Syntax      string         `yaml:"syntax"`
	Arguments   []argumentInfo `yaml:"arguments,omitempty"`
	Options     []argumentInfo `yaml:"options,omitempty"`
	Description string         `yaml:"description,omitempty"`
}

func newCommandInfo(c chisel.Command) commandInfo {
	info := commandInfo{
		Name:        c.Name(),
		Summary:     chisel.Summary(c),
		Syntax:      chisel.Syntax(c),
		Description: c.Description(),
	}
	for _, a := range c.Args() {
		info.Arguments = append(info.Arguments, argumentInfo{Name: a.Arg, Type: a.Type, Help: a.Help, Default: a.Default})
	}
	for _, o := range c.Options() {
		flag := "--" + o.Long
		if o.Short != "" {
			flag = "-" + o.Short + ", " + flag
		}
		info.Options = append(info.Options, argumentInfo{Name: o.Arg, Flag: flag, Type: o.Type, Help: o.Help, Default: o.Default})
	}
	return info
}

func printCommandList(w io.Writer, reg *chisel.Registry) {
	cmds := reg.Commands()
	width := 0
	for _, c := range cmds {
		width = max(width, len(c.Name()))
	}
	for _, c := range cmds {
		fmt.Fprintf(w, "%s%s%s\n", colorName(c.Name()), utils.Pad(width-len(c.Name())+2), chisel.Summary(c))
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Bool("yaml", false, "Output as YAML")
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:     "list [COMMAND]",
	Aliases: []string{"ls", "help-cmd"},
	Short:   "List chisel commands or show help for one",
	Example: `  # List every command
  ❯ chisel list
  # Show help for pviews
  ❯ chisel list pviews`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		asYAML, _ := cmd.Flags().GetBool("yaml")

		reg, err := commands.NewRegistry()
		if err != nil {
			return err
		}

		if len(args) > 0 {
			c, ok := reg.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown command %q", args[0])
			}
			if asYAML {
				return yaml.NewEncoder(os.Stdout).Encode(newCommandInfo(c))
			}
			fmt.Println(chisel.Help(c))
			return nil
		}

		if asYAML {
			var infos []commandInfo
			for _, c := range reg.Commands() {
				infos = append(infos, newCommandInfo(c))
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			return enc.Encode(infos)
		}
		printCommandList(os.Stdout, reg)
		return nil
	},
}
