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
	"strings"

	"github.com/spf13/cobra"

	"github.com/blacktop/chisel/pkg/objc"
)

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringP("sel", "s", "", "Selector to pair with a method signature")
}

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <ENCODING>...",
	Short: "Decode Objective-C type encodings",
	Example: `  # Decode a type encoding
  ❯ chisel decode '{CGRect={CGPoint=dd}{CGSize=dd}}'
  # Decode a method signature
  ❯ chisel decode --sel 'setFrame:' 'v48@0:8{CGRect={CGPoint=dd}{CGSize=dd}}16'`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, _ := cmd.Flags().GetString("sel")

		for _, enc := range args {
			enc = strings.TrimSpace(enc)
			if sel != "" {
				fmt.Println(objc.MethodFromSignature(sel, enc).PrettyPrint())
				continue
			}
			fmt.Printf("%s\t%s\n", colorName(enc), objc.DecodeType(enc))
		}
		return nil
	},
}
