package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blacktop/chisel/internal/colors"
)

var zeroRunRE = regexp.MustCompile(`\s(00\s)+|\.`)

// HexDump renders data in `hexdump -C` layout with offsets starting at base.
// Runs of zero bytes and unprintable characters are dimmed when color is on.
func HexDump(data []byte, base uint64) string {
	if len(data) == 0 {
		return ""
	}
	offset := colors.Faint().SprintFunc()

	var sb strings.Builder
	sb.Grow((1 + (len(data)-1)/16) * 79)
	for i := 0; i < len(data); i += 16 {
		line := data[i:min(i+16, len(data))]

		var hexCol strings.Builder
		for j := range 16 {
			if j < len(line) {
				fmt.Fprintf(&hexCol, "%02x ", line[j])
			} else {
				hexCol.WriteString("   ")
			}
			if j == 7 {
				hexCol.WriteByte(' ')
			}
		}
		ascii := make([]byte, len(line))
		for j, b := range line {
			ascii[j] = printable(b)
		}
		row := fmt.Sprintf("%s |%s|", hexCol.String(), ascii)
		if colors.Enabled() {
			row = zeroRunRE.ReplaceAllStringFunc(row, func(s string) string {
				return colors.Faint().Sprint(s)
			})
		}
		sb.WriteString(offset(fmt.Sprintf("%08x", base+uint64(i))))
		sb.WriteString("  ")
		sb.WriteString(row)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func printable(b byte) byte {
	if b < 32 || b > 126 {
		return '.'
	}
	return b
}
