// Package objc decodes Objective-C type encodings and builds the runtime
// expressions chisel evaluates inside the target.
package objc

import (
	"strings"
)

// EncodingTable maps the single character type encodings to C type names.
var EncodingTable = map[byte]string{
	'c': "char",
	'i': "int",
	's': "short",
	'l': "long",
	'q': "long long",
	'C': "unsigned char",
	'I': "unsigned int",
	'S': "unsigned short",
	'L': "unsigned long",
	'Q': "unsigned long long",
	'f': "float",
	'd': "double",
	'B': "bool",
	'v': "void",
	'*': "char *",
	'@': "id",
	'#': "Class",
	':': "SEL",
	'?': "unknown",
}

// method type qualifiers (const, in, inout, out, bycopy, byref, oneway, atomic)
const qualifiers = "rnNoORVA"

// DecodeType turns a type encoding into a readable C type. Strings that are
// not a single complete encoding are returned unchanged, which makes decoding
// idempotent on already decoded names.
func DecodeType(enc string) string {
	dec, rest, ok := decode(enc)
	if !ok || rest != "" {
		return enc
	}
	return dec
}

// SplitEncodings tokenises a method or block signature such as "v24@0:8@16"
// into its individual encodings, dropping the frame offsets.
func SplitEncodings(sig string) []string {
	var out []string
	s := sig
	for {
		s = skipOffset(s)
		if s == "" {
			return out
		}
		_, rest, _ := decode(s)
		if len(rest) == len(s) {
			rest = s[1:]
		}
		out = append(out, s[:len(s)-len(rest)])
		s = rest
	}
}

func skipOffset(s string) string {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 1 && s[0] == '-' {
		return s
	}
	return s[i:]
}

func pointerTo(t string) string {
	if strings.HasSuffix(t, "*") {
		return t + "*"
	}
	return t + " *"
}

// decode consumes one encoding from the front of s.
func decode(s string) (string, string, bool) {
	s = strings.TrimLeft(s, qualifiers)
	if s == "" {
		return "", "", false
	}
	switch c := s[0]; c {
	case '^':
		inner, rest, ok := decode(s[1:])
		if !ok {
			return "", s, false
		}
		return pointerTo(inner), rest, true
	case '@':
		switch {
		case strings.HasPrefix(s, `@"`):
			end := strings.IndexByte(s[2:], '"')
			if end < 0 {
				return "", s, false
			}
			name := s[2 : 2+end]
			rest := s[3+end:]
			if strings.HasPrefix(name, "<") {
				// id<Protocol>
				return "id" + name, rest, true
			}
			return name + " *", rest, true
		case strings.HasPrefix(s, "@?"):
			rest := s[2:]
			if strings.HasPrefix(rest, "<") {
				if end := matchClose(rest); end > 0 {
					rest = rest[end+1:]
				}
			}
			return "id /* block */", rest, true
		}
		return "id", s[1:], true
	case '{', '(':
		end := matchClose(s)
		if end < 0 {
			return "", s, false
		}
		name := s[1:end]
		if i := strings.IndexByte(name, '='); i >= 0 {
			name = name[:i]
		}
		kind := "struct"
		if c == '(' {
			kind = "union"
		}
		if name == "" || name == "?" {
			return kind, s[end+1:], true
		}
		return kind + " " + name, s[end+1:], true
	case '[':
		i := 1
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 1 {
			return "", s, false
		}
		elem, rest, ok := decode(s[i:])
		if !ok || !strings.HasPrefix(rest, "]") {
			return "", s, false
		}
		return elem + "[" + s[1:i] + "]", rest[1:], true
	case 'b':
		i := 1
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 1 {
			return "", s, false
		}
		return "unsigned int : " + s[1:i], s[i:], true
	default:
		if t, ok := EncodingTable[c]; ok {
			return t, s[1:], true
		}
		return "", s, false
	}
}

// matchClose returns the index of the bracket closing s[0].
func matchClose(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			j := strings.IndexByte(s[i+1:], '"')
			if j < 0 {
				return -1
			}
			i += j + 1
		case '{', '(', '[', '<':
			depth++
		case '}', ')', ']', '>':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
