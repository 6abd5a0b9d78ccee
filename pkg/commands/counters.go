package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
)

var keyArgs = []chisel.Argument{
	{Arg: "key_format_string", Type: "string", Help: "Key format; {} and {N} are replaced by the key arguments."},
	{Arg: "key_args", Type: "string", Help: "Expressions whose values fill the key format.", Default: " "},
}

func counterCommands() []chisel.Command {
	return []chisel.Command{
		chisel.NewRaw(chisel.Spec{
			Name: "incrementcounter",
			Description: heredoc.Doc(`
				Increments the counter for the key.

				Arguments starting with '(' are evaluated, everything else is
				described first and evaluated when it has no description.
				  incrementcounter log_{} message`),
			Args: keyArgs,
		}, func(ctx context.Context, s *chisel.Session, tokens []string) error {
			key, ok, err := counterKey(ctx, s, tokens)
			if err != nil || !ok {
				return err
			}
			s.IncrementCounter(key)
			return nil
		}),
		chisel.NewRaw(chisel.Spec{
			Name:        "printcounter",
			Description: "Prints the counter for the key.",
			Args:        keyArgs,
		}, func(ctx context.Context, s *chisel.Session, tokens []string) error {
			key, ok, err := counterKey(ctx, s, tokens)
			if err != nil || !ok {
				return err
			}
			n, found := s.Counter(key)
			if !found {
				s.Printf("No counter named %q\n", key)
				return nil
			}
			s.Println(n)
			return nil
		}),
		chisel.NewRaw(chisel.Spec{
			Name:        "printcounters",
			Description: "Prints all the counters sorted by the keys.",
		}, func(ctx context.Context, s *chisel.Session, _ []string) error {
			for _, c := range s.Counters() {
				s.Printf("%s: %d\n", c.Key, c.Count)
			}
			return nil
		}),
		chisel.NewRaw(chisel.Spec{
			Name:        "resetcounter",
			Description: "Resets the counter for the key.",
			Args:        keyArgs,
		}, func(ctx context.Context, s *chisel.Session, tokens []string) error {
			key, ok, err := counterKey(ctx, s, tokens)
			if err != nil || !ok {
				return err
			}
			s.ResetCounter(key)
			return nil
		}),
		chisel.NewRaw(chisel.Spec{
			Name:        "resetcounters",
			Description: "Resets all the counters.",
		}, func(ctx context.Context, s *chisel.Session, _ []string) error {
			s.ResetCounters()
			return nil
		}),
	}
}

// counterKey builds the key from the format string and its arguments.
func counterKey(ctx context.Context, s *chisel.Session, tokens []string) (string, bool, error) {
	if len(tokens) == 0 {
		s.Println("Please provide a key format string")
		return "", false, nil
	}
	values := make([]string, 0, len(tokens)-1)
	for _, arg := range tokens[1:] {
		v, err := keyValue(ctx, s, arg)
		if err != nil {
			return "", false, err
		}
		values = append(values, v)
	}
	key, err := formatKey(tokens[0], values)
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(key), true, nil
}

func keyValue(ctx context.Context, s *chisel.Session, arg string) (string, error) {
	if strings.HasPrefix(arg, "(") {
		return engine.EvaluateExpression(ctx, s.Engine, arg)
	}
	desc, err := s.Engine.Describe(ctx, arg, engine.ObjC)
	if err == nil {
		if desc = strings.TrimRight(desc, "\n"); desc != "" {
			return desc, nil
		}
	} else if !engine.IsEvalError(err) {
		return "", err
	}
	return engine.EvaluateExpression(ctx, s.Engine, arg)
}

// formatKey substitutes {} (next argument) and {N} (argument N) in format.
// {{ and }} are literal braces.
func formatKey(format string, args []string) (string, error) {
	var sb strings.Builder
	next := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		switch {
		case c == '{' && i+1 < len(format) && format[i+1] == '{':
			sb.WriteByte('{')
			i++
		case c == '}' && i+1 < len(format) && format[i+1] == '}':
			sb.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(format[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("unmatched '{' in key format %q", format)
			}
			field := format[i+1 : i+end]
			idx := next
			if field == "" {
				next++
			} else {
				n, err := strconv.Atoi(field)
				if err != nil {
					return "", fmt.Errorf("invalid field {%s} in key format %q", field, format)
				}
				idx = n
			}
			if idx < 0 || idx >= len(args) {
				return "", fmt.Errorf("key format %q needs more arguments", format)
			}
			sb.WriteString(args[idx])
			i += end
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}
