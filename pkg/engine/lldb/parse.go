package lldb

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/blacktop/chisel/pkg/engine"
)

var (
	resultRE     = regexp.MustCompile(`(?s)^\((.+?)\) \$[0-9]+ = (.*)$`)
	pointerRE    = regexp.MustCompile(`(?s)^(0x[0-9a-fA-F]+)\s+(.+)$`)
	breakpointRE = regexp.MustCompile(`Breakpoint ([0-9]+):`)
	watchpointRE = regexp.MustCompile(`Watchpoint created: Watchpoint ([0-9]+)`)
	archRE       = regexp.MustCompile(`arch=([^\s,]+)`)
	pidRE        = regexp.MustCompile(`pid=([0-9]+)`)
	versionRE    = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)+|[0-9]+)`)
)

// output is the cleaned text lldb printed for one command.
type output struct {
	lines  []string
	errors []string
}

func (o output) text() string {
	return strings.Join(o.lines, "\n")
}

func (o output) err() string {
	return strings.Join(o.errors, "\n")
}

// clean drops prompt echoes and the multi-line expression banner, and
// separates error lines from the rest.
func clean(raw []string) output {
	var o output
	inError := false
	for _, line := range raw {
		switch {
		case strings.HasPrefix(line, "(lldb) "), line == "(lldb)":
			inError = false
			continue
		case strings.HasPrefix(line, "Enter expressions, then terminate with an empty line to evaluate:"):
			continue
		case strings.HasPrefix(line, "error: "):
			inError = true
			o.errors = append(o.errors, line)
			continue
		case inError && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")):
			// caret and source context following a diagnostic
			o.errors = append(o.errors, line)
			continue
		}
		inError = false
		o.lines = append(o.lines, line)
	}
	return o
}

// parseValue parses `(T) $N = V`. A command that succeeds without a result
// (void expressions, @import) yields an empty value.
func parseValue(expr string, o output) (*engine.Value, error) {
	if len(o.errors) > 0 {
		return nil, &engine.EvalError{Expr: expr, Message: o.err()}
	}
	var kept []string
	for _, line := range o.lines {
		if strings.HasPrefix(line, "warning: ") || strings.HasPrefix(line, "note: ") {
			continue
		}
		kept = append(kept, line)
	}
	text := strings.TrimSpace(strings.Join(kept, "\n"))
	m := resultRE.FindStringSubmatch(text)
	if m == nil {
		return &engine.Value{}, nil
	}
	v := &engine.Value{Type: m[1], Value: strings.TrimSpace(m[2])}
	if pm := pointerRE.FindStringSubmatch(v.Value); pm != nil {
		v.Value = pm[1]
		v.Summary = strings.TrimSpace(pm[2])
	} else if strings.HasPrefix(v.Value, `"`) || strings.HasPrefix(v.Value, `@"`) {
		v.Summary, v.Value = v.Value, ""
	}
	return v, nil
}

// parseDescription returns the text printed by `expression -O`.
func parseDescription(expr string, o output) (string, error) {
	if len(o.errors) > 0 {
		return "", &engine.EvalError{Expr: expr, Message: o.err()}
	}
	return o.text(), nil
}

func parseID(re *regexp.Regexp, what string, o output) (int, error) {
	if len(o.errors) > 0 {
		return 0, errors.New(o.err())
	}
	m := re.FindStringSubmatch(o.text())
	if m == nil {
		return 0, errors.Errorf("failed to parse %s id from: %q", what, o.text())
	}
	return strconv.Atoi(m[1])
}

func parseBreakpointID(o output) (int, error) {
	return parseID(breakpointRE, "breakpoint", o)
}

func parseWatchpointID(o output) (int, error) {
	return parseID(watchpointRE, "watchpoint", o)
}

// parseTargetList reads the selected target's triple and pid from `target list`.
func parseTargetList(o output) (*engine.TargetInfo, error) {
	text := o.text()
	m := archRE.FindStringSubmatch(text)
	if m == nil {
		return nil, errors.Errorf("no target selected: %q", text)
	}
	info := &engine.TargetInfo{Triple: m[1]}
	info.Arch, _, _ = strings.Cut(m[1], "-")
	if pm := pidRE.FindStringSubmatch(text); pm != nil {
		info.PID, _ = strconv.Atoi(pm[1])
	}
	return info, nil
}

// quote renders s as a double quoted lldb command argument.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// breakpointCommand builds `breakpoint set` for spec.
func breakpointCommand(spec engine.BreakpointSpec) (string, error) {
	var sb strings.Builder
	sb.WriteString("breakpoint set")
	switch {
	case spec.FullName != "":
		sb.WriteString(" --fullname " + quote(spec.FullName))
	case spec.Regex != "":
		sb.WriteString(" --func-regex " + quote(spec.Regex))
	case spec.Name != "":
		sb.WriteString(" --name " + quote(spec.Name))
	case spec.Address != 0:
		sb.WriteString(" --address " + engine.Pointer(spec.Address).String())
	default:
		return "", errors.New("breakpoint needs a name, full name, regex or address")
	}
	if spec.Condition != "" {
		sb.WriteString(" --condition " + quote(spec.Condition))
	}
	if spec.SkipPrologue != nil {
		sb.WriteString(" --skip-prologue " + strconv.FormatBool(*spec.SkipPrologue))
	}
	return sb.String(), nil
}

// expressionLines renders an expression command. Multi-line expressions use
// lldb's multi-line mode, which ends at the first empty line.
func expressionLines(expr string, lang engine.Language, describe bool) string {
	if lang == "" {
		lang = engine.ObjC
	}
	cmd := "expression -l " + string(lang)
	if describe {
		cmd += " -O"
	}
	if !strings.Contains(expr, "\n") {
		return cmd + " -- " + expr
	}
	var sb strings.Builder
	sb.WriteString(cmd + " --\n")
	for _, line := range strings.Split(expr, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}
