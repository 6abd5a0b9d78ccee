package chisel

import (
	"strings"
)

// Summary returns the first line of the command's description.
func Summary(cmd Command) string {
	desc := strings.TrimSpace(cmd.Description())
	if i := strings.IndexByte(desc, '\n'); i >= 0 {
		return desc[:i]
	}
	return desc
}

// Usage renders `name arg [optarg]`.
func Usage(cmd Command) string {
	var sb strings.Builder
	sb.WriteString(cmd.Name())
	for _, arg := range cmd.Args() {
		if arg.Required() {
			sb.WriteString(" " + arg.Arg)
		} else {
			sb.WriteString(" [" + arg.Arg + "]")
		}
	}
	return sb.String()
}

// Syntax renders `name [--opt=arg] [--flag] <arg>`.
func Syntax(cmd Command) string {
	var sb strings.Builder
	sb.WriteString(cmd.Name())
	for _, opt := range cmd.Options() {
		name := "--" + opt.Long
		if opt.Long == "" {
			name = "-" + opt.Short
		}
		if opt.Boolean {
			sb.WriteString(" [" + name + "]")
		} else {
			sb.WriteString(" [" + name + "=" + opt.Arg + "]")
		}
	}
	for _, arg := range cmd.Args() {
		sb.WriteString(" <" + arg.Arg + ">")
	}
	return sb.String()
}

// Help renders the full help text of a command.
func Help(cmd Command) string {
	var sb strings.Builder
	sb.WriteString(cmd.Description())

	if args := cmd.Args(); len(args) > 0 {
		sb.WriteString("\n\nArguments:")
		for _, arg := range args {
			sb.WriteString("\n  <" + arg.Arg + ">; ")
			if arg.Type != "" {
				sb.WriteString("Type: " + arg.Type + "; ")
			}
			sb.WriteString(arg.Help)
		}
	}

	if opts := cmd.Options(); len(opts) > 0 {
		sb.WriteString("\n\nOptions:")
		for _, opt := range opts {
			sb.WriteString("\n  " + opt.flag() + " ")
			if !opt.Boolean {
				sb.WriteString("<" + opt.Arg + ">; Type: " + opt.Type)
			}
			sb.WriteString("; " + opt.Help)
		}
	}

	sb.WriteString("\n\nSyntax: " + Syntax(cmd))
	return sb.String()
}
