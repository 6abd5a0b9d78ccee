package chisel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/apex/log"
	"github.com/spf13/pflag"
)

// Registry maps command names to commands.
type Registry struct {
	mu   sync.RWMutex
	cmds map[string]Command
}

// NewRegistry returns a registry holding cmds.
func NewRegistry(cmds ...Command) (*Registry, error) {
	r := &Registry{cmds: make(map[string]Command)}
	if err := r.Register(cmds...); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds cmds. Registering a name twice is an error.
func (r *Registry) Register(cmds ...Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cmd := range cmds {
		name := cmd.Name()
		if name == "" {
			return fmt.Errorf("command has no name")
		}
		if _, ok := r.cmds[name]; ok {
			return fmt.Errorf("command %q is already registered", name)
		}
		r.cmds[name] = cmd
	}
	return nil
}

// Lookup returns the command registered as name.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.cmds[name]
	return cmd, ok
}

// Commands returns every command sorted by name.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.cmds))
	for _, cmd := range r.cmds {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns every command name, sorted.
func (r *Registry) Names() []string {
	cmds := r.Commands()
	names := make([]string, len(cmds))
	for i, cmd := range cmds {
		names[i] = cmd.Name()
	}
	return names
}

// SplitCommand splits line into the command name and the rest of the line at
// the first run of whitespace.
func SplitCommand(line string) (name, rest string) {
	line = strings.TrimSpace(line)
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i:])
}

// Execute runs one command line. Lines naming an unknown command are passed
// to the engine's own interpreter. A missing argument prints the usage and
// does not run the command.
func (r *Registry) Execute(ctx context.Context, s *Session, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	name, rest := SplitCommand(line)

	cmd, ok := r.Lookup(name)
	if !ok {
		log.WithField("command", line).Debug("Passing to engine")
		out, err := s.Engine.HandleCommand(ctx, line)
		if out != "" {
			s.Printf("%s", ensureNewline(out))
		}
		return err
	}

	tokens, err := Lex(rest)
	if err != nil {
		return err
	}

	if raw, ok := cmd.(RawCommand); ok {
		return raw.RunRaw(ctx, s, tokens)
	}

	args, opts, err := Parse(cmd, tokens)
	if err != nil {
		var missing *MissingArgumentError
		switch {
		case errors.As(err, &missing):
			s.Println(missing.Error())
			return nil
		case errors.Is(err, pflag.ErrHelp):
			s.Println(Help(cmd))
			return nil
		}
		return fmt.Errorf("%s: %v\n\nSyntax: %s", name, err, Syntax(cmd))
	}

	log.WithFields(log.Fields{
		"command": name,
		"args":    args,
	}).Debug("Running")
	return cmd.Run(ctx, s, args, opts)
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
