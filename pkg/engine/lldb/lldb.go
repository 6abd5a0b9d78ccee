// Package lldb drives an lldb subprocess over its command interpreter.
package lldb

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/blacktop/chisel/pkg/engine"
)

const sentinelPrefix = "chisel-sentinel-"

var (
	minAppleVersion = version.Must(version.NewVersion("900"))
	minLLVMVersion  = version.Must(version.NewVersion("10.0"))
)

// Config selects how lldb is started and which process it debugs.
type Config struct {
	Path    string // lldb binary, defaults to "lldb"
	PID     int
	Name    string
	Wait    bool // wait for a process called Name to launch
	File    string
	Args    []string // launch arguments for File
	Connect string   // host:port of a gdb-remote stub
	Timeout time.Duration
}

// Engine is an engine.Engine backed by an lldb subprocess.
type Engine struct {
	conf Config

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	eg     *errgroup.Group
	signal func() error

	mu      sync.Mutex
	pending string // sentinel of an outstanding `process continue`
	target  *engine.TargetInfo
	tmpDir  string
	closed  bool
}

// CheckVersion runs `lldb --version` and rejects versions that lack the
// commands chisel relies on.
func CheckVersion(ctx context.Context, path string) (*version.Version, error) {
	if path == "" {
		path = "lldb"
	}
	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to run %s --version", path)
	}
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	m := versionRE.FindString(line)
	if m == "" {
		return nil, errors.Errorf("failed to parse lldb version from %q", line)
	}
	v, err := version.NewVersion(m)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse lldb version %q", m)
	}
	min := minLLVMVersion
	if strings.HasPrefix(line, "lldb-") {
		min = minAppleVersion
	}
	if v.LessThan(min) {
		return nil, errors.Errorf("lldb %s is too old (need >= %s)", v, min)
	}
	log.WithField("version", line).Debug("Found lldb")
	return v, nil
}

// Start launches lldb and attaches or launches the target described by conf.
func Start(ctx context.Context, conf Config) (*Engine, error) {
	if conf.Path == "" {
		conf.Path = "lldb"
	}
	if _, err := CheckVersion(ctx, conf.Path); err != nil {
		return nil, err
	}

	cmd := exec.Command(conf.Path, "--no-use-colors")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create lldb stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create lldb stdout pipe")
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", conf.Path)
	}
	log.WithFields(log.Fields{
		"path": conf.Path,
		"pid":  cmd.Process.Pid,
	}).Debug("Started lldb")

	e := newEngine(conf, stdin, stdout, func() error {
		return cmd.Process.Signal(syscall.SIGINT)
	})
	e.cmd = cmd
	e.eg.Go(func() error {
		err := cmd.Wait()
		log.WithError(err).Debug("lldb exited")
		return nil
	})

	if err := e.bootstrap(ctx); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func newEngine(conf Config, stdin io.WriteCloser, stdout io.Reader, signal func() error) *Engine {
	e := &Engine{
		conf:   conf,
		stdin:  stdin,
		lines:  make(chan string, 256),
		eg:     &errgroup.Group{},
		signal: signal,
	}
	e.eg.Go(func() error {
		defer close(e.lines)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), engine.MaxJSONSize*4)
		for scanner.Scan() {
			e.lines <- strings.TrimRight(scanner.Text(), "\r")
		}
		return scanner.Err()
	})
	return e
}

func (e *Engine) bootstrap(ctx context.Context) error {
	steps := []string{"settings set auto-confirm true"}
	switch {
	case e.conf.Connect != "":
		if e.conf.File != "" {
			steps = append(steps, "target create "+quote(e.conf.File))
		}
		steps = append(steps, "gdb-remote "+e.conf.Connect)
	case e.conf.PID != 0:
		steps = append(steps, fmt.Sprintf("process attach --pid %d", e.conf.PID))
	case e.conf.Name != "":
		attach := "process attach --name " + quote(e.conf.Name)
		if e.conf.Wait {
			attach += " --waitfor"
		}
		steps = append(steps, attach)
	case e.conf.File != "":
		steps = append(steps, "target create "+quote(e.conf.File))
		launch := "process launch --stop-at-entry"
		if len(e.conf.Args) > 0 {
			launch += " -- " + strings.Join(e.conf.Args, " ")
		}
		steps = append(steps, launch)
	default:
		return errors.New("nothing to debug: set a pid, process name, file or gdb-remote address")
	}
	for _, step := range steps {
		ctx, cancel := engine.WithTimeout(ctx, e.timeout(step))
		o, err := e.run(ctx, step)
		cancel()
		if err != nil {
			return errors.Wrapf(err, "lldb: %s", step)
		}
		if len(o.errors) > 0 {
			return errors.Errorf("lldb: %s: %s", step, o.err())
		}
	}
	return nil
}

func (e *Engine) timeout(step string) time.Duration {
	if strings.Contains(step, "--waitfor") {
		// waiting for a launch has no useful bound
		return 24 * time.Hour
	}
	return e.conf.Timeout
}

// run sends one command followed by a sentinel and collects the output
// printed before the sentinel's error.
func (e *Engine) run(ctx context.Context, command string) (output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return output{}, engine.ErrNotRunning
	}
	if e.pending != "" {
		// the target is running, wait for it to stop first
		if _, err := e.readUntil(ctx, e.pending); err != nil {
			return output{}, err
		}
		e.pending = ""
	}
	sentinel, err := e.send(command)
	if err != nil {
		return output{}, err
	}
	raw, err := e.readUntil(ctx, sentinel)
	if err != nil {
		return output{}, err
	}
	return clean(raw), nil
}

func (e *Engine) send(command string) (string, error) {
	sentinel := sentinelPrefix + uuid.NewString()
	log.WithFields(log.Fields{
		"command":  command,
		"sentinel": sentinel,
	}).Debug("lldb")
	if _, err := io.WriteString(e.stdin, command+"\n"+sentinel+"\n"); err != nil {
		return "", errors.Wrap(err, "failed to write to lldb")
	}
	return sentinel, nil
}

// readUntil collects lines until the error lldb prints for sentinel. Output
// that belongs to an earlier, abandoned sentinel is discarded.
func (e *Engine) readUntil(ctx context.Context, sentinel string) ([]string, error) {
	var lines []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "timed out waiting for lldb")
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "timed out waiting for lldb")
		case line, ok := <-e.lines:
			if !ok {
				return nil, errors.Wrap(engine.ErrNotRunning, "lldb exited")
			}
			if strings.HasPrefix(line, "(lldb) ") || !strings.Contains(line, sentinelPrefix) {
				lines = append(lines, line)
				continue
			}
			if strings.Contains(line, sentinel) {
				return lines, nil
			}
			lines = lines[:0]
		}
	}
}

func (e *Engine) Evaluate(ctx context.Context, expr string, lang engine.Language) (*engine.Value, error) {
	o, err := e.run(ctx, expressionLines(expr, lang, false))
	if err != nil {
		return nil, err
	}
	return parseValue(expr, o)
}

func (e *Engine) Describe(ctx context.Context, expr string, lang engine.Language) (string, error) {
	o, err := e.run(ctx, expressionLines(expr, lang, true))
	if err != nil {
		return "", err
	}
	return parseDescription(expr, o)
}

func (e *Engine) ReadMemory(ctx context.Context, addr uint64, length int) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	dir, err := e.scratch()
	if err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "mem-*.bin")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create memory read file")
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	o, err := e.run(ctx, fmt.Sprintf("memory read --force --binary --outfile %s --count %d %#x", quote(path), length, addr))
	if err != nil {
		return nil, err
	}
	if len(o.errors) > 0 {
		return nil, errors.Errorf("memory read failed for %#x: %s", addr, o.err())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read memory dump for %#x", addr)
	}
	return data, nil
}

func (e *Engine) scratch() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tmpDir != "" {
		return e.tmpDir, nil
	}
	dir, err := os.MkdirTemp("", "chisel-lldb-")
	if err != nil {
		return "", errors.Wrap(err, "failed to create scratch directory")
	}
	e.tmpDir = dir
	return dir, nil
}

func (e *Engine) SetBreakpoint(ctx context.Context, spec engine.BreakpointSpec) (*engine.Breakpoint, error) {
	command, err := breakpointCommand(spec)
	if err != nil {
		return nil, err
	}
	o, err := e.run(ctx, command)
	if err != nil {
		return nil, err
	}
	id, err := parseBreakpointID(o)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to set breakpoint on %s", spec)
	}
	return &engine.Breakpoint{ID: id, Spec: spec}, nil
}

func (e *Engine) EnableBreakpoint(ctx context.Context, id int, enabled bool) error {
	verb := "disable"
	if enabled {
		verb = "enable"
	}
	o, err := e.run(ctx, fmt.Sprintf("breakpoint %s %d", verb, id))
	if err != nil {
		return err
	}
	if len(o.errors) > 0 {
		return errors.Errorf("failed to %s breakpoint %d: %s", verb, id, o.err())
	}
	return nil
}

func (e *Engine) SetWatchpoint(ctx context.Context, addr uint64, size int, kind engine.WatchKind) (*engine.Watchpoint, error) {
	if kind == "" {
		kind = engine.WatchWrite
	}
	o, err := e.run(ctx, fmt.Sprintf("watchpoint set expression -w %s -s %d -- %#x", kind, size, addr))
	if err != nil {
		return nil, err
	}
	id, err := parseWatchpointID(o)
	if err != nil {
		return nil, err
	}
	return &engine.Watchpoint{ID: id, Address: addr, Size: size, Kind: kind}, nil
}

func (e *Engine) HandleCommand(ctx context.Context, text string) (string, error) {
	o, err := e.run(ctx, text)
	if err != nil {
		return "", err
	}
	out := o.lines
	out = append(out, o.errors...)
	return strings.Join(out, "\n"), nil
}

// Continue resumes the target without waiting for it to stop.
func (e *Engine) Continue(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.ErrNotRunning
	}
	if e.pending != "" {
		return nil
	}
	sentinel, err := e.send("process continue")
	if err != nil {
		return err
	}
	e.pending = sentinel
	return nil
}

// Interrupt stops a target resumed by Continue and waits for the stop.
func (e *Engine) Interrupt(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == "" {
		return nil
	}
	if err := e.signal(); err != nil {
		return errors.Wrap(err, "failed to interrupt lldb")
	}
	lines, err := e.readUntil(ctx, e.pending)
	if err != nil {
		return err
	}
	e.pending = ""
	log.WithField("output", strings.Join(clean(lines).lines, "\n")).Debug("Process stopped")
	return nil
}

func (e *Engine) Target(ctx context.Context) (*engine.TargetInfo, error) {
	e.mu.Lock()
	if e.target != nil {
		info := *e.target
		e.mu.Unlock()
		return &info, nil
	}
	e.mu.Unlock()

	o, err := e.run(ctx, "target list")
	if err != nil {
		return nil, err
	}
	info, err := parseTargetList(o)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.target = info
	e.mu.Unlock()
	out := *info
	return &out, nil
}

// Close detaches from the target and stops lldb.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	if e.pending != "" && e.signal != nil {
		e.signal()
	}
	e.closed = true
	io.WriteString(e.stdin, "process detach\nquit\n")
	e.stdin.Close()
	tmp := e.tmpDir
	e.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		// drain so lldb never blocks on a full pipe while quitting
		for range e.lines {
		}
		done <- e.eg.Wait()
	}()
	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		if e.cmd != nil && e.cmd.Process != nil {
			e.cmd.Process.Kill()
		}
		err = <-done
	}
	if tmp != "" {
		os.RemoveAll(filepath.Clean(tmp))
	}
	return err
}

var _ engine.Engine = (*Engine)(nil)
