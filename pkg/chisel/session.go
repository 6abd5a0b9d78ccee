package chisel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blacktop/chisel/internal/config"
	"github.com/blacktop/chisel/internal/utils"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/hierarchy"
	"github.com/blacktop/chisel/pkg/objc"
)

const classCacheSize = 512

// Counter is one entry of the counter table.
type Counter struct {
	Key   string
	Count int
}

// Session is the state shared by every command run against one engine.
type Session struct {
	Engine engine.Engine
	Config *config.Config
	Out    io.Writer
	In     io.Reader

	// Clipboard and Open are the host side effects; tests replace them.
	Clipboard func(text string) error
	Open      func(path string) error
	Now       func() time.Time
	// Exec runs a command line as if typed; nil passes it to the engine.
	Exec func(ctx context.Context, line string) error

	inMu  sync.Mutex
	lines *bufio.Reader

	mu          sync.Mutex
	counters    map[string]int
	a11yStarted bool
	timers      []*time.Timer
	classNames  *lru.Cache[engine.Pointer, string]
}

// NewSession returns a session writing to out. A nil cfg uses the defaults.
func NewSession(eng engine.Engine, cfg *config.Config, out io.Writer) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	if out == nil {
		out = os.Stdout
	}
	cache, _ := lru.New[engine.Pointer, string](classCacheSize)
	s := &Session{
		Engine:     eng,
		Config:     cfg,
		Out:        out,
		In:         os.Stdin,
		Now:        time.Now,
		counters:   make(map[string]int),
		classNames: cache,
	}
	s.Clipboard = func(text string) error {
		if !s.Config.Clipboard {
			return nil
		}
		return utils.CopyToClipboard(text)
	}
	s.Open = func(path string) error {
		return utils.Open(s.Config.OpenCommand, path)
	}
	return s
}

// Printf writes formatted output.
func (s *Session) Printf(format string, a ...any) {
	fmt.Fprintf(s.Out, format, a...)
}

// Println writes a line of output.
func (s *Session) Println(a ...any) {
	fmt.Fprintln(s.Out, a...)
}

// Context bounds ctx by the configured engine timeout.
func (s *Session) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	return engine.WithTimeout(ctx, s.Config.Engine.Timeout)
}

// WalkOptions returns the configured hierarchy walk options.
func (s *Session) WalkOptions() hierarchy.Options {
	return s.Config.WalkOptions()
}

// CopyToClipboard copies text, logging instead of failing when the host has
// no clipboard.
func (s *Session) CopyToClipboard(text string) {
	if s.Clipboard == nil {
		return
	}
	if err := s.Clipboard(text); err != nil {
		log.WithError(err).Debug("clipboard")
	}
}

// IncrementCounter adds one to key and returns the new count.
func (s *Session) IncrementCounter(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key]
}

// Counter returns the count for key.
func (s *Session) Counter(key string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.counters[key]
	return n, ok
}

// ResetCounter sets key back to zero.
func (s *Session) ResetCounter(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key] = 0
}

// ResetCounters clears the counter table.
func (s *Session) ResetCounters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.counters)
}

// Counters returns the counter table sorted by key.
func (s *Session) Counters() []Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Counter, 0, len(s.counters))
	for k, v := range s.counters {
		out = append(out, Counter{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// AccessibilityStarted reports whether the accessibility server was started.
func (s *Session) AccessibilityStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a11yStarted
}

// SetAccessibilityStarted records that the accessibility server is running.
func (s *Session) SetAccessibilityStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a11yStarted = true
}

// ClassName returns the class name of the class at cls, cached per session.
func (s *Session) ClassName(ctx context.Context, cls engine.Pointer) (string, error) {
	if name, ok := s.classNames.Get(cls); ok {
		return name, nil
	}
	name, err := objc.ClassGetName(ctx, s.Engine, cls.String())
	if err != nil {
		return "", err
	}
	s.classNames.Add(cls, name)
	return name, nil
}

// After runs fn once d has elapsed unless the session is closed first.
func (s *Session) After(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = append(s.timers, time.AfterFunc(d, fn))
}

// ReadLine reads the next line of In without its line ending. All reads of In
// share one buffer, so In must not be replaced after the first call.
func (s *Session) ReadLine() (string, error) {
	s.inMu.Lock()
	defer s.inMu.Unlock()
	if s.lines == nil {
		s.lines = bufio.NewReader(s.In)
	}
	line, err := s.lines.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Close stops pending timers and closes the engine.
func (s *Session) Close() error {
	s.mu.Lock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.mu.Unlock()
	if s.Engine == nil {
		return nil
	}
	return s.Engine.Close()
}
