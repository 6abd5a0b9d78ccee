// Package gdbremote is a minimal engine over the gdb-remote serial protocol
// (debugserver, gdbserver). It reads memory, sets breakpoints and watchpoints
// and resumes the target; it cannot evaluate expressions.
package gdbremote

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/blacktop/chisel/pkg/engine"
)

const maxReadChunk = 0x800

// mach-o cputype values reported by qHostInfo/qProcessInfo
const (
	cpuTypeX86_64 = 0x01000007
	cpuTypeARM64  = 0x0100000c
	cpuTypeARM    = 12
	cpuTypeX86    = 7
)

var noDeadline time.Time

// ErrRunning is returned for requests made while the target runs.
var ErrRunning = errors.New("target is running")

type breakpoint struct {
	addr    uint64
	enabled bool
}

// Engine is an engine.Engine speaking gdb-remote to a stub.
type Engine struct {
	conn net.Conn
	c    *Conn

	// Output receives the target's console output while it runs.
	Output io.Writer

	mu      sync.Mutex
	info    engine.TargetInfo
	bpKind  int
	bps     map[int]*breakpoint
	nextBP  int
	nextWP  int
	running bool
	stopped chan error
}

// Dial connects to the stub at addr and negotiates the session.
func Dial(ctx context.Context, addr string) (*Engine, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", addr)
	}
	e, err := New(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return e, nil
}

// New negotiates a session over an established connection.
func New(ctx context.Context, conn net.Conn) (*Engine, error) {
	e := &Engine{
		conn:   conn,
		c:      NewConn(conn),
		Output: io.Discard,
		bps:    make(map[int]*breakpoint),
	}
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
		defer conn.SetDeadline(noDeadline)
	}
	if err := e.bootstrap(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) bootstrap() error {
	for _, pck := range []string{"QStartNoAckMode", "QEnableErrorStrings"} {
		reply, err := e.c.Request(pck)
		if err != nil {
			return errors.Wrapf(err, "gdb-remote: %s", pck)
		}
		if err := checkReply(reply); err != nil && pck == "QStartNoAckMode" {
			return errors.Wrapf(err, "gdb-remote: %s", pck)
		}
	}
	reply, err := e.c.Request("qHostInfo")
	if err != nil {
		return errors.Wrap(err, "gdb-remote: qHostInfo")
	}
	host := parseKeyValues(reply)
	e.info.Arch = archForCPUType(host["cputype"])
	vendor, ostype := host["vendor"], host["ostype"]
	if vendor == "" {
		vendor = "apple"
	}
	if ostype == "" {
		ostype = "unknown"
	}
	e.info.Triple = e.info.Arch + "-" + vendor + "-" + ostype
	// software breakpoint size in bytes
	e.bpKind = 4
	if e.info.Arch == "x86_64" || e.info.Arch == "i386" {
		e.bpKind = 1
	}

	if reply, err := e.c.Request("qProcessInfo"); err == nil && checkReply(reply) == nil {
		proc := parseKeyValues(reply)
		if pid, err := strconv.ParseInt(proc["pid"], 16, 64); err == nil {
			e.info.PID = int(pid)
		}
	}
	log.WithFields(log.Fields{
		"triple": e.info.Triple,
		"pid":    e.info.PID,
	}).Debug("gdb-remote connected")
	return nil
}

// parseKeyValues parses `key:value;key:value;` replies.
func parseKeyValues(reply string) map[string]string {
	kv := make(map[string]string)
	for _, pair := range strings.Split(reply, ";") {
		k, v, ok := strings.Cut(pair, ":")
		if ok {
			kv[k] = v
		}
	}
	return kv
}

func archForCPUType(s string) string {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		// qProcessInfo reports hex
		n, err = strconv.ParseUint(s, 16, 32)
		if err != nil {
			return "unknown"
		}
	}
	switch n {
	case cpuTypeARM64:
		return "arm64"
	case cpuTypeX86_64:
		return "x86_64"
	case cpuTypeARM:
		return "armv7"
	case cpuTypeX86:
		return "i386"
	}
	return "unknown"
}

// request performs one round trip unless the target is running.
func (e *Engine) request(ctx context.Context, pck string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return "", ErrRunning
	}
	if dl, ok := ctx.Deadline(); ok {
		e.conn.SetDeadline(dl)
		defer e.conn.SetDeadline(noDeadline)
	}
	log.WithField("packet", pck).Debug("gdb-remote")
	reply, err := e.c.Request(pck)
	if err != nil {
		return "", errors.Wrapf(err, "gdb-remote: %s", pck)
	}
	return reply, nil
}

func (e *Engine) Evaluate(context.Context, string, engine.Language) (*engine.Value, error) {
	return nil, errors.Wrap(engine.ErrUnsupported, "gdb-remote has no expression evaluator")
}

func (e *Engine) Describe(context.Context, string, engine.Language) (string, error) {
	return "", errors.Wrap(engine.ErrUnsupported, "gdb-remote has no expression evaluator")
}

func (e *Engine) ReadMemory(ctx context.Context, addr uint64, length int) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	out := make([]byte, 0, length)
	for len(out) < length {
		n := min(length-len(out), maxReadChunk)
		at := addr + uint64(len(out))
		reply, err := e.request(ctx, fmt.Sprintf("m%x,%x", at, n))
		if err != nil {
			return nil, err
		}
		if err := checkReply(reply); err != nil {
			if len(out) > 0 {
				// short read at the end of a mapping
				return out, nil
			}
			return nil, errors.Wrapf(err, "memory read failed for %#x", at)
		}
		data, err := hex.DecodeString(reply)
		if err != nil {
			return nil, errors.Wrapf(err, "bad memory reply for %#x", at)
		}
		out = append(out, data...)
		if len(data) < n {
			break
		}
	}
	return out, nil
}

func (e *Engine) SetBreakpoint(ctx context.Context, spec engine.BreakpointSpec) (*engine.Breakpoint, error) {
	if spec.Address == 0 || spec.Name != "" || spec.FullName != "" || spec.Regex != "" || spec.Condition != "" {
		return nil, errors.Wrap(engine.ErrUnsupported, "gdb-remote breakpoints need a plain address")
	}
	if err := e.ack(ctx, fmt.Sprintf("Z0,%x,%d", spec.Address, e.bpKind)); err != nil {
		return nil, errors.Wrapf(err, "failed to set breakpoint at %#x", spec.Address)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextBP++
	e.bps[e.nextBP] = &breakpoint{addr: spec.Address, enabled: true}
	return &engine.Breakpoint{ID: e.nextBP, Spec: spec}, nil
}

func (e *Engine) EnableBreakpoint(ctx context.Context, id int, enabled bool) error {
	e.mu.Lock()
	bp, ok := e.bps[id]
	e.mu.Unlock()
	if !ok {
		return errors.Errorf("no breakpoint with id %d", id)
	}
	if bp.enabled == enabled {
		return nil
	}
	op := 'z'
	if enabled {
		op = 'Z'
	}
	if err := e.ack(ctx, fmt.Sprintf("%c0,%x,%d", op, bp.addr, e.bpKind)); err != nil {
		return err
	}
	e.mu.Lock()
	bp.enabled = enabled
	e.mu.Unlock()
	return nil
}

func (e *Engine) SetWatchpoint(ctx context.Context, addr uint64, size int, kind engine.WatchKind) (*engine.Watchpoint, error) {
	typ := 2
	switch kind {
	case engine.WatchRead:
		typ = 3
	case engine.WatchReadWrite:
		typ = 4
	case engine.WatchWrite, "":
		kind = engine.WatchWrite
	default:
		return nil, errors.Errorf("unknown watchpoint kind %q", kind)
	}
	if err := e.ack(ctx, fmt.Sprintf("Z%d,%x,%x", typ, addr, size)); err != nil {
		return nil, errors.Wrapf(err, "failed to set watchpoint at %#x", addr)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextWP++
	return &engine.Watchpoint{ID: e.nextWP, Address: addr, Size: size, Kind: kind}, nil
}

func (e *Engine) ack(ctx context.Context, pck string) error {
	reply, err := e.request(ctx, pck)
	if err != nil {
		return err
	}
	if err := checkReply(reply); err != nil {
		return err
	}
	if reply != "OK" {
		return errors.Errorf("unexpected reply to %s: %q", pck, reply)
	}
	return nil
}

// HandleCommand sends text as a raw packet and returns the reply.
func (e *Engine) HandleCommand(ctx context.Context, text string) (string, error) {
	return e.request(ctx, text)
}

// Continue resumes the target. Console output is copied to Output until the
// next stop reply.
func (e *Engine) Continue(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	stopped := make(chan error, 1)
	if err := e.c.Send("c"); err != nil {
		return err
	}
	e.running = true
	e.stopped = stopped
	go e.continueLoop(stopped)
	return nil
}

func (e *Engine) continueLoop(stopped chan<- error) {
	err := func() error {
		for {
			pck, err := e.c.Recv()
			if err != nil {
				return err
			}
			if pck == "" {
				continue
			}
			switch pck[0] {
			case 'O':
				data, err := hex.DecodeString(pck[1:])
				if err != nil {
					return err
				}
				e.Output.Write(data)
			case 'T', 'S':
				return nil
			case 'W', 'X':
				return errors.Wrapf(engine.ErrNotRunning, "process exited (%s)", pck)
			default:
				return errors.Errorf("unknown stop packet: %s", pck)
			}
		}
	}()
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	stopped <- err
}

// Interrupt stops a running target and waits for its stop reply.
func (e *Engine) Interrupt(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	stopped := e.stopped
	e.mu.Unlock()

	if err := e.c.Interrupt(); err != nil {
		return errors.Wrap(err, "failed to interrupt")
	}
	select {
	case err := <-stopped:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) Target(context.Context) (*engine.TargetInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	info := e.info
	return &info, nil
}

// Close detaches from the target and closes the connection.
func (e *Engine) Close() error {
	ctx, cancel := engine.WithTimeout(context.Background(), 0)
	defer cancel()
	if err := e.Interrupt(ctx); err != nil {
		log.WithError(err).Debug("interrupt before detach")
	}
	if _, err := e.request(ctx, "D"); err != nil {
		log.WithError(err).Debug("detach")
	}
	return e.conn.Close()
}

var _ engine.Engine = (*Engine)(nil)
