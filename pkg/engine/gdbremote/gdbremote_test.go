package gdbremote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/blacktop/chisel/pkg/engine"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"QStartNoAckMode", "b0"},
		{"qHostInfo", "9b"},
		{"OK", "9a"},
		{"", "00"},
	}
	for _, tt := range tests {
		if got := Checksum(tt.payload); got != tt.want {
			t.Errorf("Checksum(%q) = %s, want %s", tt.payload, got, tt.want)
		}
	}
	if got := Format("QStartNoAckMode"); got != "$QStartNoAckMode#b0" {
		t.Errorf("Format() = %q", got)
	}
	if got := Format("qHostInfo"); got != "+$qHostInfo#9b" {
		t.Errorf("Format() = %q", got)
	}
}

func TestConnRecv(t *testing.T) {
	c := NewConn(&rwBuffer{r: strings.NewReader("+$OK#9a++$T05thread:1;#00+")})
	for _, want := range []string{"OK", "T05thread:1;"} {
		got, err := c.Recv()
		if err != nil || got != want {
			t.Fatalf("Recv() = %q, %v; want %q", got, err, want)
		}
	}
	if _, err := c.Recv(); err != io.EOF {
		t.Fatalf("Recv() at end = %v, want io.EOF", err)
	}

	c = NewConn(&rwBuffer{r: strings.NewReader("$O4")})
	if _, err := c.Recv(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Recv() on a truncated packet = %v", err)
	}
}

func TestCheckReply(t *testing.T) {
	if err := checkReply("OK"); err != nil {
		t.Errorf("checkReply(OK) = %v", err)
	}
	if err := checkReply(""); err == nil {
		t.Error("checkReply(\"\") should report an unsupported packet")
	}
	err := checkReply("E08;696e76616c6964")
	var er *ErrorReply
	if !errors.As(err, &er) || er.Code != "08" || er.Message != "invalid" {
		t.Fatalf("checkReply() = %#v", err)
	}
	// hex memory that happens to start with E
	if err := checkReply("Efff"); err == nil {
		t.Error("checkReply(Efff) should be an error reply")
	}
	if err := checkReply("ea0f"); err != nil {
		t.Errorf("checkReply(ea0f) = %v", err)
	}
}

func TestParseHostInfo(t *testing.T) {
	kv := parseKeyValues("cputype:16777228;cpusubtype:2;ostype:ios;vendor:apple;")
	if archForCPUType(kv["cputype"]) != "arm64" || kv["ostype"] != "ios" {
		t.Errorf("parseKeyValues() = %v", kv)
	}
	if got := archForCPUType("1000007"); got != "x86_64" {
		t.Errorf("archForCPUType(hex) = %s", got)
	}
	if got := archForCPUType("zz"); got != "unknown" {
		t.Errorf("archForCPUType(zz) = %s", got)
	}
}

type rwBuffer struct {
	r io.Reader
	w bytes.Buffer
}

func (b *rwBuffer) Read(p []byte) (int, error)  { return b.r.Read(p) }
func (b *rwBuffer) Write(p []byte) (int, error) { return b.w.Write(p) }

// stub is a scripted debugserver on the far end of a net.Pipe.
type stub struct {
	conn    net.Conn
	memAddr uint64
	memory  []byte
	stop    chan struct{}

	mu      sync.Mutex
	packets []string
}

func (s *stub) send(payload string) {
	fmt.Fprintf(s.conn, "$%s#%s", payload, Checksum(payload))
}

func (s *stub) log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.packets...)
}

func (s *stub) serve() {
	defer close(s.stop)
	r := bufio.NewReader(s.conn)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		switch b {
		case '+':
			continue
		case interruptByte:
			s.send("T11thread:1;")
			continue
		case '$':
		default:
			continue
		}
		payload, err := r.ReadString('#')
		if err != nil {
			return
		}
		payload = strings.TrimSuffix(payload, "#")
		if _, err := io.ReadFull(r, make([]byte, 2)); err != nil {
			return
		}
		s.mu.Lock()
		s.packets = append(s.packets, payload)
		s.mu.Unlock()
		s.reply(payload)
	}
}

func (s *stub) reply(payload string) {
	switch {
	case payload == "QStartNoAckMode", payload == "QEnableErrorStrings", payload == "D":
		s.send("OK")
	case payload == "qHostInfo":
		s.send("cputype:16777228;cpusubtype:2;ostype:ios;vendor:apple;endian:little;ptrsize:8;")
	case payload == "qProcessInfo":
		s.send("pid:10e2;parent-pid:1;cputype:100000c;")
	case payload == "c":
		s.send("O" + hex.EncodeToString([]byte("hello\n")))
	case strings.HasPrefix(payload, "m"):
		addr, n, _ := strings.Cut(payload[1:], ",")
		a, _ := strconv.ParseUint(addr, 16, 64)
		l, _ := strconv.ParseUint(n, 16, 64)
		if a < s.memAddr || a >= s.memAddr+uint64(len(s.memory)) {
			s.send("E08;" + hex.EncodeToString([]byte("bad address")))
			return
		}
		off := a - s.memAddr
		end := min(off+l, uint64(len(s.memory)))
		s.send(hex.EncodeToString(s.memory[off:end]))
	case strings.HasPrefix(payload, "Z"), strings.HasPrefix(payload, "z"):
		s.send("OK")
	default:
		s.send("")
	}
}

func startStub(t *testing.T) (*Engine, *stub) {
	t.Helper()
	client, server := net.Pipe()
	s := &stub{
		conn:    server,
		memAddr: 0x1000,
		memory:  bytes.Repeat([]byte{0xAB}, 0x900),
		stop:    make(chan struct{}),
	}
	go s.serve()
	e, err := New(context.Background(), client)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		client.Close()
		server.Close()
		<-s.stop
	})
	return e, s
}

func TestEngineBootstrap(t *testing.T) {
	e, s := startStub(t)
	info, err := e.Target(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := engine.TargetInfo{Triple: "arm64-apple-ios", Arch: "arm64", PID: 0x10e2}
	if *info != want {
		t.Errorf("Target() = %+v, want %+v", *info, want)
	}
	got := s.log()
	if len(got) != 4 || got[0] != "QStartNoAckMode" || got[2] != "qHostInfo" {
		t.Errorf("bootstrap packets = %v", got)
	}
}

func TestEngineReadMemory(t *testing.T) {
	e, s := startStub(t)
	ctx := context.Background()

	data, err := e.ReadMemory(ctx, 0x1000, 0x900)
	if err != nil || len(data) != 0x900 || data[0x8ff] != 0xAB {
		t.Fatalf("ReadMemory() = %d bytes, %v", len(data), err)
	}
	pkts := s.log()
	if pkts[len(pkts)-2] != "m1000,800" || pkts[len(pkts)-1] != "m1800,100" {
		t.Errorf("memory packets = %v", pkts[len(pkts)-2:])
	}

	data, err = e.ReadMemory(ctx, 0x1800+0xf0, 0x20)
	if err != nil || len(data) != 0x10 {
		t.Errorf("short ReadMemory() = %d bytes, %v", len(data), err)
	}

	_, err = e.ReadMemory(ctx, 0x10, 4)
	var er *ErrorReply
	if !errors.As(err, &er) || er.Message != "bad address" {
		t.Errorf("ReadMemory(bad) error = %v", err)
	}

	sent := len(s.log())
	for _, n := range []int{0, -1} {
		data, err := e.ReadMemory(ctx, 0x1000, n)
		if err != nil || len(data) != 0 {
			t.Errorf("ReadMemory(length %d) = %d bytes, %v", n, len(data), err)
		}
	}
	if len(s.log()) != sent {
		t.Errorf("empty reads sent packets: %v", s.log()[sent:])
	}
}

func TestEngineBreakpoints(t *testing.T) {
	e, s := startStub(t)
	ctx := context.Background()

	if _, err := e.SetBreakpoint(ctx, engine.BreakpointSpec{Name: "objc_exception_throw"}); !errors.Is(err, engine.ErrUnsupported) {
		t.Errorf("SetBreakpoint(name) error = %v, want ErrUnsupported", err)
	}
	bp, err := e.SetBreakpoint(ctx, engine.BreakpointSpec{Address: 0x100003f00})
	if err != nil || bp.ID != 1 {
		t.Fatalf("SetBreakpoint() = %+v, %v", bp, err)
	}
	if err := e.EnableBreakpoint(ctx, bp.ID, false); err != nil {
		t.Fatal(err)
	}
	// already enabled breakpoints are left alone
	if err := e.EnableBreakpoint(ctx, bp.ID, false); err != nil {
		t.Fatal(err)
	}
	if err := e.EnableBreakpoint(ctx, 9, true); err == nil {
		t.Error("EnableBreakpoint() should reject unknown ids")
	}
	wp, err := e.SetWatchpoint(ctx, 0x6000, 8, engine.WatchReadWrite)
	if err != nil || wp.ID != 1 || wp.Kind != engine.WatchReadWrite {
		t.Fatalf("SetWatchpoint() = %+v, %v", wp, err)
	}

	pkts := s.log()
	want := []string{"Z0,100003f00,4", "z0,100003f00,4", "Z4,6000,8"}
	got := pkts[len(pkts)-3:]
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("packets = %v, want %v", got, want)
			break
		}
	}
	if _, err := e.Evaluate(ctx, "1", engine.ObjC); !errors.Is(err, engine.ErrUnsupported) {
		t.Errorf("Evaluate() error = %v", err)
	}
}

func TestEngineContinueInterrupt(t *testing.T) {
	e, _ := startStub(t)
	var out syncBuffer
	e.Output = &out
	ctx := context.Background()

	if err := e.Continue(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.Interrupt(ctx); err != nil {
		t.Fatal(err)
	}
	if out.String() != "hello\n" {
		t.Errorf("console output = %q", out.String())
	}
	// stopped again, so requests go through
	if _, err := e.ReadMemory(ctx, 0x1000, 4); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}
