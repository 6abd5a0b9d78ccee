package gdbremote

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const interruptByte = 0x03

// Conn frames gdb-remote packets (`$payload#cc`) over rw.
type Conn struct {
	rw      io.ReadWriter
	scanner *bufio.Scanner
}

// NewConn wraps rw.
func NewConn(rw io.ReadWriter) *Conn {
	scanner := bufio.NewScanner(rw)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	scanner.Split(func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		const lenPacketSuffix = 3
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}

		start := bytes.IndexByte(data, '$')
		if start < 0 {
			// acks only
			return len(data), nil, nil
		}
		end := bytes.IndexByte(data[start:], '#')
		if end < 0 || len(data) < start+end+lenPacketSuffix {
			if atEOF {
				return 0, nil, io.ErrUnexpectedEOF
			}
			return 0, nil, nil
		}
		end += start

		return end + lenPacketSuffix, data[start+1 : end], nil
	})

	return &Conn{rw: rw, scanner: scanner}
}

// Checksum returns the two hex digit modulo 256 sum of payload.
func Checksum(payload string) string {
	sum := 0
	for i := 0; i < len(payload); i++ {
		sum += int(payload[i])
	}
	return hex.EncodeToString([]byte{byte(sum % 256)})
}

// Format frames payload. Packets after the first carry a leading ack for
// the previous reply until no-ack mode is on.
func Format(payload string) string {
	if payload == "QStartNoAckMode" {
		return "$" + payload + "#" + Checksum(payload)
	}
	return "+$" + payload + "#" + Checksum(payload)
}

// Recv returns the next packet payload.
func (c *Conn) Recv() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return c.scanner.Text(), nil
}

// Send writes one packet.
func (c *Conn) Send(payload string) error {
	if _, err := io.WriteString(c.rw, Format(payload)); err != nil {
		return fmt.Errorf("failed to send %q: %v", payload, err)
	}
	return nil
}

// Request sends payload and returns the reply.
func (c *Conn) Request(payload string) (string, error) {
	if err := c.Send(payload); err != nil {
		return "", err
	}
	return c.Recv()
}

// Interrupt writes the out-of-band interrupt byte.
func (c *Conn) Interrupt() error {
	_, err := c.rw.Write([]byte{interruptByte})
	return err
}

// ErrorReply is an `Exx` reply, with the text when error strings are enabled.
type ErrorReply struct {
	Code    string
	Message string
}

func (e *ErrorReply) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gdb-remote error %s: %s", e.Code, e.Message)
	}
	return "gdb-remote error " + e.Code
}

// checkReply turns an error reply into an error.
func checkReply(reply string) error {
	switch {
	case reply == "":
		return errors.New("gdb-remote: packet not supported")
	case len(reply) >= 3 && reply[0] == 'E' && isHex(reply[1:3]):
		e := &ErrorReply{Code: reply[1:3]}
		if len(reply) > 4 && reply[3] == ';' {
			if msg, err := hex.DecodeString(reply[4:]); err == nil {
				e.Message = string(msg)
			} else {
				e.Message = reply[4:]
			}
		}
		return e
	}
	return nil
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}
