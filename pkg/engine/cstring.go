package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

const (
	pageSize  = 0x1000
	chunkSize = 0x200
)

// ReadCString reads a NUL terminated string at addr. Reads never cross a page
// boundary so a string ending just before unmapped memory can still be read.
func ReadCString(ctx context.Context, mr MemoryReader, addr uint64, max int) (string, error) {
	if addr == 0 {
		return "", ErrNilPointer
	}
	var buf bytes.Buffer
	for buf.Len() < max {
		n := chunkSize
		if rem := int(pageSize - (addr % pageSize)); rem < n {
			n = rem
		}
		if left := max - buf.Len(); left < n {
			n = left
		}
		data, err := mr.ReadMemory(ctx, addr, n)
		if err != nil {
			return "", err
		}
		if len(data) == 0 {
			return "", fmt.Errorf("short read at %#x", addr)
		}
		if i := bytes.IndexByte(data, 0); i >= 0 {
			buf.Write(data[:i])
			return buf.String(), nil
		}
		buf.Write(data)
		addr += uint64(len(data))
	}
	return buf.String(), nil
}

type memoryReaderAt struct {
	ctx  context.Context
	mr   MemoryReader
	base uint64
}

// NewReaderAt returns an io.ReaderAt over target memory with offset 0 at base.
func NewReaderAt(ctx context.Context, mr MemoryReader, base uint64) io.ReaderAt {
	return &memoryReaderAt{ctx: ctx, mr: mr, base: base}
}

func (r *memoryReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if len(p) == 0 {
		return 0, nil
	}
	data, err := r.mr.ReadMemory(r.ctx, r.base+uint64(off), len(p))
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
