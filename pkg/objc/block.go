package objc

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/blacktop/chisel/pkg/engine"
)

// Block literal flags.
const (
	BlockHasCopyDispose = 1 << 25
	BlockHasCtor        = 1 << 26
	BlockIsGlobal       = 1 << 28
	BlockHasStret       = 1 << 29
	BlockHasSignature   = 1 << 30
)

const (
	blockLiteralSize = 32
	maxSignatureLen  = 1024
)

// Block is a block literal read out of target memory (64-bit layout).
type Block struct {
	Isa        engine.Pointer
	Flags      uint32
	Reserved   uint32
	Invoke     engine.Pointer
	Descriptor engine.Pointer
	Size       uint64
	Signature  string
}

// ReadBlock reads the block literal at addr and, when present, its signature.
func ReadBlock(ctx context.Context, mr engine.MemoryReader, addr uint64) (*Block, error) {
	data, err := mr.ReadMemory(ctx, addr, blockLiteralSize)
	if err != nil {
		return nil, err
	}
	if len(data) < blockLiteralSize {
		return nil, fmt.Errorf("short read of block literal at %#x", addr)
	}
	b := &Block{
		Isa:        engine.Pointer(binary.LittleEndian.Uint64(data[0:])),
		Flags:      binary.LittleEndian.Uint32(data[8:]),
		Reserved:   binary.LittleEndian.Uint32(data[12:]),
		Invoke:     engine.Pointer(binary.LittleEndian.Uint64(data[16:])),
		Descriptor: engine.Pointer(binary.LittleEndian.Uint64(data[24:])),
	}
	if b.Descriptor.IsNil() {
		return b, nil
	}
	// struct Block_descriptor { reserved; size; [copy; dispose;] [signature;] }
	descSize := 16
	if b.Flags&BlockHasCopyDispose != 0 {
		descSize += 16
	}
	if b.Flags&BlockHasSignature != 0 {
		descSize += 8
	}
	desc, err := mr.ReadMemory(ctx, uint64(b.Descriptor), descSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read block descriptor at %s: %v", b.Descriptor, err)
	}
	if len(desc) < descSize {
		return nil, fmt.Errorf("short read of block descriptor at %s", b.Descriptor)
	}
	b.Size = binary.LittleEndian.Uint64(desc[8:])
	if b.Flags&BlockHasSignature != 0 {
		sig := binary.LittleEndian.Uint64(desc[descSize-8:])
		if sig != 0 {
			b.Signature, err = engine.ReadCString(ctx, mr, sig, maxSignatureLen)
			if err != nil {
				return nil, fmt.Errorf("failed to read block signature at %#x: %v", sig, err)
			}
		}
	}
	return b, nil
}

// Types returns the decoded return type and argument types. The block itself,
// always passed as the first argument, is omitted.
func (b *Block) Types() (string, []string) {
	encs := SplitEncodings(b.Signature)
	if len(encs) == 0 {
		return "", nil
	}
	var args []string
	if len(encs) > 2 {
		for _, enc := range encs[2:] {
			args = append(args, DecodeType(enc))
		}
	}
	return DecodeType(encs[0]), args
}

// PrettyPrint renders the block type as `ret ^(args);`.
func (b *Block) PrettyPrint() string {
	ret, args := b.Types()
	return fmt.Sprintf("%s ^(%s);", ret, strings.Join(args, ", "))
}

func (b *Block) String() string {
	if b.Signature == "" {
		return "Imp: " + b.Invoke.String()
	}
	return "Imp: " + b.Invoke.String() + "    Signature: " + b.PrettyPrint()
}
