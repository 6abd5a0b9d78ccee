package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/objc"
)

const timestampFormat = "2006-01-02-15-04-05"

func copyCommands() []chisel.Command {
	return []chisel.Command{
		chisel.New(chisel.Spec{
			Name:        "copy",
			Description: "Copy data to your Mac.",
			Args:        []chisel.Argument{{Arg: "target", Type: "(id)", Help: "The object to copy."}},
			Options: []chisel.Argument{
				{Short: "f", Long: "filename", Arg: "filename", Type: "string", Help: "The output filename."},
				{Short: "n", Long: "no-open", Arg: "noOpen", Help: "Do not open the file.", Default: false, Boolean: true},
			},
		}, runCopy),
	}
}

// readData reads the bytes of the NSData data out of the target. ok is false
// when data is empty.
func readData(ctx context.Context, s *chisel.Session, data string) (buf []byte, ok bool, err error) {
	start, err := engine.EvaluatePointer(ctx, s.Engine, fmt.Sprintf("(void *)[(id)%s bytes]", data))
	if err != nil {
		return nil, false, err
	}
	length, err := engine.EvaluateExpression(ctx, s.Engine, fmt.Sprintf("(NSUInteger)[(id)%s length]", data))
	if err != nil {
		return nil, false, err
	}
	n, err := engine.ParseInteger(length)
	if err != nil {
		return nil, false, err
	}
	if start.IsNil() && n == 0 {
		return nil, false, nil
	}
	buf, err = s.Engine.ReadMemory(ctx, uint64(start), int(n))
	if err != nil {
		return nil, false, err
	}
	return buf, true, nil
}

func copyFromData(ctx context.Context, s *chisel.Session, data, defaultName, preferredName string, noOpen bool) error {
	dir := s.Config.Paths.CopyDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %v", dir, err)
	}
	name := preferredName
	if name == "" {
		name = defaultName
	}
	path := filepath.Join(dir, name)

	buf, ok, err := readData(ctx, s, data)
	if err != nil {
		s.Println(err)
		return nil
	}
	if !ok {
		s.Println("Could not get data.")
		return nil
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %v", path, err)
	}
	s.Printf("%s (%s)\n", path, humanize.Bytes(uint64(len(buf))))
	if noOpen {
		return nil
	}
	return s.Open(path)
}

func runCopy(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
	target := "(" + args[0] + ")"
	preferred := opts.String("filename")
	noOpen := opts.Bool("noOpen")

	isURL, err := objc.IsKindOfClass(ctx, s.Engine, target, "NSURL")
	if err != nil {
		return err
	}
	if isURL {
		data, err := engine.EvaluateObject(ctx, s.Engine, fmt.Sprintf("(id)[NSData dataWithContentsOfURL:(id)%s]", target))
		if err != nil {
			return err
		}
		name, err := engine.DescribeObject(ctx, s.Engine, fmt.Sprintf("(id)[[%s pathComponents] lastObject]", target))
		if err != nil {
			return err
		}
		return copyFromData(ctx, s, data.String(), name, preferred, noOpen)
	}

	isData, err := objc.IsKindOfClass(ctx, s.Engine, target, "NSData")
	if err != nil {
		return err
	}
	if isData {
		name := s.Now().UTC().Format(timestampFormat) + ".data"
		return copyFromData(ctx, s, target, name, preferred, noOpen)
	}

	cls, err := className(ctx, s, target)
	if err != nil {
		return err
	}
	s.Printf("%s isn't supported. You can copy an NSURL or NSData.\n", cls)
	return nil
}
