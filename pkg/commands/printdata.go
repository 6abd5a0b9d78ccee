package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/blacktop/chisel/internal/utils"
	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/objc"
)

// stringEncodings maps normalized encoding names to NSStringEncoding values.
var stringEncodings = map[string]uint64{
	"ascii":    1,
	"utf8":     4,
	"latin1":   5,
	"iso88591": 5,
	"latin2":   9,
	"iso88592": 9,
	"unicode":  10,
	"utf16":    10,
	"utf16l":   0x94000100,
	"utf16b":   0x90000100,
	"utf32":    0x8c000100,
	"utf32l":   0x9c000100,
	"utf32b":   0x98000100,
	"cp1251":   11,
	"cp1252":   12,
	"cp1253":   13,
	"cp1254":   14,
	"cp1250":   15,
}

func dataCommands() []chisel.Command {
	return []chisel.Command{
		chisel.New(chisel.Spec{
			Name:        "pjson",
			Description: "Print JSON representation of NSDictionary or NSArray object",
			Args:        []chisel.Argument{{Arg: "object", Type: "id", Help: "The NSDictionary or NSArray object to print"}},
			Options: []chisel.Argument{
				{Short: "p", Long: "plain", Arg: "plain", Help: "Plain JSON", Default: false, Boolean: true},
			},
		}, runPrintJSON),
		chisel.New(chisel.Spec{
			Name:        "pdata",
			Description: "Print the contents of NSData object as string.",
			Args:        []chisel.Argument{{Arg: "data", Type: "NSData *", Help: "NSData object."}},
			Options: []chisel.Argument{
				{Short: "e", Long: "encoding", Arg: "encoding", Type: "string", Help: "Used encoding (default utf-8).", Default: "utf-8"},
				{Short: "x", Long: "hex", Arg: "hex", Help: "Print a hex dump of the bytes instead.", Default: false, Boolean: true},
			},
		}, runPrintData),
		chisel.New(chisel.Spec{
			Name:        "pds",
			Description: "Print NSData as UTF8 string.",
			Args:        []chisel.Argument{{Arg: "data", Type: "NSData *", Help: "NSData object."}},
		}, func(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
			return describe(ctx, s, fmt.Sprintf("(NSString*)[[NSString alloc] initWithData:%s encoding:4]", args[0]))
		}),
		chisel.New(chisel.Spec{
			Name:        "pdocspath",
			Description: "Print application's 'Documents' directory path.",
			Options: []chisel.Argument{
				{Short: "o", Long: "open", Arg: "open", Help: "open in Finder", Default: false, Boolean: true},
			},
		}, func(ctx context.Context, s *chisel.Session, _ []string, opts chisel.Values) error {
			// NSDocumentDirectory = 9, NSUserDomainMask = 1
			return printPath(ctx, s, "(NSString*)[NSSearchPathForDirectoriesInDomains(9, 1, YES) lastObject]", opts.Bool("open"))
		}),
		chisel.New(chisel.Spec{
			Name:        "pbundlepath",
			Description: "Print application's bundle directory path.",
			Options: []chisel.Argument{
				{Short: "o", Long: "open", Arg: "open", Help: "open in Finder", Default: false, Boolean: true},
			},
		}, func(ctx context.Context, s *chisel.Session, _ []string, opts chisel.Values) error {
			return printPath(ctx, s, "(NSString*)[[NSBundle mainBundle] bundlePath]", opts.Bool("open"))
		}),
		chisel.New(chisel.Spec{
			Name:        "pcurl",
			Description: "Print the NSURLRequest (HTTP) as curl command.",
			Args:        []chisel.Argument{{Arg: "request", Type: "NSURLRequest*/NSMutableURLRequest*", Help: "The request to convert to the curl command."}},
			Options: []chisel.Argument{
				{Short: "e", Long: "embed-data", Arg: "embed", Help: "Embed request data as base64.", Default: false, Boolean: true},
			},
		}, runPrintCurl),
		chisel.New(chisel.Spec{
			Name:        "pblock",
			Description: "Print the block`s implementation address and signature",
			Args:        []chisel.Argument{{Arg: "block", Help: "The block object you want to print"}},
		}, runPrintBlock),
	}
}

func runPrintJSON(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
	// NSJSONWritingPrettyPrinted
	pretty := 1
	if opts.Bool("plain") {
		pretty = 0
	}
	data, err := engine.EvaluateObject(ctx, s.Engine, fmt.Sprintf("[NSJSONSerialization dataWithJSONObject:(id)%s options:%d error:nil]", args[0], pretty))
	if err != nil {
		return err
	}
	return describe(ctx, s, fmt.Sprintf("(NSString*)[[NSString alloc] initWithData:(id)%s encoding:4]", data))
}

// normalizeEncoding folds an encoding name to its lookup key.
func normalizeEncoding(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "")
}

func runPrintData(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
	if opts.Bool("hex") {
		buf, ok, err := readData(ctx, s, args[0])
		if err != nil {
			return err
		}
		if !ok {
			s.Println("NSData is empty")
			return nil
		}
		s.Printf("%s", utils.HexDump(buf, 0))
		return nil
	}
	name := opts.String("encoding")
	enc, ok := stringEncodings[normalizeEncoding(name)]
	if !ok {
		s.Printf("Unknown encoding %q; using utf-8\n", name)
		enc = stringEncodings["utf8"]
	}
	return describe(ctx, s, fmt.Sprintf("[[NSString alloc] initWithData:%s encoding:%d]", args[0], enc))
}

func printPath(ctx context.Context, s *chisel.Session, expr string, open bool) error {
	path, err := engine.DescribeObject(ctx, s.Engine, expr)
	if err != nil {
		return err
	}
	if open {
		return s.Open(path)
	}
	s.Println(path)
	return nil
}

func runPrintCurl(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
	request := args[0]
	embed := opts.Bool("embed")
	e := s.Engine

	method, err := engine.DescribeObject(ctx, e, fmt.Sprintf("(id)[%s HTTPMethod]", request))
	if err != nil {
		return err
	}
	url, err := engine.DescribeObject(ctx, e, fmt.Sprintf("(id)[%s URL]", request))
	if err != nil {
		return err
	}
	timeout, err := engine.EvaluateExpression(ctx, e, fmt.Sprintf("(NSTimeInterval)[%s timeoutInterval]", request))
	if err != nil {
		return err
	}
	headers, err := engine.EvaluateObject(ctx, e, fmt.Sprintf("(id)[%s allHTTPHeaderFields]", request))
	if err != nil {
		return err
	}

	var headerArgs []string
	if !headers.IsNil() {
		keys, err := engine.EvaluateObject(ctx, e, fmt.Sprintf("[%s allKeys]", headers))
		if err != nil {
			return err
		}
		n, err := engine.EvaluateInteger(ctx, e, fmt.Sprintf("[(id)%s count]", keys))
		if err != nil {
			return err
		}
		for i := int64(0); i < n; i++ {
			key, err := engine.DescribeObject(ctx, e, fmt.Sprintf("[%s objectAtIndex:%d]", keys, i))
			if err != nil {
				return err
			}
			value, err := engine.DescribeObject(ctx, e, fmt.Sprintf(`[(id)%s objectForKey:@"%s"]`, headers, quote(key)))
			if err != nil {
				return err
			}
			headerArgs = append(headerArgs, fmt.Sprintf(`-H "%s: %s"`, key, value))
		}
	}

	var dataFile, dataAsString string
	body, err := engine.EvaluateObject(ctx, e, fmt.Sprintf("[%s HTTPBody]", request))
	if err != nil {
		return err
	}
	if !body.IsNil() {
		length, err := engine.EvaluateInteger(ctx, e, fmt.Sprintf("[(id)%s length]", body))
		if err != nil {
			return err
		}
		if length > 0 {
			stamp, err := engine.EvaluateExpression(ctx, e, "(NSTimeInterval)[NSDate timeIntervalSinceReferenceDate]")
			if err != nil {
				return err
			}
			dataFile = "/tmp/curl_data_" + strings.TrimSpace(stamp)
			device, err := isDevice(ctx, s)
			if err != nil {
				return err
			}
			switch {
			case embed:
				supported, err := engine.EvaluateBoolean(ctx, e, fmt.Sprintf("[%s respondsToSelector:@selector(base64EncodedStringWithOptions:)]", body))
				if err != nil {
					return err
				}
				if !supported {
					s.Println("This version of OS doesn't supports base64 data encoding")
					return nil
				}
				dataAsString, err = engine.DescribeObject(ctx, e, fmt.Sprintf("(id)[(id)%s base64EncodedStringWithOptions:0]", body))
				if err != nil {
					return err
				}
			case !device:
				ok, err := engine.EvaluateBoolean(ctx, e, fmt.Sprintf(`[%s writeToFile:@"%s" atomically:NO]`, body, dataFile))
				if err != nil {
					return err
				}
				if !ok {
					s.Printf("Can't write data to file %s\n", dataFile)
					return nil
				}
			default:
				s.Println(`HTTPBody data for iOS Device is supported only with "--embed-data" flag`)
				return nil
			}
		}
	}

	var sb strings.Builder
	if dataAsString != "" {
		fmt.Fprintf(&sb, `echo "%s" | base64 -D -o "%s" && `, dataAsString, dataFile)
	}
	fmt.Fprintf(&sb, "curl -X %s --connect-timeout %s", method, strings.TrimSpace(timeout))
	if len(headerArgs) > 0 {
		sb.WriteString(" " + strings.Join(headerArgs, " "))
	}
	if dataFile != "" {
		fmt.Fprintf(&sb, ` --data-binary @"%s"`, dataFile)
	}
	fmt.Fprintf(&sb, ` "%s"`, url)
	s.Println(sb.String())
	return nil
}

// isDevice reports whether the target is a physical iOS device.
func isDevice(ctx context.Context, s *chisel.Session) (bool, error) {
	return objc.IsIOSDevice(ctx, s.Engine)
}

func runPrintBlock(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	addr, err := engine.EvaluatePointer(ctx, s.Engine, fmt.Sprintf("(void *)(%s)", args[0]))
	if err != nil {
		return err
	}
	if addr.IsNil() {
		s.Println("Block is nil")
		return nil
	}
	block, err := objc.ReadBlock(ctx, s.Engine, uint64(addr))
	if err != nil {
		return err
	}
	s.Println(block.String())
	return nil
}
