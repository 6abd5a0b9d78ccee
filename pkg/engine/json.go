package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// MaxJSONSize is the largest JSON document read back from the target.
const MaxJSONSize = 1 << 20

// ReturnMacro is prepended to every JSON statement expression. RETURN wraps a
// JSON-serializable value in {"return": value} and yields a UTF-8 C string.
const ReturnMacro = `
#define IS_JSON_OBJ(obj)\
    (obj != nil && ((bool)[NSJSONSerialization isValidJSONObject:obj] ||\
    (bool)[obj isKindOfClass:[NSString class]] ||\
    (bool)[obj isKindOfClass:[NSNumber class]]))
#define RETURN(ret) ({\
    if (!IS_JSON_OBJ(ret)) {\
        (void)[NSException raise:@"Invalid RETURN argument" format:@""];\
    }\
    NSDictionary *__dict = @{@"return":ret};\
    NSData *__data = (id)[NSJSONSerialization dataWithJSONObject:__dict options:0 error:NULL];\
    NSString *__str = (id)[[NSString alloc] initWithData:__data encoding:4];\
    (char *)[__str UTF8String];})
#define RETURNCString(ret)\
    ({NSString *___cstring_ret = [NSString stringWithUTF8String:ret];\
    RETURN(___cstring_ret);})
`

// ErrNoReturn is returned for bodies whose final statement is not a RETURN.
var ErrNoReturn = errors.New("invalid expression: the last statement must be a RETURN family macro")

// Inspector can both evaluate expressions and read memory.
type Inspector interface {
	Evaluator
	MemoryReader
}

// CheckReturnExpression verifies the last statement of body uses RETURN.
func CheckReturnExpression(body string) error {
	parts := strings.Split(strings.TrimSpace(body), ";")
	if len(parts) < 2 || !strings.Contains(parts[len(parts)-2], "RETURN") {
		return ErrNoReturn
	}
	return nil
}

// WrapReturnMacro turns body into a statement expression with the RETURN macros defined.
func WrapReturnMacro(body string) string {
	return "({" + ReturnMacro + "\n" + body + "})"
}

// EvaluateJSONRaw runs body in the target and returns the raw JSON of the
// RETURNed value.
func EvaluateJSONRaw(ctx context.Context, e Inspector, body string) (string, error) {
	if err := CheckReturnExpression(body); err != nil {
		return "", err
	}
	p, err := EvaluatePointer(ctx, e, WrapReturnMacro(body))
	if err != nil {
		return "", err
	}
	if p.IsNil() {
		return "", ErrNilPointer
	}
	doc, err := ReadCString(ctx, e, uint64(p), MaxJSONSize)
	if err != nil {
		return "", fmt.Errorf("failed to read JSON result at %s: %v", p, err)
	}
	return ExtractReturn(doc)
}

// EvaluateJSON runs body in the target and decodes the RETURNed value.
func EvaluateJSON(ctx context.Context, e Inspector, body string) (any, error) {
	raw, err := EvaluateJSONRaw(ctx, e, body)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("failed to decode JSON result: %v", err)
	}
	return v, nil
}

// ExtractReturn validates a {"return": value} envelope and returns value as raw JSON.
func ExtractReturn(doc string) (string, error) {
	if !gjson.Valid(doc) {
		return "", fmt.Errorf("invalid JSON result: %q", truncate(doc, 64))
	}
	ret := gjson.Get(doc, "return")
	if !ret.Exists() {
		return "", fmt.Errorf("JSON result has no 'return' key")
	}
	return ret.Raw, nil
}

// DecodeReturn decodes a {"return": value} envelope.
func DecodeReturn(doc string) (any, error) {
	raw, err := ExtractReturn(doc)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
