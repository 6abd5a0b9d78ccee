package objc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/blacktop/chisel/pkg/engine"
)

// Method is a method descriptor produced in the target by class_copyMethodList.
type Method struct {
	Name           string   `mapstructure:"name" json:"name"`
	TypeEncoding   string   `mapstructure:"type_encoding" json:"type_encoding"`
	ParametersType []string `mapstructure:"parameters_type" json:"parameters_type"`
	ReturnType     string   `mapstructure:"return_type" json:"return_type"`
	Implementation int64    `mapstructure:"implementation" json:"implementation"`
}

// Imp returns the implementation address.
func (m Method) Imp() engine.Pointer {
	return engine.Pointer(uint64(m.Implementation))
}

// Signature interleaves the selector components with the decoded argument
// types. The first two parameters (self and _cmd) are skipped.
func (m Method) Signature() string {
	names := strings.Split(m.Name, ":")
	if len(names) > 1 && names[len(names)-1] == "" {
		names = names[:len(names)-1]
	}
	for i := 2; i < len(m.ParametersType); i++ {
		if i-2 >= len(names) {
			break
		}
		names[i-2] += fmt.Sprintf(":(%s)arg%d", DecodeType(m.ParametersType[i]), i-2)
	}
	return strings.Join(names, " ")
}

// PrettyPrint renders the method as (ret)sel:(type)arg0 ...
func (m Method) PrettyPrint() string {
	return "(" + DecodeType(m.ReturnType) + ")" + m.Signature()
}

// MethodFromSignature builds a Method from a selector and a full signature
// such as "v24@0:8@16".
func MethodFromSignature(sel, sig string) Method {
	m := Method{Name: sel, TypeEncoding: sig}
	encs := SplitEncodings(sig)
	if len(encs) > 0 {
		m.ReturnType = encs[0]
		m.ParametersType = encs[1:]
	}
	return m
}

// methodListBody enumerates the methods of the class in $cls and RETURNs them.
const methodListBody = `unsigned int outCount;
Method *methods = (Method *)class_copyMethodList((Class)%s, &outCount);
NSMutableArray *result = (id)[NSMutableArray array];
for (int i = 0; i < outCount; i++) {
  NSMutableDictionary *m = (id)[NSMutableDictionary dictionary];
  SEL name = (SEL)method_getName(methods[i]);
  [m setObject:(id)NSStringFromSelector(name) forKey:@"name"];
  char * encoding = (char *)method_getTypeEncoding(methods[i]);
  [m setObject:(id)[NSString stringWithUTF8String:encoding] forKey:@"type_encoding"];
  NSMutableArray *types = (id)[NSMutableArray array];
  NSInteger args = (NSInteger)method_getNumberOfArguments(methods[i]);
  for (int idx = 0; idx < args; idx++) {
    char *type = (char *)method_copyArgumentType(methods[i], idx);
    [types addObject:(id)[NSString stringWithUTF8String:type]];
  }
  [m setObject:types forKey:@"parameters_type"];
  char *ret_type = (char *)method_copyReturnType(methods[i]);
  [m setObject:(id)[NSString stringWithUTF8String:ret_type] forKey:@"return_type"];
  long imp = (long)method_getImplementation(methods[i]);
  [m setObject:[NSNumber numberWithLongLong:imp] forKey:@"implementation"];
  [result addObject:m];
}
(void)free(methods);
RETURN(result);`

// MethodListExpression returns the statement body listing the methods of cls.
func MethodListExpression(cls string) string {
	return fmt.Sprintf(methodListBody, cls)
}

// Methods lists the methods implemented directly by cls.
func Methods(ctx context.Context, e engine.Inspector, cls string) ([]Method, error) {
	raw, err := engine.EvaluateJSONRaw(ctx, e, MethodListExpression(cls))
	if err != nil {
		return nil, err
	}
	var methods []Method
	if err := decodeDescriptors(raw, &methods); err != nil {
		return nil, fmt.Errorf("failed to decode method list: %v", err)
	}
	return methods, nil
}

// DecodeMethods decodes a JSON array of method descriptors.
func DecodeMethods(raw string) ([]Method, error) {
	var methods []Method
	if err := decodeDescriptors(raw, &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

// decodeDescriptors decodes a JSON array of dictionaries into out. Every
// field of the target struct must be present in every dictionary.
func decodeDescriptors(raw string, out any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var list []map[string]any
	if err := dec.Decode(&list); err != nil {
		return err
	}
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnset:       true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return d.Decode(list)
}
