package objc

import (
	"context"
	"fmt"
	"strings"

	"github.com/blacktop/chisel/pkg/engine"
)

// Property is a property descriptor produced in the target by class_copyPropertyList.
type Property struct {
	Name             string            `mapstructure:"name" json:"name"`
	AttributesString string            `mapstructure:"attributes_string" json:"attributes_string"`
	AttributesList   map[string]string `mapstructure:"attributes_list" json:"attributes_list"`
}

func (p Property) has(attr string) bool {
	_, ok := p.AttributesList[attr]
	return ok
}

// Attributes returns the declared attributes in source order.
func (p Property) Attributes() []string {
	var attrs []string
	if p.has("N") {
		attrs = append(attrs, "nonatomic")
	} else {
		attrs = append(attrs, "atomic")
	}
	switch {
	case p.has("&"):
		attrs = append(attrs, "strong")
	case p.has("C"):
		attrs = append(attrs, "copy")
	case p.has("W"):
		attrs = append(attrs, "weak")
	default:
		attrs = append(attrs, "assign")
	}
	if p.has("R") {
		attrs = append(attrs, "readonly")
	} else {
		attrs = append(attrs, "readwrite")
	}
	if g, ok := p.AttributesList["G"]; ok {
		attrs = append(attrs, "getter="+g)
	}
	if s, ok := p.AttributesList["S"]; ok {
		attrs = append(attrs, "setter="+s)
	}
	return attrs
}

// Type returns the decoded property type.
func (p Property) Type() string {
	return DecodeType(p.AttributesList["T"])
}

// PrettyPrint renders the property as an @property declaration.
func (p Property) PrettyPrint() string {
	return fmt.Sprintf("@property (%s) %s %s;", strings.Join(p.Attributes(), ", "), p.Type(), p.Name)
}

// ParseAttributes splits a property_getAttributes string such as
// `T@"NSString",C,N,V_name` into its attribute list.
func ParseAttributes(attrs string) map[string]string {
	list := make(map[string]string)
	for len(attrs) > 0 {
		var item string
		if attrs[0] == 'T' {
			// the type may itself contain commas inside quotes or brackets
			end := typeAttrEnd(attrs)
			item, attrs = attrs[:end], attrs[end:]
		} else if i := strings.IndexByte(attrs, ','); i >= 0 {
			item, attrs = attrs[:i], attrs[i:]
		} else {
			item, attrs = attrs, ""
		}
		attrs = strings.TrimPrefix(attrs, ",")
		if item == "" {
			continue
		}
		list[item[:1]] = item[1:]
	}
	return list
}

func typeAttrEnd(s string) int {
	inQuote := false
	depth := 0
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case '{', '(', '[':
			if !inQuote {
				depth++
			}
		case '}', ')', ']':
			if !inQuote {
				depth--
			}
		case ',':
			if !inQuote && depth == 0 {
				return i
			}
		}
	}
	return len(s)
}

const propertyListBody = `NSMutableArray *result = (id)[NSMutableArray array];
unsigned int count;
objc_property_t *props = (objc_property_t *)class_copyPropertyList((Class)%s, &count);
for (int i = 0; i < count; i++) {
  NSMutableDictionary *dict = (id)[NSMutableDictionary dictionary];
  char *name = (char *)property_getName(props[i]);
  [dict setObject:(id)[NSString stringWithUTF8String:name] forKey:@"name"];
  char *attrstr = (char *)property_getAttributes(props[i]);
  [dict setObject:(id)[NSString stringWithUTF8String:attrstr] forKey:@"attributes_string"];
  NSMutableDictionary *attrsDict = (id)[NSMutableDictionary dictionary];
  unsigned int pcount;
  objc_property_attribute_t *attrsList = (objc_property_attribute_t *)property_copyAttributeList(props[i], &pcount);
  for (int j = 0; j < pcount; j++) {
    NSString *name = (id)[NSString stringWithUTF8String:attrsList[j].name];
    NSString *value = (id)[NSString stringWithUTF8String:attrsList[j].value];
    [attrsDict setObject:value forKey:name];
  }
  (void)free(attrsList);
  [dict setObject:attrsDict forKey:@"attributes_list"];
  [result addObject:dict];
}
(void)free(props);
RETURN(result);`

// PropertyListExpression returns the statement body listing the properties of cls.
func PropertyListExpression(cls string) string {
	return fmt.Sprintf(propertyListBody, cls)
}

// Properties lists the properties declared by cls.
func Properties(ctx context.Context, e engine.Inspector, cls string) ([]Property, error) {
	raw, err := engine.EvaluateJSONRaw(ctx, e, PropertyListExpression(cls))
	if err != nil {
		return nil, err
	}
	return DecodeProperties(raw)
}

// DecodeProperties decodes a JSON array of property descriptors.
func DecodeProperties(raw string) ([]Property, error) {
	var props []Property
	if err := decodeDescriptors(raw, &props); err != nil {
		return nil, fmt.Errorf("failed to decode property list: %v", err)
	}
	return props, nil
}
