// Package xctest reads XCUIElement snapshots out of a UI test runner.
package xctest

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/hierarchy"
	"github.com/blacktop/chisel/pkg/uikit"
)

// DefaultElement is the application under test.
const DefaultElement = "(XCUIApplication *)[[XCUIApplication alloc] init]"

const snapshotPrelude = `
#define XC_STR(x) ({ id __v = (id)(x); __v ? (NSString *)[NSString stringWithFormat:@"%%@", __v] : @""; })
XCElementSnapshot *__s = (XCElementSnapshot *)%s;
`

const summaryBody = snapshotPrelude + `CGRect __f = (CGRect)[__s frame];
NSMutableArray *__kids = (NSMutableArray *)[NSMutableArray array];
for (id __c in (NSArray *)[__s children]) {
    (void)[__kids addObject:(NSString *)[NSString stringWithFormat:@"%%p", __c]];
}
NSDictionary *__d = @{
    @"type": @((int)[__s elementType]),
    @"traits": @((unsigned long long)[__s traits]),
    @"frame": @[@(__f.origin.x), @(__f.origin.y), @(__f.size.width), @(__f.size.height)],
    @"identifier": XC_STR([__s identifier]),
    @"label": XC_STR([__s label]),
    @"title": XC_STR([__s title]),
    @"value": XC_STR([__s value]),
    @"placeholder": XC_STR([__s placeholderValue]),
    @"enabled": @((BOOL)[__s enabled]),
    @"selected": @((BOOL)[__s selected]),
    @"mainWindow": @((BOOL)[__s isMainWindow]),
    @"keyboardFocus": @((BOOL)[__s hasKeyboardFocus]),
    @"focus": @((BOOL)[__s hasFocus]),
    @"children": __kids,
};
RETURN(__d);`

const detailBody = snapshotPrelude + `CGRect __vf = (CGRect)[__s visibleFrame];
CGPoint __h = (CGPoint)[__s hitPoint];
CGPoint __hs = (CGPoint)[__s hitPointForScrolling];
NSDictionary *__d = @{
    @"depth": @((int)[__s depth]),
    @"visibleFrame": @[@(__vf.origin.x), @(__vf.origin.y), @(__vf.size.width), @(__vf.size.height)],
    @"hitPoint": @[@(__h.x), @(__h.y)],
    @"hitPointForScrolling": @[@(__hs.x), @(__hs.y)],
    @"generation": @((unsigned int)[__s generation]),
    @"horizontalSizeClass": @((int)[__s horizontalSizeClass]),
    @"verticalSizeClass": @((int)[__s verticalSizeClass]),
    @"touchBar": @((BOOL)[__s isTouchBarElement]),
    @"topLevelTouchBar": @((BOOL)[__s isTopLevelTouchBarElement]),
    @"uniqueObjC": XC_STR([(id)[__s _uniquelyIdentifyingObjectiveCCode] description]),
    @"uniqueSwift": XC_STR([(id)[__s _uniquelyIdentifyingSwiftCode] description]),
    @"hitPoints": XC_STR([(id)[__s suggestedHitpoints] description]),
};
RETURN(__d);`

// Snapshot is an XCElementSnapshot and its subtree.
type Snapshot struct {
	Pointer       engine.Pointer
	Type          ElementType
	Traits        Traits
	Frame         uikit.Rect
	Identifier    string
	Label         string
	Title         string
	Value         string
	Placeholder   string
	Enabled       bool
	Selected      bool
	MainWindow    bool
	KeyboardFocus bool
	Focus         bool
	Children      []*Snapshot

	childPointers []engine.Pointer
}

// Detail holds the attributes only xobject prints.
type Detail struct {
	Depth                int
	VisibleFrame         uikit.Rect
	HitPoint             uikit.Point
	HitPointForScrolling uikit.Point
	Generation           uint64
	HorizontalSizeClass  SizeClass
	VerticalSizeClass    SizeClass
	TouchBarElement      bool
	TopLevelTouchBar     bool
	UniqueObjC           string
	UniqueSwift          string
	SuggestedHitPoints   string
}

// TakeSnapshot returns the first snapshot matching the query of element.
func TakeSnapshot(ctx context.Context, e engine.Evaluator, element string) (engine.Pointer, error) {
	p, err := engine.EvaluatePointer(ctx, e, fmt.Sprintf("(XCElementSnapshot *)[[[%s query] matchingSnapshotsWithError:nil] firstObject]", element))
	if err != nil {
		return 0, err
	}
	if p.IsNil() {
		return 0, fmt.Errorf("no snapshot matches %s", element)
	}
	return p, nil
}

// Load reads snapshot and all of its descendants.
func Load(ctx context.Context, e engine.Inspector, snapshot engine.Pointer, opts hierarchy.Options) (*Snapshot, error) {
	nodes := make(map[engine.Pointer]*Snapshot)
	var stack []*Snapshot
	_, err := hierarchy.Walk(ctx, snapshot, func(_ context.Context, p engine.Pointer) ([]engine.Pointer, error) {
		return nodes[p].childPointers, nil
	}, func(p engine.Pointer, depth int) error {
		node, err := LoadElement(ctx, e, p)
		if err != nil {
			return err
		}
		nodes[p] = node
		stack = append(stack[:depth], node)
		if depth > 0 {
			parent := stack[depth-1]
			parent.Children = append(parent.Children, node)
		}
		return nil
	}, opts)
	if err != nil {
		return nil, err
	}
	return nodes[snapshot], nil
}

// LoadElement reads snapshot without its children.
func LoadElement(ctx context.Context, e engine.Inspector, snapshot engine.Pointer) (*Snapshot, error) {
	raw, err := engine.EvaluateJSONRaw(ctx, e, fmt.Sprintf(summaryBody, snapshot))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %v", snapshot, err)
	}
	return DecodeSnapshot(snapshot, raw)
}

// DecodeSnapshot decodes the attribute dictionary of one snapshot.
func DecodeSnapshot(p engine.Pointer, raw string) (*Snapshot, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("invalid snapshot JSON for %s", p)
	}
	doc := gjson.Parse(raw)
	s := &Snapshot{
		Pointer:       p,
		Type:          ElementType(doc.Get("type").Int()),
		Traits:        Traits(doc.Get("traits").Uint()),
		Frame:         rect(doc.Get("frame")),
		Identifier:    doc.Get("identifier").String(),
		Label:         doc.Get("label").String(),
		Title:         doc.Get("title").String(),
		Value:         doc.Get("value").String(),
		Placeholder:   doc.Get("placeholder").String(),
		Enabled:       doc.Get("enabled").Bool(),
		Selected:      doc.Get("selected").Bool(),
		MainWindow:    doc.Get("mainWindow").Bool(),
		KeyboardFocus: doc.Get("keyboardFocus").Bool(),
		Focus:         doc.Get("focus").Bool(),
	}
	for _, c := range doc.Get("children").Array() {
		cp, err := engine.ParsePointer(c.String())
		if err != nil {
			return nil, fmt.Errorf("bad child pointer %q: %v", c.String(), err)
		}
		s.childPointers = append(s.childPointers, cp)
	}
	return s, nil
}

// LoadDetail reads the extended attributes of snapshot.
func LoadDetail(ctx context.Context, e engine.Inspector, snapshot engine.Pointer) (*Detail, error) {
	raw, err := engine.EvaluateJSONRaw(ctx, e, fmt.Sprintf(detailBody, snapshot))
	if err != nil {
		return nil, err
	}
	return DecodeDetail(raw)
}

// DecodeDetail decodes the extended attribute dictionary of a snapshot.
func DecodeDetail(raw string) (*Detail, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("invalid snapshot detail JSON")
	}
	doc := gjson.Parse(raw)
	return &Detail{
		Depth:                int(doc.Get("depth").Int()),
		VisibleFrame:         rect(doc.Get("visibleFrame")),
		HitPoint:             point(doc.Get("hitPoint")),
		HitPointForScrolling: point(doc.Get("hitPointForScrolling")),
		Generation:           doc.Get("generation").Uint(),
		HorizontalSizeClass:  SizeClass(doc.Get("horizontalSizeClass").Int()),
		VerticalSizeClass:    SizeClass(doc.Get("verticalSizeClass").Int()),
		TouchBarElement:      doc.Get("touchBar").Bool(),
		TopLevelTouchBar:     doc.Get("topLevelTouchBar").Bool(),
		UniqueObjC:           normalizeArrayDescription(doc.Get("uniqueObjC").String()),
		UniqueSwift:          normalizeArrayDescription(doc.Get("uniqueSwift").String()),
		SuggestedHitPoints:   normalizeArrayDescription(doc.Get("hitPoints").String()),
	}, nil
}

func rect(r gjson.Result) uikit.Rect {
	v := r.Array()
	if len(v) != 4 {
		return uikit.Rect{}
	}
	return uikit.Rect{
		Origin: uikit.Point{X: v[0].Float(), Y: v[1].Float()},
		Size:   uikit.Size{Width: v[2].Float(), Height: v[3].Float()},
	}
}

func point(r gjson.Result) uikit.Point {
	v := r.Array()
	if len(v) != 2 {
		return uikit.Point{}
	}
	return uikit.Point{X: v[0].Float(), Y: v[1].Float()}
}

var leadingAngle = regexp.MustCompile(`^(<.*>)`)

func normalizeArrayDescription(desc string) string {
	return strings.TrimSpace(leadingAngle.ReplaceAllString(desc, ""))
}

// MissingIdentifiers returns the subtree of elements that have a label but
// no identifier, with the ancestors leading to them. It returns nil when
// there are none. The status bar is skipped unless statusBar is set.
func (s *Snapshot) MissingIdentifiers(statusBar bool) *Snapshot {
	if !statusBar && s.Type == StatusBar {
		return nil
	}
	var kids []*Snapshot
	for _, c := range s.Children {
		if m := c.MissingIdentifiers(statusBar); m != nil {
			kids = append(kids, m)
		}
	}
	if !s.missingIdentifier() && len(kids) == 0 {
		return nil
	}
	cp := *s
	cp.Children = kids
	return &cp
}

func (s *Snapshot) missingIdentifier() bool {
	return s.Identifier == "" && s.Label != ""
}

// PrintOptions select the optional parts of a summary line.
type PrintOptions struct {
	Pointer bool
	Traits  bool
	Frame   bool
}

// Summary is the one line description of s.
func (s *Snapshot) Summary(opts PrintOptions) string {
	head := s.Type.String()
	if opts.Pointer {
		head += fmt.Sprintf(" %#x", uint64(s.Pointer))
	}
	if opts.Traits {
		head += fmt.Sprintf(" traits: %s(%#x)", s.Traits, uint64(s.Traits))
	}

	var parts []string
	if opts.Frame {
		parts = append(parts, formatRect(s.Frame))
	}
	for _, f := range []struct{ name, value string }{
		{"identifier", s.Identifier},
		{"label", s.Label},
		{"title", s.Title},
		{"value", s.Value},
		{"placeholderValue", s.Placeholder},
	} {
		if f.value != "" {
			parts = append(parts, fmt.Sprintf("%s: '%s'", f.name, f.value))
		}
	}
	if !s.Enabled {
		parts = append(parts, "enabled: False")
	}
	if s.Selected {
		parts = append(parts, "selected: True")
	}
	if s.MainWindow {
		parts = append(parts, "MainWindow")
	}
	if s.KeyboardFocus {
		parts = append(parts, "hasKeyboardFocus: True")
	}
	if s.Focus {
		parts = append(parts, "hasFocus: True")
	}
	return head + ": " + strings.Join(parts, ", ")
}

// Tree renders s and its subtree one element per line.
func (s *Snapshot) Tree(opts PrintOptions) string {
	var sb strings.Builder
	s.writeTree(&sb, opts, 0)
	return sb.String()
}

func (s *Snapshot) writeTree(sb *strings.Builder, opts PrintOptions, depth int) {
	sb.WriteString(hierarchy.IndentDepth(s.Summary(opts), " | ", depth))
	sb.WriteByte('\n')
	for _, c := range s.Children {
		c.writeTree(sb, opts, depth+1)
	}
}

// DetailSummary is the multi line description printed by xobject.
func (s *Snapshot) DetailSummary(d *Detail) string {
	lines := []string{
		fmt.Sprintf("Pointer: %#x", uint64(s.Pointer)),
		fmt.Sprintf("Type: %s", s.Type),
		fmt.Sprintf("Depth: %d", d.Depth),
		fmt.Sprintf("Traits: %s (%#x)", s.Traits, uint64(s.Traits)),
		fmt.Sprintf("Frame: %s", formatRect(s.Frame)),
		fmt.Sprintf("Visible frame: %s", formatRect(d.VisibleFrame)),
		fmt.Sprintf("Identifier: '%s'", s.Identifier),
		fmt.Sprintf("Label: '%s'", s.Label),
		fmt.Sprintf("Title: '%s'", s.Title),
		fmt.Sprintf("Value: '%s'", s.Value),
		fmt.Sprintf("Placeholder: '%s'", s.Placeholder),
		fmt.Sprintf("Hit point: %s", formatPoint(d.HitPoint)),
		fmt.Sprintf("Hit point for scrolling: %s", formatPoint(d.HitPointForScrolling)),
		fmt.Sprintf("Enabled: %s", pyBool(s.Enabled)),
		fmt.Sprintf("Selected: %s", pyBool(s.Selected)),
		fmt.Sprintf("Main Window: %s", pyBool(s.MainWindow)),
		fmt.Sprintf("Keyboard focus: %s", pyBool(s.KeyboardFocus)),
		fmt.Sprintf("Focus: %s", pyBool(s.Focus)),
		fmt.Sprintf("Generation: %d", d.Generation),
		fmt.Sprintf("Horizontal size class: %s", d.HorizontalSizeClass),
		fmt.Sprintf("Vertical size class: %s", d.VerticalSizeClass),
		fmt.Sprintf("TouchBar element: %s", pyBool(d.TouchBarElement)),
		fmt.Sprintf("TouchBar top level element: %s", pyBool(d.TopLevelTouchBar)),
		fmt.Sprintf("Unique Objective-C: %s", d.UniqueObjC),
		fmt.Sprintf("Unique Swift: %s", d.UniqueSwift),
		fmt.Sprintf("Suggested hit points: %s", d.SuggestedHitPoints),
	}
	return strings.Join(lines, "\n")
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// formatFloat always keeps a fractional part: 375 prints as 375.0.
func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatPoint(p uikit.Point) string {
	return fmt.Sprintf("{%s, %s}", formatFloat(p.X), formatFloat(p.Y))
}

func formatRect(r uikit.Rect) string {
	return fmt.Sprintf("{%s, {%s, %s}}", formatPoint(r.Origin), formatFloat(r.Size.Width), formatFloat(r.Size.Height))
}
