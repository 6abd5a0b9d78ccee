package xctest

import (
	"fmt"
	"strings"
)

// ElementType is an XCUIElementType.
type ElementType int

// StatusBar is the element type of the status bar.
const StatusBar ElementType = 25

var elementTypeNames = [...]string{
	"Any", "Other", "Application", "Group", "Window", "Sheet", "Drawer", "Alert",
	"Dialog", "Button", "RadioButton", "RadioGroup", "CheckBox", "DisclosureTriangle",
	"PopUpButton", "ComboBox", "MenuButton", "ToolbarButton", "Popover", "Keyboard",
	"Key", "NavigationBar", "TabBar", "TabGroup", "Toolbar", "StatusBar", "Table",
	"TableRow", "TableColumn", "Outline", "OutlineRow", "Browser", "CollectionView",
	"Slider", "PageIndicator", "ProgressIndicator", "ActivityIndicator",
	"SegmentedControl", "Picker", "PickerWheel", "Switch", "Toggle", "Link", "Image",
	"Icon", "SearchField", "ScrollView", "ScrollBar", "StaticText", "TextField",
	"SecureTextField", "DatePicker", "TextView", "Menu", "MenuItem", "MenuBar",
	"MenuBarItem", "Map", "WebView", "IncrementArrow", "DecrementArrow", "Timeline",
	"RatingIndicator", "ValueIndicator", "SplitGroup", "Splitter", "RelevanceIndicator",
	"ColorWell", "HelpTag", "Matte", "DockItem", "Ruler", "RulerMarker", "Grid",
	"LevelIndicator", "Cell", "LayoutArea", "LayoutItem", "Handle", "Stepper", "Tab",
	"TouchBar",
}

func (t ElementType) String() string {
	if t >= 0 && int(t) < len(elementTypeNames) {
		return elementTypeNames[t]
	}
	return fmt.Sprintf("Unknown (%#x)", int(t))
}

// Traits is a UIAccessibilityTraits bit set.
type Traits uint64

var traitNames = []struct {
	bit  Traits
	name string
}{
	{0x1, "Button"},
	{0x2, "Link"},
	{0x4, "Image"},
	{0x8, "Selected"},
	{0x10, "PlaysSound"},
	{0x20, "KeyboardKey"},
	{0x40, "StaticText"},
	{0x80, "SummaryElement"},
	{0x100, "NotEnabled"},
	{0x200, "UpdatesFrequently"},
	{0x400, "SearchField"},
	{0x800, "StartsMediaSession"},
	{0x1000, "Adjustable"},
	{0x2000, "AllowsDirectInteraction"},
	{0x4000, "CausesPageTurn"},
	{0x8000, "TabBar"},
	{0x10000, "Header"},
}

// String lists the set traits in bit order.
func (t Traits) String() string {
	if t == 0 {
		return "None"
	}
	var names []string
	for _, tn := range traitNames {
		if t&tn.bit != 0 {
			names = append(names, tn.name)
		}
	}
	if len(names) == 0 {
		return "Unknown"
	}
	return strings.Join(names, ", ")
}

// SizeClass is a UIUserInterfaceSizeClass.
type SizeClass int

func (c SizeClass) String() string {
	switch c {
	case 0:
		return "Unspecified"
	case 1:
		return "Compact"
	case 2:
		return "Regular"
	default:
		return fmt.Sprintf("Unknown (%#x)", int(c))
	}
}
