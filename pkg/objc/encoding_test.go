package objc

import (
	"reflect"
	"testing"
)

func TestDecodeTypeTable(t *testing.T) {
	for c, want := range EncodingTable {
		if got := DecodeType(string(c)); got != want {
			t.Errorf("DecodeType(%q) = %q, want %q", string(c), got, want)
		}
	}
}

func TestDecodeType(t *testing.T) {
	tests := []struct {
		enc  string
		want string
	}{
		{"^i", "int *"},
		{"^^i", "int **"},
		{"^v", "void *"},
		{"^*", "char **"},
		{"^@", "id *"},
		{`@"NSString"`, "NSString *"},
		{`^@"NSError"`, "NSError **"},
		{`@"<NSCopying>"`, "id<NSCopying>"},
		{"@?", "id /* block */"},
		{"@?<v@?>", "id /* block */"},
		{"{CGRect={CGPoint=dd}{CGSize=dd}}", "struct CGRect"},
		{"^{__CFString=}", "struct __CFString *"},
		{"{?=ii}", "struct"},
		{"(u=if)", "union u"},
		{"[4i]", "int[4]"},
		{"[16^v]", "void *[16]"},
		{"r*", "char *"},
		{"Vv", "void"},
		{"b3", "unsigned int : 3"},
		// unknown or partial encodings pass through
		{"x", "x"},
		{"^x", "^x"},
		{"ii", "ii"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.enc, func(t *testing.T) {
			if got := DecodeType(tt.enc); got != tt.want {
				t.Errorf("DecodeType(%q) = %q, want %q", tt.enc, got, tt.want)
			}
		})
	}
}

func TestDecodeTypeIdempotent(t *testing.T) {
	encs := []string{"^^i", `@"NSString"`, "{CGRect=dd}", "(u=if)", "[4i]", "@?", "^v", "x", "b3"}
	for c := range EncodingTable {
		encs = append(encs, string(c))
	}
	for _, enc := range encs {
		once := DecodeType(enc)
		if twice := DecodeType(once); twice != once {
			t.Errorf("DecodeType not idempotent for %q: %q -> %q", enc, once, twice)
		}
	}
}

func TestSplitEncodings(t *testing.T) {
	tests := []struct {
		sig  string
		want []string
	}{
		{"v24@0:8@16", []string{"v", "@", ":", "@"}},
		{"@16@0:8", []string{"@", "@", ":"}},
		{`v32@0:8@"NSString"16^@24`, []string{"v", "@", ":", `@"NSString"`, "^@"}},
		{"{CGRect={CGPoint=dd}{CGSize=dd}}16@0:8", []string{"{CGRect={CGPoint=dd}{CGSize=dd}}", "@", ":"}},
		{"v24@?0@8q16", []string{"v", "@?", "@", "q"}},
		{"Vv16@0:8", []string{"Vv", "@", ":"}},
		{"vi", []string{"v", "i"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.sig, func(t *testing.T) {
			if got := SplitEncodings(tt.sig); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitEncodings(%q) = %q, want %q", tt.sig, got, tt.want)
			}
		})
	}
}
