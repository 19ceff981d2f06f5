// internal/rules/term_test.go
package rules

import (
	"errors"
	"testing"

	"github.com/solatis/quill/internal/types"
)

func TestNewTerm_NormalizesFields(t *testing.T) {
	term := NewTerm("laptop", "title", "brand", "title", "")
	if len(term.Fields) != 2 || term.Fields[0] != "brand" || term.Fields[1] != "title" {
		t.Fatalf("Fields = %v, want [brand title]", term.Fields)
	}
	if !term.Equal(NewTerm("laptop", "brand", "title")) {
		t.Errorf("Equal() = false, want true for same field set")
	}
	if term.Equal(NewPrefixTerm("laptop", "brand", "title")) {
		t.Errorf("Equal() = true, want false for exact vs prefix")
	}
}

func TestTerm_String(t *testing.T) {
	tests := []struct {
		term Term
		want string
	}{
		{NewTerm("a"), "a"},
		{NewTerm("a", "f"), "f:a"},
		{NewTerm("a", "g", "f"), "{f,g}:a"},
		{NewPrefixTerm("ab"), "ab*"},
		{NewTerm("a*b"), `a\*b`},
	}
	for _, tt := range tests {
		if got := tt.term.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestOptions_TermMatches(t *testing.T) {
	anyField := Options{IgnoreCase: true, FieldPolicy: FieldPolicyAnyField}
	unscoped := Options{IgnoreCase: false, FieldPolicy: FieldPolicyUnscopedOnly}

	tests := []struct {
		name string
		opts Options
		rule Term
		elem Term
		want bool
	}{
		{"exact", anyField, NewTerm("a"), NewTerm("a"), true},
		{"ignore case", anyField, NewTerm("A"), NewTerm("a"), true},
		{"case sensitive", unscoped, NewTerm("A"), NewTerm("a"), false},
		{"unscoped rule any field", anyField, NewTerm("a"), NewTerm("a", "f"), true},
		{"unscoped rule unscoped only", unscoped, NewTerm("a"), NewTerm("a", "f"), false},
		{"scoped rule unscoped element", anyField, NewTerm("a", "f"), NewTerm("a"), false},
		{"scoped rule field intersection", anyField, NewTerm("a", "f", "g"), NewTerm("a", "g", "h"), true},
		{"scoped rule disjoint fields", anyField, NewTerm("a", "f"), NewTerm("a", "g"), false},
		{"prefix equal length", anyField, NewPrefixTerm("abc"), NewTerm("abc"), true},
		{"prefix longer", anyField, NewPrefixTerm("abc"), NewTerm("abcdef"), true},
		{"prefix shorter", anyField, NewPrefixTerm("abc"), NewTerm("ab"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.TermMatches(tt.rule, tt.elem); got != tt.want {
				t.Errorf("TermMatches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFieldPolicy(t *testing.T) {
	if p, ok := ParseFieldPolicy("unscoped_only"); !ok || p != FieldPolicyUnscopedOnly {
		t.Errorf("ParseFieldPolicy(unscoped_only) = %v, %v", p, ok)
	}
	if _, ok := ParseFieldPolicy("bogus"); ok {
		t.Errorf("ParseFieldPolicy(bogus) ok = true, want false")
	}
}

func TestNewInput_Validation(t *testing.T) {
	tests := []struct {
		name  string
		terms []Term
		right bool
		want  error
	}{
		{"empty", nil, false, types.ErrEmptyInput},
		{"wildcard only", []Term{NewPrefixTerm("")}, false, types.ErrWildcardOnly},
		{"wildcard not last", []Term{NewPrefixTerm("a"), NewTerm("b")}, false, types.ErrWildcardNotLast},
		{"wildcard right boundary", []Term{NewTerm("a"), NewPrefixTerm("b")}, true, types.ErrWildcardRightBoundary},
		{"empty term", []Term{NewTerm("")}, false, types.ErrEmptyInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInput(tt.terms, false, tt.right)
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewInput() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewInput_RightBoundaryMessage(t *testing.T) {
	_, err := NewInput([]Term{NewPrefixTerm("abc")}, false, true)
	if err == nil || err.Error() != "* cannot be combined with right boundary" {
		t.Fatalf("NewInput() error = %v, want '* cannot be combined with right boundary'", err)
	}
}

func TestNewInput_TooManyTerms(t *testing.T) {
	terms := make([]Term, types.MaxInputTerms+1)
	for i := range terms {
		terms[i] = NewTerm("t")
	}
	if _, err := NewInput(terms, false, false); !errors.Is(err, types.ErrTooManyInputTerms) {
		t.Fatalf("NewInput() error = %v, want ErrTooManyInputTerms", err)
	}
}

func TestInput_String(t *testing.T) {
	in, err := NewInput([]Term{NewTerm("iphone"), NewPrefixTerm("cas")}, true, false)
	if err != nil {
		t.Fatalf("NewInput() error = %v", err)
	}
	if got := in.String(); got != `"iphone cas*` {
		t.Errorf("String() = %q, want %q", got, `"iphone cas*`)
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`\*`, "*"},
		{`\"`, `"`},
		{`\#`, "#"},
		{`\\`, `\`},
		{`a\*b`, "a*b"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		got, err := Unescape(tt.in)
		if err != nil {
			t.Fatalf("Unescape(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Unescape(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if back, _ := Unescape(Escape(got)); back != got {
			t.Errorf("Unescape(Escape(%q)) = %q", got, back)
		}
	}
}

func TestUnescape_Illegal(t *testing.T) {
	for _, in := range []string{`\1`, `abc\`, `\n`} {
		if _, err := Unescape(in); !errors.Is(err, types.ErrIllegalEscape) {
			t.Errorf("Unescape(%q) error = %v, want ErrIllegalEscape", in, err)
		}
	}
}

func TestPositionSequence(t *testing.T) {
	seq := SequenceOf(NewTerm("a"), NewTerm("b"))
	seq.AddToLast(NewTerm("bb"))
	if seq.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", seq.Len())
	}
	if got := len(seq.At(1)); got != 2 {
		t.Errorf("len(At(1)) = %d, want 2", got)
	}
	var empty *PositionSequence[Term]
	if empty.Len() != 0 {
		t.Errorf("nil Len() = %d, want 0", empty.Len())
	}
}
