// internal/rules/match_test.go
package rules

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func compileOrFail(t *testing.T, opts Options, defs ...Definition) *RulesCollection {
	t.Helper()
	rc, err := Compile(defs, opts)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return rc
}

func def(in Input, instrs ...Instruction) Definition {
	return Definition{Input: in, Instructions: instrs}
}

func seqOf(values ...string) *PositionSequence[Term] {
	seq := NewPositionSequence[Term](len(values))
	for _, v := range values {
		seq.Add(NewTerm(v))
	}
	return seq
}

func TestMatch_OverlappingSpans(t *testing.T) {
	boost, err := NewBoostInstruction(BoostDown, 2, "color:x", false)
	if err != nil {
		t.Fatalf("NewBoostInstruction() error = %v", err)
	}
	rc := compileOrFail(t, DefaultOptions(),
		def(mustInput(t, false, false, words("a")...), boost),
		def(mustInput(t, false, false, words("a b")...), DeleteInstruction{Terms: words("b")}),
		def(mustInput(t, false, false, words("a b c")...), DeleteInstruction{Terms: words("a")}, DeleteInstruction{Terms: words("c")}),
	)

	actions := rc.Actions(seqOf("a", "b", "c", "l"))
	if len(actions) != 3 {
		t.Fatalf("len(Actions()) = %d, want 3", len(actions))
	}
	wantSpans := [][2]int{{0, 1}, {0, 2}, {0, 3}}
	for i, a := range actions {
		if a.Start != wantSpans[i][0] || a.End != wantSpans[i][1] {
			t.Errorf("actions[%d] span = (%d,%d), want %v", i, a.Start, a.End, wantSpans[i])
		}
		if len(a.Instructions) != 1 {
			t.Errorf("actions[%d] len(Instructions) = %d, want 1", i, len(a.Instructions))
		}
	}
	if got := len(actions[2].Instructions[0].List); got != 2 {
		t.Errorf("len(List) = %d, want 2", got)
	}
	if got := actions[1].MatchedTerms(); len(got) != 2 || got[1].Value != "b" {
		t.Errorf("MatchedTerms() = %v, want [a b]", got)
	}
}

func TestMatch_Boundaries(t *testing.T) {
	rc := compileOrFail(t, DefaultOptions(),
		def(mustInput(t, true, true, words("a")...), synonym("s1")),
	)
	if got := len(rc.Actions(seqOf("a"))); got != 1 {
		t.Errorf("len(Actions(a)) = %d, want 1", got)
	}
	if got := len(rc.Actions(seqOf("a", "b"))); got != 0 {
		t.Errorf("len(Actions(a b)) = %d, want 0", got)
	}
	if got := len(rc.Actions(seqOf("b", "a"))); got != 0 {
		t.Errorf("len(Actions(b a)) = %d, want 0", got)
	}
}

func TestMatch_SameInputDifferentBoundaries(t *testing.T) {
	rc := compileOrFail(t, DefaultOptions(),
		def(mustInput(t, false, false, words("a")...), synonym("x")),
		def(mustInput(t, true, false, words("a")...), synonym("y")),
		def(mustInput(t, false, false, words("a")...), synonym("z")),
	)
	actions := rc.Actions(seqOf("a"))
	if len(actions) != 2 {
		t.Fatalf("len(Actions()) = %d, want 2", len(actions))
	}
	if len(actions[0].Instructions) != 2 {
		t.Errorf("shared input len(Instructions) = %d, want 2", len(actions[0].Instructions))
	}
	if got := len(rc.Actions(seqOf("b", "a"))); got != 1 {
		t.Errorf("len(Actions(b a)) = %d, want 1", got)
	}
}

func TestMatch_Prefix(t *testing.T) {
	rc := compileOrFail(t, DefaultOptions(),
		def(mustInput(t, false, false, NewPrefixTerm("abc")), synonym("x")),
	)
	tests := []struct {
		value string
		want  int
	}{
		{"abc", 1},
		{"abcdef", 1},
		{"ABCdef", 1},
		{"ab", 0},
		{"xabc", 0},
	}
	for _, tt := range tests {
		if got := len(rc.Actions(seqOf(tt.value))); got != tt.want {
			t.Errorf("len(Actions(%q)) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestMatch_PrefixMultibyte(t *testing.T) {
	rc := compileOrFail(t, DefaultOptions(),
		def(mustInput(t, false, false, NewPrefixTerm("grü")), synonym("x")),
	)
	if got := len(rc.Actions(seqOf("grün"))); got != 1 {
		t.Errorf("len(Actions(grün)) = %d, want 1", got)
	}
}

func TestMatch_FieldScopes(t *testing.T) {
	rc := compileOrFail(t, DefaultOptions(),
		def(mustInput(t, false, false, NewTerm("red", "color")), synonym("rot")),
	)
	seq := NewPositionSequence[Term](1)
	seq.Add(NewTerm("red", "title"), NewTerm("red", "color", "name"))
	actions := rc.Actions(seq)
	if len(actions) != 1 {
		t.Fatalf("len(Actions()) = %d, want 1", len(actions))
	}
	if actions[0].Matches[0].Index != 1 {
		t.Errorf("Matches[0].Index = %d, want 1", actions[0].Matches[0].Index)
	}
	if got := len(rc.Actions(seqOf("red"))); got != 0 {
		t.Errorf("len(Actions(unscoped red)) = %d, want 0", got)
	}
}

func TestMatch_UnscopedOnlyPolicy(t *testing.T) {
	opts := Options{IgnoreCase: true, FieldPolicy: FieldPolicyUnscopedOnly}
	rc := compileOrFail(t, opts, def(mustInput(t, false, false, words("red")...), synonym("rot")))

	seq := NewPositionSequence[Term](1)
	seq.Add(NewTerm("red", "title"))
	if got := len(rc.Actions(seq)); got != 0 {
		t.Errorf("len(Actions(title:red)) = %d, want 0", got)
	}
	if got := len(rc.Actions(seqOf("red"))); got != 1 {
		t.Errorf("len(Actions(red)) = %d, want 1", got)
	}
}

func TestMatch_CoOccurringElements(t *testing.T) {
	rc := compileOrFail(t, DefaultOptions(),
		def(mustInput(t, false, false, words("wi fi")...), synonym("wifi")),
	)
	seq := NewPositionSequence[Term](2)
	seq.Add(NewTerm("wi"), NewTerm("wii"))
	seq.Add(NewTerm("fi"))
	if got := len(rc.Actions(seq)); got != 1 {
		t.Errorf("len(Actions()) = %d, want 1", got)
	}
}

func TestMatch_StopsWhenConsumerStops(t *testing.T) {
	rc := compileOrFail(t, DefaultOptions(), def(mustInput(t, false, false, words("a")...), synonym("b")))
	n := 0
	for range rc.Match(seqOf("a", "a", "a")) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("iterations = %d, want 1", n)
	}
}

func TestMatch_EmptyAndNil(t *testing.T) {
	var rc *RulesCollection
	if got := len(rc.Actions(seqOf("a"))); got != 0 {
		t.Errorf("nil collection len(Actions()) = %d, want 0", got)
	}
	rc = compileOrFail(t, DefaultOptions(), def(mustInput(t, false, false, words("a")...), synonym("b")))
	if got := len(rc.Actions(NewPositionSequence[Term](0))); got != 0 {
		t.Errorf("empty sequence len(Actions()) = %d, want 0", got)
	}
}

func TestEngine_Swap(t *testing.T) {
	e := NewEngine(nil)
	if e.Load() != nil {
		t.Fatalf("Load() = non-nil, want nil")
	}
	first := compileOrFail(t, DefaultOptions(), def(mustInput(t, false, false, words("a")...), synonym("b")))
	second := compileOrFail(t, DefaultOptions())
	e.Swap(first)
	if prev := e.Swap(second); prev != first {
		t.Errorf("Swap() returned %p, want %p", prev, first)
	}
	if e.Load() != second {
		t.Errorf("Load() did not return the swapped collection")
	}
}

var vocabulary = []string{"a", "b", "c", "d"}

// Property-based test: spans are well-formed and respect boundaries
func TestMatch_PropertySpansAndBoundaries(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("every action lies within the sequence and honors boundaries", prop.ForAll(
		func(ruleIdx []int, left, right bool, queryIdx []int) bool {
			if len(ruleIdx) == 0 {
				return true
			}
			terms := make([]Term, len(ruleIdx))
			for i, ix := range ruleIdx {
				terms[i] = NewTerm(vocabulary[ix])
			}
			in, err := NewInput(terms, left, right)
			if err != nil {
				return false
			}
			rc, err := Compile([]Definition{def(in, synonym("x"))}, DefaultOptions())
			if err != nil {
				return false
			}
			values := make([]string, len(queryIdx))
			for i, ix := range queryIdx {
				values[i] = vocabulary[ix]
			}
			seq := seqOf(values...)
			for a := range rc.Match(seq) {
				if a.Start < 0 || a.Start >= a.End || a.End > seq.Len() {
					return false
				}
				if a.End-a.Start != in.Len() || len(a.Matches) != in.Len() {
					return false
				}
				if left && a.Start > 0 {
					return false
				}
				if right && a.End < seq.Len() {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(3, gen.IntRange(0, len(vocabulary)-1)),
		gen.Bool(),
		gen.Bool(),
		gen.SliceOf(gen.IntRange(0, len(vocabulary)-1)),
	))

	properties.TestingRun(t)
}

// Property-based test: matching is deterministic
func TestMatch_PropertyDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	rc := compileOrFail(t, DefaultOptions(),
		def(mustInput(t, false, false, words("a")...), synonym("x")),
		def(mustInput(t, false, false, words("a b")...), synonym("y")),
		def(mustInput(t, false, false, NewTerm("b"), NewPrefixTerm("c")), synonym("z")),
		def(mustInput(t, true, false, words("d")...), synonym("w")),
	)

	properties.Property("two passes yield identical actions", prop.ForAll(
		func(queryIdx []int) bool {
			values := make([]string, len(queryIdx))
			for i, ix := range queryIdx {
				values[i] = vocabulary[ix]
			}
			first := rc.Actions(seqOf(values...))
			second := rc.Actions(seqOf(values...))
			if len(first) != len(second) {
				return false
			}
			for i := range first {
				if first[i].Start != second[i].Start || first[i].End != second[i].End ||
					first[i].Instructions[0] != second[i].Instructions[0] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(vocabulary)-1)),
	))

	properties.TestingRun(t)
}
