// internal/rules/properties_test.go
package rules

import (
	"sort"
	"testing"
)

func TestParseProperties_PreservesOrder(t *testing.T) {
	props, err := ParseProperties([]byte(`{"z": 1, "a": "x", "m": [true, null, {"k": 2.5}]}`))
	if err != nil {
		t.Fatalf("ParseProperties() error = %v", err)
	}
	keys := props.Keys()
	if len(keys) != 3 || keys[0] != "z" || keys[1] != "a" || keys[2] != "m" {
		t.Fatalf("Keys() = %v, want [z a m]", keys)
	}
	data, err := props.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if want := `{"z":1,"a":"x","m":[true,null,{"k":2.5}]}`; string(data) != want {
		t.Errorf("MarshalJSON() = %s, want %s", data, want)
	}
}

func TestParseProperties_Errors(t *testing.T) {
	for _, in := range []string{`[1]`, `{"a":}`, `{"a":1} trailing`, `"s"`} {
		if _, err := ParseProperties([]byte(in)); err == nil {
			t.Errorf("ParseProperties(%s) error = nil, want error", in)
		}
	}
}

func TestCompare_TotalOrderAcrossKinds(t *testing.T) {
	nested := NewProperties()
	nested.Set("k", Number(1))
	values := []Value{
		Map(nested),
		String("b"),
		List(Number(1)),
		Number(2),
		Bool(true),
		Null(),
		String("a"),
		Number(-1),
		Bool(false),
	}
	sort.SliceStable(values, func(i, j int) bool { return Compare(values[i], values[j]) < 0 })

	want := []string{`null`, `false`, `true`, `-1`, `2`, `"a"`, `"b"`, `[1]`, `{"k":1}`}
	for i, v := range values {
		if v.String() != want[i] {
			t.Errorf("values[%d] = %s, want %s", i, v.String(), want[i])
		}
	}
}

func TestCompare_Lists(t *testing.T) {
	a := List(Number(1), Number(2))
	b := List(Number(1), Number(2), Number(0))
	if Compare(a, b) >= 0 {
		t.Errorf("Compare(%s, %s) >= 0, want < 0", a, b)
	}
	if !a.Equal(List(Number(1), Number(2))) {
		t.Errorf("Equal() = false, want true")
	}
}

func TestFromInterface(t *testing.T) {
	v, err := FromInterface(map[string]any{"b": 1, "a": []any{"x", false}})
	if err != nil {
		t.Fatalf("FromInterface() error = %v", err)
	}
	if got := v.String(); got != `{"a":["x",false],"b":1}` {
		t.Errorf("String() = %s", got)
	}
	if _, err := FromInterface(struct{}{}); err == nil {
		t.Errorf("FromInterface(struct{}) error = nil, want error")
	}
}

func TestValue_Text(t *testing.T) {
	if got := String("hi").Text(); got != "hi" {
		t.Errorf("Text() = %q, want hi", got)
	}
	if got := Number(1.5).Text(); got != "1.5" {
		t.Errorf("Text() = %q, want 1.5", got)
	}
}
