package model

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"
)

func TestFields_UnmarshalPreservesOrder(t *testing.T) {
	t.Parallel()

	var f Fields
	if err := json.Unmarshal([]byte(`{"zeta":1,"alpha":"x","mid":true}`), &f); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	want := []string{"zeta", "alpha", "mid"}
	if got := f.Keys(); !slices.Equal(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}

	if n, ok := f[0].Value.Number(); !ok || n != 1 {
		t.Errorf("zeta = %v, want number 1", f[0].Value)
	}
	if s, ok := f[1].Value.Str(); !ok || s != "x" {
		t.Errorf("alpha = %v, want string x", f[1].Value)
	}
	if f[2].Value.Kind() != KindBool || f[2].Value.String() != "true" {
		t.Errorf("mid = %v, want bool true", f[2].Value)
	}
}

func TestFields_MarshalRoundTripOrder(t *testing.T) {
	t.Parallel()

	in := `{"plan":"PRO","amount":49.99,"first":false}`
	var f Fields
	if err := json.Unmarshal([]byte(in), &f); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	out, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != in {
		t.Errorf("Marshal = %s, want %s", out, in)
	}
}

func TestFields_DuplicateKeyKeepsFirstPosition(t *testing.T) {
	t.Parallel()

	var f Fields
	if err := json.Unmarshal([]byte(`{"a":1,"b":2,"a":3}`), &f); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := f.Keys(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Keys() = %v, want [a b]", got)
	}
	if n, _ := f[0].Value.Number(); n != 3 {
		t.Errorf("a = %v, want 3", n)
	}
}

func TestFields_RejectsNonScalars(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		badKeys []string
	}{
		{"null", `{"a":null}`, []string{"a"}},
		{"array", `{"a":[1,2]}`, []string{"a"}},
		{"object", `{"ok":1,"a":{"b":1}}`, []string{"a"}},
		{"several", `{"a":null,"b":[],"c":"fine"}`, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var f Fields
			err := json.Unmarshal([]byte(tt.input), &f)
			var fe *FieldsError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *FieldsError", err)
			}
			if len(fe.Problems) != len(tt.badKeys) {
				t.Fatalf("Problems = %v, want keys %v", fe.Problems, tt.badKeys)
			}
			for _, k := range tt.badKeys {
				if _, ok := fe.Problems[k]; !ok {
					t.Errorf("missing problem for key %q", k)
				}
			}
		})
	}
}

func TestFields_RejectsNonObject(t *testing.T) {
	t.Parallel()

	var f Fields
	if err := json.Unmarshal([]byte(`[1,2]`), &f); err == nil {
		t.Error("expected error for array payload")
	}
}

func TestFields_SetReplacesInPlace(t *testing.T) {
	t.Parallel()

	var f Fields
	f.Set("a", NumberValue(1))
	f.Set("b", StringValue("x"))
	f.Set("a", BoolValue(true))

	if len(f) != 2 {
		t.Fatalf("len = %d, want 2", len(f))
	}
	v, ok := f.Get("a")
	if !ok || v.Kind() != KindBool {
		t.Errorf("Get(a) = %v, %v; want bool", v, ok)
	}
	if _, ok := f.Get("missing"); ok {
		t.Error("Get(missing) should be false")
	}
}

func TestScalar_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value Scalar
		want  string
	}{
		{StringValue("hi"), "hi"},
		{NumberValue(49.99), "49.99"},
		{NumberValue(3), "3"},
		{BoolValue(false), "false"},
	}
	for _, tt := range tests {
		if got := tt.value.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
