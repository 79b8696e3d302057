package shape

import (
	"math/rand"
	"testing"

	"github.com/PentesterFlow/APIDiff/internal/session"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		in   any
		kind Kind
	}{
		{"object", map[string]any{"a": "x"}, KindObject},
		{"array", []any{1.0, 2.0}, KindArray},
		{"empty array", []any{}, KindEmptyArray},
		{"string", "hello", KindScalar},
		{"number", 3.14, KindScalar},
		{"bool", true, KindScalar},
		{"null", nil, KindScalar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Extract(tt.in)
			if s.Kind != tt.kind {
				t.Errorf("Extract(%v).Kind = %v, want %v", tt.in, s.Kind, tt.kind)
			}
			if s.Count != 1 {
				t.Errorf("Count = %d, want 1", s.Count)
			}
		})
	}
}

func TestExtract_ScalarTags(t *testing.T) {
	tests := []struct {
		in   any
		want ScalarType
	}{
		{"s", ScalarString},
		{1.5, ScalarNumber},
		{false, ScalarBool},
		{nil, ScalarNull},
	}
	for _, tt := range tests {
		s := Extract(tt.in)
		if !s.Scalars.Has(tt.want) {
			t.Errorf("Extract(%v) missing scalar tag %v", tt.in, tt.want)
		}
		if !s.SampleOK {
			t.Errorf("Extract(%v) should retain its sample", tt.in)
		}
	}
}

func TestExtract_NestedObject(t *testing.T) {
	s := Extract(map[string]any{
		"user": map[string]any{
			"id":   1.0,
			"tags": []any{"a"},
		},
	})

	user := s.Fields["user"]
	if user == nil || user.Shape.Kind != KindObject {
		t.Fatalf("user field not extracted as object")
	}
	if user.Shape.Fields["id"].Shape.Kind != KindScalar {
		t.Errorf("id should be scalar")
	}
	tags := user.Shape.Fields["tags"].Shape
	if tags.Kind != KindArray || tags.Elem.Kind != KindScalar {
		t.Errorf("tags should be array of scalars")
	}
}

func TestFromBody(t *testing.T) {
	if got := FromBody(nil); got != nil {
		t.Errorf("FromBody(nil) = %v, want nil", got)
	}

	opaque := FromBody(&session.Body{Size: 512})
	if opaque.Kind != KindOpaque || opaque.ByteLen != 512 {
		t.Errorf("opaque body: got kind %v len %d", opaque.Kind, opaque.ByteLen)
	}

	parsed := FromBody(&session.Body{JSON: map[string]any{"a": 1.0}, IsJSON: true})
	if parsed.Kind != KindObject {
		t.Errorf("JSON body: got kind %v, want object", parsed.Kind)
	}
}

func TestFromHeaders(t *testing.T) {
	s := FromHeaders(map[string]string{
		"Content-Type": "application/json",
		"x-request-id": "abc",
	})
	if s.Kind != KindObject || len(s.Fields) != 2 {
		t.Fatalf("header shape: kind %v, %d fields", s.Kind, len(s.Fields))
	}
	if _, ok := s.Fields["content-type"]; !ok {
		t.Errorf("header names should be lowercased")
	}
}

func TestMerge_OptionalFields(t *testing.T) {
	a := Extract(map[string]any{"id": 1.0, "name": "x"})
	b := Extract(map[string]any{"id": 2.0, "name": "y", "email": "e"})

	merged := Merge(a, b)

	if merged.Count != 2 {
		t.Fatalf("Count = %d, want 2", merged.Count)
	}
	if merged.Fields["id"].Optional(merged) {
		t.Errorf("id seen in every sample, should not be optional")
	}
	email := merged.Fields["email"]
	if email == nil {
		t.Fatalf("email field dropped by merge")
	}
	if !email.Optional(merged) {
		t.Errorf("email seen in 1 of 2 samples, should be optional")
	}
}

func TestMerge_ScalarSetUnion(t *testing.T) {
	merged := Merge(Extract("s"), Extract(1.0))
	if merged.Kind != KindScalar {
		t.Fatalf("Kind = %v, want scalar", merged.Kind)
	}
	if !merged.Scalars.Has(ScalarString) || !merged.Scalars.Has(ScalarNumber) {
		t.Errorf("scalar set should hold both tags, got %s", merged.Scalars)
	}
	if merged.SampleOK {
		t.Errorf("conflicting samples should clear SampleOK")
	}
}

func TestMerge_SampleTracking(t *testing.T) {
	same := Merge(Extract("x"), Extract("x"))
	if !same.SampleOK || same.Sample != "x" {
		t.Errorf("equal samples should stay representative")
	}
	diff := Merge(Extract("x"), Extract("y"))
	if diff.SampleOK {
		t.Errorf("differing samples should clear SampleOK")
	}
}

func TestMerge_EmptyArrayUpgrade(t *testing.T) {
	merged := Merge(Extract([]any{}), Extract([]any{"a"}))
	if merged.Kind != KindArray {
		t.Fatalf("Kind = %v, want array", merged.Kind)
	}
	if merged.Count != 2 {
		t.Errorf("Count = %d, want 2", merged.Count)
	}
	if merged.Elem == nil || merged.Elem.Kind != KindScalar {
		t.Errorf("element shape lost in upgrade")
	}

	// Same upgrade in the other merge order.
	merged = Merge(Extract([]any{"a"}), Extract([]any{}))
	if merged.Kind != KindArray || merged.Count != 2 {
		t.Errorf("reverse order: kind %v count %d", merged.Kind, merged.Count)
	}
}

func TestMerge_KindConflictPrecedence(t *testing.T) {
	merged := Merge(Extract("scalar"), Extract(map[string]any{"a": 1.0}))
	if merged.Kind != KindObject {
		t.Errorf("object should win over scalar, got %v", merged.Kind)
	}
	if merged.Count != 2 {
		t.Errorf("losing sample should still be counted, Count = %d", merged.Count)
	}
	// The object's fields become optional because one sample was not an
	// object at all.
	if !merged.Fields["a"].Optional(merged) {
		t.Errorf("field a should be optional after a non-object sample")
	}
}

func TestMerge_OrderIndependent(t *testing.T) {
	samples := []any{
		map[string]any{"id": 1.0, "name": "a"},
		map[string]any{"id": 2.0, "name": "b", "email": "x"},
		map[string]any{"id": 3.0, "tags": []any{"t"}},
		map[string]any{"id": 4.0, "tags": []any{}},
		map[string]any{"id": 5.0, "nested": map[string]any{"deep": true}},
	}

	build := func(order []int) *Shape {
		var merged *Shape
		for _, i := range order {
			merged = Merge(merged, Extract(samples[i]))
		}
		return merged
	}

	base := build([]int{0, 1, 2, 3, 4})

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		order := rng.Perm(len(samples))
		shuffled := build(order)
		if !Equal(base, shuffled) {
			t.Fatalf("merge order %v produced different shape", order)
		}
		if shuffled.Count != base.Count {
			t.Fatalf("merge order %v produced count %d, want %d", order, shuffled.Count, base.Count)
		}
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"identical objects", map[string]any{"a": 1.0}, map[string]any{"a": 2.0}, true},
		{"different fields", map[string]any{"a": 1.0}, map[string]any{"b": 1.0}, false},
		{"different scalar types", "s", 1.0, false},
		{"array vs empty array", []any{1.0}, []any{}, false},
		{"same arrays", []any{1.0}, []any{2.0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Equal(Extract(tt.a), Extract(tt.b))
			if got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}
