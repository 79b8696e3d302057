// Package shape models the recursive structural type of observed JSON
// payloads and header sets: a tagged union of object, array, scalar and
// opaque nodes. Shapes extracted from individual records are merged into
// per-endpoint aggregates; the merge is commutative and associative, so
// an aggregate does not depend on record order.
package shape

import (
	"sort"
	"strings"

	"github.com/PentesterFlow/APIDiff/internal/session"
)

// Kind tags a shape node.
type Kind int

const (
	// KindOpaque is a payload that could not be shape-extracted; only
	// its byte length is retained.
	KindOpaque Kind = iota
	// KindScalar is a JSON primitive.
	KindScalar
	// KindEmptyArray is an array with no observed elements.
	KindEmptyArray
	// KindArray is an array with a homogeneous element shape.
	KindArray
	// KindObject is a JSON object with named fields.
	KindObject
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindEmptyArray:
		return "empty-array"
	case KindScalar:
		return "scalar"
	default:
		return "opaque"
	}
}

// ScalarType tags a JSON primitive.
type ScalarType uint8

const (
	ScalarString ScalarType = 1 << iota
	ScalarNumber
	ScalarBool
	ScalarNull
)

// ScalarSet is a set of scalar type tags. A single record yields exactly
// one tag; merged aggregates may carry several when samples disagree.
type ScalarSet uint8

// Has reports membership.
func (s ScalarSet) Has(t ScalarType) bool { return s&ScalarSet(t) != 0 }

// Union returns the combined set.
func (s ScalarSet) Union(o ScalarSet) ScalarSet { return s | o }

// String lists the member tags joined by "|", in a fixed order.
func (s ScalarSet) String() string {
	var parts []string
	if s.Has(ScalarString) {
		parts = append(parts, "string")
	}
	if s.Has(ScalarNumber) {
		parts = append(parts, "number")
	}
	if s.Has(ScalarBool) {
		parts = append(parts, "boolean")
	}
	if s.Has(ScalarNull) {
		parts = append(parts, "null")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Field is one named member of an object shape.
type Field struct {
	Shape *Shape
	// Seen counts the samples in which the field was present. A field
	// with Seen < parent Count is optional, not dropped.
	Seen int
}

// Shape is one node of the structural type tree.
type Shape struct {
	Kind Kind

	// Fields is populated for KindObject.
	Fields map[string]*Field
	// Elem is populated for KindArray.
	Elem *Shape
	// Scalars is populated for KindScalar.
	Scalars ScalarSet
	// ByteLen is the largest observed payload length, for KindOpaque.
	ByteLen int

	// Count is the number of samples merged into this node.
	Count int

	// Sample retains one concrete scalar value, used by the
	// comprehensive comparison level. SampleOK is true while every
	// merged sample carried the same value.
	Sample   any
	SampleOK bool
}

// Optional reports whether the field was absent in some samples of its
// enclosing object.
func (f *Field) Optional(parent *Shape) bool {
	return f.Seen < parent.Count
}

// TypeTag returns the display tag for the node: the kind name, or the
// scalar type set for scalar nodes.
func (s *Shape) TypeTag() string {
	if s == nil {
		return "absent"
	}
	if s.Kind == KindScalar {
		return s.Scalars.String()
	}
	return s.Kind.String()
}

// FieldNames returns the object's field names in sorted order.
func (s *Shape) FieldNames() []string {
	if s == nil || len(s.Fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extract computes the shape of one decoded JSON value.
func Extract(v any) *Shape {
	switch val := v.(type) {
	case map[string]any:
		s := &Shape{Kind: KindObject, Count: 1, Fields: make(map[string]*Field, len(val))}
		for name, child := range val {
			s.Fields[name] = &Field{Shape: Extract(child), Seen: 1}
		}
		return s
	case []any:
		if len(val) == 0 {
			return &Shape{Kind: KindEmptyArray, Count: 1}
		}
		// Arrays are treated as homogeneous; the first element stands
		// for the whole collection.
		return &Shape{Kind: KindArray, Count: 1, Elem: Extract(val[0])}
	case string:
		return scalar(ScalarString, val)
	case float64:
		return scalar(ScalarNumber, val)
	case bool:
		return scalar(ScalarBool, val)
	case nil:
		return scalar(ScalarNull, nil)
	case int:
		return scalar(ScalarNumber, float64(val))
	case int64:
		return scalar(ScalarNumber, float64(val))
	default:
		// Unknown decoder types degrade to opaque rather than failing.
		return &Shape{Kind: KindOpaque, Count: 1}
	}
}

func scalar(t ScalarType, sample any) *Shape {
	return &Shape{
		Kind:     KindScalar,
		Count:    1,
		Scalars:  ScalarSet(t),
		Sample:   sample,
		SampleOK: true,
	}
}

// FromBody computes the shape of one record body. An absent body yields
// nil; a non-JSON body yields an opaque shape carrying its byte length.
func FromBody(b *session.Body) *Shape {
	if b == nil {
		return nil
	}
	if !b.IsJSON {
		return &Shape{Kind: KindOpaque, Count: 1, ByteLen: b.Size}
	}
	return Extract(b.JSON)
}

// FromHeaders models a header set as an object shape whose fields are
// the lowercased header names with string-scalar values. Reusing the
// object model lets the differ treat headers and bodies uniformly.
func FromHeaders(headers map[string]string) *Shape {
	s := &Shape{Kind: KindObject, Count: 1, Fields: make(map[string]*Field, len(headers))}
	for name, value := range headers {
		s.Fields[strings.ToLower(name)] = &Field{
			Shape: scalar(ScalarString, value),
			Seen:  1,
		}
	}
	return s
}

// Merge folds src into dst and returns the merged node. Either argument
// may be nil. Both arguments are owned by the caller's aggregate after
// the call; dst is mutated in place.
//
// Same-kind nodes merge branch-wise: object field sets union (tracking
// per-field presence counts), array element shapes merge, scalar type
// sets union. An empty array merges into a non-empty one. Nodes of
// conflicting kinds resolve to the higher-precedence kind (object >
// array > scalar > opaque); the losing branch's structure is dropped but
// its sample count is retained, which marks the winner's fields optional.
func Merge(dst, src *Shape) *Shape {
	if dst == nil {
		return src
	}
	if src == nil {
		return dst
	}

	if dst.Kind != src.Kind {
		// Empty arrays upgrade into populated ones without loss.
		if dst.Kind == KindEmptyArray && src.Kind == KindArray {
			src.Count += dst.Count
			return src
		}
		if dst.Kind == KindArray && src.Kind == KindEmptyArray {
			dst.Count += src.Count
			return dst
		}
		winner, loser := dst, src
		if src.Kind > dst.Kind {
			winner, loser = src, dst
		}
		winner.Count += loser.Count
		return winner
	}

	dst.Count += src.Count
	switch dst.Kind {
	case KindObject:
		for name, f := range src.Fields {
			if existing, ok := dst.Fields[name]; ok {
				existing.Shape = Merge(existing.Shape, f.Shape)
				existing.Seen += f.Seen
			} else {
				dst.Fields[name] = f
			}
		}
	case KindArray:
		dst.Elem = Merge(dst.Elem, src.Elem)
	case KindScalar:
		dst.Scalars = dst.Scalars.Union(src.Scalars)
		if !dst.SampleOK || !src.SampleOK || dst.Sample != src.Sample {
			dst.Sample = nil
			dst.SampleOK = false
		}
	case KindOpaque:
		if src.ByteLen > dst.ByteLen {
			dst.ByteLen = src.ByteLen
		}
	}
	return dst
}

// Equal reports deep structural equality of two shapes, ignoring sample
// counts and concrete sample values.
func Equal(a, b *Shape) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindObject:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for name, fa := range a.Fields {
			fb, ok := b.Fields[name]
			if !ok || !Equal(fa.Shape, fb.Shape) {
				return false
			}
		}
		return true
	case KindArray:
		return Equal(a.Elem, b.Elem)
	case KindScalar:
		return a.Scalars == b.Scalars
	default:
		return true
	}
}
