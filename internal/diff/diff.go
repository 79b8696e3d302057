// Package diff compares two shape trees and produces a recursive result
// tree classifying each structural position as added, removed, changed
// or unchanged. It knows nothing about endpoints or snapshots; any two
// shapes can be compared.
package diff

import (
	"fmt"
	"sort"

	"github.com/PentesterFlow/APIDiff/internal/shape"
)

// Level controls recursion depth and which facets are compared.
type Level int

const (
	// LevelBasic compares field presence and type tags at the top level
	// only; differences below depth 1 are not visited.
	LevelBasic Level = iota
	// LevelDetailed recurses fully, comparing field sets and type tags
	// at every depth.
	LevelDetailed
	// LevelComprehensive adds scalar sample-value comparison on top of
	// the detailed recursion.
	LevelComprehensive
)

// String returns the configuration name of the level.
func (l Level) String() string {
	switch l {
	case LevelBasic:
		return "basic"
	case LevelComprehensive:
		return "comprehensive"
	default:
		return "detailed"
	}
}

// ParseLevel parses a comparison level name.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "basic":
		return LevelBasic, nil
	case "detailed", "":
		return LevelDetailed, nil
	case "comprehensive":
		return LevelComprehensive, nil
	default:
		return LevelDetailed, fmt.Errorf("unknown comparison level %q", s)
	}
}

// NodeKind classifies one comparison position.
type NodeKind string

const (
	Unchanged    NodeKind = "unchanged"
	Added        NodeKind = "added"
	Removed      NodeKind = "removed"
	TypeChanged  NodeKind = "type-changed"
	ValueChanged NodeKind = "value-changed"
	// Modified marks a container whose own classification is clean but
	// whose children disagree.
	Modified NodeKind = "modified"
)

// Node is the comparison result at one structural position.
type Node struct {
	Name     string   `json:"name,omitempty"`
	Kind     NodeKind `json:"kind"`
	OldType  string   `json:"old_type,omitempty"`
	NewType  string   `json:"new_type,omitempty"`
	OldValue any      `json:"old_value,omitempty"`
	NewValue any      `json:"new_value,omitempty"`
	Children []*Node  `json:"children,omitempty"`
}

// Changed reports whether the node carries any difference.
func (n *Node) Changed() bool {
	return n != nil && n.Kind != Unchanged
}

// StructurallyChanged reports whether the subtree carries a difference
// beyond informational sample-value changes. Endpoint classification is
// driven by this, so comprehensive-level value reporting cannot flip an
// endpoint to modified on its own.
func (n *Node) StructurallyChanged() bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case Unchanged, ValueChanged:
		return false
	case Modified:
		for _, c := range n.Children {
			if c.StructurallyChanged() {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// Compare diffs two shape trees at the given level. Either side may be
// nil, meaning the position is absent on that side.
func Compare(old, new *shape.Shape, level Level) *Node {
	return compare("", old, new, level, 0)
}

func compare(name string, old, new *shape.Shape, level Level, depth int) *Node {
	node := &Node{
		Name:    name,
		OldType: old.TypeTag(),
		NewType: new.TypeTag(),
	}

	switch {
	case old == nil && new == nil:
		node.Kind = Unchanged
		node.OldType, node.NewType = "", ""
		return node
	case old == nil:
		node.Kind = Added
		node.OldType = ""
		return node
	case new == nil:
		node.Kind = Removed
		node.NewType = ""
		return node
	}

	if old.Kind != new.Kind {
		node.Kind = TypeChanged
		return node
	}

	switch old.Kind {
	case shape.KindScalar:
		if old.Scalars != new.Scalars {
			node.Kind = TypeChanged
			return node
		}
		node.Kind = Unchanged
		if level == LevelComprehensive && old.SampleOK && new.SampleOK && old.Sample != new.Sample {
			// Informational: the one concrete example value differs even
			// though the structure is identical.
			node.Kind = ValueChanged
			node.OldValue = old.Sample
			node.NewValue = new.Sample
		}
		return node

	case shape.KindObject:
		if level == LevelBasic && depth >= 1 {
			// Same type tag is all basic looks at below the top level.
			node.Kind = Unchanged
			return node
		}
		names := unionFieldNames(old, new)
		for _, fname := range names {
			var oldF, newF *shape.Shape
			if f, ok := old.Fields[fname]; ok {
				oldF = f.Shape
			}
			if f, ok := new.Fields[fname]; ok {
				newF = f.Shape
			}
			node.Children = append(node.Children, compare(fname, oldF, newF, level, depth+1))
		}
		node.Kind = deriveContainerKind(node.Children)
		return node

	case shape.KindArray:
		if level == LevelBasic && depth >= 1 {
			node.Kind = Unchanged
			return node
		}
		// Arrays compare the element shape only; indexes are not
		// meaningful for homogeneous collections.
		child := compare("[]", old.Elem, new.Elem, level, depth+1)
		node.Children = []*Node{child}
		node.Kind = deriveContainerKind(node.Children)
		return node

	default:
		// Empty arrays and opaque bodies carry no comparable structure
		// beyond their presence and kind, both already checked.
		node.Kind = Unchanged
		return node
	}
}

// Container assembles named comparison results under one parent node,
// deriving the parent's kind bottom-up.
func Container(name string, children ...*Node) *Node {
	return &Node{
		Name:     name,
		Kind:     deriveContainerKind(children),
		Children: children,
	}
}

// deriveContainerKind applies the bottom-up rule: a container is
// unchanged only when every child is unchanged.
func deriveContainerKind(children []*Node) NodeKind {
	for _, c := range children {
		if c.Changed() {
			return Modified
		}
	}
	return Unchanged
}

func unionFieldNames(old, new *shape.Shape) []string {
	seen := make(map[string]struct{}, len(old.Fields)+len(new.Fields))
	for name := range old.Fields {
		seen[name] = struct{}{}
	}
	for name := range new.Fields {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
