// Package path parses the wildcard path expressions used by mapping directives.
package path

import (
	"fmt"
	"strconv"
	"strings"
)

// ElementKind identifies what a single path step does.
type ElementKind int

const (
	// FieldElement selects an object member by name.
	FieldElement ElementKind = iota
	// IndexElement selects one array element.
	IndexElement
	// WildcardElement fans out over every element of an array.
	WildcardElement
)

// PathElement represents a single step in a path
type PathElement struct {
	Kind  ElementKind
	Name  string // member name for FieldElement
	Index int    // array position for IndexElement
}

// Field creates a member-selection element
func Field(name string) PathElement {
	return PathElement{Kind: FieldElement, Name: name}
}

// Index creates an array-position element
func Index(i int) PathElement {
	return PathElement{Kind: IndexElement, Index: i}
}

// Wildcard creates an array fan-out element
func Wildcard() PathElement {
	return PathElement{Kind: WildcardElement}
}

// IsWildcard returns true if this element fans out over an array
func (e PathElement) IsWildcard() bool {
	return e.Kind == WildcardElement
}

// String returns the string representation of this element
func (e PathElement) String() string {
	switch e.Kind {
	case IndexElement:
		return fmt.Sprintf("[%d]", e.Index)
	case WildcardElement:
		return "[*]"
	default:
		if isPlainName(e.Name) {
			return e.Name
		}
		return "[" + strconv.Quote(e.Name) + "]"
	}
}

// Path is a parsed path expression
type Path struct {
	Elements []PathElement
}

// NewPath creates a new Path from elements
func NewPath(elements ...PathElement) Path {
	return Path{Elements: elements}
}

// IsEmpty returns true if the path has no elements
func (p Path) IsEmpty() bool {
	return len(p.Elements) == 0
}

// Wildcards returns how many fan-out steps the path contains
func (p Path) Wildcards() int {
	n := 0
	for _, elem := range p.Elements {
		if elem.IsWildcard() {
			n++
		}
	}
	return n
}

// Child returns a new path by appending elements to this path
func (p Path) Child(elements ...PathElement) Path {
	next := make([]PathElement, len(p.Elements)+len(elements))
	copy(next, p.Elements)
	copy(next[len(p.Elements):], elements)
	return Path{Elements: next}
}

// String renders the path back into expression form. Parsing the result
// yields an equal path.
func (p Path) String() string {
	var b strings.Builder
	for i, elem := range p.Elements {
		if elem.Kind == FieldElement && isPlainName(elem.Name) && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(elem.String())
	}
	return b.String()
}

func isPlainName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '-' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
