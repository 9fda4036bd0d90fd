package retools

import (
	"fmt"
	"regexp"
	"strings"
)

// NodeKind defines the Group-Map node variants produced by compilation.
type NodeKind int

const (
	NodeField  NodeKind = iota // plain field occupying one capture group
	NodeConst                  // constant assignment, zero-width
	NodeList                   // repeated field with re-scanned items
	NodeRecord                 // one token occurrence
	NodePoly                   // supertype alternation over subtype records
)

// GroupNode is one node of the Group-Map tree: the compile-time record of
// how a syntactic unit maps onto capture groups of the expanded pattern.
type GroupNode interface {
	Kind() NodeKind
	String() string // debugging or printing purpose

	// participated reports whether this node's groups took part in the
	// match described by idx (a FindStringSubmatchIndex result).
	participated(idx []int) bool
}

var (
	_ GroupNode = (*FieldNode)(nil)
	_ GroupNode = (*ConstNode)(nil)
	_ GroupNode = (*ListNode)(nil)
	_ GroupNode = (*RecordNode)(nil)
	_ GroupNode = (*PolyNode)(nil)
)

// FieldNode maps a plain field onto the capture group it occupies.
type FieldNode struct {
	Field *Field
	Group int
}

func (n *FieldNode) Kind() NodeKind { return NodeField }
func (n *FieldNode) String() string {
	return fmt.Sprintf("FieldNode(%s:%s g%d)", n.Field.Name, n.Field.Type, n.Group)
}

func (n *FieldNode) participated(idx []int) bool {
	return groupStart(idx, n.Group) >= 0
}

// ConstNode records a constant assignment. It consumes no input; Marker is
// a zero-width group used only to tell which alternation branch the
// assignment sat in. Value is None when the literal failed validation
// against the field's pattern (lenient by design).
type ConstNode struct {
	Field   *Field
	Literal string
	Value   Value
	Marker  int
}

func (n *ConstNode) Kind() NodeKind { return NodeConst }
func (n *ConstNode) String() string {
	return fmt.Sprintf("ConstNode(%s=%q)", n.Field.Name, n.Literal)
}

func (n *ConstNode) participated(idx []int) bool {
	return groupStart(idx, n.Marker) >= 0
}

// ListNode maps a repeated field. Group captures the whole item region;
// Marker distinguishes "segment absent" from "segment present but empty".
// Items are re-scanned at reconstruction time with the standalone item
// program, since the engine only retains the last repetition's captures.
type ListNode struct {
	Field  *Field
	Marker int
	Group  int

	Item GroupNode // group map over the item program's own numbering

	// itemProg anchors one item followed by a separator or the end of the
	// region, so a lazy item pattern stretches exactly as far as it did in
	// the emitted pattern.
	itemProg *regexp.Regexp
}

func (n *ListNode) Kind() NodeKind { return NodeList }
func (n *ListNode) String() string {
	return fmt.Sprintf("ListNode(%s g%d m%d)", n.Field.Name, n.Group, n.Marker)
}

func (n *ListNode) participated(idx []int) bool {
	return groupStart(idx, n.Marker) >= 0
}

// binding collects the sources a record field can be filled from, in
// emission order. A field mentioned several times (alternation branches)
// has several sources; the first participating one wins.
type binding struct {
	field   *Field
	sources []GroupNode
}

// RecordNode is one occurrence of a token in the compiled pattern.
type RecordNode struct {
	Def      *TokenDef
	bindings []*binding
	first    int // first capture ordinal inside this occurrence, 0 if none
	last     int
}

func (n *RecordNode) Kind() NodeKind { return NodeRecord }
func (n *RecordNode) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "RecordNode(%s g%d..%d):", n.Def.Name, n.first, n.last)
	for _, bind := range n.bindings {
		fmt.Fprintf(&b, "\n  %s x%d", bind.field.Name, len(bind.sources))
	}
	return b.String()
}

func (n *RecordNode) participated(idx []int) bool {
	if n.first == 0 {
		// No groups at all (constants-free zero-field record); nothing to
		// observe, treat as participating.
		return true
	}
	for g := n.first; g <= n.last; g++ {
		if groupStart(idx, g) >= 0 {
			return true
		}
	}
	return false
}

func (n *RecordNode) bindingFor(f *Field) *binding {
	for _, b := range n.bindings {
		if b.field == f {
			return b
		}
	}
	b := &binding{field: f}
	n.bindings = append(n.bindings, b)
	return b
}

// PolyNode is a supertype occurrence expanded into an ordered alternation
// of subtype records; exactly one variant participates in any match.
type PolyNode struct {
	Def      *TokenDef
	Variants []*RecordNode
	first    int
	last     int
}

func (n *PolyNode) Kind() NodeKind { return NodePoly }
func (n *PolyNode) String() string {
	names := make([]string, len(n.Variants))
	for i, v := range n.Variants {
		names[i] = v.Def.Name
	}
	return fmt.Sprintf("PolyNode(%s: %s)", n.Def.Name, strings.Join(names, "|"))
}

func (n *PolyNode) participated(idx []int) bool {
	for _, v := range n.Variants {
		if v.participated(idx) {
			return true
		}
	}
	return false
}

// groupStart returns the start offset of capture group g in idx, or -1 when
// the group did not participate.
func groupStart(idx []int, g int) int {
	if 2*g+1 >= len(idx) {
		return -1
	}
	return idx[2*g]
}
