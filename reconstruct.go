package retools

import "fmt"

// reconstructNode walks a successful match's captured spans back into a
// typed value using the Group-Map. idx is the engine's submatch index
// vector for text; node ordinals refer to that same numbering space.
func reconstructNode(text string, idx []int, n GroupNode) (Value, error) {
	switch node := n.(type) {
	case *FieldNode:
		start := groupStart(idx, node.Group)
		if start < 0 {
			return None(), nil
		}
		captured := text[start:idx[2*node.Group+1]]
		v, err := ParseValue(node.Field.Type.Kind, captured)
		if err != nil {
			// The text already matched the field's own pattern, so the
			// pattern and the parser disagree.
			return None(), fmt.Errorf("%w: field %q: pattern accepted %q: %v",
				ErrReconstruction, node.Field.Name, captured, err)
		}
		return v, nil

	case *ConstNode:
		if !node.participated(idx) {
			return None(), nil
		}
		return node.Value, nil

	case *ListNode:
		return reconstructList(text, idx, node)

	case *RecordNode:
		return reconstructRecord(text, idx, node)

	case *PolyNode:
		for _, v := range node.Variants {
			if v.participated(idx) {
				return reconstructRecord(text, idx, v)
			}
		}
		return None(), nil

	default:
		return None(), fmt.Errorf("%w: unexpected node %T", ErrReconstruction, n)
	}
}

func reconstructRecord(text string, idx []int, n *RecordNode) (Value, error) {
	if !n.participated(idx) {
		return None(), nil
	}
	rec := &Record{Token: n.Def.Name, Fields: make([]FieldValue, 0, len(n.bindings))}
	for _, b := range n.bindings {
		val := None()
		filled := false
		for _, src := range b.sources {
			if !src.participated(idx) {
				continue
			}
			v, err := reconstructNode(text, idx, src)
			if err != nil {
				return None(), err
			}
			val = v
			filled = true
			if !v.IsNone() {
				break
			}
		}
		if !filled && !b.field.Optional {
			return None(), fmt.Errorf("%w: %s matched but field %q has no captured value",
				ErrReconstruction, n.Def.Name, b.field.Name)
		}
		rec.Fields = append(rec.Fields, FieldValue{Name: b.field.Name, Value: val})
	}
	return Value{Kind: KindToken, Record: rec}, nil
}

// reconstructList re-splits the captured list region by repeatedly applying
// the anchored item program. The engine only keeps the last repetition's
// captures for a quantified group, so per-item values must be recovered from
// the region text itself. The item program requires a separator or the region
// end after each item, which reproduces the engine's own split even for lazy
// item patterns; a region the program cannot fully consume means the program
// and the emitted pattern disagree.
func reconstructList(text string, idx []int, n *ListNode) (Value, error) {
	if !n.participated(idx) {
		return None(), nil
	}
	start := groupStart(idx, n.Group)
	if start < 0 {
		// Segment present, zero items (empty-literal branch).
		return Value{Kind: KindList, List: []Value{}}, nil
	}
	region := text[start:idx[2*n.Group+1]]

	items := []Value{}
	rest := region
	for rest != "" {
		m := n.itemProg.FindStringSubmatchIndex(rest)
		if m == nil {
			return None(), fmt.Errorf("%w: list %q: item pattern rejects %q",
				ErrReconstruction, n.Field.Name, rest)
		}
		v, err := reconstructNode(rest, m, n.Item)
		if err != nil {
			return None(), err
		}
		items = append(items, v)
		if m[1] == 0 {
			return None(), fmt.Errorf("%w: list %q: zero-width item never advances",
				ErrReconstruction, n.Field.Name)
		}
		rest = rest[m[1]:]
	}
	return Value{Kind: KindList, List: items}, nil
}
