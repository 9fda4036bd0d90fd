package retools

import (
	"fmt"
	"regexp"
	"strings"
)

// element is one top-level unit of a compiled template, used by FindAll:
// either a token occurrence (node != nil) or a user-authored capture group
// identified by its actual ordinal in the expanded pattern.
type element struct {
	node  GroupNode
	group int
}

// compiler performs one template expansion: a single left-to-right scan
// with recursive descent on placeholders, tracking capture-group ordinals
// globally across the emitted pattern.
type compiler struct {
	b   *Builder
	out strings.Builder

	groups     int   // capture ordinals emitted so far, including user groups
	userGroups []int // user-visible plain-group index -> actual ordinal
	userNames  map[string]int
	elements   []element
	occ        map[string][]GroupNode
	inProgress map[string]bool // token names currently being expanded
}

func newCompiler(b *Builder) *compiler {
	return &compiler{
		b:          b,
		userNames:  make(map[string]int),
		occ:        make(map[string][]GroupNode),
		inProgress: make(map[string]bool),
	}
}

// tokenScope is the expansion context inside a token's own template; field
// references resolve against the record under construction.
type tokenScope struct {
	rec *RecordNode
}

func (c *compiler) compile(template string) (*Reclass, error) {
	if err := c.expandTemplate(template, nil, true); err != nil {
		return nil, err
	}
	expanded := c.out.String()

	search, err := regexp.Compile(expanded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateSyntax, err)
	}
	anchored, err := regexp.Compile(`\A(?:` + expanded + `)`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateSyntax, err)
	}
	full, err := regexp.Compile(`\A(?:` + expanded + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateSyntax, err)
	}

	return &Reclass{
		template:   template,
		expanded:   expanded,
		search:     search,
		anchored:   anchored,
		full:       full,
		elements:   c.elements,
		occ:        c.occ,
		userGroups: c.userGroups,
		userNames:  c.userNames,
	}, nil
}

// expandTemplate scans one template and emits its expansion. sc is nil for
// a free-standing composed pattern, non-nil while inside a token body; top
// marks the outermost template, where user groups and findall elements are
// collected.
func (c *compiler) expandTemplate(tmpl string, sc *tokenScope, top bool) error {
	segs, err := scanTemplate(tmpl)
	if err != nil {
		return err
	}
	for _, seg := range segs {
		if seg.Kind == segLiteral {
			c.emitLiteral(seg.Text, top)
			continue
		}
		if seg.Assign {
			if sc != nil {
				if f := sc.rec.Def.field(seg.Name); f != nil {
					if err := c.emitConst(f, sc, seg); err != nil {
						return err
					}
					continue
				}
			}
			c.passthrough(seg, top)
			continue
		}
		if sc != nil {
			if f := sc.rec.Def.field(seg.Name); f != nil {
				if err := c.expandField(f, sc, seg.Quant); err != nil {
					return err
				}
				continue
			}
			if body, ok := sc.rec.Def.Aliases[seg.Name]; ok {
				if err := c.expandAlias(sc.rec.Def.Name, seg.Name, body, sc, seg.Quant, top); err != nil {
					return err
				}
				continue
			}
		}
		if body, ok := c.b.aliases[seg.Name]; ok {
			scope := ""
			if sc != nil {
				scope = sc.rec.Def.Name
			}
			if err := c.expandAlias(scope, seg.Name, body, sc, seg.Quant, top); err != nil {
				return err
			}
			continue
		}
		if def, ok := c.b.defs[seg.Name]; ok {
			if sc != nil && c.b.isAncestor(def.Name, sc.rec.Def) {
				if err := c.inlineAncestor(def, sc, seg.Quant); err != nil {
					return err
				}
				continue
			}
			node, err := c.expandToken(def, seg.Quant)
			if err != nil {
				return err
			}
			if top {
				c.elements = append(c.elements, element{node: node})
			}
			continue
		}
		c.passthrough(seg, top)
	}
	return nil
}

// passthrough copies an unresolvable placeholder through verbatim,
// including the angle brackets; a trailing quantifier then binds to the
// literal '>' exactly as the engine would have read it.
func (c *compiler) passthrough(seg segment, top bool) {
	c.emitLiteral(seg.Raw, top)
	if seg.Quant != "" {
		c.emitLiteral(seg.Quant, top)
	}
}

// emitLiteral copies raw pattern text through while counting capture
// groups it contains. At top level, plain groups extend the user group
// map and named groups are remembered by name; both become findall
// elements, preserving the original template's numbering at the Match
// surface.
func (c *compiler) emitLiteral(text string, top bool) {
	inClass := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case ch == '\\':
			if i+1 < len(text) {
				c.out.WriteString(text[i : i+2])
				i++
				continue
			}
		case ch == '[' && !inClass:
			inClass = true
		case ch == ']' && inClass:
			inClass = false
		case ch == '(' && !inClass:
			if strings.HasPrefix(text[i:], "(?P<") {
				c.groups++
				if top {
					if end := strings.IndexByte(text[i+4:], '>'); end >= 0 {
						c.userNames[text[i+4:i+4+end]] = c.groups
						c.elements = append(c.elements, element{group: c.groups})
					}
				}
			} else if i+1 >= len(text) || text[i+1] != '?' {
				c.groups++
				if top {
					c.userGroups = append(c.userGroups, c.groups)
					c.elements = append(c.elements, element{group: c.groups})
				}
			}
		}
		c.out.WriteByte(ch)
	}
}

// expandField emits the expansion for a field reference in the current
// token's template.
func (c *compiler) expandField(f *Field, sc *tokenScope, quant string) error {
	switch f.Type.Kind {
	case KindList:
		node, err := c.expandList(f, quant)
		if err != nil {
			return err
		}
		sc.rec.bindingFor(f).sources = append(sc.rec.bindingFor(f).sources, node)
	case KindToken:
		def, ok := c.b.defs[f.Type.Token]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownToken, f.Type.Token)
		}
		node, err := c.expandToken(def, quant)
		if err != nil {
			return err
		}
		sc.rec.bindingFor(f).sources = append(sc.rec.bindingFor(f).sources, node)
	default:
		pat := f.Pattern
		if pat == "" {
			pat = DefaultPattern(f.Type.Kind)
		}
		if pat == "" {
			return fmt.Errorf("%w: field %q of %s", ErrMissingFieldPattern, f.Name, sc.rec.Def.Name)
		}
		suffix := quant
		if suffix == "" && f.Optional {
			suffix = "?"
		}
		if suffix != "" {
			c.out.WriteString("(?:")
		}
		c.groups++
		ord := c.groups
		c.out.WriteString("(")
		c.out.WriteString(pat)
		c.out.WriteString(")")
		c.groups += countCaptureGroups(pat)
		if suffix != "" {
			c.out.WriteString(")")
			c.out.WriteString(suffix)
		}
		node := &FieldNode{Field: f, Group: ord}
		sc.rec.bindingFor(f).sources = append(sc.rec.bindingFor(f).sources, node)
	}
	return nil
}

// expandToken expands a token reference. A token with registered subtypes
// becomes an ordered alternation over every variant, most specific first;
// otherwise a single record expansion.
func (c *compiler) expandToken(def *TokenDef, quant string) (GroupNode, error) {
	if quant != "" {
		c.out.WriteString("(?:")
	}
	variants := c.b.variants(def)

	var node GroupNode
	if len(variants) == 1 {
		rec, err := c.expandRecord(variants[0], nil)
		if err != nil {
			return nil, err
		}
		node = rec
	} else {
		poly := &PolyNode{Def: def, first: c.groups + 1}
		c.registerOcc(def.Name, poly)
		for _, a := range c.b.ancestors(def) {
			c.registerOcc(a, poly)
		}
		c.out.WriteString("(?:")
		for i, v := range variants {
			if i > 0 {
				c.out.WriteString("|")
			}
			rec, err := c.expandRecord(v, def)
			if err != nil {
				return nil, err
			}
			poly.Variants = append(poly.Variants, rec)
		}
		c.out.WriteString(")")
		poly.last = c.groups
		if poly.last < poly.first {
			poly.first, poly.last = 0, 0
		}
		node = poly
	}
	if quant != "" {
		c.out.WriteString(")")
		c.out.WriteString(quant)
	}
	return node, nil
}

// expandRecord expands one token occurrence through its own template.
// polyRoot is the supertype whose alternation this record sits in, nil for
// a standalone occurrence; it bounds which ancestor classes the occurrence
// is indexed under (the alternation itself covers the root and above).
func (c *compiler) expandRecord(def *TokenDef, polyRoot *TokenDef) (*RecordNode, error) {
	if c.inProgress[def.Name] {
		return nil, fmt.Errorf("%w: token %s expands through itself", ErrCompileCycle, def.Name)
	}
	c.inProgress[def.Name] = true
	defer delete(c.inProgress, def.Name)

	rec := &RecordNode{Def: def}
	for i := range def.Fields {
		rec.bindings = append(rec.bindings, &binding{field: &def.Fields[i]})
	}

	if polyRoot == nil {
		c.registerOcc(def.Name, rec)
		for _, a := range c.b.ancestors(def) {
			c.registerOcc(a, rec)
		}
	} else if def.Name != polyRoot.Name {
		c.registerOcc(def.Name, rec)
		for _, a := range c.b.ancestors(def) {
			if a == polyRoot.Name {
				break
			}
			c.registerOcc(a, rec)
		}
	}

	rec.first = c.groups + 1
	c.out.WriteString("(?:")
	if err := c.expandTemplate(def.Template, &tokenScope{rec: rec}, false); err != nil {
		return nil, err
	}
	c.out.WriteString(")")
	rec.last = c.groups
	if rec.last < rec.first {
		rec.first, rec.last = 0, 0
	}

	for _, b := range rec.bindings {
		if len(b.sources) == 0 && !b.field.Optional {
			return nil, fmt.Errorf("%w: template for %s never binds field %q",
				ErrTemplateSyntax, def.Name, b.field.Name)
		}
	}
	return rec, nil
}

// inlineAncestor expands an ancestor token's template in place, binding
// its field references into the current (more specific) record. This is
// how a subtype template like "<Coordinate>, z=<z>" reuses its parent's
// layout without creating a nested record.
func (c *compiler) inlineAncestor(def *TokenDef, sc *tokenScope, quant string) error {
	if c.inProgress[def.Name] {
		return fmt.Errorf("%w: token %s expands through itself", ErrCompileCycle, def.Name)
	}
	c.inProgress[def.Name] = true
	defer delete(c.inProgress, def.Name)

	if quant != "" {
		c.out.WriteString("(?:")
	}
	c.out.WriteString("(?:")
	if err := c.expandTemplate(def.Template, sc, false); err != nil {
		return err
	}
	c.out.WriteString(")")
	if quant != "" {
		c.out.WriteString(")")
		c.out.WriteString(quant)
	}
	return nil
}

// expandAlias expands a named sub-template in place, in the scope it is
// referenced from. The cycle guard is keyed per scope: the same alias name
// in two different token definitions is two independent aliases.
func (c *compiler) expandAlias(scope, name, body string, sc *tokenScope, quant string, top bool) error {
	key := scope + " alias " + name
	if c.inProgress[key] {
		return fmt.Errorf("%w: alias %s expands through itself", ErrCompileCycle, name)
	}
	c.inProgress[key] = true
	defer delete(c.inProgress, key)

	if quant != "" {
		c.out.WriteString("(?:")
	}
	c.out.WriteString("(?:")
	if err := c.expandTemplate(body, sc, top); err != nil {
		return err
	}
	c.out.WriteString(")")
	if quant != "" {
		c.out.WriteString(")")
		c.out.WriteString(quant)
	}
	return nil
}

// emitConst validates an assignment literal against the field's own
// pattern, converts it, and emits only a zero-width marker group. An
// invalid literal is not an error; the stored value is None.
func (c *compiler) emitConst(f *Field, sc *tokenScope, seg segment) error {
	val := None()
	if f.Type.Kind != KindList {
		src, node, err := c.subexpand(f.Type, f.Pattern)
		if err != nil {
			return err
		}
		full, err := regexp.Compile(`\A(?:` + src + `)\z`)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTemplateSyntax, err)
		}
		if m := full.FindStringSubmatchIndex(seg.Value); m != nil {
			if v, rerr := reconstructNode(seg.Value, m, node); rerr == nil {
				val = v
			}
		}
	}

	if seg.Quant != "" {
		c.out.WriteString("(?:")
	}
	c.groups++
	marker := c.groups
	c.out.WriteString("()")
	if seg.Quant != "" {
		c.out.WriteString(")")
		c.out.WriteString(seg.Quant)
	}
	node := &ConstNode{Field: f, Literal: seg.Value, Value: val, Marker: marker}
	sc.rec.bindingFor(f).sources = append(sc.rec.bindingFor(f).sources, node)
	return nil
}

// expandList emits the repeated-field construct
//
//	(?: () (?: (item (?:sep item)*) | empty ) )?
//
// where the leading empty group is the presence marker and the inner
// capture holds the whole item region for reconstruction-time re-scanning.
// Item and separator captures are suppressed in the emitted pattern; a
// standalone anchored item program carries the per-item group map.
func (c *compiler) expandList(f *Field, quant string) (*ListNode, error) {
	sep := `\s*,\s*`
	empty := ""
	required := false
	if f.Repeat != nil {
		if f.Repeat.Separator != "" {
			sep = f.Repeat.Separator
		}
		required = f.Repeat.Required
		empty = f.Repeat.Empty
	}
	if f.Type.Elem == nil {
		return nil, fmt.Errorf("%w: list field %q has no element type", ErrMissingFieldPattern, f.Name)
	}

	itemSrc, itemNode, err := c.subexpand(*f.Type.Elem, f.Pattern)
	if err != nil {
		return nil, err
	}
	itemQuiet := suppressCaptures(itemSrc)
	sepQuiet := suppressCaptures(sep)

	itemProg, err := regexp.Compile(`\A(?:` + itemSrc + `)(?:` + sepQuiet + `|\z)`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateSyntax, err)
	}

	if quant != "" {
		c.out.WriteString("(?:")
	}
	c.out.WriteString("(?:")
	c.groups++
	marker := c.groups
	c.out.WriteString("()")
	c.out.WriteString("(?:")
	c.groups++
	group := c.groups
	c.out.WriteString("(")
	c.out.WriteString(itemQuiet)
	c.out.WriteString("(?:")
	c.out.WriteString(sepQuiet)
	c.out.WriteString(itemQuiet)
	c.out.WriteString(")*)")
	c.out.WriteString("|")
	if empty != "" {
		c.out.WriteString("(?:")
		c.out.WriteString(suppressCaptures(empty))
		c.out.WriteString(")")
	}
	c.out.WriteString(")")
	c.out.WriteString(")")
	if !required {
		c.out.WriteString("?")
	}
	if quant != "" {
		c.out.WriteString(")")
		c.out.WriteString(quant)
	}

	return &ListNode{
		Field:    f,
		Marker:   marker,
		Group:    group,
		Item:     itemNode,
		itemProg: itemProg,
	}, nil
}

// subexpand compiles a field type's pattern in a fresh numbering space,
// for programs that run against their own substring (list items, constant
// validation). The in-progress set is shared so recursion through a list
// or constant cannot smuggle in an unbounded expansion.
func (c *compiler) subexpand(t FieldType, override string) (string, GroupNode, error) {
	if t.Kind == KindToken {
		def, ok := c.b.defs[t.Token]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrUnknownToken, t.Token)
		}
		sub := newCompiler(c.b)
		sub.inProgress = c.inProgress
		node, err := sub.expandToken(def, "")
		if err != nil {
			return "", nil, err
		}
		return sub.out.String(), node, nil
	}
	pat := override
	if pat == "" {
		pat = DefaultPattern(t.Kind)
	}
	if pat == "" {
		return "", nil, fmt.Errorf("%w: %s", ErrMissingFieldPattern, t)
	}
	item := &Field{Name: "item", Type: t}
	return "(" + pat + ")", &FieldNode{Field: item, Group: 1}, nil
}

func (c *compiler) registerOcc(name string, n GroupNode) {
	c.occ[name] = append(c.occ[name], n)
}
