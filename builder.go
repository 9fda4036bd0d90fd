package retools

import (
	"fmt"

	gocache "github.com/patrickmn/go-cache"
)

// Builder is an isolated token registry plus a memoizing pattern compiler.
// Registration is a write phase and must not be interleaved with
// compilation from other goroutines; compiled matchers and the cache are
// safe for concurrent use afterwards.
type Builder struct {
	defs    map[string]*TokenDef
	order   []string
	regIdx  map[string]int
	subs    map[string][]string // supertype -> subtype names, registration order
	aliases map[string]string
	cache   *gocache.Cache
}

// Default is the well-known shared builder. Independent builders with
// independent namespaces are created with NewBuilder.
var Default = NewBuilder()

// NewBuilder returns an empty registry with its own pattern cache.
func NewBuilder() *Builder {
	return &Builder{
		defs:    make(map[string]*TokenDef),
		regIdx:  make(map[string]int),
		subs:    make(map[string][]string),
		aliases: make(map[string]string),
		cache:   gocache.New(gocache.NoExpiration, 0),
	}
}

// Alias registers a builder-level named sub-template. A placeholder <name>
// that resolves to neither a field nor a token-local alias expands the
// aliased template in place, in the scope it is referenced from, so field
// references inside it bind into the referencing token's record.
func (b *Builder) Alias(name, template string) {
	b.aliases[name] = template
	b.cache.Flush()
}

// Register adds a token definition. The definition is validated eagerly:
// duplicate names, unresolvable field patterns and dangling supertype
// links all fail here, never later. Fields inherited from the supertype
// and not redeclared are merged in ahead of the definition's own. An empty
// template defaults to "<field>" when there is exactly one field.
// Registration invalidates this builder's pattern cache.
func (b *Builder) Register(def TokenDef) error {
	if def.Name == "" {
		return fmt.Errorf("token name must not be empty")
	}
	if _, ok := b.defs[def.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateToken, def.Name)
	}

	stored := def
	stored.Fields = append([]Field(nil), def.Fields...)
	if len(def.Aliases) > 0 {
		stored.Aliases = make(map[string]string, len(def.Aliases))
		for name, tmpl := range def.Aliases {
			stored.Aliases[name] = tmpl
		}
	}
	if stored.Supertype != "" {
		sup, ok := b.defs[stored.Supertype]
		if !ok {
			return fmt.Errorf("%w: %s declares supertype %s", ErrInvalidSubtypeLink, def.Name, def.Supertype)
		}
		var inherited []Field
		for _, sf := range sup.Fields {
			if fieldByName(stored.Fields, sf.Name) == nil {
				inherited = append(inherited, sf)
			}
		}
		stored.Fields = append(inherited, stored.Fields...)
	}

	for i := range stored.Fields {
		if err := b.validateFieldType(stored.Fields[i].Name, stored.Fields[i].Type, stored.Fields[i].Pattern); err != nil {
			return fmt.Errorf("token %s: %w", def.Name, err)
		}
	}

	if stored.Template == "" {
		if len(stored.Fields) != 1 {
			return fmt.Errorf("%w: token %s needs an explicit template for %d fields",
				ErrTemplateSyntax, def.Name, len(stored.Fields))
		}
		stored.Template = "<" + stored.Fields[0].Name + ">"
	}

	b.defs[stored.Name] = &stored
	b.regIdx[stored.Name] = len(b.order)
	b.order = append(b.order, stored.Name)
	if stored.Supertype != "" {
		b.subs[stored.Supertype] = append(b.subs[stored.Supertype], stored.Name)
	}
	b.cache.Flush()
	return nil
}

// MustRegister is Register that panics on error, for static registrations.
func (b *Builder) MustRegister(def TokenDef) {
	if err := b.Register(def); err != nil {
		panic(err)
	}
}

// Lookup returns the stored definition (with inherited fields merged) or
// ErrUnknownToken.
func (b *Builder) Lookup(name string) (*TokenDef, error) {
	def, ok := b.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, name)
	}
	return def, nil
}

// Compile expands a template against this registry, memoized per template
// string. Identical inputs always yield the identical *Reclass.
func (b *Builder) Compile(template string) (*Reclass, error) {
	if cached, ok := b.cache.Get(template); ok {
		return cached.(*Reclass), nil
	}
	rc, err := newCompiler(b).compile(template)
	if err != nil {
		return nil, err
	}
	b.cache.Set(template, rc, gocache.NoExpiration)
	return rc, nil
}

// Match compiles the template and matches text anchored at its start.
func (b *Builder) Match(template, text string) (*Match, error) {
	rc, err := b.Compile(template)
	if err != nil {
		return nil, err
	}
	return rc.Match(text), nil
}

// Search compiles the template and finds the leftmost match in text.
func (b *Builder) Search(template, text string) (*Match, error) {
	rc, err := b.Compile(template)
	if err != nil {
		return nil, err
	}
	return rc.Search(text), nil
}

// FullMatch compiles the template and matches text in its entirety.
func (b *Builder) FullMatch(template, text string) (*Match, error) {
	rc, err := b.Compile(template)
	if err != nil {
		return nil, err
	}
	return rc.FullMatch(text), nil
}

// FindAll compiles the template and reconstructs its top-level elements
// for every match in text.
func (b *Builder) FindAll(template, text string) ([][]Value, error) {
	rc, err := b.Compile(template)
	if err != nil {
		return nil, err
	}
	return rc.FindAll(text)
}

// Construct matches text against a single token and reconstructs its
// record. token may be a registered token name or a full template.
func (b *Builder) Construct(token, text string) (Value, error) {
	template := token
	if _, ok := b.defs[token]; ok {
		template = "<" + token + ">"
	}
	rc, err := b.Compile(template)
	if err != nil {
		return None(), err
	}
	return rc.Construct(text)
}

// ancestors returns the supertype chain of def, nearest first.
func (b *Builder) ancestors(def *TokenDef) []string {
	var chain []string
	for cur := def.Supertype; cur != ""; {
		sup, ok := b.defs[cur]
		if !ok {
			break
		}
		chain = append(chain, cur)
		cur = sup.Supertype
	}
	return chain
}

func (b *Builder) isAncestor(name string, def *TokenDef) bool {
	for _, a := range b.ancestors(def) {
		if a == name {
			return true
		}
	}
	return false
}

// variants returns the alternation order for a token reference: every
// registered descendant, deepest chain first (most specific), ties broken
// by registration order, and the token itself last.
func (b *Builder) variants(def *TokenDef) []*TokenDef {
	type candidate struct {
		def   *TokenDef
		depth int
	}
	var all []candidate
	var walk func(name string, depth int)
	walk = func(name string, depth int) {
		for _, sub := range b.subs[name] {
			all = append(all, candidate{def: b.defs[sub], depth: depth + 1})
			walk(sub, depth+1)
		}
	}
	walk(def.Name, 0)
	if len(all) == 0 {
		return []*TokenDef{def}
	}

	// Insertion sort by (depth desc, registration order asc); the inputs
	// are tiny.
	for i := 1; i < len(all); i++ {
		for j := i; j > 0; j-- {
			a, prev := all[j], all[j-1]
			if a.depth > prev.depth ||
				(a.depth == prev.depth && b.regIdx[a.def.Name] < b.regIdx[prev.def.Name]) {
				all[j], all[j-1] = prev, a
			} else {
				break
			}
		}
	}

	out := make([]*TokenDef, 0, len(all)+1)
	for _, c := range all {
		out = append(out, c.def)
	}
	return append(out, def)
}

func (b *Builder) validateFieldType(fieldName string, t FieldType, override string) error {
	switch t.Kind {
	case KindToken:
		if _, ok := b.defs[t.Token]; !ok {
			return fmt.Errorf("%w: field %q references unregistered token %q",
				ErrMissingFieldPattern, fieldName, t.Token)
		}
	case KindList:
		if t.Elem == nil {
			return fmt.Errorf("%w: list field %q has no element type", ErrMissingFieldPattern, fieldName)
		}
		return b.validateFieldType(fieldName, *t.Elem, override)
	case KindNone:
		return fmt.Errorf("%w: field %q has no type", ErrMissingFieldPattern, fieldName)
	default:
		if override == "" && DefaultPattern(t.Kind) == "" {
			return fmt.Errorf("%w: field %q of kind %s", ErrMissingFieldPattern, fieldName, t.Kind)
		}
	}
	return nil
}

func fieldByName(fields []Field, name string) *Field {
	for i := range fields {
		if fields[i].Name == name {
			return &fields[i]
		}
	}
	return nil
}
