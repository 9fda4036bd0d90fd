package retools

import (
	"fmt"
	"regexp"
	"strings"
)

// Reclass is a compiled matcher: the expanded pattern bound to the engine
// plus the Group-Map metadata. It is immutable and safe for concurrent use.
type Reclass struct {
	template string
	expanded string

	search   *regexp.Regexp // engine-native leftmost search
	anchored *regexp.Regexp // anchored at the start of input
	full     *regexp.Regexp // whole-input match

	elements   []element
	occ        map[string][]GroupNode
	userGroups []int
	userNames  map[string]int
}

// Template returns the template this matcher was compiled from.
func (r *Reclass) Template() string { return r.template }

// Pattern returns the expanded pattern handed to the engine.
func (r *Reclass) Pattern() string { return r.expanded }

// NumGroups returns how many plain capture groups the original template
// carries; Match.Group accepts 1..NumGroups.
func (r *Reclass) NumGroups() int { return len(r.userGroups) }

// Match matches text anchored at its start and returns nil when there is
// no match.
func (r *Reclass) Match(text string) *Match {
	return r.wrap(text, r.anchored.FindStringSubmatchIndex(text))
}

// Search finds the leftmost match anywhere in text.
func (r *Reclass) Search(text string) *Match {
	return r.wrap(text, r.search.FindStringSubmatchIndex(text))
}

// FullMatch matches text in its entirety.
func (r *Reclass) FullMatch(text string) *Match {
	return r.wrap(text, r.full.FindStringSubmatchIndex(text))
}

// FindIter returns every non-overlapping match in text, left to right.
func (r *Reclass) FindIter(text string) []*Match {
	all := r.search.FindAllStringSubmatchIndex(text, -1)
	matches := make([]*Match, 0, len(all))
	for _, idx := range all {
		matches = append(matches, &Match{r: r, text: text, idx: idx})
	}
	return matches
}

// FindAll reconstructs the template's top-level elements for every match:
// one row per match, one value per top-level token or user capture group.
func (r *Reclass) FindAll(text string) ([][]Value, error) {
	var rows [][]Value
	for _, m := range r.FindIter(text) {
		row := make([]Value, 0, len(r.elements))
		for _, el := range r.elements {
			if el.node != nil {
				v, err := reconstructNode(m.text, m.idx, el.node)
				if err != nil {
					return nil, err
				}
				row = append(row, v)
				continue
			}
			if start := groupStart(m.idx, el.group); start >= 0 {
				row = append(row, Value{Kind: KindText, Text: m.text[start:m.idx[2*el.group+1]]})
			} else {
				row = append(row, None())
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Split slices text around matches of the pattern, engine-native. n has
// regexp.Split semantics: -1 for all pieces.
func (r *Reclass) Split(text string, n int) []string {
	return r.search.Split(text, n)
}

// Sub replaces every non-overlapping match in text with the Expand-style
// expansion of repl, so $1 and $name refer to user groups under their
// original numbering.
func (r *Reclass) Sub(repl, text string) string {
	out, _ := r.Subn(repl, text, -1)
	return out
}

// Subn is Sub limited to at most n replacements (n < 0 means all). It also
// reports how many replacements were made.
func (r *Reclass) Subn(repl, text string, n int) (string, int) {
	all := r.search.FindAllStringSubmatchIndex(text, n)
	if len(all) == 0 {
		return text, 0
	}
	var out strings.Builder
	last := 0
	for _, idx := range all {
		m := &Match{r: r, text: text, idx: idx}
		out.WriteString(text[last:idx[0]])
		out.WriteString(m.Expand(repl))
		last = idx[1]
	}
	out.WriteString(text[last:])
	return out.String(), len(all)
}

// Construct is the convenience for a pattern whose top level is a single
// token: match text from the start and reconstruct that token's first
// occurrence. It returns None without error when the text does not match.
func (r *Reclass) Construct(text string) (Value, error) {
	var root GroupNode
	for _, el := range r.elements {
		if el.node != nil {
			root = el.node
			break
		}
	}
	if root == nil {
		return None(), fmt.Errorf("%w: pattern composes no token", ErrUnknownOccurrence)
	}
	m := r.Match(text)
	if m == nil {
		return None(), nil
	}
	return reconstructNode(m.text, m.idx, root)
}

// Match is one successful match of a Reclass against a text.
type Match struct {
	r    *Reclass
	text string
	idx  []int
}

// Get reconstructs the index-th occurrence (1-based, left to right) of the
// named token class. An occurrence inside an optional segment that did not
// participate reconstructs to None; a class or index that was never
// compiled into the pattern is ErrUnknownOccurrence.
func (m *Match) Get(token string, index int) (Value, error) {
	nodes := m.r.occ[token]
	if len(nodes) == 0 {
		return None(), fmt.Errorf("%w: token %s is not part of this pattern", ErrUnknownOccurrence, token)
	}
	if index < 1 || index > len(nodes) {
		return None(), fmt.Errorf("%w: token %s has %d occurrence(s), requested %d",
			ErrUnknownOccurrence, token, len(nodes), index)
	}
	return reconstructNode(m.text, m.idx, nodes[index-1])
}

// Occurrences reports how many compiled occurrences of the token class the
// pattern has.
func (m *Match) Occurrences(token string) int { return len(m.r.occ[token]) }

// Text returns the full matched text (group 0).
func (m *Match) Text() string { return m.text[m.idx[0]:m.idx[1]] }

// Span returns the start and end offsets of a user capture group, numbered
// as in the original template; group 0 is the whole match. Both are -1 for
// a group that did not participate.
func (m *Match) Span(i int) (int, int) {
	g, ok := m.mapGroup(i)
	if !ok {
		return -1, -1
	}
	return m.idx[2*g], m.idx[2*g+1]
}

// Start returns the start offset of a user capture group, -1 if absent.
func (m *Match) Start(i int) int {
	s, _ := m.Span(i)
	return s
}

// End returns the end offset of a user capture group, -1 if absent.
func (m *Match) End(i int) int {
	_, e := m.Span(i)
	return e
}

// Group returns the text of a user capture group and whether it
// participated in the match. Numbering follows the original template,
// unaffected by placeholder expansion.
func (m *Match) Group(i int) (string, bool) {
	g, ok := m.mapGroup(i)
	if !ok || m.idx[2*g] < 0 {
		return "", false
	}
	return m.text[m.idx[2*g]:m.idx[2*g+1]], true
}

// GroupByName returns the text of a user-authored named group.
func (m *Match) GroupByName(name string) (string, bool) {
	g, ok := m.r.userNames[name]
	if !ok || groupStart(m.idx, g) < 0 {
		return "", false
	}
	return m.text[m.idx[2*g]:m.idx[2*g+1]], true
}

// Groups returns the text of every plain user group in template order,
// empty string for groups that did not participate.
func (m *Match) Groups() []string {
	out := make([]string, len(m.r.userGroups))
	for i := range m.r.userGroups {
		out[i], _ = m.Group(i + 1)
	}
	return out
}

// Expand substitutes $1, ${2}, $name and $$ references in template with
// the corresponding user group captures.
func (m *Match) Expand(template string) string {
	var out strings.Builder
	for i := 0; i < len(template); i++ {
		if template[i] != '$' {
			out.WriteByte(template[i])
			continue
		}
		if i+1 < len(template) && template[i+1] == '$' {
			out.WriteByte('$')
			i++
			continue
		}
		name, width := scanExpandRef(template[i+1:])
		if width == 0 {
			out.WriteByte('$')
			continue
		}
		i += width
		if d, isNum := parseAllDigits(name); isNum {
			if s, ok := m.Group(d); ok {
				out.WriteString(s)
			}
			continue
		}
		if s, ok := m.GroupByName(name); ok {
			out.WriteString(s)
		}
	}
	return out.String()
}

func (m *Match) mapGroup(i int) (int, bool) {
	if i == 0 {
		return 0, true
	}
	if i < 1 || i > len(m.r.userGroups) {
		return 0, false
	}
	return m.r.userGroups[i-1], true
}

func (r *Reclass) wrap(text string, idx []int) *Match {
	if idx == nil {
		return nil
	}
	return &Match{r: r, text: text, idx: idx}
}

// scanExpandRef reads a $-reference body: either {name} or a bare run of
// identifier characters. It returns the name and how many bytes of the
// template (after the '$') it consumed.
func scanExpandRef(s string) (string, int) {
	if s == "" {
		return "", 0
	}
	if s[0] == '{' {
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return "", 0
		}
		return s[1:end], end + 1
	}
	j := 0
	for j < len(s) && isIdentByte(s[j], true) {
		j++
	}
	return s[:j], j
}

func parseAllDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	return n, true
}
