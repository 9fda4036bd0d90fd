package retools

import (
	"fmt"
	"strings"
)

// segKind discriminates scanner output segments.
type segKind int

const (
	segLiteral     segKind = iota // verbatim pattern text
	segPlaceholder                // <name>, <field=value>, with optional trailing quantifier
)

// segment is one scanned span of a template. For placeholders Raw holds the
// original text including the angle brackets (used for literal passthrough
// when the name resolves to nothing), and Quant any trailing quantifier.
type segment struct {
	Kind   segKind
	Text   string // literal text, verbatim
	Raw    string // placeholder source, e.g. "<DATE>" or "<text=3 \> 2>"
	Name   string
	Assign bool
	Value  string // assignment value with \> unescaped
	Quant  string // "", "*", "+", "?", "{m,n}", each optionally lazy ("??", "{2,}?", ...)
	Pos    int
}

// scanTemplate splits a template into literal runs and placeholder spans.
// A '<' inside a character class or after a backslash is literal. A span
// that opens an assignment ("<name=") must be terminated by an unescaped
// '>' or the template is malformed.
func scanTemplate(input string) ([]segment, error) {
	var segs []segment
	var lit strings.Builder
	litStart := 0
	flushLiteral := func(end int) {
		if lit.Len() > 0 {
			segs = append(segs, segment{Kind: segLiteral, Text: lit.String(), Pos: litStart})
			lit.Reset()
		}
		litStart = end
	}

	inClass := false
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == '\\':
			if i+1 < len(input) {
				lit.WriteString(input[i : i+2])
				i += 2
			} else {
				lit.WriteByte(c)
				i++
			}
		case c == '[' && !inClass:
			inClass = true
			lit.WriteByte(c)
			i++
		case c == ']' && inClass:
			inClass = false
			lit.WriteByte(c)
			i++
		case c == '<' && !inClass:
			seg, next, err := scanPlaceholder(input, i)
			if err != nil {
				return nil, err
			}
			if next < 0 {
				// Not a placeholder shape at all; keep the '<' literal.
				lit.WriteByte(c)
				i++
				continue
			}
			flushLiteral(next)
			segs = append(segs, seg)
			i = next
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flushLiteral(len(input))
	return segs, nil
}

// scanPlaceholder reads a placeholder starting at the '<' at position start.
// It returns next == -1 when the text does not have placeholder shape (no
// identifier, or a bare "<name" that never closes), which the caller treats
// as literal text. An unterminated assignment is a syntax error: once a
// "<name=" opens, only an unescaped '>' may close it.
func scanPlaceholder(input string, start int) (segment, int, error) {
	i := start + 1
	nameStart := i
	for i < len(input) && isIdentByte(input[i], i > nameStart) {
		i++
	}
	if i == nameStart {
		return segment{}, -1, nil
	}
	name := input[nameStart:i]
	if i >= len(input) {
		return segment{}, -1, nil
	}
	switch input[i] {
	case '>':
		raw := input[start : i+1]
		quant, next := scanQuantifier(input, i+1)
		return segment{
			Kind:  segPlaceholder,
			Raw:   raw,
			Name:  name,
			Quant: quant,
			Pos:   start,
		}, next, nil
	case '=':
		var value strings.Builder
		j := i + 1
		for j < len(input) {
			if input[j] == '\\' && j+1 < len(input) {
				if input[j+1] == '>' {
					value.WriteByte('>')
				} else {
					value.WriteString(input[j : j+2])
				}
				j += 2
				continue
			}
			if input[j] == '>' {
				raw := input[start : j+1]
				quant, next := scanQuantifier(input, j+1)
				return segment{
					Kind:   segPlaceholder,
					Raw:    raw,
					Name:   name,
					Assign: true,
					Value:  value.String(),
					Quant:  quant,
					Pos:    start,
				}, next, nil
			}
			value.WriteByte(input[j])
			j++
		}
		return segment{}, 0, fmt.Errorf("%w: unterminated assignment %q at position %d",
			ErrTemplateSyntax, input[start:], start)
	default:
		return segment{}, -1, nil
	}
}

// scanQuantifier reads a regex quantifier immediately after a closing '>'.
// Recognized forms: * + ? {m} {m,} {m,n}, each with an optional lazy '?'.
// A '{' that does not complete a counted repetition is not a quantifier.
func scanQuantifier(input string, pos int) (string, int) {
	if pos >= len(input) {
		return "", pos
	}
	end := pos
	switch input[pos] {
	case '*', '+', '?':
		end = pos + 1
	case '{':
		j := pos + 1
		digits := 0
		for j < len(input) && input[j] >= '0' && input[j] <= '9' {
			j++
			digits++
		}
		if digits == 0 {
			return "", pos
		}
		if j < len(input) && input[j] == ',' {
			j++
			for j < len(input) && input[j] >= '0' && input[j] <= '9' {
				j++
			}
		}
		if j >= len(input) || input[j] != '}' {
			return "", pos
		}
		end = j + 1
	default:
		return "", pos
	}
	if end < len(input) && input[end] == '?' {
		end++
	}
	return input[pos:end], end
}

func isIdentByte(c byte, notFirst bool) bool {
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return true
	}
	return notFirst && c >= '0' && c <= '9'
}

// countCaptureGroups counts capturing groups in a raw pattern chunk:
// plain '(' groups and (?P<name>...) named groups, skipping escapes and
// character classes.
func countCaptureGroups(pattern string) int {
	count := 0
	inClass := false
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '(':
			if inClass {
				continue
			}
			if i+1 < len(pattern) && pattern[i+1] == '?' {
				if strings.HasPrefix(pattern[i:], "(?P<") {
					count++
				}
			} else {
				count++
			}
		}
	}
	return count
}

// suppressCaptures rewrites every capturing group in pattern into a
// non-capturing one. Used when a chunk is embedded where its captures must
// not shift global group numbering (list item repetitions).
func suppressCaptures(pattern string) string {
	var out strings.Builder
	inClass := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\':
			if i+1 < len(pattern) {
				out.WriteString(pattern[i : i+2])
				i++
			} else {
				out.WriteByte(c)
			}
			continue
		case c == '[' && !inClass:
			inClass = true
		case c == ']' && inClass:
			inClass = false
		case c == '(' && !inClass:
			if strings.HasPrefix(pattern[i:], "(?P<") {
				end := strings.IndexByte(pattern[i:], '>')
				if end >= 0 {
					out.WriteString("(?:")
					i += end
					continue
				}
			}
			if i+1 >= len(pattern) || pattern[i+1] != '?' {
				out.WriteString("(?:")
				continue
			}
		}
		out.WriteByte(c)
	}
	return out.String()
}
