/*
Package retools composes text-matching patterns from reusable, named
pattern fragments ("tokens") and reconstructs successful matches back into
typed records.

# Overview

A token ties a record type (named, typed fields) to a pattern template.
Templates reference other tokens and their own fields through a placeholder
syntax, and a compiled pattern remembers, for every capture group it emits,
which record and field the group belongs to. Matching is a single pass of
the regexp engine; reconstruction walks the captured spans back into nested
record values.

# Placeholder Syntax

Placeholders are delimited by angle brackets:

  - <TOKEN> references a registered token (case-sensitive). Unknown names
    are not expanded; the literal text passes through unchanged.
  - <field> references a field of the token whose template is being
    expanded, matching the field's pattern override or its type default.
  - <field=value> assigns a constant to a field without consuming input.
    A literal '>' inside value is written \>.
  - A regex quantifier directly after the closing '>' applies to the whole
    expansion: <DATE>?, <item>{2,5}.

# Usage

	b := retools.NewBuilder()
	b.MustRegister(retools.TokenDef{
		Name:     "DATE",
		Template: `<year>-<month>-<day>|<year>/<month>/<day>`,
		Fields: []retools.Field{
			{Name: "year", Type: retools.FieldType{Kind: retools.KindInt}, Pattern: `\d{4}`},
			{Name: "month", Type: retools.FieldType{Kind: retools.KindInt}, Pattern: `\d{2}`},
			{Name: "day", Type: retools.FieldType{Kind: retools.KindInt}, Pattern: `\d{2}`},
		},
	})

	rc, _ := b.Compile("from <DATE> to <DATE>")
	if m := rc.Match("from 2025-06-01 to 2025/08/31"); m != nil {
		first, _ := m.Get("DATE", 1)
		second, _ := m.Get("DATE", 2)
		_ = first.Record.Get("year") // Value{Kind: KindInt, Int: 2025}
		_ = second
	}

Registered subtypes (TokenDef.Supertype) turn a token reference into an
ordered alternation, most specific first; Get on the supertype returns the
most specific matched subtype record. List fields (KindList with an
optional Repeat configuration) reconstruct to None when their segment is
absent, to an empty list when present but empty, and otherwise to the
items in order.

Registration must finish before a builder is shared; compiled matchers are
immutable and safe for concurrent matching.
*/
package retools
