package retools

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind identifies the semantic type of a field value.
type Kind int

const (
	KindNone Kind = iota // absent value; the zero Value
	KindBool
	KindInt
	KindFloat
	KindDecimal
	KindDate
	KindDateTime
	KindTime
	KindUUID
	KindText
	KindToken // nested record, named by FieldType.Token
	KindList  // repeated field, element type in FieldType.Elem
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindTime:
		return "time"
	case KindUUID:
		return "uuid"
	case KindText:
		return "text"
	case KindToken:
		return "token"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// FieldType is the declared type of a field: a primitive kind, a reference
// to a registered token, or a list of an element type.
type FieldType struct {
	Kind  Kind
	Token string     // token name when Kind == KindToken
	Elem  *FieldType // element type when Kind == KindList
}

// TokenType returns a FieldType referencing a registered token by name.
func TokenType(name string) FieldType {
	return FieldType{Kind: KindToken, Token: name}
}

// ListType returns a FieldType for a repeated field over elem.
func ListType(elem FieldType) FieldType {
	e := elem
	return FieldType{Kind: KindList, Elem: &e}
}

func (t FieldType) String() string {
	switch t.Kind {
	case KindToken:
		return fmt.Sprintf("token(%s)", t.Token)
	case KindList:
		if t.Elem != nil {
			return fmt.Sprintf("list(%s)", t.Elem)
		}
		return "list(?)"
	default:
		return t.Kind.String()
	}
}

// Repeat configures how a list field is matched.
type Repeat struct {
	Separator string // pattern between items; defaults to `\s*,\s*`
	Required  bool   // when true the segment itself may not be absent
	Empty     string // pattern standing in for "present but no items", e.g. `TBD`
}

// Field describes one field of a token definition.
type Field struct {
	Name     string
	Type     FieldType
	Pattern  string // explicit pattern override; empty means the type default
	Optional bool
	Repeat   *Repeat // list configuration, only meaningful for KindList
}

// TokenDef is a named pattern fragment tied to a record type.
//
// Template may reference the definition's own fields (<field>), other
// registered tokens (<TOKEN>), and constant assignments (<field=value>).
// An empty Template is allowed when the definition has exactly one field;
// it defaults to "<field>". Supertype names a previously registered
// definition; subtypes participate in alternation when the supertype
// token is referenced. Aliases are named sub-templates private to this
// definition; inside its template they resolve after fields and shadow
// any builder-level alias of the same name.
type TokenDef struct {
	Name      string
	Template  string
	Fields    []Field
	Supertype string
	Aliases   map[string]string
}

func (d *TokenDef) field(name string) *Field {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i]
		}
	}
	return nil
}

// Value is the statically-variant result of reconstruction. Exactly one
// payload is meaningful, selected by Kind; the zero Value is the None case
// (field absent / segment did not participate).
type Value struct {
	Kind    Kind
	Bool    bool
	Int     int64
	Float   float64
	Decimal decimal.Decimal
	Time    time.Time // KindDate, KindDateTime and KindTime all land here
	UUID    uuid.UUID
	Text    string
	Record  *Record
	List    []Value
}

// None is the absent value.
func None() Value { return Value{} }

// IsNone reports whether v is the absent case.
func (v Value) IsNone() bool { return v.Kind == KindNone }

func (v Value) String() string {
	switch v.Kind {
	case KindNone:
		return "None"
	case KindToken:
		return v.Record.String()
	case KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return FormatValue(v)
	}
}

// FieldValue is one named field of a reconstructed record.
type FieldValue struct {
	Name  string
	Value Value
}

// Record is a reconstructed instance of a token's record type, with fields
// in declaration order. For a polymorphic match Token names the most
// specific subtype that participated.
type Record struct {
	Token  string
	Fields []FieldValue
}

// Get returns the value of the named field, or None if the record has no
// such field.
func (r *Record) Get(name string) Value {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return None()
}

func (r *Record) String() string {
	parts := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		parts[i] = f.Name + "=" + f.Value.String()
	}
	return r.Token + "(" + strings.Join(parts, ", ") + ")"
}
