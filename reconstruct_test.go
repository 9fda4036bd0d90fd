package retools

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShapesBuilder(t *testing.T) *Builder {
	t.Helper()
	b := NewBuilder()
	require.NoError(t, b.Register(TokenDef{
		Name:     "Pair",
		Template: `<x>, <y>`,
		Fields: []Field{
			{Name: "x", Type: FieldType{Kind: KindInt}},
			{Name: "y", Type: FieldType{Kind: KindInt}},
		},
	}))
	require.NoError(t, b.Register(TokenDef{
		Name:      "Coordinate",
		Supertype: "Pair",
		Template:  `x=<x>, y=<y>`,
	}))
	require.NoError(t, b.Register(TokenDef{
		Name:      "Point3D",
		Supertype: "Coordinate",
		Template:  `<Coordinate>, z=<z>`,
		Fields:    []Field{{Name: "z", Type: FieldType{Kind: KindInt}}},
	}))
	require.NoError(t, b.Register(TokenDef{
		Name:      "Complex",
		Supertype: "Pair",
		Template:  `<x> \+ <y>i`,
	}))
	return b
}

func TestPolymorphicDispatch(t *testing.T) {
	b := newShapesBuilder(t)

	tests := []struct {
		text   string
		token  string
		fields map[string]int64
	}{
		{"1, 2", "Pair", map[string]int64{"x": 1, "y": 2}},
		{"x=3, y=4", "Coordinate", map[string]int64{"x": 3, "y": 4}},
		{"x=5, y=6, z=7", "Point3D", map[string]int64{"x": 5, "y": 6, "z": 7}},
		{"8 + 9i", "Complex", map[string]int64{"x": 8, "y": 9}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			v, err := b.Construct("Pair", tt.text)
			require.NoError(t, err)
			require.Equal(t, KindToken, v.Kind)
			assert.Equal(t, tt.token, v.Record.Token)
			for name, want := range tt.fields {
				assert.Equal(t, want, v.Record.Get(name).Int, "field %s", name)
			}
		})
	}
}

func TestOccurrencesUnderInheritance(t *testing.T) {
	b := newShapesBuilder(t)
	rc, err := b.Compile(`<Pair>`)
	require.NoError(t, err)

	m := rc.Match("x=3, y=4")
	require.NotNil(t, m)

	// The supertype reference indexes once, as the alternation itself.
	assert.Equal(t, 1, m.Occurrences("Pair"))
	v, err := m.Get("Pair", 1)
	require.NoError(t, err)
	assert.Equal(t, "Coordinate", v.Record.Token)

	// Each subtype branch is also indexed under its own chain: Point3D's
	// branch counts as a Coordinate occurrence ahead of Coordinate's own.
	assert.Equal(t, 2, m.Occurrences("Coordinate"))
	v, err = m.Get("Coordinate", 1)
	require.NoError(t, err)
	assert.True(t, v.IsNone())
	v, err = m.Get("Coordinate", 2)
	require.NoError(t, err)
	assert.Equal(t, "Coordinate", v.Record.Token)

	v, err = m.Get("Point3D", 1)
	require.NoError(t, err)
	assert.True(t, v.IsNone())

	v, err = m.Get("Complex", 1)
	require.NoError(t, err)
	assert.True(t, v.IsNone())
}

func TestFindAllPolymorphic(t *testing.T) {
	b := newShapesBuilder(t)

	rows, err := b.FindAll(`<Pair>`, "1, 2; x=3, y=4; x=5, y=6, z=7; 8 + 9i")
	require.NoError(t, err)
	require.Len(t, rows, 4)

	var tokens []string
	for _, row := range rows {
		require.Len(t, row, 1)
		require.Equal(t, KindToken, row[0].Kind)
		tokens = append(tokens, row[0].Record.Token)
	}
	assert.Equal(t, []string{"Pair", "Coordinate", "Point3D", "Complex"}, tokens)
}

func TestConstantAssignments(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(TokenDef{
		Name:     "Person",
		Template: `(?:John<name=John><height=180>|Mary<name=Mary><height=165>)`,
		Fields: []Field{
			{Name: "name", Type: FieldType{Kind: KindText}},
			{Name: "height", Type: FieldType{Kind: KindInt}},
		},
	}))

	v, err := b.Construct("Person", "John")
	require.NoError(t, err)
	assert.Equal(t, "John", v.Record.Get("name").Text)
	assert.Equal(t, int64(180), v.Record.Get("height").Int)

	v, err = b.Construct("Person", "Mary")
	require.NoError(t, err)
	assert.Equal(t, "Mary", v.Record.Get("name").Text)
	assert.Equal(t, int64(165), v.Record.Get("height").Int)
}

func TestConstantBranchDispatch(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(TokenDef{
		Name:     "Order",
		Template: `order <id> (?:shipped<status=shipped>|cancelled<status=cancelled>)`,
		Fields: []Field{
			{Name: "id", Type: FieldType{Kind: KindInt}},
			{Name: "status", Type: FieldType{Kind: KindText}},
		},
	}))

	v, err := b.Construct("Order", "order 10 shipped")
	require.NoError(t, err)
	assert.Equal(t, int64(10), v.Record.Get("id").Int)
	assert.Equal(t, "shipped", v.Record.Get("status").Text)

	v, err = b.Construct("Order", "order 11 cancelled")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", v.Record.Get("status").Text)
}

func TestConstantConsumesNoInput(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(TokenDef{
		Name:     "Tagged",
		Template: `item<kind=widget>`,
		Fields:   []Field{{Name: "kind", Type: FieldType{Kind: KindText}}},
	}))

	m, err := b.Match(`<Tagged>`, "item and more")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "item", m.Text())

	v, err := m.Get("Tagged", 1)
	require.NoError(t, err)
	assert.Equal(t, "widget", v.Record.Get("kind").Text)
}

func TestConstantInvalidLiteralIsNone(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(TokenDef{
		Name:     "Count",
		Template: `count<n=abc>`,
		Fields:   []Field{{Name: "n", Type: FieldType{Kind: KindInt}}},
	}))

	v, err := b.Construct("Count", "count")
	require.NoError(t, err)
	require.Equal(t, KindToken, v.Kind)
	assert.True(t, v.Record.Get("n").IsNone())
}

func TestConstantEscapedLiteral(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(TokenDef{
		Name:     "Note",
		Template: `note<text=3 \> 2>`,
		Fields:   []Field{{Name: "text", Type: FieldType{Kind: KindText}}},
	}))

	v, err := b.Construct("Note", "note")
	require.NoError(t, err)
	assert.Equal(t, "3 > 2", v.Record.Get("text").Text)
}

func TestConstantNestedToken(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(TokenDef{
		Name:     "Point",
		Template: `<x>,<y>`,
		Fields: []Field{
			{Name: "x", Type: FieldType{Kind: KindInt}},
			{Name: "y", Type: FieldType{Kind: KindInt}},
		},
	}))
	require.NoError(t, b.Register(TokenDef{
		Name:     "Box",
		Template: `box<origin=1,2>`,
		Fields:   []Field{{Name: "origin", Type: TokenType("Point")}},
	}))

	v, err := b.Construct("Box", "box")
	require.NoError(t, err)
	origin := v.Record.Get("origin")
	require.Equal(t, KindToken, origin.Kind)
	assert.Equal(t, "Point", origin.Record.Token)
	assert.Equal(t, int64(1), origin.Record.Get("x").Int)
	assert.Equal(t, int64(2), origin.Record.Get("y").Int)
}

func TestListTriState(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(dateDef()))
	require.NoError(t, b.Register(TokenDef{
		Name:     "Schedule",
		Template: `^<subject>(?:\s+dates\s*=\s*\[<dates>\])?$`,
		Fields: []Field{
			{Name: "subject", Type: FieldType{Kind: KindText}},
			{Name: "dates", Type: ListType(TokenType("DATE")), Optional: true},
		},
	}))

	t.Run("items present", func(t *testing.T) {
		v, err := b.Construct("Schedule", "movie night dates = [2025-01-01, 2025/02/02, 2026-03-03]")
		require.NoError(t, err)
		assert.Equal(t, "movie night", v.Record.Get("subject").Text)

		dates := v.Record.Get("dates")
		require.Equal(t, KindList, dates.Kind)
		require.Len(t, dates.List, 3)
		assert.Equal(t, int64(2025), dates.List[0].Record.Get("year").Int)
		assert.Equal(t, int64(2), dates.List[1].Record.Get("month").Int)
		assert.Equal(t, int64(2026), dates.List[2].Record.Get("year").Int)
	})

	t.Run("present but empty", func(t *testing.T) {
		v, err := b.Construct("Schedule", "movie night dates = []")
		require.NoError(t, err)
		dates := v.Record.Get("dates")
		require.Equal(t, KindList, dates.Kind)
		assert.NotNil(t, dates.List)
		assert.Len(t, dates.List, 0)
	})

	t.Run("absent", func(t *testing.T) {
		v, err := b.Construct("Schedule", "movie night")
		require.NoError(t, err)
		assert.True(t, v.Record.Get("dates").IsNone())
	})
}

func TestListEmptyLiteral(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(dateDef()))
	require.NoError(t, b.Register(TokenDef{
		Name:     "Calendar",
		Template: `^<subject>:\s*<dates>$`,
		Fields: []Field{
			{Name: "subject", Type: FieldType{Kind: KindText}},
			{Name: "dates", Type: ListType(TokenType("DATE")), Repeat: &Repeat{Empty: `TBD`}},
		},
	}))

	v, err := b.Construct("Calendar", "practice: TBD")
	require.NoError(t, err)
	assert.Equal(t, "practice", v.Record.Get("subject").Text)
	dates := v.Record.Get("dates")
	require.Equal(t, KindList, dates.Kind)
	assert.Len(t, dates.List, 0)

	v, err = b.Construct("Calendar", "practice: 2025-01-01, 2026-02-02")
	require.NoError(t, err)
	dates = v.Record.Get("dates")
	require.Len(t, dates.List, 2)
	assert.Equal(t, int64(2026), dates.List[1].Record.Get("year").Int)
}

func TestListOfPrimitives(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(TokenDef{
		Name:   "Nums",
		Fields: []Field{{Name: "nums", Type: ListType(FieldType{Kind: KindInt})}},
	}))

	v, err := b.Construct("Nums", "1, 2, 3")
	require.NoError(t, err)
	nums := v.Record.Get("nums")
	require.Equal(t, KindList, nums.Kind)
	require.Len(t, nums.List, 3)
	assert.Equal(t, int64(1), nums.List[0].Int)
	assert.Equal(t, int64(3), nums.List[2].Int)
}

func TestListOfTextItems(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(TokenDef{
		Name:     "Bag",
		Template: `\[<names>\]`,
		Fields:   []Field{{Name: "names", Type: ListType(FieldType{Kind: KindText})}},
	}))

	// The lazy text pattern must stretch per item exactly as it did inside
	// the matched region, not re-shrink to one character on re-scanning.
	v, err := b.Construct("Bag", "[ab, cd]")
	require.NoError(t, err)
	names := v.Record.Get("names")
	require.Equal(t, KindList, names.Kind)
	require.Len(t, names.List, 2)
	assert.Equal(t, "ab", names.List[0].Text)
	assert.Equal(t, "cd", names.List[1].Text)

	v, err = b.Construct("Bag", "[one, two, three]")
	require.NoError(t, err)
	names = v.Record.Get("names")
	require.Len(t, names.List, 3)
	assert.Equal(t, "one", names.List[0].Text)
	assert.Equal(t, "three", names.List[2].Text)
}

func TestListCustomSeparator(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(TokenDef{
		Name:     "Semis",
		Template: `vals=<nums>`,
		Fields: []Field{{
			Name:   "nums",
			Type:   ListType(FieldType{Kind: KindInt}),
			Repeat: &Repeat{Separator: `\s*;\s*`, Required: true},
		}},
	}))

	v, err := b.Construct("Semis", "vals=4; 5;6")
	require.NoError(t, err)
	nums := v.Record.Get("nums")
	require.Len(t, nums.List, 3)
	assert.Equal(t, int64(5), nums.List[1].Int)
}

func TestRepeatedOptionalClauses(t *testing.T) {
	b := NewBuilder()
	floatOpt := func(name string) Field {
		return Field{Name: name, Type: FieldType{Kind: KindFloat}, Optional: true}
	}
	require.NoError(t, b.Register(TokenDef{
		Name:     "Limit",
		Template: `^(?:\s*(?:minX\s+<minX>|maxX\s+<maxX>|minY\s+<minY>|maxY\s+<maxY>))*\s*$`,
		Fields:   []Field{floatOpt("minX"), floatOpt("maxX"), floatOpt("minY"), floatOpt("maxY")},
	}))

	v, err := b.Construct("Limit", "minX 3 maxX 18")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v.Record.Get("minX").Float)
	assert.Equal(t, 18.0, v.Record.Get("maxX").Float)
	assert.True(t, v.Record.Get("minY").IsNone())
	assert.True(t, v.Record.Get("maxY").IsNone())

	// A clause repeated in the input keeps the last capture.
	v, err = b.Construct("Limit", "maxX 17 maxX 18")
	require.NoError(t, err)
	assert.Equal(t, 18.0, v.Record.Get("maxX").Float)

	// The pattern accepts empty input, but then no group participated.
	v, err = b.Construct("Limit", "")
	require.NoError(t, err)
	assert.True(t, v.IsNone())
}

func TestOptionalTrailingClause(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(TokenDef{
		Name:     "Delivery",
		Template: `order <order_id> shipped at <shipped_at>(?: delivered at <delivered_at>)?`,
		Fields: []Field{
			{Name: "order_id", Type: FieldType{Kind: KindInt}},
			{Name: "shipped_at", Type: FieldType{Kind: KindDateTime}},
			{Name: "delivered_at", Type: FieldType{Kind: KindDateTime}, Optional: true},
		},
	}))

	v, err := b.Construct("Delivery", "order 42 shipped at 2025-01-02 03:04:05")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Record.Get("order_id").Int)
	assert.Equal(t,
		time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC),
		v.Record.Get("shipped_at").Time)
	assert.True(t, v.Record.Get("delivered_at").IsNone())

	v, err = b.Construct("Delivery",
		"order 42 shipped at 2025-01-02 03:04:05 delivered at 2025-01-03 06:07:08")
	require.NoError(t, err)
	assert.Equal(t,
		time.Date(2025, time.January, 3, 6, 7, 8, 0, time.UTC),
		v.Record.Get("delivered_at").Time)
}

func TestRoundTripAllKinds(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(TokenDef{
		Name: "Profile",
		Template: `active=<active> count=<count> ratio=<ratio> price=<price> ` +
			`born=<born> seen=<seen> at=<at> id=<id> note=<note>`,
		Fields: []Field{
			{Name: "active", Type: FieldType{Kind: KindBool}},
			{Name: "count", Type: FieldType{Kind: KindInt}},
			{Name: "ratio", Type: FieldType{Kind: KindFloat}},
			{Name: "price", Type: FieldType{Kind: KindDecimal}},
			{Name: "born", Type: FieldType{Kind: KindDate}},
			{Name: "seen", Type: FieldType{Kind: KindDateTime}},
			{Name: "at", Type: FieldType{Kind: KindTime}},
			{Name: "id", Type: FieldType{Kind: KindUUID}},
			{Name: "note", Type: FieldType{Kind: KindText}},
		},
	}))

	text := "active=true count=42 ratio=1.75 price=19.99 born=1990-05-12 " +
		"seen=2026-08-25 10:30:00 at=23:59:59 id=123e4567-e89b-12d3-a456-426614174000 " +
		"note=hello world"

	m, err := b.FullMatch(`<Profile>`, text)
	require.NoError(t, err)
	require.NotNil(t, m)
	v, err := m.Get("Profile", 1)
	require.NoError(t, err)

	rec := v.Record
	assert.True(t, rec.Get("active").Bool)
	assert.Equal(t, int64(42), rec.Get("count").Int)
	assert.Equal(t, 1.75, rec.Get("ratio").Float)
	assert.True(t, rec.Get("price").Decimal.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, time.Date(1990, time.May, 12, 0, 0, 0, 0, time.UTC), rec.Get("born").Time)
	assert.Equal(t, time.Date(2026, time.August, 25, 10, 30, 0, 0, time.UTC), rec.Get("seen").Time)
	assert.Equal(t, time.Date(0, time.January, 1, 23, 59, 59, 0, time.UTC), rec.Get("at").Time)
	assert.Equal(t, uuid.MustParse("123e4567-e89b-12d3-a456-426614174000"), rec.Get("id").UUID)
	assert.Equal(t, "hello world", rec.Get("note").Text)

	// Formatting every field back and rematching reproduces the record.
	var parts []string
	for _, f := range rec.Fields {
		parts = append(parts, f.Name+"="+FormatValue(f.Value))
	}
	rebuilt := strings.Join(parts, " ")
	assert.Equal(t, text, rebuilt)

	m2, err := b.FullMatch(`<Profile>`, rebuilt)
	require.NoError(t, err)
	require.NotNil(t, m2)
	v2, err := m2.Get("Profile", 1)
	require.NoError(t, err)
	assert.Equal(t, v, v2)
}

func TestReconstructionParseFailure(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(TokenDef{
		Name:     "Serial",
		Template: `serial <n>`,
		Fields:   []Field{{Name: "n", Type: FieldType{Kind: KindInt}, Pattern: `\d{25}`}},
	}))

	// The override pattern accepts digit runs the int parser cannot hold.
	m, err := b.Match(`<Serial>`, "serial "+strings.Repeat("9", 25))
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = m.Get("Serial", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReconstruction)
}
