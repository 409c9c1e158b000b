package compiler

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/internal/idl"
)

const demoIDL = `
topic: "demo::Keyed"
modules: demo: {
	struct: Keyed: {
		members: [
			{name: "id", type: "long", key: true},
			{name: "name", type: "string<128>"},
		]
	}
	enum: Color: {enumerators: ["RED", "GREEN", {name: "BLUE", value: 10}, "CYAN"]}
	union: Shape: {
		discriminator: "Color"
		extensibility: "appendable"
		cases: [
			{labels: ["RED", "GREEN"], name: "radius", type: "double"},
			{labels: ["demo::Color::BLUE"], name: "side", type: "long", dims: [2]},
			{default: true, name: "label", type: "string"},
		]
	}
	typedef: Name: {type: "string<64>"}
	modules: geo: {
		struct: Point: {
			extensibility: "mutable"
			autoid: "hash"
			members: [
				{name: "x", type: "double"},
				{name: "y", type: "double", id: 7},
				{name: "tag", type: "Name", optional: true},
			]
		}
	}
}
`

func compileDemo(t *testing.T) *Context {
	t.Helper()
	c := NewContext()
	require.NoError(t, CompileSource(c, "demo.cue", demoIDL))
	return c
}

func TestCompileDeclarations(t *testing.T) {
	c := compileDemo(t)

	assert.Equal(t, "demo::Keyed", c.Topic)
	var names []string
	for _, n := range c.Types() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"demo::Keyed", "demo::Color", "demo::Shape", "demo::Name", "demo::geo::Point"}, names)
	assert.Empty(t, c.Unresolved())
	assert.Empty(t, c.Diagnostics())
	assert.NoError(t, c.Err())
}

func TestCompileStructMembers(t *testing.T) {
	c := compileDemo(t)
	keyed, ok := c.Lookup("demo::Keyed")
	require.True(t, ok)

	require.Len(t, keyed.Members, 2)
	id := keyed.Members[0]
	assert.Equal(t, "id", id.Name)
	assert.True(t, id.Key())
	assert.Equal(t, idl.KindPrimitive, id.Type.Kind)
	assert.Equal(t, descriptor.KindInt32, id.Type.Prim)
	assert.Equal(t, uint32(0), id.ID)

	name := keyed.Members[1]
	assert.Equal(t, 1, name.Index)
	assert.Equal(t, idl.KindString, name.Type.Kind)
	assert.Equal(t, int64(128), name.Type.Bound)
	assert.Equal(t, uint32(1), name.ID)
	assert.Equal(t, descriptor.Final, keyed.Annotations.Extensibility)
	assert.True(t, keyed.Pos.IsValid())
}

func TestCompileHashIDsAndAliasResolution(t *testing.T) {
	c := compileDemo(t)
	point, ok := c.Lookup("::demo::geo::Point")
	require.True(t, ok)

	assert.Equal(t, descriptor.Mutable, point.Annotations.Extensibility)
	assert.Equal(t, HashMemberID("x"), point.Members[0].ID)
	assert.Equal(t, uint32(7), point.Members[1].ID)
	assert.Equal(t, HashMemberID("tag"), point.Members[2].ID)

	tag := point.Members[2]
	assert.True(t, tag.Optional())
	require.Equal(t, idl.KindRef, tag.Type.Kind)
	alias, _ := c.Lookup("demo::Name")
	assert.Same(t, alias, tag.Type.Target)
	resolved := tag.Type.Resolve()
	require.NotNil(t, resolved)
	assert.Equal(t, idl.KindString, resolved.Kind)
	assert.Equal(t, int64(64), resolved.Bound)
}

func TestCompileUnionLabels(t *testing.T) {
	c := compileDemo(t)
	shape, ok := c.Lookup("demo::Shape")
	require.True(t, ok)

	assert.Equal(t, descriptor.Appendable, shape.Annotations.Extensibility)
	require.Len(t, shape.Cases, 3)
	assert.Equal(t, []int64{0, 1}, shape.Cases[0].Labels)
	assert.Equal(t, []int64{10}, shape.Cases[1].Labels)
	assert.Equal(t, idl.KindArray, shape.Cases[1].Type.Kind)
	assert.Equal(t, []int64{2}, shape.Cases[1].Type.Dims)
	assert.True(t, shape.Cases[2].Default)

	color, _ := c.Lookup("demo::Color")
	assert.Equal(t, []idl.Enumerator{
		{Name: "RED", Value: 0},
		{Name: "GREEN", Value: 1},
		{Name: "BLUE", Value: 10},
		{Name: "CYAN", Value: 11},
	}, color.Enumerators)
}

func TestHashMemberID(t *testing.T) {
	// MD5("x") = 9dd4e461...; first four bytes little endian, masked.
	assert.Equal(t, uint32(0x61e4d49d&0x0FFFFFFF), HashMemberID("x"))
	assert.LessOrEqual(t, HashMemberID("a_rather_long_member_name"), uint32(maxMemberID))
}

func TestCompileUnresolvedReferences(t *testing.T) {
	c := NewContext()
	err := CompileSource(c, "refs.cue", `
modules: a: struct: S: {
	members: [
		{name: "p", type: "nowhere::P"},
		{name: "q", type: "sequence<Missing, 4>"},
	]
}
`)
	require.NoError(t, err, "unresolved names are reported by the generator")

	unresolved := c.Unresolved()
	require.Len(t, unresolved, 2)
	assert.Equal(t, "nowhere::P", unresolved[0].Name)
	assert.Equal(t, "a::S", unresolved[0].From)
	assert.Equal(t, "Missing", unresolved[1].Name)
	assert.True(t, unresolved[0].Pos.IsValid())
}

func TestCompileResolvesInnermostScopeFirst(t *testing.T) {
	c := NewContext()
	require.NoError(t, CompileSource(c, "scopes.cue", `
modules: outer: {
	struct: P: {members: [{name: "a", type: "long"}]}
	modules: inner: {
		struct: P: {members: [{name: "b", type: "short"}]}
		struct: Use: {members: [
			{name: "near", type: "P"},
			{name: "far", type: "::outer::P"},
			{name: "rel", type: "outer::P"},
		]}
	}
}
`))
	use, ok := c.Lookup("outer::inner::Use")
	require.True(t, ok)
	assert.Equal(t, "outer::inner::P", use.Members[0].Type.Target.Name)
	assert.Equal(t, "outer::P", use.Members[1].Type.Target.Name)
	assert.Equal(t, "outer::P", use.Members[2].Type.Target.Name)
}

func TestCompileRejectsBusyContext(t *testing.T) {
	c := NewContext()
	c.busy.Store(true)
	err := CompileSource(c, "x.cue", demoIDL)
	assert.ErrorIs(t, err, ErrContextBusy)
	assert.Empty(t, c.Types())
}

func TestNewContextRunID(t *testing.T) {
	a, b := NewContext(), NewContext()
	assert.Len(t, a.RunID, 36)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, "fixed", NewContext(WithRunID("fixed")).RunID)
}

func TestCompileReportsCUETypeErrors(t *testing.T) {
	c := NewContext()
	err := CompileSource(c, "broken.cue", `modules: a: struct: S: {members: [{name: 1, type: "long"}]}`)
	require.Error(t, err)

	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrMalformed, te.Code)
	assert.Equal(t, "a::S", te.Type)
	assert.Equal(t, "members[0]", te.Field)
}

func TestCompileRejectsUnknownFields(t *testing.T) {
	c := NewContext()
	err := CompileSource(c, "x.cue", `
modules: a: {
	struct: S: {membrs: []}
	classes: {}
}
`)
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), `unknown field "membrs"`)
	assert.Contains(t, errs[1].Error(), `unknown section "classes"`)
}

// codes returns the sorted distinct codes of the diagnostics.
func codes(t *testing.T, errs []error) []string {
	t.Helper()
	seen := map[string]bool{}
	for _, err := range errs {
		var te *TypeError
		require.ErrorAs(t, err, &te, "unexpected diagnostic %v", err)
		seen[te.Code] = true
	}
	var out []string
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
