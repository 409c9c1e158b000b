package compiler

import (
	"errors"
	"fmt"
	"math"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/internal/idl"
)

// Compile reads an IDL document into the context's symbol table, links
// references and validates every declaration. It returns the combined
// diagnostics of the unit, or nil.
//
// The document shape is:
//
//	topic: "demo::Keyed"
//	modules: demo: {
//		struct: Keyed: {
//			extensibility: "appendable"
//			members: [
//				{name: "id", type: "long", key: true},
//				{name: "name", type: "string<128>"},
//			]
//		}
//		union: Shape: {discriminator: "long", cases: [...]}
//		enum: Color: {enumerators: ["RED", {name: "BLUE", value: 7}]}
//		typedef: Name: {type: "string<64>"}
//		modules: inner: {...}
//	}
func Compile(c *Context, v cue.Value) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	if err := v.Err(); err != nil {
		c.parseErrs = append(c.parseErrs, formatCUEError(err, "", ""))
		return c.Err()
	}

	iter, err := v.Fields()
	if err != nil {
		c.parseErrs = append(c.parseErrs, formatCUEError(err, "", ""))
		return c.Err()
	}
	for iter.Next() {
		switch iter.Label() {
		case "topic":
			topic, err := iter.Value().String()
			if err != nil {
				c.parseErrs = append(c.parseErrs, formatCUEError(err, "", "topic"))
				continue
			}
			c.Topic = topic
		case "modules":
			c.compileModules(nil, iter.Value())
		default:
			c.malformed(iter.Value().Pos(), "", "", "unknown top-level field %q", iter.Label())
		}
	}

	c.link()
	c.typeErrs = validate(c)

	c.logger.Debug("compiled IDL document",
		"run_id", c.RunID,
		"types", len(c.order),
		"unresolved", len(c.unresolved),
		"errors", len(c.parseErrs)+len(c.typeErrs))
	return c.Err()
}

// CompileSource compiles CUE source text. filename is used in positions.
func CompileSource(c *Context, filename, src string) error {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	return Compile(c, v)
}

func (c *Context) malformed(pos token.Pos, typeName, field, format string, args ...any) {
	c.parseErrs = append(c.parseErrs, &TypeError{
		Code:    ErrMalformed,
		Type:    typeName,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Pos:     pos,
	})
}

func (c *Context) fail(err error) {
	c.parseErrs = append(c.parseErrs, err)
}

func (c *Context) compileModules(scope []string, v cue.Value) {
	iter, err := v.Fields()
	if err != nil {
		c.fail(formatCUEError(err, idl.JoinScoped(scope...), "modules"))
		return
	}
	for iter.Next() {
		c.compileModule(append(append([]string{}, scope...), iter.Label()), iter.Value())
	}
}

func (c *Context) compileModule(scope []string, v cue.Value) {
	module := idl.JoinScoped(scope...)
	iter, err := v.Fields()
	if err != nil {
		c.fail(formatCUEError(err, module, ""))
		return
	}
	for iter.Next() {
		section := iter.Label()
		if section == "modules" {
			c.compileModules(scope, iter.Value())
			continue
		}
		var build func([]string, string, cue.Value) *idl.TypeNode
		switch section {
		case "struct":
			build = c.compileStruct
		case "union":
			build = c.compileUnion
		case "enum":
			build = c.compileEnum
		case "typedef":
			build = c.compileTypedef
		default:
			c.malformed(iter.Value().Pos(), module, "", "unknown section %q", section)
			continue
		}
		decls, err := iter.Value().Fields()
		if err != nil {
			c.fail(formatCUEError(err, module, section))
			continue
		}
		for decls.Next() {
			name := idl.JoinScoped(append(append([]string{}, scope...), decls.Label())...)
			n := build(scope, name, decls.Value())
			if err := c.declare(n); err != nil {
				c.fail(err)
			}
		}
	}
}

// fields checks that v is a struct holding only allowed labels.
func (c *Context) fields(v cue.Value, typeName, field string, allowed ...string) bool {
	iter, err := v.Fields()
	if err != nil {
		c.fail(formatCUEError(err, typeName, field))
		return false
	}
	ok := true
	for iter.Next() {
		known := false
		for _, a := range allowed {
			if iter.Label() == a {
				known = true
				break
			}
		}
		if !known {
			c.malformed(iter.Value().Pos(), typeName, field, "unknown field %q", iter.Label())
			ok = false
		}
	}
	return ok
}

func lookup(v cue.Value, field string) cue.Value {
	return v.LookupPath(cue.MakePath(cue.Str(field)))
}

func (c *Context) str(v cue.Value, key, typeName, field string, required bool) (string, bool) {
	f := lookup(v, key)
	if !f.Exists() {
		if required {
			c.malformed(v.Pos(), typeName, field, "%s is required", key)
		}
		return "", false
	}
	s, err := f.String()
	if err != nil {
		c.fail(formatCUEError(err, typeName, field))
		return "", false
	}
	return s, true
}

func (c *Context) boolean(v cue.Value, key, typeName, field string) bool {
	f := lookup(v, key)
	if !f.Exists() {
		return false
	}
	b, err := f.Bool()
	if err != nil {
		c.fail(formatCUEError(err, typeName, field))
		return false
	}
	return b
}

func (c *Context) ints(v cue.Value, typeName, field string) []int64 {
	list, err := v.List()
	if err != nil {
		c.fail(formatCUEError(err, typeName, field))
		return nil
	}
	var out []int64
	for list.Next() {
		n, err := list.Value().Int64()
		if err != nil {
			c.fail(formatCUEError(err, typeName, field))
			continue
		}
		out = append(out, n)
	}
	return out
}

// typeAnnotations reads extensibility and autoid of a struct or union.
func (c *Context) typeAnnotations(n *idl.TypeNode, v cue.Value) {
	if s, ok := c.str(v, "extensibility", n.Name, "", false); ok {
		ext, err := descriptor.ParseExtensibility(s)
		if err != nil {
			c.fail(&TypeError{Code: ErrInvalidAnnotation, Type: n.Name, Message: err.Error(), Pos: lookup(v, "extensibility").Pos()})
		}
		n.Annotations.Extensibility = ext
	}
	if s, ok := c.str(v, "autoid", n.Name, "", false); ok {
		auto, err := idl.ParseAutoID(s)
		if err != nil {
			c.fail(&TypeError{Code: ErrInvalidAnnotation, Type: n.Name, Message: err.Error(), Pos: lookup(v, "autoid").Pos()})
		}
		n.Annotations.AutoID = auto
	}
}

// typeExpr reads the type and dims fields of a member, case or typedef.
func (c *Context) typeExpr(scope []string, typeName, field string, v cue.Value) *idl.TypeNode {
	tv := lookup(v, "type")
	if !tv.Exists() {
		c.malformed(v.Pos(), typeName, field, "type is required")
		return &idl.TypeNode{Kind: idl.KindInvalid, Pos: v.Pos()}
	}
	t := c.parseType(scope, typeName, field, tv)
	if t.Kind == idl.KindInvalid {
		return t
	}
	if d := lookup(v, "dims"); d.Exists() {
		dims := c.ints(d, typeName, field)
		if len(dims) == 0 {
			c.malformed(d.Pos(), typeName, field, "dims must list at least one dimension")
			return &idl.TypeNode{Kind: idl.KindInvalid, Pos: d.Pos()}
		}
		t = &idl.TypeNode{Kind: idl.KindArray, Dims: dims, Elem: t, Pos: t.Pos}
	}
	return t
}

// parseType parses a type expression and records its references for
// linking.
func (c *Context) parseType(scope []string, typeName, field string, tv cue.Value) *idl.TypeNode {
	pos := tv.Pos()
	expr, err := tv.String()
	if err != nil {
		c.fail(formatCUEError(err, typeName, field))
		return &idl.TypeNode{Kind: idl.KindInvalid, Pos: pos}
	}
	t, err := idl.ParseTypeExpr(expr)
	if err != nil {
		code := ErrMalformed
		var ee *idl.ExprError
		if errors.As(err, &ee) && ee.Reason == idl.ReasonUnknownPrimitive {
			code = ErrUnknownPrimitive
		}
		c.fail(&TypeError{Code: code, Type: typeName, Field: field, Message: err.Error(), Pos: pos})
		return &idl.TypeNode{Kind: idl.KindInvalid, Pos: pos}
	}
	c.collectRefs(t, scope, typeName, pos)
	return t
}

func (c *Context) collectRefs(t *idl.TypeNode, scope []string, from string, pos token.Pos) {
	for ; t != nil; t = t.Elem {
		t.Pos = pos
		if t.Kind == idl.KindRef {
			t.Scope = scope
			c.refs = append(c.refs, pendingRef{node: t, from: from})
			return
		}
	}
}

func (c *Context) compileStruct(scope []string, name string, v cue.Value) *idl.TypeNode {
	n := &idl.TypeNode{Kind: idl.KindStruct, Name: name, Pos: v.Pos()}
	if !c.fields(v, name, "", "extensibility", "autoid", "members") {
		return n
	}
	c.typeAnnotations(n, v)

	members := lookup(v, "members")
	if !members.Exists() {
		return n
	}
	list, err := members.List()
	if err != nil {
		c.fail(formatCUEError(err, name, "members"))
		return n
	}
	for i := 0; list.Next(); i++ {
		mv := list.Value()
		m := &idl.Member{Index: i, Pos: mv.Pos()}
		m.Name, _ = c.str(mv, "name", name, fmt.Sprintf("members[%d]", i), true)
		field := m.Name
		if field == "" {
			field = fmt.Sprintf("members[%d]", i)
		}
		if !c.fields(mv, name, field, "name", "type", "dims", "key", "optional", "id") {
			m.Type = &idl.TypeNode{Kind: idl.KindInvalid}
			n.Members = append(n.Members, m)
			continue
		}
		m.Type = c.typeExpr(scope, name, field, mv)
		m.Annotations.Key = c.boolean(mv, "key", name, field)
		m.Annotations.Optional = c.boolean(mv, "optional", name, field)
		if idv := lookup(mv, "id"); idv.Exists() {
			id, err := idv.Int64()
			switch {
			case err != nil:
				c.fail(formatCUEError(err, name, field))
			case id < 0 || id > maxMemberID:
				c.fail(&TypeError{Code: ErrInvalidAnnotation, Type: name, Field: field,
					Message: fmt.Sprintf("id %d outside [0, %d]", id, maxMemberID), Pos: idv.Pos()})
			default:
				u := uint32(id)
				m.Annotations.ID = &u
			}
		}
		n.Members = append(n.Members, m)
	}
	assignMemberIDs(n)
	return n
}

func (c *Context) compileUnion(scope []string, name string, v cue.Value) *idl.TypeNode {
	n := &idl.TypeNode{Kind: idl.KindUnion, Name: name, Pos: v.Pos()}
	if !c.fields(v, name, "", "extensibility", "discriminator", "cases") {
		return n
	}
	c.typeAnnotations(n, v)

	if dv := lookup(v, "discriminator"); dv.Exists() {
		n.Disc = c.parseType(scope, name, "discriminator", dv)
	} else {
		c.malformed(v.Pos(), name, "", "discriminator is required")
		n.Disc = &idl.TypeNode{Kind: idl.KindInvalid}
	}

	cases := lookup(v, "cases")
	if !cases.Exists() {
		c.malformed(v.Pos(), name, "", "a union needs at least one case")
		return n
	}
	list, err := cases.List()
	if err != nil {
		c.fail(formatCUEError(err, name, "cases"))
		return n
	}
	for i := 0; list.Next(); i++ {
		cv := list.Value()
		uc := &idl.UnionCase{Pos: cv.Pos()}
		uc.Name, _ = c.str(cv, "name", name, fmt.Sprintf("cases[%d]", i), true)
		field := uc.Name
		if field == "" {
			field = fmt.Sprintf("cases[%d]", i)
		}
		if !c.fields(cv, name, field, "name", "type", "dims", "labels", "default") {
			uc.Type = &idl.TypeNode{Kind: idl.KindInvalid}
			n.Cases = append(n.Cases, uc)
			continue
		}
		uc.Type = c.typeExpr(scope, name, field, cv)
		uc.Default = c.boolean(cv, "default", name, field)
		if lv := lookup(cv, "labels"); lv.Exists() {
			c.caseLabels(uc, lv, name, field)
		}
		if !uc.Default && len(uc.Labels) == 0 && len(uc.LabelRefs) == 0 {
			c.malformed(cv.Pos(), name, field, "case needs labels or default: true")
		}
		n.Cases = append(n.Cases, uc)
	}
	if len(n.Cases) == 0 {
		c.malformed(cases.Pos(), name, "", "a union needs at least one case")
	}
	return n
}

// caseLabels reads integer, boolean and enumerator labels.
func (c *Context) caseLabels(uc *idl.UnionCase, v cue.Value, typeName, field string) {
	list, err := v.List()
	if err != nil {
		c.fail(formatCUEError(err, typeName, field))
		return
	}
	for list.Next() {
		lv := list.Value()
		switch lv.Kind() {
		case cue.IntKind:
			l, err := lv.Int64()
			if err != nil {
				c.fail(formatCUEError(err, typeName, field))
				continue
			}
			uc.Labels = append(uc.Labels, l)
		case cue.BoolKind:
			b, _ := lv.Bool()
			if b {
				uc.Labels = append(uc.Labels, 1)
			} else {
				uc.Labels = append(uc.Labels, 0)
			}
		case cue.StringKind:
			s, _ := lv.String()
			uc.LabelRefs = append(uc.LabelRefs, s)
		default:
			c.malformed(lv.Pos(), typeName, field, "label must be an integer, boolean or enumerator name")
		}
	}
}

func (c *Context) compileEnum(_ []string, name string, v cue.Value) *idl.TypeNode {
	n := &idl.TypeNode{Kind: idl.KindEnum, Name: name, Pos: v.Pos()}
	if !c.fields(v, name, "", "enumerators") {
		return n
	}
	ev := lookup(v, "enumerators")
	if !ev.Exists() {
		return n
	}
	list, err := ev.List()
	if err != nil {
		c.fail(formatCUEError(err, name, "enumerators"))
		return n
	}
	var next int64
	for list.Next() {
		item := list.Value()
		var e idl.Enumerator
		value := next
		switch item.Kind() {
		case cue.StringKind:
			e.Name, _ = item.String()
		case cue.StructKind:
			if !c.fields(item, name, "enumerators", "name", "value") {
				continue
			}
			var ok bool
			if e.Name, ok = c.str(item, "name", name, "enumerators", true); !ok {
				continue
			}
			if vv := lookup(item, "value"); vv.Exists() {
				explicit, err := vv.Int64()
				if err != nil {
					c.fail(formatCUEError(err, name, e.Name))
					continue
				}
				value = explicit
			}
		default:
			c.malformed(item.Pos(), name, "enumerators", "enumerator must be a name or {name, value}")
			continue
		}
		if value < math.MinInt32 || value > math.MaxInt32 {
			c.fail(&TypeError{Code: ErrInvalidEnum, Type: name, Field: e.Name,
				Message: fmt.Sprintf("value %d does not fit in 32 bits", value), Pos: item.Pos()})
			continue
		}
		e.Value = int32(value)
		n.Enumerators = append(n.Enumerators, e)
		next = value + 1
	}
	return n
}

func (c *Context) compileTypedef(scope []string, name string, v cue.Value) *idl.TypeNode {
	n := &idl.TypeNode{Kind: idl.KindAlias, Name: name, Pos: v.Pos()}
	if !c.fields(v, name, "", "type", "dims") {
		n.Elem = &idl.TypeNode{Kind: idl.KindInvalid}
		return n
	}
	n.Elem = c.typeExpr(scope, name, "", v)
	return n
}

// link resolves every recorded reference against the symbol table.
func (c *Context) link() {
	c.unresolved = nil
	for _, r := range c.refs {
		if r.node.Target != nil {
			continue
		}
		if t, ok := c.Resolve(r.node.Scope, r.node.Name); ok {
			r.node.Target = t
			continue
		}
		c.unresolved = append(c.unresolved, UnresolvedRef{Name: r.node.Name, From: r.from, Pos: r.node.Pos})
	}

	for _, n := range c.Types() {
		if n.Kind != idl.KindUnion || n.Disc == nil {
			continue
		}
		disc := n.Disc.Resolve()
		if disc == nil || disc.Kind != idl.KindEnum {
			continue
		}
		for _, uc := range n.Cases {
			if len(uc.LabelRefs) == 0 || c.labelsLinked[uc] {
				continue
			}
			for _, ref := range uc.LabelRefs {
				if v, ok := enumeratorValue(disc, ref); ok {
					uc.Labels = append(uc.Labels, int64(v))
				}
			}
			c.labelsLinked[uc] = true
		}
	}
}

// enumeratorValue finds an enumerator by bare or scoped name.
func enumeratorValue(enum *idl.TypeNode, ref string) (int32, bool) {
	parts := idl.SplitScoped(ref)
	if len(parts) == 0 {
		return 0, false
	}
	name := parts[len(parts)-1]
	for _, e := range enum.Enumerators {
		if e.Name == name {
			return e.Value, true
		}
	}
	return 0, false
}
