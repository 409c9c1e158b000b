package generator

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"

	"github.com/roach88/cdrgen/descriptor"
)

// goField is a struct field as it appears in generated source.
type goField struct {
	Name string
	Tag  string // value of the idl struct tag
}

// verifyPositional parses generated source and checks that the fields of
// every generated struct and union line up with its descriptor's members.
func verifyPositional(src []byte, described []Described) error {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", src, parser.SkipObjectResolution)
	if err != nil {
		return genErr(ErrCodePositional, "generated source does not parse: %v", err)
	}
	fields := structFields(f)

	e := genErr(ErrCodePositional, "generated fields do not match descriptor order")
	for _, d := range described {
		got, ok := fields[d.Ident]
		if !ok {
			e.Details = append(e.Details, fmt.Sprintf("%s: type %s not found in generated source", d.Type, d.Ident))
			continue
		}
		want := expectedFields(d)
		if len(got) != len(want) {
			e.Details = append(e.Details, fmt.Sprintf("%s: %d fields, descriptor has %d", d.Type, len(got), len(want)))
			continue
		}
		for i := range want {
			if got[i] != want[i] {
				e.Details = append(e.Details, fmt.Sprintf("%s: field %d is %s (%q), descriptor has %s (%q)",
					d.Type, i, got[i].Name, got[i].Tag, want[i].Name, want[i].Tag))
			}
		}
	}
	if len(e.Details) > 0 {
		return e
	}
	return nil
}

func expectedFields(d Described) []goField {
	root := d.Descriptor.Root()
	var want []goField
	for _, m := range root.Members {
		want = append(want, goField{Name: m.Field, Tag: m.Name})
	}
	if root.Kind == descriptor.KindUnion {
		want = append(want, goField{Name: "Disc"})
		for _, c := range root.Cases {
			want = append(want, goField{Name: c.Field, Tag: c.Name})
		}
	}
	return want
}

// structFields maps each top-level struct type to its fields in order.
func structFields(f *ast.File) map[string][]goField {
	out := make(map[string][]goField)
	ast.Inspect(f, func(n ast.Node) bool {
		ts, ok := n.(*ast.TypeSpec)
		if !ok {
			return true
		}
		st, ok := ts.Type.(*ast.StructType)
		if !ok {
			return false
		}
		var fields []goField
		for _, field := range st.Fields.List {
			tag := ""
			if field.Tag != nil {
				if raw, err := strconv.Unquote(field.Tag.Value); err == nil {
					tag = reflect.StructTag(raw).Get("idl")
				}
			}
			for _, name := range field.Names {
				fields = append(fields, goField{Name: name.Name, Tag: tag})
			}
		}
		out[ts.Name.Name] = fields
		return false
	})
	return out
}
