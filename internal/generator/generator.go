// Package generator turns a compiled type model into Go source and type
// descriptors.
//
// Generation is all-or-nothing: the Go file and every descriptor file are
// assembled in memory, checked, and only then written.
package generator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/dustin/go-humanize"
	"golang.org/x/tools/imports"

	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/internal/compiler"
	"github.com/roach88/cdrgen/internal/idl"
	"github.com/roach88/cdrgen/internal/naming"
	"github.com/roach88/cdrgen/internal/store"
)

// DefaultFileName is the name of the generated Go file.
const DefaultFileName = "cdr_types.go"

// descriptorSuffix names the descriptor file written for each struct and
// union.
const descriptorSuffix = ".descriptor.json"

// Ledger is the type-version ledger consulted before output is written
// and updated after.
type Ledger interface {
	CheckOrdinals(ctx context.Context, ds []*descriptor.Descriptor) ([]store.Violation, error)
	Record(ctx context.Context, runID string, ds []*descriptor.Descriptor) error
}

// Options configure a Generator.
type Options struct {
	// Package is the Go package name of the generated file.
	Package string
	// Topic overrides the root type named by the IDL document.
	Topic    string
	FileName string
	Naming   naming.Options
	Ledger   Ledger
	Logger   *slog.Logger
}

// Generator emits Go source and descriptors for a compiled context.
type Generator struct {
	opts   Options
	logger *slog.Logger
	tmpl   *template.Template
}

// New creates a Generator.
func New(opts Options) *Generator {
	if opts.Package == "" {
		opts.Package = "types"
	}
	if opts.FileName == "" {
		opts.FileName = DefaultFileName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Naming.Logger == nil {
		opts.Naming.Logger = logger
	}

	tmpls := template.New("GoTemplates")
	template.Must(tmpls.Parse(aliasTmpl))
	template.Must(tmpls.Parse(enumTmpl))
	template.Must(tmpls.Parse(structTmpl))
	template.Must(tmpls.Parse(unionTmpl))
	template.Must(tmpls.Parse(fileTmpl))
	return &Generator{opts: opts, logger: logger, tmpl: tmpls.Lookup("GoFile")}
}

// OutputFile is one generated file, relative to the output directory.
type OutputFile struct {
	Name string
	Data []byte
}

// Described is the descriptor generated for one struct or union.
type Described struct {
	Type       string // scoped IDL name
	Ident      string // Go identifier
	Descriptor *descriptor.Descriptor
}

// Output is the in-memory result of a generation run.
type Output struct {
	RunID       string
	Topic       string
	Types       []*idl.TypeNode // reachable from the topic, in emission order
	Descriptors []Described
	Files       []OutputFile
}

// DescriptorList returns the generated descriptors in emission order.
func (o *Output) DescriptorList() []*descriptor.Descriptor {
	out := make([]*descriptor.Descriptor, len(o.Descriptors))
	for i, d := range o.Descriptors {
		out[i] = d.Descriptor
	}
	return out
}

// Size is the total size of the generated files.
func (o *Output) Size() int {
	n := 0
	for _, f := range o.Files {
		n += len(f.Data)
	}
	return n
}

// Generate builds the output for c. c must have compiled without errors.
func (g *Generator) Generate(ctx context.Context, c *compiler.Context) (*Output, error) {
	release, err := c.Hold()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := checkCompiled(c); err != nil {
		return nil, err
	}
	root, err := g.topic(c, g.opts.Topic)
	if err != nil {
		return nil, err
	}
	order := reachable(root)
	if err := checkTypedefLoops(order); err != nil {
		return nil, err
	}

	binding, err := naming.NewResolver(g.opts.Naming).Resolve(c.Types())
	if err != nil {
		return nil, err
	}

	out := &Output{RunID: c.RunID, Topic: root.Name, Types: order}
	file := GoFile{
		Package: g.opts.Package,
		Topic:   root.Name,
		Imports: []string{"fmt", DescriptorPackage, ValuePackage},
	}
	m := &mapper{binding: binding}
	var jsonFiles []OutputFile
	for _, n := range order {
		decl, described, err := g.declare(m, n, binding)
		if err != nil {
			return nil, err
		}
		file.Decls = append(file.Decls, decl)
		if described != nil {
			out.Descriptors = append(out.Descriptors, *described)
			data, err := described.Descriptor.MarshalCanonical()
			if err != nil {
				return nil, err
			}
			jsonFiles = append(jsonFiles, OutputFile{
				Name: described.Ident + descriptorSuffix,
				Data: append(data, '\n'),
			})
		}
	}

	src, err := g.render(file)
	if err != nil {
		return nil, err
	}
	if err := verifyPositional(src, out.Descriptors); err != nil {
		return nil, err
	}
	if err := g.checkLedger(ctx, out); err != nil {
		return nil, err
	}

	out.Files = append([]OutputFile{{Name: g.opts.FileName, Data: src}}, jsonFiles...)
	g.logger.Info("generated types",
		"run_id", out.RunID,
		"topic", out.Topic,
		"types", len(order),
		"descriptors", len(out.Descriptors),
		"size", humanize.Bytes(uint64(out.Size())))
	return out, nil
}

// Write stores out in dir atomically and records the descriptors in the
// ledger, if one is configured.
func (g *Generator) Write(ctx context.Context, out *Output, dir string) error {
	if err := writeAtomic(dir, out.Files); err != nil {
		return &GenerationError{Code: ErrCodeWrite, Message: err.Error()}
	}
	g.logger.Debug("wrote output", "dir", dir, "files", len(out.Files))
	if g.opts.Ledger == nil {
		return nil
	}
	if err := g.opts.Ledger.Record(ctx, out.RunID, out.DescriptorList()); err != nil {
		return fmt.Errorf("record run %s: %w", out.RunID, err)
	}
	return nil
}

// Describe builds the descriptor of the struct or union name without
// emitting source. An empty name selects the topic, as in Generate.
func (g *Generator) Describe(c *compiler.Context, name string) (*descriptor.Descriptor, error) {
	release, err := c.Hold()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := checkCompiled(c); err != nil {
		return nil, err
	}
	if name == "" {
		name = g.opts.Topic
	}
	root, err := g.topic(c, name)
	if err != nil {
		return nil, err
	}
	if err := checkTypedefLoops(reachable(root)); err != nil {
		return nil, err
	}
	binding, err := naming.NewResolver(g.opts.Naming).Resolve(c.Types())
	if err != nil {
		return nil, err
	}
	return BuildDescriptor(root, binding)
}

func checkCompiled(c *compiler.Context) error {
	if err := c.Err(); err != nil {
		return err
	}
	unresolved := c.Unresolved()
	if len(unresolved) == 0 {
		return nil
	}
	e := genErr(ErrCodeUnresolved, "%d unresolved type reference(s)", len(unresolved))
	for _, u := range unresolved {
		e.Details = append(e.Details, fmt.Sprintf("%s (referenced from %s at %s)", u.Name, u.From, u.Pos))
	}
	return e
}

func (g *Generator) topic(c *compiler.Context, name string) (*idl.TypeNode, error) {
	if name == "" {
		name = c.Topic
	}
	if name == "" {
		return nil, genErr(ErrCodeTopic, "no topic type: set topic in the IDL document or the configuration")
	}
	n, ok := c.Lookup(name)
	if !ok {
		return nil, genErr(ErrCodeTopic, "topic %s is not declared", name)
	}
	if n.Kind != idl.KindStruct && n.Kind != idl.KindUnion {
		return nil, genErr(ErrCodeTopic, "topic %s is a %s, want a struct or union", name, n.Kind)
	}
	return n, nil
}

func (g *Generator) declare(m *mapper, n *idl.TypeNode, b *naming.Binding) (Decl, *Described, error) {
	switch n.Kind {
	case idl.KindAlias:
		return Decl{Alias: m.buildAlias(n)}, nil, nil
	case idl.KindEnum:
		e, err := m.buildEnum(n)
		return Decl{Enum: e}, nil, err
	}

	d, err := BuildDescriptor(n, b)
	if err != nil {
		return Decl{}, nil, err
	}
	canonical, err := d.MarshalCanonical()
	if err != nil {
		return Decl{}, nil, err
	}
	described := &Described{Type: n.Name, Ident: m.goType(n), Descriptor: d}
	if n.Kind == idl.KindUnion {
		u, err := m.buildUnion(n, canonical)
		return Decl{Union: u}, described, err
	}
	s, err := m.buildStruct(n, canonical)
	return Decl{Struct: s}, described, err
}

func (g *Generator) render(file GoFile) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := g.tmpl.Execute(buf, file); err != nil {
		return nil, fmt.Errorf("%s template failed: %w", g.opts.FileName, err)
	}
	formatted, err := imports.Process(g.opts.FileName, buf.Bytes(), &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return nil, fmt.Errorf("%s formatting failed: %w", g.opts.FileName, err)
	}
	return formatted, nil
}

func (g *Generator) checkLedger(ctx context.Context, out *Output) error {
	if g.opts.Ledger == nil {
		return nil
	}
	violations, err := g.opts.Ledger.CheckOrdinals(ctx, out.DescriptorList())
	if err != nil {
		return fmt.Errorf("check ledger: %w", err)
	}
	if len(violations) == 0 {
		return nil
	}
	e := genErr(ErrCodeLedger, "%d published member(s) changed", len(violations))
	for _, v := range violations {
		e.Details = append(e.Details, v.String())
	}
	return e
}

// reachable lists the declared types reachable from root, depth-first in
// member order, root first.
func reachable(root *idl.TypeNode) []*idl.TypeNode {
	var order []*idl.TypeNode
	seen := make(map[*idl.TypeNode]bool)

	var decl func(n *idl.TypeNode)
	var expr func(t *idl.TypeNode)
	expr = func(t *idl.TypeNode) {
		switch {
		case t == nil:
		case t.Kind == idl.KindRef:
			expr(t.Target)
		case t.Kind == idl.KindSequence || t.Kind == idl.KindArray:
			expr(t.Elem)
		case t.Declared():
			decl(t)
		}
	}
	decl = func(n *idl.TypeNode) {
		if seen[n] {
			return
		}
		seen[n] = true
		order = append(order, n)
		switch n.Kind {
		case idl.KindStruct:
			n.VisitMembers(func(m *idl.Member) bool {
				expr(m.Type)
				return true
			})
		case idl.KindUnion:
			expr(n.Disc)
			for _, c := range n.Cases {
				expr(c.Type)
			}
		case idl.KindAlias:
			expr(n.Elem)
		}
	}
	decl(root)
	return order
}

// checkTypedefLoops rejects typedefs that refer to themselves without a
// struct or union in between; Go aliases cannot express them.
func checkTypedefLoops(order []*idl.TypeNode) error {
	for _, n := range order {
		if n.Kind != idl.KindAlias {
			continue
		}
		visiting := map[*idl.TypeNode]bool{n: true}
		var walk func(t *idl.TypeNode) bool
		walk = func(t *idl.TypeNode) bool {
			switch {
			case t == nil:
				return false
			case t.Kind == idl.KindRef:
				return walk(t.Target)
			case t.Kind == idl.KindSequence || t.Kind == idl.KindArray:
				return walk(t.Elem)
			case t.Kind == idl.KindAlias:
				if visiting[t] {
					return true
				}
				visiting[t] = true
				return walk(t.Elem)
			}
			return false
		}
		if walk(n.Elem) {
			return genErr(ErrCodeTypedefLoop, "typedef %s refers to itself", n.Name)
		}
	}
	return nil
}
