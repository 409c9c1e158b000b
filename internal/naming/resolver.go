package naming

import (
	"go/token"
	"log/slog"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/internal/idl"
)

// Options configure a Resolver.
type Options struct {
	ReservedWords []string
	Convention    Convention
	Logger        *slog.Logger
}

// Resolver maps IDL names to Go identifiers.
type Resolver struct {
	conv     Convention
	reserved map[string]bool
	logger   *slog.Logger
}

// NewResolver builds a Resolver. Go keywords and predeclared identifiers
// are always reserved in addition to opts.ReservedWords.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		conv:     opts.Convention,
		reserved: make(map[string]bool),
		logger:   opts.Logger,
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	for _, w := range goReserved {
		r.reserved[w] = true
	}
	for _, w := range opts.ReservedWords {
		r.reserved[norm.NFC.String(w)] = true
	}
	return r
}

// entry is one name to bind within a scope.
type entry struct {
	path string // fully qualified IDL path, for hashing and errors
	name string // name to convert

	// Enumerator constants are prefix plus the convention's suffix form
	// of name.
	prefix   string
	suffixed bool
}

// ShortHash is the collision suffix of a fully qualified IDL path: the
// first 8 hex characters of its domain-separated SHA-256.
func ShortHash(path string) string {
	return descriptor.NameHash(path)[:8]
}

// Resolve binds every declared type, member, union case and enumerator.
// Types and enumerator constants share the package scope and are
// disambiguated as one group.
func (r *Resolver) Resolve(types []*idl.TypeNode) (*Binding, error) {
	b := newBinding()

	// Enumerator constants are prefixed with the undisambiguated type
	// candidate, so no package-level name depends on another's suffix.
	var pkgEntries []entry
	enumOf := make(map[string]string)
	for _, n := range types {
		pkgEntries = append(pkgEntries, entry{path: n.Name, name: n.ShortName()})
		if n.Kind != idl.KindEnum {
			continue
		}
		prefix := r.convert(n.ShortName())
		for _, e := range n.Enumerators {
			p := idl.JoinScoped(n.Name, e.Name)
			enumOf[p] = n.Name
			pkgEntries = append(pkgEntries, entry{path: p, name: e.Name, prefix: prefix, suffixed: true})
		}
	}
	ids, err := r.bindScope("package", pkgEntries, packageReserved)
	if err != nil {
		return nil, err
	}
	for p, id := range ids {
		enum, ok := enumOf[p]
		if !ok {
			b.types[p] = id
			continue
		}
		if b.enumerators[enum] == nil {
			b.enumerators[enum] = make(map[string]string)
		}
		b.enumerators[enum][p] = id
	}

	for _, n := range types {
		if n.Kind != idl.KindStruct && n.Kind != idl.KindUnion {
			continue
		}
		var entries []entry
		for _, m := range n.Members {
			entries = append(entries, entry{path: idl.JoinScoped(n.Name, m.Name), name: m.Name})
		}
		for _, c := range n.Cases {
			entries = append(entries, entry{path: idl.JoinScoped(n.Name, c.Name), name: c.Name})
		}
		extra := methodReserved
		if n.Kind == idl.KindUnion {
			extra = append(append([]string{}, methodReserved...), unionReserved...)
		}
		fields, err := r.bindScope(n.Name+" members", entries, extra)
		if err != nil {
			return nil, err
		}
		b.members[n.Name] = fields
	}

	if err := b.Verify(); err != nil {
		return nil, err
	}
	r.logger.Debug("resolved names",
		"types", len(b.types),
		"convention", r.conv.String())
	return b, nil
}

func (r *Resolver) convert(name string) string {
	return r.conv.Apply(norm.NFC.String(name))
}

// bindScope resolves one scope. Names whose candidates collide all receive
// a hash suffix, so the result does not depend on declaration order.
func (r *Resolver) bindScope(scope string, entries []entry, extra []string) (map[string]string, error) {
	reserved := func(id string) bool {
		if r.reserved[id] {
			return true
		}
		for _, w := range extra {
			if w == id {
				return true
			}
		}
		return false
	}

	groups := make(map[string][]string)
	for _, e := range entries {
		c := r.convert(e.name)
		if e.suffixed {
			c = e.prefix + r.conv.suffix(norm.NFC.String(e.name))
		}
		if reserved(c) {
			c += "_"
		}
		groups[c] = append(groups[c], e.path)
	}

	out := make(map[string]string, len(entries))
	for c, paths := range groups {
		if len(paths) == 1 {
			out[paths[0]] = c
			continue
		}
		for _, p := range paths {
			out[p] = c + "_" + ShortHash(p)
		}
		r.logger.Debug("disambiguated colliding names", "scope", scope, "candidate", c, "paths", len(paths))
	}

	paths := make([]string, 0, len(out))
	for p := range out {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	owner := make(map[string]string, len(out))
	for _, p := range paths {
		id := out[p]
		switch {
		case !token.IsIdentifier(id):
			return nil, newConflict(scope, id, []string{p}, "not a valid Go identifier")
		case reserved(id):
			return nil, newConflict(scope, id, []string{p}, "reserved word")
		}
		if prev, dup := owner[id]; dup {
			return nil, newConflict(scope, id, []string{prev, p}, "still colliding after disambiguation")
		}
		owner[id] = p
	}
	return out, nil
}

// Binding maps IDL paths to Go identifiers for one compilation unit.
type Binding struct {
	types       map[string]string
	members     map[string]map[string]string
	enumerators map[string]map[string]string
}

func newBinding() *Binding {
	return &Binding{
		types:       make(map[string]string),
		members:     make(map[string]map[string]string),
		enumerators: make(map[string]map[string]string),
	}
}

// Type returns the identifier of a declared type.
func (b *Binding) Type(path string) (string, bool) {
	id, ok := b.types[path]
	return id, ok
}

// Member returns the field name of a struct member or union case.
func (b *Binding) Member(typePath, name string) (string, bool) {
	id, ok := b.members[typePath][idl.JoinScoped(typePath, name)]
	return id, ok
}

// Enumerator returns the constant name of an enumerator.
func (b *Binding) Enumerator(enumPath, name string) (string, bool) {
	id, ok := b.enumerators[enumPath][idl.JoinScoped(enumPath, name)]
	return id, ok
}

// Len is the number of bound paths.
func (b *Binding) Len() int {
	n := len(b.types)
	for _, m := range b.members {
		n += len(m)
	}
	for _, m := range b.enumerators {
		n += len(m)
	}
	return n
}

// Verify checks that the binding is injective in every scope: package
// level identifiers (types and enumerator constants) and the fields of
// each type.
func (b *Binding) Verify() error {
	pkg := make(map[string]string)
	claim := func(scope string, owner map[string]string, bound map[string]string) error {
		paths := make([]string, 0, len(bound))
		for p := range bound {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			id := bound[p]
			if prev, dup := owner[id]; dup && prev != p {
				return newConflict(scope, id, []string{prev, p}, "identifier bound twice")
			}
			owner[id] = p
		}
		return nil
	}

	if err := claim("package", pkg, b.types); err != nil {
		return err
	}
	for _, enum := range sortedKeys(b.enumerators) {
		if err := claim("package", pkg, b.enumerators[enum]); err != nil {
			return err
		}
	}
	for _, t := range sortedKeys(b.members) {
		if err := claim(t+" members", make(map[string]string), b.members[t]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
