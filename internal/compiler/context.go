package compiler

import (
	"log/slog"
	"sort"
	"sync/atomic"

	"cuelang.org/go/cue/token"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/roach88/cdrgen/internal/idl"
)

// UnresolvedRef is a scoped name no declaration matched.
type UnresolvedRef struct {
	Name string    // as written
	From string    // declaration that referenced it
	Pos  token.Pos // position of the reference
}

// Context is the state of one compilation run: the symbol table of
// declared types, diagnostics and the run id. It is single-owner; a second
// pass started while one is running fails with ErrContextBusy.
type Context struct {
	RunID string
	// Topic is the scoped name of the root type named by the document.
	Topic string

	logger *slog.Logger
	busy   atomic.Bool

	types map[string]*idl.TypeNode
	order []string

	refs         []pendingRef
	labelsLinked map[*idl.UnionCase]bool
	parseErrs    []error
	typeErrs     []error
	unresolved   []UnresolvedRef
}

type pendingRef struct {
	node *idl.TypeNode
	from string
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger for compiler diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(c *Context) { c.RunID = id }
}

// NewContext creates an empty Context with a fresh UUIDv7 run id.
func NewContext(opts ...Option) *Context {
	c := &Context{
		RunID:  uuid.Must(uuid.NewV7()).String(),
		logger: slog.New(slog.DiscardHandler),
		types:  make(map[string]*idl.TypeNode),

		labelsLinked: make(map[*idl.UnionCase]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) acquire() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrContextBusy
	}
	return nil
}

func (c *Context) release() { c.busy.Store(false) }

// Hold claims the context for a pass that reads its symbol table, such as
// generation. It fails with ErrContextBusy while another pass holds it.
// The returned func releases the claim.
func (c *Context) Hold() (release func(), err error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	return c.release, nil
}

// declare adds a named type to the symbol table.
func (c *Context) declare(n *idl.TypeNode) error {
	if prev, ok := c.types[n.Name]; ok {
		return &TypeError{
			Code:    ErrDuplicateType,
			Type:    n.Name,
			Message: "declared more than once (first as " + prev.Kind.String() + ")",
			Pos:     n.Pos,
		}
	}
	c.types[n.Name] = n
	c.order = append(c.order, n.Name)
	return nil
}

// Lookup returns the declared type with the given fully scoped name.
func (c *Context) Lookup(name string) (*idl.TypeNode, bool) {
	n, ok := c.types[idl.JoinScoped(idl.SplitScoped(name)...)]
	return n, ok
}

// Resolve looks a name up as written inside scope, searching from the
// innermost enclosing module outward. A leading "::" makes the name
// absolute.
func (c *Context) Resolve(scope []string, name string) (*idl.TypeNode, bool) {
	parts := idl.SplitScoped(name)
	if len(parts) == 0 {
		return nil, false
	}
	if len(name) >= 2 && name[:2] == "::" {
		return c.Lookup(name)
	}
	for i := len(scope); i >= 0; i-- {
		candidate := append(append([]string{}, scope[:i]...), parts...)
		if n, ok := c.types[idl.JoinScoped(candidate...)]; ok {
			return n, true
		}
	}
	return nil, false
}

// Types returns the declared types in declaration order.
func (c *Context) Types() []*idl.TypeNode {
	out := make([]*idl.TypeNode, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.types[name])
	}
	return out
}

// Names returns the declared scoped names, sorted.
func (c *Context) Names() []string {
	names := append([]string(nil), c.order...)
	sort.Strings(names)
	return names
}

// Unresolved returns references that matched no declaration, in the order
// they were written.
func (c *Context) Unresolved() []UnresolvedRef {
	return append([]UnresolvedRef(nil), c.unresolved...)
}

// Diagnostics returns every error of the unit: malformed declarations
// followed by type errors.
func (c *Context) Diagnostics() []error {
	out := make([]error, 0, len(c.parseErrs)+len(c.typeErrs))
	out = append(out, c.parseErrs...)
	return append(out, c.typeErrs...)
}

// Err combines all diagnostics into a single error, or nil.
func (c *Context) Err() error {
	return multierr.Combine(c.Diagnostics()...)
}
