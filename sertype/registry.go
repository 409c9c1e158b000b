package sertype

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/cdrgen/cdr"
	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/value"
)

// Handle identifies a registered type. The zero Handle is never issued.
type Handle uint32

// ErrUnknownHandle is returned for handles the registry did not issue.
var ErrUnknownHandle = errors.New("unknown type handle")

// Registry maps handles to descriptors. It is safe for concurrent use;
// encoding and decoding hold no lock once the descriptor is looked up.
type Registry struct {
	mu     sync.RWMutex
	types  []*descriptor.Descriptor
	byID   map[string]Handle
	logger *slog.Logger
	opts   []cdr.Option
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registration events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithEncoding sets the encode options applied by Serialize, for example
// cdr.WithBigEndian().
func WithEncoding(opts ...cdr.Option) Option {
	return func(r *Registry) { r.opts = append(r.opts, opts...) }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byID:   make(map[string]Handle),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register returns the handle for d, issuing a new one the first time a
// TypeID is seen. Registering an identical descriptor again returns the
// existing handle.
func (r *Registry) Register(d *descriptor.Descriptor) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.byID[d.TypeID()]; ok {
		return h
	}
	r.types = append(r.types, d)
	h := Handle(len(r.types))
	r.byID[d.TypeID()] = h
	r.logger.Debug("registered type",
		"handle", h,
		"type", d.Name(),
		"type_id", d.TypeID(),
		"keyed", d.Keyed())
	return h
}

// RegisterSample registers the descriptor of a generated type.
func (r *Registry) RegisterSample(s Sample) Handle {
	return r.Register(s.Descriptor())
}

// Lookup returns the descriptor behind h.
func (r *Registry) Lookup(h Handle) (*descriptor.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h == 0 || int(h) > len(r.types) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return r.types[h-1], nil
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// Serialize encodes a sample of type h.
func (r *Registry) Serialize(h Handle, v value.Value) (*Buffer, error) {
	d, err := r.Lookup(h)
	if err != nil {
		return nil, err
	}
	data, err := cdr.Encode(d, v, r.opts...)
	if err != nil {
		return nil, err
	}
	return &Buffer{data: data, length: len(data)}, nil
}

// Deserialize decodes the first length bytes of data as a sample of type h.
func (r *Registry) Deserialize(h Handle, data []byte, length int) (value.Value, error) {
	d, err := r.Lookup(h)
	if err != nil {
		return nil, err
	}
	buf, err := NewBuffer(data, length)
	if err != nil {
		return nil, err
	}
	return cdr.Decode(d, buf.Bytes())
}

// KeyOf returns the serialized key of a sample of type h.
func (r *Registry) KeyOf(h Handle, v value.Value) (*Buffer, error) {
	d, err := r.Lookup(h)
	if err != nil {
		return nil, err
	}
	key, err := cdr.KeyOf(d, v)
	if err != nil {
		return nil, err
	}
	return &Buffer{data: key, length: len(key)}, nil
}

// KeyHash returns the 16-byte key hash of a sample of type h.
func (r *Registry) KeyHash(h Handle, v value.Value) ([cdr.KeyHashSize]byte, error) {
	d, err := r.Lookup(h)
	if err != nil {
		return [cdr.KeyHashSize]byte{}, err
	}
	return cdr.KeyHash(d, v)
}
