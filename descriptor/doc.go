// Package descriptor defines TypeDescriptor, the immutable runtime description
// of an IDL type that the CDR codec walks.
//
// A Descriptor is a flattened node table. Nodes[0] is the described type and
// every reference between nodes is an index into the table, so recursive types
// (a struct holding a sequence of itself) are representable without pointers.
// Aliases never appear: the generator resolves them to their target before a
// descriptor is built.
//
// Descriptors are constructed once with New or Unmarshal, validated, and never
// mutated afterwards. They are safe to share between goroutines and carry no
// reference to the compiler's type model.
//
// Identity: TypeID is a domain-separated SHA-256 over the canonical JSON form
// (RFC 8785 key ordering, NFC strings). Two descriptors with the same TypeID
// describe byte-identical wire layouts.
package descriptor
