// Package value provides the dynamic sample representation exchanged between
// generated types and the CDR codec.
//
// Values are positional: a Struct holds one Value per member in member
// ordinal order, never keyed by name. The descriptor a value is encoded
// against supplies names, bounds and wire layout.
//
// Key design constraints:
//   - Value is a sealed interface; only the types in this package implement it
//   - Null marks an absent optional member and nothing else
//   - Enums travel as Int holding the enumerator value
//   - Arrays travel as Seq, one nesting level per dimension
package value
