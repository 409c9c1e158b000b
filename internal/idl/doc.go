// Package idl holds the in-memory type model built by the compiler from IDL
// documents.
//
// The model is a tree of TypeNode values. Declared types (structs, unions,
// enums and typedefs) live in the compiler's symbol table under their scoped
// name; member types are anonymous expressions that may reference declared
// types through Ref nodes, which the compiler links to their targets.
//
// Key constraints:
//   - Member order is declaration order and is never changed
//   - Nodes are read-only once the compiler has validated them
//   - idl imports only the public descriptor package for primitive kinds
package idl
