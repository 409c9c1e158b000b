// Package conformance runs wire-format scenarios against the codec.
//
// A scenario names an IDL document, inline or as a directory of CUE files,
// and a struct or union type. Each case either encodes a sample given in
// native form (YAML maps, lists and scalars) or decodes a hex dump, then
// checks the result against the bytes, key, key hash, decoded value or
// codec error code the case expects.
//
// Sample cases always decode their own output again; a decoded value that
// differs from the sample fails the case.
//
// A scenario's results render as a deterministic text snapshot:
//
//	scenario: keyed
//	type: demo::Keyed
//	case basic
//	  bytes: 00 01 00 00 2a 00 00 00 04 00 00 00 61 62 63 00
//	  key: 00 00 00 2a
//	  keyhash: 00 00 00 2a 00 00 00 00 00 00 00 00 00 00 00 00
//	  value: {42, "abc"}
//
// Snapshots are compared against golden files, so a change to the encoder
// shows up as a byte-level diff.
package conformance
