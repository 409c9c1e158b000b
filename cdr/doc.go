// Package cdr encodes and decodes values in the OMG Extended CDR wire format
// (XCDR1 and XCDR2) under the guidance of a descriptor.
//
// A single generic codec walks the descriptor's node table; there is no
// per-type generated marshalling code. Every call is independent: the codec
// keeps no state between calls, descriptors are immutable, and buffers are
// owned by the call that created them, so any number of Encode and Decode
// calls may run concurrently against the same descriptor.
//
// Wire layout summary:
//   - 4-byte encapsulation header: big-endian representation id, then an
//     options word whose two low bits count the trailing padding bytes.
//   - Primitives aligned to their size relative to the end of the header,
//     capped at 8 (XCDR1) or 4 (XCDR2). Padding is zero on encode and
//     ignored on decode.
//   - Strings: uint32 length including the NUL terminator, then the bytes.
//   - Sequences: uint32 count then elements; arrays have no count.
//   - XCDR2 APPENDABLE and MUTABLE aggregates, and sequences or arrays of
//     non-scalar elements, are prefixed with a DHEADER (uint32 byte length).
//   - XCDR2 MUTABLE members are each prefixed by an EMHEADER carrying the
//     must-understand flag, a length code and the member id.
package cdr
