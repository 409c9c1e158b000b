// Package sertype is the boundary the middleware calls at publish and take
// time. Types are registered once and referred to by Handle; samples cross
// the boundary as owned, bounds-checked Buffers rather than raw memory.
//
// Entry points:
//   - Serialize(handle, sample) -> Buffer
//   - Deserialize(handle, bytes, length) -> sample
//   - KeyOf(handle, sample) -> Buffer
//
// Generated types implement Sample, so they can also be serialized directly
// with SerializeSample and DeserializeInto.
package sertype
