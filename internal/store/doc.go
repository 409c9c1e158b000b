// Package store provides the SQLite-backed type-version ledger.
//
// The ledger records every descriptor a generation run published and the
// ordinal and member id of each struct member the first time it was
// published. Later runs are checked against it so a published member never
// moves.
//
// # Tables
//
//   - runs: one row per recorded generation run, ordered by seq
//   - type_versions: distinct descriptors per type, keyed by TypeID
//   - member_ordinals: first published ordinal and id per member
//
// Ordering uses the logical seq column, never wall time, so history
// queries are deterministic.
//
// The database runs in WAL mode with a five second busy timeout and
// foreign keys enforced; user_version tracks applied migrations.
package store
