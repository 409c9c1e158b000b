// Package naming resolves IDL names to Go identifiers.
//
// Each scope (declared types, the fields of one struct or union, the
// constants of one enum) is resolved in two stages: every name is converted
// to the configured case convention, then every name whose candidate
// collides with another gets a suffix derived from a hash of its fully
// qualified IDL path. Anything still ambiguous is a NameConflictError.
package naming
