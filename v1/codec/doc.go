// Package codec converts native Go values to the string payloads held by the
// remote store and back. Plain strings are stored unmodified; every other
// value is serialized and prefixed with ValueTag. Whole-map snapshots use the
// longer SnapshotTag so a snapshot is never confused with a single value.
//
// The tags are plain-text prefixes: a user string that happens to start with
// one of them is read back as an encoded payload on the next access.
//
// The package also owns the reversible key escaping applied to every remote
// key.
package codec
