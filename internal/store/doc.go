// Package store persists ThreatLens documents in an embedded BadgerDB
// instance. Records are stored as JSON documents under typed key
// prefixes, with secondary index keys for threat value lookups and user
// email lookups. Rule updates are serialized per store so concurrent
// trigger recording cannot interleave.
package store
