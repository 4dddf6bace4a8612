// Package sqlite implements storage.RelationStore on an embedded SQLite
// database (modernc.org/sqlite, no cgo).
//
// The graph is small and relational: a documents table, a chunks table
// recording which document owns each chunk, and a relations table of
// typed edges between documents. Expansion is a single one-hop join.
package sqlite
