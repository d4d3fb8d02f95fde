// Package storage persists hosts, alert rules, alert events, and credentials
// in an embedded sqlite database. Stores return typed sentinel errors
// (ErrNotFound) and enforce the schema-level invariants the engine relies
// on: one open event per (rule, host) and one default credential per
// (host, type).
package storage
