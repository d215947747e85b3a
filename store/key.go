// Package store implements the sharded concurrent key/value database:
// entries keyed by opaque byte strings, a per-shard expiration index swept
// by the housekeeper (hk), a pub/sub channel table, and the
// ObjectEntry API that gives command handlers race-free read/create/
// update/delete access without exposing shard locking.
//
// Grounded on original_source/src/shared/db/mod.rs for the primitive set
// (get_object/get_object_mut/object_entry/insert_object/remove_object/
// contains_object/visit_object/update_object/update_object_force) and on
// the teacher's fs/hrw.go for the hash-to-bucket pattern, adapted from
// rendezvous hashing across nodes to a fixed modulo-of-hash split across
// in-process shards.
package store

// Key is the map key type: a Go string is already an immutable, comparable
// byte sequence, which is what spec.md's "opaque bytes, PartialEq on byte
// content" calls for — no wrapper type needed.
type Key = string
