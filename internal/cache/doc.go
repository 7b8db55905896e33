// Package cache implements the in-process cache layer: bounded, named LRU
// instances with per-entry TTL, usage counters, and a background reaper.
//
// Design points:
//   - One map indexes a doubly-linked list for O(1) Set/Get/Delete with strict
//     LRU ordering (list front = most recently used).
//   - A sibling expiry index maps keys to absolute deadlines; the two
//     structures are always mutated together under one mutex.
//   - Expiration is both lazy (checked on access) and active (a per-instance
//     reaper sweeps on a fixed interval).
//   - Counters only grow; Clear drops data but keeps counters, ResetStats is
//     the explicit way to zero them.
//   - Manager owns the fixed set of named instances and is passed around
//     explicitly rather than living in package state.
package cache
