// Package sop defines the ambient types shared across the herddb core packages:
// error codes, the UUID helper, the retry policy wrapping storage I/O, and the
// PageId type returned by IndexDataStorage implementations.
//
// It mirrors the role the root sop package plays in the wider SOP codebase:
// a small foundation other packages (blockio, pagestore, brin, keyindex,
// tablemeta) build on, never a place for domain logic itself.
package sop
