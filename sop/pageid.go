package sop

// PageId identifies an immutable page persisted by an IndexDataStorage
// implementation (see spec §3). Zero is reserved for "unallocated".
type PageId uint64

// UnallocatedPageID is the sentinel PageId meaning "never checkpointed".
const UnallocatedPageID PageId = 0

// PostCheckpointAction is a deferred reclamation callback returned by a
// checkpoint call. Callers execute these only after the checkpoint's
// manifest has been made durable (see spec §3 "Lifecycle" and §4.3
// "Checkpoint semantics").
type PostCheckpointAction func() error
