package sop

import "fmt"

// ErrorCode classifies the StorageFailure errors this core can raise.
type ErrorCode int

const (
	Unknown ErrorCode = iota
	// FileIOError marks a failure from the underlying file handle (AlignedBlockWriter,
	// pagestore.FileStore).
	FileIOError
	// PageStoreError marks a failure from an IndexDataStorage implementation that isn't
	// a raw file I/O error (e.g. page directory corruption).
	PageStoreError
)

// Error is the StorageFailure wrapper (see spec §7): it carries the failing
// subsystem's error code, the wrapped cause, and any caller-supplied context.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	if e.UserData != nil {
		return fmt.Errorf("herddb error code %d, user data %v: %w", e.Code, e.UserData, e.Err).Error()
	}
	return fmt.Errorf("herddb error code %d: %w", e.Code, e.Err).Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

// InvariantViolationError surfaces caller errors such as a duplicate column
// name or dropping the primary key (see spec §7, InvariantViolation). It is
// never returned from the data plane (put/search/delete), only from schema
// mutation paths (tablemeta).
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return "invariant violation: " + e.Reason
}

// CorruptionError surfaces a version/flag mismatch while deserializing
// persisted metadata (see spec §6/§7). It is fatal for the containing object.
type CorruptionError struct {
	Reason string
}

func (e *CorruptionError) Error() string {
	return "corrupted table file: " + e.Reason
}
