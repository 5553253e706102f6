package sop

import "github.com/google/uuid"

// UUID is herddb's wrapper around google/uuid, used for BRIN checkpoint pin
// handles. tablemeta.Table.UUID is a plain string and does not use it.
type UUID = uuid.UUID

// NilUUID is the zero-value UUID, used the way PageId 0 means "unallocated".
var NilUUID = uuid.Nil

// NewUUID returns a fresh random UUID.
func NewUUID() UUID {
	return uuid.New()
}

// ParseUUID parses s into a UUID, failing if s isn't a valid UUID string.
func ParseUUID(s string) (UUID, error) {
	return uuid.Parse(s)
}
