package keyindex

import "sort"

// Scanner is the lazy stream spec §4.4's "scanner" operation returns. It
// snapshots every shard under its read lock up front — cheap relative to the
// I/O a caller does per row — so iteration never blocks a concurrent writer
// (spec §5 "Scanners ... must not block writers").
type Scanner struct {
	entries []Entry
	pos     int
}

// Scanner returns a point-in-time snapshot of every (key, page) pair,
// ordered ascending by key when pkType.isSortedAscending() holds; otherwise
// entries come shard by shard in Go map iteration order, which is not
// insertion order and is not stable (spec §4.4).
func (m *ConcurrentMap) Scanner(pkType PKType) *Scanner {
	entries := make([]Entry, 0, m.Size())
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			entries = append(entries, Entry{Key: []byte(k), Page: v})
		}
		s.mu.RUnlock()
	}
	if isSortedAscending(pkType) {
		sort.Slice(entries, func(i, j int) bool {
			return string(entries[i].Key) < string(entries[j].Key)
		})
	}
	return &Scanner{entries: entries}
}

// Next advances the scanner and reports whether an entry is available.
func (s *Scanner) Next() bool {
	s.pos++
	return s.pos <= len(s.entries)
}

// Entry returns the current (key, page) pair. Valid only after Next returns
// true.
func (s *Scanner) Entry() Entry {
	return s.entries[s.pos-1]
}
