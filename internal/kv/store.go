// Package kv is the ordered key-value store behind every table: an index
// file mapping keys to tuple ids and a block file holding the values.
package kv

import (
	"io"
	"time"
)

// Store is an ordered string -> bytes map with explicit commit. Writes are
// invisible to other openers until Commit; Shutdown drops anything that was
// not committed.
type Store interface {
	Contains(key string) (bool, error)
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
	// NextKey returns the smallest key strictly greater than key.
	NextKey(key string) (string, bool, error)
	Commit() error
	Shutdown() error
	Order() int
	Stats() (Stats, error)
	// DumpPages writes a page-by-page listing of the block file.
	DumpPages(w io.Writer) error
}

type Options struct {
	// CachePages is the buffer pool capacity for the block file.
	CachePages int
	// LockTimeout bounds the wait for another process holding the index.
	LockTimeout time.Duration
	// NoSync skips fsync on commit; for tests only.
	NoSync bool
}

// Stats describes the files of one store.
type Stats struct {
	Order     int
	Keys      int
	Pages     uint32
	Tuples    int
	TupleSize int64
	CreatedAt time.Time
}
