package kv

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/tuannm99/rowstore/internal/bufferpool"
	"github.com/tuannm99/rowstore/internal/errs"
	"github.com/tuannm99/rowstore/internal/heap"
	"github.com/tuannm99/rowstore/internal/storage"
)

var ErrClosed = errors.New("kv: store is shut down")

// MaxKeySize is the largest key the index accepts.
const MaxKeySize = bbolt.MaxKeySize

type fileStore struct {
	tree string
	bdb  *bbolt.DB
	tx   *bbolt.Tx
	keys *bbolt.Bucket
	hdr  header

	fs    *storage.LocalFileSet
	pool  *bufferpool.Pool
	heap  *heap.Table
	frees []heap.TID

	noSync bool
	closed bool
}

var _ Store = (*fileStore)(nil)

// Initialize creates a new store over the tree and blocks paths. It fails
// with ErrAlreadyExists when the tree file already holds a store.
func Initialize(tree, blocks string, order int, opt Options) (Store, error) {
	if order < 2 {
		return nil, fmt.Errorf("kv: tree order %d: %w", order, errs.ErrInvalidValue)
	}
	bdb, err := openBolt(tree, opt)
	if err != nil {
		return nil, err
	}

	hdr := header{Version: headerVersion, Order: order, CreatedAt: time.Now().UTC()}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		if m := tx.Bucket(bucketMeta); m != nil && m.Get(metaStore) != nil {
			return fmt.Errorf("kv: %s: %w", tree, errs.ErrAlreadyExists)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketKeys); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		buf, err := hdr.encode()
		if err != nil {
			return err
		}
		return meta.Put(metaStore, buf)
	})
	if err != nil {
		_ = bdb.Close()
		return nil, errs.IO(err)
	}

	s, err := attach(tree, blocks, bdb, hdr, opt)
	if err != nil {
		return nil, err
	}
	slog.Debug("kv.initialize", "tree", tree, "order", order)
	return s, nil
}

// Reopen opens a store previously created by Initialize.
func Reopen(tree, blocks string, opt Options) (Store, error) {
	for _, p := range []string{tree, blocks} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("kv: %s: %w", p, errs.ErrCorrupted)
			}
			return nil, errs.IO(err)
		}
	}
	bdb, err := openBolt(tree, opt)
	if err != nil {
		return nil, err
	}

	var hdr header
	err = bdb.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil || tx.Bucket(bucketKeys) == nil {
			return fmt.Errorf("kv: %s: missing buckets: %w", tree, errs.ErrCorrupted)
		}
		buf := meta.Get(metaStore)
		if buf == nil {
			return fmt.Errorf("kv: %s: missing header: %w", tree, errs.ErrCorrupted)
		}
		hdr, err = decodeHeader(buf)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, errs.IO(err)
	}

	pages, err := storage.NewStorageManager().CountPages(filepath.Dir(blocks), filepath.Base(blocks))
	if err != nil {
		_ = bdb.Close()
		return nil, errs.IO(err)
	}
	if pages < hdr.NextPage {
		_ = bdb.Close()
		return nil, fmt.Errorf("kv: %s holds %d pages, header expects %d: %w", blocks, pages, hdr.NextPage, errs.ErrCorrupted)
	}
	return attach(tree, blocks, bdb, hdr, opt)
}

func openBolt(tree string, opt Options) (*bbolt.DB, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opt.LockTimeout
	if bopt.Timeout <= 0 {
		bopt.Timeout = time.Second
	}
	if opt.NoSync {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	}
	bdb, err := bbolt.Open(tree, storage.FileMode0644, &bopt)
	if err != nil {
		if errors.Is(err, bbolt.ErrInvalid) || errors.Is(err, bbolt.ErrChecksum) || errors.Is(err, bbolt.ErrVersionMismatch) {
			return nil, fmt.Errorf("kv: %s: %v: %w", tree, err, errs.ErrCorrupted)
		}
		return nil, errs.IO(fmt.Errorf("kv: open %s: %w", tree, err))
	}
	return bdb, nil
}

func attach(tree, blocks string, bdb *bbolt.DB, hdr header, opt Options) (*fileStore, error) {
	sm := storage.NewStorageManager()
	fs := storage.NewLocalFileSet(filepath.Dir(blocks), filepath.Base(blocks))
	if _, err := fs.OpenSegment(0); err != nil {
		_ = bdb.Close()
		return nil, errs.IO(err)
	}
	pool := bufferpool.NewPool(sm, fs, opt.CachePages)

	s := &fileStore{
		tree:   tree,
		bdb:    bdb,
		hdr:    hdr,
		fs:     fs,
		pool:   pool,
		heap:   heap.NewTable(filepath.Base(blocks), sm, fs, pool, hdr.NextPage, hdr.InsertPage),
		noSync: opt.NoSync,
	}
	if err := s.begin(); err != nil {
		_ = fs.Close()
		_ = bdb.Close()
		return nil, err
	}
	return s, nil
}

func (s *fileStore) begin() error {
	tx, err := s.bdb.Begin(true)
	if err != nil {
		return errs.IO(err)
	}
	s.tx = tx
	s.keys = tx.Bucket(bucketKeys)
	if s.keys == nil {
		_ = tx.Rollback()
		s.tx = nil
		return fmt.Errorf("kv: %s: missing keys bucket: %w", s.tree, errs.ErrCorrupted)
	}
	return nil
}

func (s *fileStore) Order() int { return s.hdr.Order }

func (s *fileStore) usable() error {
	if s.closed || s.tx == nil {
		return ErrClosed
	}
	return nil
}

func (s *fileStore) lookup(key string) (heap.TID, bool, error) {
	if err := s.usable(); err != nil {
		return heap.TID{}, false, err
	}
	raw := s.keys.Get([]byte(key))
	if raw == nil {
		return heap.TID{}, false, nil
	}
	tid, err := heap.ParseTID(raw)
	if err != nil {
		return heap.TID{}, false, fmt.Errorf("kv: key %q: %v: %w", key, err, errs.ErrCorrupted)
	}
	return tid, true, nil
}

func (s *fileStore) Contains(key string) (bool, error) {
	_, ok, err := s.lookup(key)
	return ok, err
}

func (s *fileStore) Get(key string) ([]byte, error) {
	tid, ok, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrKeyNotFound
	}
	val, err := s.heap.Get(tid)
	if err != nil {
		return nil, blockErr(tid, err)
	}
	return val, nil
}

func (s *fileStore) Set(key string, value []byte) error {
	if len(key) == 0 || len(key) > MaxKeySize {
		return fmt.Errorf("kv: key of %d bytes: %w", len(key), errs.ErrInvalidValue)
	}
	old, replaced, err := s.lookup(key)
	if err != nil {
		return err
	}

	tid, err := s.heap.Insert(value)
	if err != nil {
		return blockErr(tid, err)
	}
	if err := s.keys.Put([]byte(key), tid.Bytes()); err != nil {
		return errs.IO(err)
	}
	if replaced {
		s.frees = append(s.frees, old)
	}
	return nil
}

func (s *fileStore) Remove(key string) error {
	old, ok, err := s.lookup(key)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrKeyNotFound
	}
	if err := s.keys.Delete([]byte(key)); err != nil {
		return errs.IO(err)
	}
	s.frees = append(s.frees, old)
	return nil
}

func (s *fileStore) NextKey(key string) (string, bool, error) {
	if err := s.usable(); err != nil {
		return "", false, err
	}
	c := s.keys.Cursor()
	k, _ := c.Seek([]byte(key))
	if k != nil && bytes.Equal(k, []byte(key)) {
		k, _ = c.Next()
	}
	if k == nil {
		return "", false, nil
	}
	return string(k), true, nil
}

// Commit makes the block file durable first, then commits the index that
// points into it. Tuples replaced or removed in this transaction are only
// released afterwards.
func (s *fileStore) Commit() error {
	if err := s.usable(); err != nil {
		return err
	}
	if err := s.pool.FlushAll(); err != nil {
		return errs.IO(err)
	}
	if !s.noSync {
		if err := s.fs.Sync(); err != nil {
			return errs.IO(err)
		}
	}

	s.hdr.NextPage = s.heap.PageCount
	s.hdr.InsertPage = s.heap.InsertPage
	buf, err := s.hdr.encode()
	if err != nil {
		return errs.IO(err)
	}
	if err := s.tx.Bucket(bucketMeta).Put(metaStore, buf); err != nil {
		return errs.IO(err)
	}
	if err := s.tx.Commit(); err != nil {
		s.tx = nil
		return errs.IO(err)
	}

	freed := len(s.frees)
	for _, tid := range s.frees {
		if err := s.heap.Delete(tid); err != nil {
			slog.Warn("kv.free_failed", "tree", s.tree, "tid", tid.String(), "err", err)
		}
	}
	s.frees = s.frees[:0]
	if err := s.pool.FlushAll(); err != nil {
		return errs.IO(err)
	}
	slog.Debug("kv.commit", "tree", s.tree, "pages", s.hdr.NextPage, "freed", freed)
	return s.begin()
}

// Shutdown discards uncommitted work and releases both files.
func (s *fileStore) Shutdown() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errList []error
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, bbolt.ErrTxClosed) {
			errList = append(errList, err)
		}
		s.tx = nil
	}
	s.frees = nil
	if err := s.pool.Discard(); err != nil {
		errList = append(errList, err)
	}
	if err := s.fs.Close(); err != nil {
		errList = append(errList, err)
	}
	if err := s.bdb.Close(); err != nil {
		errList = append(errList, err)
	}
	return errs.IO(errors.Join(errList...))
}

func (s *fileStore) Stats() (Stats, error) {
	if err := s.usable(); err != nil {
		return Stats{}, err
	}
	st := Stats{
		Order:     s.hdr.Order,
		Pages:     s.heap.PageCount,
		CreatedAt: s.hdr.CreatedAt,
	}
	c := s.keys.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		st.Keys++
	}
	err := s.heap.Scan(func(_ heap.TID, size int) error {
		st.Tuples++
		st.TupleSize += int64(size)
		return nil
	})
	if err != nil {
		return Stats{}, blockErr(heap.TID{}, err)
	}
	return st, nil
}

func (s *fileStore) DumpPages(w io.Writer) error {
	if err := s.usable(); err != nil {
		return err
	}
	if err := s.heap.Dump(w); err != nil {
		return blockErr(heap.TID{}, err)
	}
	return nil
}

// blockErr classifies a block file failure.
func blockErr(tid heap.TID, err error) error {
	switch {
	case errors.Is(err, storage.ErrBadSlot),
		errors.Is(err, storage.ErrCorruption),
		errors.Is(err, storage.ErrWrongKind):
		return fmt.Errorf("kv: tuple %s: %v: %w", tid, err, errs.ErrCorrupted)
	default:
		return errs.IO(err)
	}
}
