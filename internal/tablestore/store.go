// Package tablestore keeps a table's rows and its control entries
// consistent inside the table's key-value store.
package tablestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/tuannm99/rowstore/internal/alias/bx"
	"github.com/tuannm99/rowstore/internal/catalog"
	"github.com/tuannm99/rowstore/internal/errs"
	"github.com/tuannm99/rowstore/internal/kv"
	locking "github.com/tuannm99/rowstore/internal/lock"
	"github.com/tuannm99/rowstore/internal/record"
)

// Control entries stored next to the rows. The leading space sorts them
// before ordinary keys.
const (
	KeyColumnCount = " COLQ"
	KeyPrimaryKey  = " PK"
	KeyMetadata    = " METADATA"
)

// IsReservedKey reports whether key names one of the control entries.
func IsReservedKey(key string) bool {
	return key == KeyColumnCount || key == KeyPrimaryKey || key == KeyMetadata
}

// Options configures a Store. Zero values fall back to a tree order of 10
// and 4 verify workers.
type Options struct {
	TreeOrder     int
	KV            kv.Options
	VerifyWorkers int
}

// Store runs table operations against the catalog's directories. Each call
// holds the table's lock for its whole duration, so calls on one table never
// overlap inside a process.
type Store struct {
	cat   *catalog.Catalog
	locks *locking.KeyedMutex
	opts  Options
}

// New returns a Store over the catalog's directories.
func New(cat *catalog.Catalog, opts Options) *Store {
	if opts.TreeOrder <= 0 {
		opts.TreeOrder = 10
	}
	if opts.VerifyWorkers <= 0 {
		opts.VerifyWorkers = 4
	}
	return &Store{cat: cat, locks: locking.NewKeyedMutex(), opts: opts}
}

func (s *Store) Catalog() *catalog.Catalog { return s.cat }

// tableMeta is the decoded form of the three control entries.
type tableMeta struct {
	colCount int
	schema   record.Schema
}

func (m tableMeta) pk() int { return m.schema.PK }

func putU16(v int) []byte {
	b := make([]byte, 2)
	bx.PutU16BE(b, uint16(v))
	return b
}

func readU16(st kv.Store, key string) (int, error) {
	b, err := st.Get(key)
	if err != nil {
		return 0, err
	}
	if len(b) != 2 {
		return 0, fmt.Errorf("%q holds %d bytes: %w", key, len(b), errs.ErrCorrupted)
	}
	return int(bx.U16BE(b)), nil
}

func readMeta(st kv.Store) (tableMeta, error) {
	var m tableMeta
	n, err := readU16(st, KeyColumnCount)
	if err != nil {
		return m, controlErr(err)
	}
	pk, err := readU16(st, KeyPrimaryKey)
	if err != nil {
		return m, controlErr(err)
	}
	blob, err := st.Get(KeyMetadata)
	if err != nil {
		return m, controlErr(err)
	}
	cols, err := record.DecodeMetadata(blob)
	if err != nil {
		return m, err
	}
	if len(cols) != n || pk >= n {
		return m, fmt.Errorf("control entries disagree: colq=%d pk=%d columns=%d: %w", n, pk, len(cols), errs.ErrCorrupted)
	}
	m.colCount = n
	m.schema = record.Schema{Cols: cols, PK: pk}
	return m, nil
}

// controlErr reports a missing control entry as corruption, not as a
// missing row key.
func controlErr(err error) error {
	if errors.Is(err, errs.ErrKeyNotFound) {
		return fmt.Errorf("missing control entry: %w", errs.ErrCorrupted)
	}
	return err
}

func lockKey(db, table string) string { return db + "/" + table }

// withTable opens the table's store under its lock, hands it to fn and
// always shuts it down. fn reports whether it mutated the store; only then
// is the store committed.
func (s *Store) withTable(
	ctx context.Context,
	op, db, table, key string,
	fn func(st kv.Store, m tableMeta) (bool, error),
) (err error) {
	defer func() { err = errs.Op(op, db, table, key, err) }()

	unlock, err := s.locks.Lock(ctx, lockKey(db, table))
	if err != nil {
		return err
	}
	defer unlock()

	paths, err := s.cat.CheckTable(db, table)
	if err != nil {
		return err
	}
	st, err := kv.Reopen(paths.Tree, paths.Blocks, s.opts.KV)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Shutdown(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	m, err := readMeta(st)
	if err != nil {
		return err
	}
	mutated, err := fn(st, m)
	if err != nil {
		return err
	}
	if mutated {
		return st.Commit()
	}
	return nil
}
