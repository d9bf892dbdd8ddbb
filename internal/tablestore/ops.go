package tablestore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tuannm99/rowstore/internal/errs"
	"github.com/tuannm99/rowstore/internal/kv"
	"github.com/tuannm99/rowstore/internal/record"
)

// Create makes the table directory, initializes its store and writes the
// control entries. A table that fails half way is removed again.
func (s *Store) Create(ctx context.Context, db, table string, schema record.Schema) (err error) {
	defer func() { err = errs.Op("create", db, table, "", err) }()

	if err := schema.Validate(); err != nil {
		return err
	}
	meta, err := record.EncodeMetadata(schema.Cols)
	if err != nil {
		return err
	}

	unlock, err := s.locks.Lock(ctx, lockKey(db, table))
	if err != nil {
		return err
	}
	defer unlock()

	paths, err := s.cat.CreateTableDir(db, table)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := s.cat.RemoveTable(db, table); rerr != nil {
				slog.Warn("tablestore.create_cleanup_failed", "database", db, "table", table, "err", rerr)
			}
		}
	}()

	st, err := kv.Initialize(paths.Tree, paths.Blocks, s.opts.TreeOrder, s.opts.KV)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Shutdown(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	entries := []struct {
		key string
		val []byte
	}{
		{KeyColumnCount, putU16(schema.NumCols())},
		{KeyPrimaryKey, putU16(schema.PK)},
		{KeyMetadata, meta},
	}
	for _, e := range entries {
		if err := st.Set(e.key, e.val); err != nil {
			return err
		}
	}
	if err := st.Commit(); err != nil {
		return err
	}
	for _, e := range entries {
		ok, err := st.Contains(e.key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("control entry %q missing after commit: %w", e.key, errs.ErrCreationIncomplete)
		}
	}

	slog.Info("tablestore.create", "database", db, "table", table, "columns", schema.NumCols(), "pk", schema.PK)
	return nil
}

// Insert stores row under its primary key value.
func (s *Store) Insert(ctx context.Context, db, table string, row record.Row) error {
	return s.withTable(ctx, "insert", db, table, "", func(st kv.Store, m tableMeta) (bool, error) {
		if len(row) != m.colCount {
			return false, fmt.Errorf("row has %d values, table has %d columns: %w", len(row), m.colCount, errs.ErrSchemaMismatch)
		}
		key := row[m.pk()]
		if key == record.Null {
			return false, errs.ErrNullPrimaryKey
		}
		exists, err := st.Contains(key)
		if err != nil {
			return false, err
		}
		if exists {
			return false, fmt.Errorf("key %q: %w", key, errs.ErrDuplicateKey)
		}

		buf, err := record.EncodeRow(m.schema.Types(), row)
		if err != nil {
			return false, err
		}
		if err := st.Set(key, buf); err != nil {
			return false, err
		}
		ok, err := st.Contains(key)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, fmt.Errorf("key %q: %w", key, errs.ErrWriteVerificationFailed)
		}
		slog.Debug("tablestore.insert", "database", db, "table", table, "key", key)
		return true, nil
	})
}

// Get returns the row stored under key.
func (s *Store) Get(ctx context.Context, db, table, key string) (record.Row, error) {
	var row record.Row
	err := s.withTable(ctx, "get", db, table, key, func(st kv.Store, _ tableMeta) (bool, error) {
		if IsReservedKey(key) {
			return false, errs.ErrReservedKey
		}
		buf, err := st.Get(key)
		if err != nil {
			return false, err
		}
		row, err = record.DecodeRow(buf)
		return false, err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// ScanFunc calls fn for every row in ascending key order, starting after
// the primary key control entry. Returning an error from fn stops the scan.
func (s *Store) ScanFunc(ctx context.Context, db, table string, fn func(key string, row record.Row) error) error {
	return s.withTable(ctx, "scan", db, table, "", func(st kv.Store, _ tableMeta) (bool, error) {
		return false, scanRows(ctx, st, fn)
	})
}

func scanRows(ctx context.Context, st kv.Store, fn func(key string, row record.Row) error) error {
	key := KeyPrimaryKey
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, ok, err := st.NextKey(key)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		buf, err := st.Get(next)
		if err != nil {
			return err
		}
		row, err := record.DecodeRow(buf)
		if err != nil {
			return fmt.Errorf("key %q: %w", next, err)
		}
		if err := fn(next, row); err != nil {
			return err
		}
		key = next
	}
}

// Scan returns every row in ascending key order.
func (s *Store) Scan(ctx context.Context, db, table string) ([]record.Row, error) {
	var rows []record.Row
	err := s.ScanFunc(ctx, db, table, func(_ string, row record.Row) error {
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Update replaces the row under key. Column types and the primary key
// position come from the stored metadata; the key itself cannot change.
func (s *Store) Update(ctx context.Context, db, table, key string, row record.Row) error {
	return s.withTable(ctx, "update", db, table, key, func(st kv.Store, m tableMeta) (bool, error) {
		if IsReservedKey(key) {
			return false, errs.ErrReservedKey
		}
		exists, err := st.Contains(key)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, errs.ErrKeyNotFound
		}
		if len(row) != m.schema.NumCols() {
			return false, fmt.Errorf("row has %d values, table has %d columns: %w", len(row), m.schema.NumCols(), errs.ErrSchemaMismatch)
		}
		if row[m.pk()] != key {
			return false, fmt.Errorf("row key %q: %w", row[m.pk()], errs.ErrKeyMismatch)
		}
		buf, err := record.EncodeRow(m.schema.Types(), row)
		if err != nil {
			return false, err
		}
		if err := st.Set(key, buf); err != nil {
			return false, err
		}
		slog.Debug("tablestore.update", "database", db, "table", table, "key", key)
		return true, nil
	})
}

// Delete removes the row under key.
func (s *Store) Delete(ctx context.Context, db, table, key string) error {
	return s.withTable(ctx, "delete", db, table, key, func(st kv.Store, _ tableMeta) (bool, error) {
		if IsReservedKey(key) {
			return false, errs.ErrReservedKey
		}
		if err := st.Remove(key); err != nil {
			return false, err
		}
		slog.Debug("tablestore.delete", "database", db, "table", table, "key", key)
		return true, nil
	})
}

// DropTable removes the table directory and both backing files.
func (s *Store) DropTable(ctx context.Context, db, table string) (err error) {
	defer func() { err = errs.Op("drop", db, table, "", err) }()

	unlock, err := s.locks.Lock(ctx, lockKey(db, table))
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.cat.RemoveTable(db, table); err != nil {
		return err
	}
	slog.Info("tablestore.drop", "database", db, "table", table)
	return nil
}

// KeyExists reports whether key is stored in the table. Control entries
// count as keys.
func (s *Store) KeyExists(ctx context.Context, db, table, key string) (bool, error) {
	var ok bool
	err := s.withTable(ctx, "key_exists", db, table, key, func(st kv.Store, _ tableMeta) (bool, error) {
		var err error
		ok, err = st.Contains(key)
		return false, err
	})
	return ok, err
}

// TableExists reports whether the table directory exists in db.
func (s *Store) TableExists(_ context.Context, db, table string) (bool, error) {
	return s.cat.TableExists(db, table)
}

func (s *Store) DatabaseExists(_ context.Context, db string) (bool, error) {
	return s.cat.DatabaseExists(db)
}

// Schema decodes the table's stored column list and primary key position.
func (s *Store) Schema(ctx context.Context, db, table string) (record.Schema, error) {
	var schema record.Schema
	err := s.withTable(ctx, "schema", db, table, "", func(_ kv.Store, m tableMeta) (bool, error) {
		schema = m.schema
		return false, nil
	})
	return schema, err
}
