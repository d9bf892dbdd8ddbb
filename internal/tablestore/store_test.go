package tablestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/rowstore/internal/catalog"
	"github.com/tuannm99/rowstore/internal/errs"
	"github.com/tuannm99/rowstore/internal/kv"
	"github.com/tuannm99/rowstore/internal/record"
)

const testDB = "Basesita"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cat, err := catalog.New(filepath.Join(t.TempDir(), "DATABASES"))
	require.NoError(t, err)
	require.NoError(t, cat.CreateDatabase(testDB))
	return New(cat, Options{TreeOrder: 10, KV: kv.Options{CachePages: 16, NoSync: true}})
}

func peopleSchema() record.Schema {
	return record.Schema{
		Cols: []record.Column{
			{Name: "id", Type: record.TypeInteger},
			{Name: "name", Type: record.TypeVarchar},
		},
		PK: 0,
	}
}

func createPeople(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), testDB, "T", peopleSchema()))
}

func TestCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createPeople(t, s)

	p := s.Catalog().TablePaths(testDB, "T")
	require.FileExists(t, p.Tree)
	require.FileExists(t, p.Blocks)

	for _, k := range []string{KeyColumnCount, KeyPrimaryKey, KeyMetadata} {
		ok, err := s.KeyExists(ctx, testDB, "T", k)
		require.NoError(t, err)
		require.True(t, ok, k)
	}

	schema, err := s.Schema(ctx, testDB, "T")
	require.NoError(t, err)
	require.Equal(t, peopleSchema(), schema)

	err = s.Create(ctx, testDB, "T", peopleSchema())
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	err = s.Create(ctx, "nope", "T", peopleSchema())
	require.ErrorIs(t, err, errs.ErrNotFound)

	err = s.Create(ctx, testDB, "bad", record.Schema{})
	require.ErrorIs(t, err, errs.ErrInvalidSchema)
	ok, err := s.TableExists(ctx, testDB, "bad")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConcreteScenario(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createPeople(t, s)

	require.NoError(t, s.Insert(ctx, testDB, "T", record.Row{"1", "Ann"}))
	row, err := s.Get(ctx, testDB, "T", "1")
	require.NoError(t, err)
	require.Equal(t, record.Row{"1", "Ann"}, row)

	err = s.Insert(ctx, testDB, "T", record.Row{"1", "Bob"})
	require.ErrorIs(t, err, errs.ErrDuplicateKey)
	row, err = s.Get(ctx, testDB, "T", "1")
	require.NoError(t, err)
	require.Equal(t, record.Row{"1", "Ann"}, row)

	require.NoError(t, s.Delete(ctx, testDB, "T", "1"))
	_, err = s.Get(ctx, testDB, "T", "1")
	require.ErrorIs(t, err, errs.ErrKeyNotFound)
	require.ErrorIs(t, err, errs.ErrNotFound)

	var oe *errs.OpError
	require.True(t, errors.As(err, &oe))
	require.Equal(t, "get", oe.Op)
	require.Equal(t, "T", oe.Table)
}

func TestInsert_Invariants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createPeople(t, s)

	err := s.Insert(ctx, testDB, "T", record.Row{"1"})
	require.ErrorIs(t, err, errs.ErrSchemaMismatch)
	err = s.Insert(ctx, testDB, "T", record.Row{"1", "a", "b"})
	require.ErrorIs(t, err, errs.ErrSchemaMismatch)

	err = s.Insert(ctx, testDB, "T", record.Row{"null", "Ann"})
	require.ErrorIs(t, err, errs.ErrNullPrimaryKey)

	err = s.Insert(ctx, testDB, "T", record.Row{"abc", "Ann"})
	require.ErrorIs(t, err, errs.ErrInvalidValue)

	// Control entries occupy their keys already.
	err = s.Insert(ctx, testDB, "T", record.Row{KeyPrimaryKey, "x"})
	require.Error(t, err)

	rows, err := s.Scan(ctx, testDB, "T")
	require.NoError(t, err)
	require.Empty(t, rows)

	err = s.Insert(ctx, testDB, "missing", record.Row{"1", "Ann"})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestNullNonKeyColumn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	schema := record.Schema{
		Cols: []record.Column{
			{Name: "code", Type: record.TypeChar},
			{Name: "qty", Type: record.TypeInteger},
			{Name: "price", Type: record.TypeDecimal},
			{Name: "at", Type: record.TypeDatetime},
		},
		PK: 0,
	}
	require.NoError(t, s.Create(ctx, testDB, "items", schema))

	require.NoError(t, s.Insert(ctx, testDB, "items", record.Row{"A1", "null", "2.5", "2024-01-01 10:00"}))
	row, err := s.Get(ctx, testDB, "items", "A1")
	require.NoError(t, err)
	require.Equal(t, record.Row{"A1", "null", "2.5", "2024-01-01 10:00"}, row)
}

func TestScan_OrderedAndComplete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createPeople(t, s)

	const n = 300
	for i := n; i > 0; i-- {
		require.NoError(t, s.Insert(ctx, testDB, "T", record.Row{fmt.Sprint(i), fmt.Sprintf("name-%d", i)}))
	}

	rows, err := s.Scan(ctx, testDB, "T")
	require.NoError(t, err)
	require.Len(t, rows, n)
	for i := 1; i < len(rows); i++ {
		require.Less(t, rows[i-1][0], rows[i][0])
	}
	for _, r := range rows {
		require.Equal(t, "name-"+r[0], r[1])
	}

	// Early stop from the callback.
	stop := errors.New("stop")
	seen := 0
	err = s.ScanFunc(ctx, testDB, "T", func(string, record.Row) error {
		seen++
		if seen == 5 {
			return stop
		}
		return nil
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 5, seen)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Scan(cctx, testDB, "T")
	require.ErrorIs(t, err, context.Canceled)
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createPeople(t, s)
	require.NoError(t, s.Insert(ctx, testDB, "T", record.Row{"7", "Ann"}))

	require.NoError(t, s.Update(ctx, testDB, "T", "7", record.Row{"7", "Annabel"}))
	row, err := s.Get(ctx, testDB, "T", "7")
	require.NoError(t, err)
	require.Equal(t, record.Row{"7", "Annabel"}, row)

	err = s.Update(ctx, testDB, "T", "7", record.Row{"8", "Bob"})
	require.ErrorIs(t, err, errs.ErrKeyMismatch)
	row, err = s.Get(ctx, testDB, "T", "7")
	require.NoError(t, err)
	require.Equal(t, record.Row{"7", "Annabel"}, row)

	err = s.Update(ctx, testDB, "T", "9", record.Row{"9", "X"})
	require.ErrorIs(t, err, errs.ErrKeyNotFound)

	err = s.Update(ctx, testDB, "T", "7", record.Row{"7"})
	require.ErrorIs(t, err, errs.ErrSchemaMismatch)

	err = s.Update(ctx, testDB, "T", KeyMetadata, record.Row{KeyMetadata, "x"})
	require.ErrorIs(t, err, errs.ErrReservedKey)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createPeople(t, s)

	require.ErrorIs(t, s.Delete(ctx, testDB, "T", "1"), errs.ErrKeyNotFound)
	require.ErrorIs(t, s.Delete(ctx, testDB, "T", KeyColumnCount), errs.ErrReservedKey)

	require.NoError(t, s.Insert(ctx, testDB, "T", record.Row{"1", "Ann"}))
	require.NoError(t, s.Delete(ctx, testDB, "T", "1"))

	ok, err := s.KeyExists(ctx, testDB, "T", "1")
	require.NoError(t, err)
	require.False(t, ok)

	// Control entries survive row deletes.
	schema, err := s.Schema(ctx, testDB, "T")
	require.NoError(t, err)
	require.Equal(t, 2, schema.NumCols())
}

func TestDropTable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createPeople(t, s)

	require.NoError(t, s.DropTable(ctx, testDB, "T"))
	ok, err := s.TableExists(ctx, testDB, "T")
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, s.DropTable(ctx, testDB, "T"), errs.ErrNotFound)
	_, err = s.Get(ctx, testDB, "T", "1")
	require.ErrorIs(t, err, errs.ErrNotFound)

	ok, err = s.DatabaseExists(ctx, testDB)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMissingBackingFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createPeople(t, s)

	require.NoError(t, os.Remove(s.Catalog().TablePaths(testDB, "T").Blocks))
	_, err := s.Get(ctx, testDB, "T", "1")
	require.ErrorIs(t, err, errs.ErrCorrupted)
}

func TestLargeRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	schema := record.Schema{
		Cols: []record.Column{
			{Name: "k", Type: record.TypeVarchar},
			{Name: "body", Type: record.TypeVarchar},
		},
	}
	require.NoError(t, s.Create(ctx, testDB, "docs", schema))

	body := make([]byte, 60000)
	for i := range body {
		body[i] = byte('a' + i%26)
	}
	require.NoError(t, s.Insert(ctx, testDB, "docs", record.Row{"doc", string(body)}))

	row, err := s.Get(ctx, testDB, "docs", "doc")
	require.NoError(t, err)
	require.Equal(t, string(body), row[1])
}

func TestConcurrentInserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createPeople(t, s)

	var wg sync.WaitGroup
	errCh := make(chan error, 40)
	for i := 0; i < 40; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- s.Insert(ctx, testDB, "T", record.Row{fmt.Sprintf("%02d", i), "x"})
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	rows, err := s.Scan(ctx, testDB, "T")
	require.NoError(t, err)
	require.Len(t, rows, 40)
}

func TestVerifyAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createPeople(t, s)
	require.NoError(t, s.Create(ctx, testDB, "U", peopleSchema()))
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Insert(ctx, testDB, "T", record.Row{fmt.Sprint(i), "x"}))
	}
	// Keys are stored as typed, values in canonical numeric form.
	require.NoError(t, s.Insert(ctx, testDB, "T", record.Row{"007", "Ann"}))
	require.NoError(t, s.Insert(ctx, testDB, "T", record.Row{"+15", "Bo"}))
	row, err := s.Get(ctx, testDB, "T", "007")
	require.NoError(t, err)
	require.Equal(t, record.Row{"7", "Ann"}, row)

	st, err := s.Stats(ctx, testDB, "T")
	require.NoError(t, err)
	require.Equal(t, 15, st.Keys)
	require.Equal(t, 10, st.Order)

	// Break U by removing its index file.
	require.NoError(t, os.Remove(s.Catalog().TablePaths(testDB, "U").Tree))

	reports, err := s.Verify(ctx, testDB)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	require.Equal(t, "T", reports[0].Table)
	require.True(t, reports[0].OK(), "%v", reports[0].Err)
	require.Equal(t, 12, reports[0].Rows)

	require.Equal(t, "U", reports[1].Table)
	require.ErrorIs(t, reports[1].Err, errs.ErrCorrupted)

	_, err = s.Verify(ctx, "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestVerify_DecimalKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	schema := record.Schema{
		Cols: []record.Column{
			{Name: "price", Type: record.TypeDecimal},
			{Name: "label", Type: record.TypeChar},
		},
		PK: 0,
	}
	require.NoError(t, s.Create(ctx, testDB, "P", schema))
	require.NoError(t, s.Insert(ctx, testDB, "P", record.Row{"3", "three"}))
	require.NoError(t, s.Insert(ctx, testDB, "P", record.Row{"2.50", "two"}))

	reports, err := s.Verify(ctx, testDB)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.True(t, reports[0].OK(), "%v", reports[0].Err)
	require.Equal(t, 2, reports[0].Rows)
}

func TestCanonicalKey(t *testing.T) {
	got, err := canonicalKey(record.TypeInteger, "007")
	require.NoError(t, err)
	require.Equal(t, "7", got)

	got, err = canonicalKey(record.TypeVarchar, "007")
	require.NoError(t, err)
	require.Equal(t, "007", got)

	_, err = canonicalKey(record.TypeInteger, "abc")
	require.ErrorIs(t, err, errs.ErrInvalidValue)
}
