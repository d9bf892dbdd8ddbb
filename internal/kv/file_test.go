package kv

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/rowstore/internal/errs"
)

func testPaths(t *testing.T) (tree, blocks string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "t_TREE"), filepath.Join(dir, "t_BLOCKS")
}

var testOpts = Options{CachePages: 8, NoSync: true}

func newTestStore(t *testing.T) (Store, string, string) {
	t.Helper()
	tree, blocks := testPaths(t)
	s, err := Initialize(tree, blocks, 10, testOpts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s, tree, blocks
}

func TestInitialize_CreatesFiles(t *testing.T) {
	s, tree, blocks := newTestStore(t)
	require.Equal(t, 10, s.Order())

	require.FileExists(t, tree)
	require.FileExists(t, blocks)
	require.NoError(t, s.Shutdown())

	_, err := Initialize(tree, blocks, 10, testOpts)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	_, err = Initialize(tree+"2", blocks+"2", 1, testOpts)
	require.ErrorIs(t, err, errs.ErrInvalidValue)
}

func TestStore_SetGetContainsRemove(t *testing.T) {
	s, _, _ := newTestStore(t)

	ok, err := s.Contains("a")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.Get("a")
	require.ErrorIs(t, err, errs.ErrKeyNotFound)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, s.Set("a", []byte("one")))
	require.NoError(t, s.Set("a", []byte("two")))

	got, err := s.Get("a")
	require.NoError(t, err)
	require.Equal(t, []byte("two"), got)

	require.NoError(t, s.Remove("a"))
	ok, err = s.Contains("a")
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, s.Remove("a"), errs.ErrKeyNotFound)
	require.ErrorIs(t, s.Set("", []byte("x")), errs.ErrInvalidValue)
}

func TestStore_NextKey_Ordered(t *testing.T) {
	s, _, _ := newTestStore(t)

	for _, k := range []string{" COLQ", " PK", " METADATA", "b", "a", "c"} {
		require.NoError(t, s.Set(k, []byte(k)))
	}

	var walk []string
	k := " PK"
	for {
		next, ok, err := s.NextKey(k)
		require.NoError(t, err)
		if !ok {
			break
		}
		walk = append(walk, next)
		k = next
	}
	require.Equal(t, []string{"a", "b", "c"}, walk)

	// A key that is not stored still has a successor.
	next, ok, err := s.NextKey("aa")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", next)
}

func TestStore_CommitAndReopen(t *testing.T) {
	s, tree, blocks := newTestStore(t)

	for i := 0; i < 200; i++ {
		require.NoError(t, s.Set(fmt.Sprintf("k%03d", i), []byte(fmt.Sprintf("value-%d", i))))
	}
	big := bytes.Repeat([]byte("big"), 10000)
	require.NoError(t, s.Set("big", big))
	require.NoError(t, s.Remove("k000"))
	require.NoError(t, s.Commit())
	require.NoError(t, s.Commit())
	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Shutdown())

	r, err := Reopen(tree, blocks, testOpts)
	require.NoError(t, err)
	defer func() { _ = r.Shutdown() }()
	require.Equal(t, 10, r.Order())

	got, err := r.Get("k199")
	require.NoError(t, err)
	require.Equal(t, []byte("value-199"), got)

	got, err = r.Get("big")
	require.NoError(t, err)
	require.Equal(t, big, got)

	_, err = r.Get("k000")
	require.ErrorIs(t, err, errs.ErrKeyNotFound)

	st, err := r.Stats()
	require.NoError(t, err)
	require.Equal(t, 200, st.Keys)
	require.Equal(t, 200, st.Tuples)
	require.Greater(t, st.Pages, uint32(1))
}

func TestStore_ShutdownDiscardsUncommitted(t *testing.T) {
	s, tree, blocks := newTestStore(t)

	require.NoError(t, s.Set("kept", []byte("v1")))
	require.NoError(t, s.Commit())

	require.NoError(t, s.Set("kept", []byte("v2")))
	require.NoError(t, s.Set("lost", []byte("x")))
	require.NoError(t, s.Shutdown())

	r, err := Reopen(tree, blocks, testOpts)
	require.NoError(t, err)
	defer func() { _ = r.Shutdown() }()

	got, err := r.Get("kept")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)

	ok, err := r.Contains("lost")
	require.NoError(t, err)
	require.False(t, ok)

	// The block file keeps growing from the committed allocation state.
	require.NoError(t, r.Set("after", []byte("y")))
	require.NoError(t, r.Commit())
	got, err = r.Get("after")
	require.NoError(t, err)
	require.Equal(t, []byte("y"), got)
}

func TestStore_UseAfterShutdown(t *testing.T) {
	s, _, _ := newTestStore(t)
	require.NoError(t, s.Shutdown())

	_, err := s.Contains("a")
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, s.Commit(), ErrClosed)
}

func TestReopen_MissingFile(t *testing.T) {
	s, tree, blocks := newTestStore(t)
	require.NoError(t, s.Commit())
	require.NoError(t, s.Shutdown())

	require.NoError(t, os.Remove(blocks))
	_, err := Reopen(tree, blocks, testOpts)
	require.ErrorIs(t, err, errs.ErrCorrupted)
}

func TestReopen_NotAStore(t *testing.T) {
	tree, blocks := testPaths(t)
	require.NoError(t, os.WriteFile(tree, bytes.Repeat([]byte{0x42}, 8192), 0o644))
	require.NoError(t, os.WriteFile(blocks, nil, 0o644))

	_, err := Reopen(tree, blocks, testOpts)
	require.ErrorIs(t, err, errs.ErrCorrupted)
}

func TestStore_DumpPages(t *testing.T) {
	s, _, _ := newTestStore(t)
	require.NoError(t, s.Set("a", []byte("alpha")))

	var buf bytes.Buffer
	require.NoError(t, s.DumpPages(&buf))
	require.Contains(t, buf.String(), "page 0 kind=slotted")
	require.Contains(t, buf.String(), `text=".alpha"`)
}

func TestReopen_TruncatedBlocks(t *testing.T) {
	s, tree, blocks := newTestStore(t)
	big := bytes.Repeat([]byte("v"), 3000)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Set(fmt.Sprintf("k%02d", i), big))
	}
	require.NoError(t, s.Commit())
	require.NoError(t, s.Shutdown())

	require.NoError(t, os.Truncate(blocks, 8192))

	_, err := Reopen(tree, blocks, testOpts)
	require.ErrorIs(t, err, errs.ErrCorrupted)
}
