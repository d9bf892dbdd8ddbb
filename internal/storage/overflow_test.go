package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFileSet(t *testing.T, base string) *LocalFileSet {
	t.Helper()
	fs := NewLocalFileSet(t.TempDir(), base)
	t.Cleanup(func() { _ = fs.Close() })
	return fs
}

func TestOverflow_WriteRead_RoundTrip(t *testing.T) {
	t.Parallel()

	fs := newTestFileSet(t, "ovf_test")
	sm := NewStorageManager()

	next := uint32(3) // pages 0..2 belong to someone else
	ovf := NewOverflowManager(sm, fs, func() uint32 { id := next; next++; return id })

	// Payload bigger than one overflow page to force multi-page chain.
	payload := bytes.Repeat([]byte("X"), 2*overflowPayloadSize+17)

	ref, err := ovf.Write(payload)
	require.NoError(t, err)
	require.Equal(t, uint32(3), ref.FirstPageID)
	require.Equal(t, uint32(len(payload)), ref.Length)
	require.Equal(t, uint32(6), next)

	out, err := ovf.Read(ref)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestOverflow_ReadRejectsSlottedPage(t *testing.T) {
	fs := newTestFileSet(t, "ovf_kind")
	sm := NewStorageManager()

	p, err := NewPage(make([]byte, PageSize), 0)
	require.NoError(t, err)
	require.NoError(t, sm.SavePage(fs, 0, p))

	ovf := NewOverflowManager(sm, fs, func() uint32 { return 1 })
	_, err = ovf.Read(OverflowRef{FirstPageID: 0, Length: 10})
	require.ErrorIs(t, err, ErrWrongKind)

	_, err = ovf.Write(nil)
	require.Error(t, err)
}
