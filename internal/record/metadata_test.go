package record

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/rowstore/internal/errs"
)

func TestMetadata_RoundTrip(t *testing.T) {
	schema := makeTestSchema()

	buf, err := EncodeMetadata(schema.Cols)
	require.NoError(t, err)

	cols, err := DecodeMetadata(buf)
	require.NoError(t, err)
	require.Equal(t, schema.Cols, cols)
}

func TestMetadata_Layout(t *testing.T) {
	buf, err := EncodeMetadata([]Column{
		{Name: "id", Type: TypeInteger},
		{Name: "name", Type: TypeVarchar},
	})
	require.NoError(t, err)

	// length first, then the tag: the opposite of a row sub-record
	require.Equal(t, []byte{
		0x00, 0x02, 0x00, 'i', 'd',
		0x00, 0x04, 0x03, 'n', 'a', 'm', 'e',
	}, buf)
}

func TestMetadata_Errors(t *testing.T) {
	_, err := EncodeMetadata([]Column{{Name: "x", Type: Type(9)}})
	require.ErrorIs(t, err, errs.ErrInvalidSchema)

	_, err = DecodeMetadata([]byte{0x00, 0x05, 0x00, 'a'})
	require.ErrorIs(t, err, errs.ErrCorrupted)

	_, err = DecodeMetadata([]byte{0x00, 0x01, 0x09, 'a'})
	require.ErrorIs(t, err, errs.ErrCorrupted)

	_, err = DecodeMetadata([]byte{0x00})
	require.ErrorIs(t, err, errs.ErrCorrupted)
}

func TestSchema_Validate(t *testing.T) {
	require.NoError(t, makeTestSchema().Validate())

	bad := []Schema{
		{},
		{Cols: []Column{{Name: "id", Type: TypeInteger}}, PK: 1},
		{Cols: []Column{{Name: "id", Type: TypeInteger}}, PK: -1},
		{Cols: []Column{{Name: "", Type: TypeInteger}}},
		{Cols: []Column{{Name: "id", Type: Type(0x10)}}},
	}
	for i, s := range bad {
		require.ErrorIs(t, s.Validate(), errs.ErrInvalidSchema, "case %d", i)
	}
}

func TestParseType(t *testing.T) {
	for _, tt := range []Type{TypeInteger, TypeDecimal, TypeChar, TypeVarchar, TypeDatetime} {
		got, err := ParseType(tt.String())
		require.NoError(t, err)
		require.Equal(t, tt, got)
	}
	got, err := ParseType(" varchar ")
	require.NoError(t, err)
	require.Equal(t, TypeVarchar, got)

	_, err = ParseType("BLOB")
	require.ErrorIs(t, err, errs.ErrInvalidSchema)
}

func TestSchema_Helpers(t *testing.T) {
	s := makeTestSchema()
	require.Equal(t, 6, s.NumCols())
	require.Equal(t, []Type{TypeInteger, TypeDecimal, TypeChar, TypeVarchar, TypeDatetime, TypeInteger}, s.Types())
}
