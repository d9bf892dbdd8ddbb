package record

import (
	"fmt"
	"strings"

	"github.com/tuannm99/rowstore/internal/errs"
)

// ---- EncodeRow(types, row) -> []byte ----
// Format: sub-record per column, in schema order, no separators and no
// row-level length prefix. See AppendValue for the sub-record layout.
func EncodeRow(types []Type, row Row) ([]byte, error) {
	if len(types) != len(row) {
		return nil, fmt.Errorf("%w: %d values for %d columns", errs.ErrSchemaMismatch, len(row), len(types))
	}

	size := 0
	for _, v := range row {
		size += subHeaderSize + max(len(v), 4)
	}
	out := make([]byte, 0, size)

	for i, t := range types {
		var err error
		out, err = AppendValue(out, t, row[i])
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
	}
	return out, nil
}

// ---- DecodeRow(buf) -> Row ----
// Values come back in stored order; callers pair them with column names.
func DecodeRow(buf []byte) (Row, error) {
	var out Row
	for cur := 0; cur < len(buf); {
		text, next, err := DecodeValue(buf, cur)
		if err != nil {
			return nil, err
		}
		out = append(out, text)
		cur = next
	}
	return out, nil
}

// FormatRow renders a row as "|v1||v2|...", the text form used by the
// original front end.
func FormatRow(row Row) string {
	var b strings.Builder
	for _, v := range row {
		b.WriteByte('|')
		b.WriteString(v)
		b.WriteByte('|')
	}
	return b.String()
}
