package record

import (
	"fmt"
	"math"

	"github.com/tuannm99/rowstore/internal/alias/bx"
	"github.com/tuannm99/rowstore/internal/errs"
)

// Column descriptor layout inside the metadata blob:
//
//	[nameLen: u16 BE][tag: 1][name: nameLen bytes]
//
// Length comes before the tag here, the reverse of a row sub-record.
// Existing table files use both layouts; keep them separate.
const descHeaderSize = 3

func EncodeMetadata(cols []Column) ([]byte, error) {
	size := 0
	for _, c := range cols {
		size += descHeaderSize + len(c.Name)
	}
	out := make([]byte, 0, size)

	for i, c := range cols {
		if len(c.Name) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: column %d name too long", errs.ErrInvalidSchema, i)
		}
		if !c.Type.Valid() {
			return nil, fmt.Errorf("%w: column %q has %v", errs.ErrInvalidSchema, c.Name, c.Type)
		}
		out = bx.AppendU16BE(out, uint16(len(c.Name)))
		out = append(out, byte(c.Type))
		out = append(out, c.Name...)
	}
	return out, nil
}

func DecodeMetadata(buf []byte) ([]Column, error) {
	var cols []Column
	for cur := 0; cur < len(buf); {
		if cur+descHeaderSize > len(buf) {
			return nil, fmt.Errorf("%w: truncated column descriptor at %d", errs.ErrCorrupted, cur)
		}
		n := int(bx.U16BE(buf[cur:]))
		t := Type(buf[cur+2])
		start := cur + descHeaderSize
		if start+n > len(buf) {
			return nil, fmt.Errorf("%w: column descriptor at %d overruns metadata", errs.ErrCorrupted, cur)
		}
		if !t.Valid() {
			return nil, fmt.Errorf("%w: unknown column type tag 0x%02x at %d", errs.ErrCorrupted, byte(t), cur)
		}
		cols = append(cols, Column{Name: string(buf[start : start+n]), Type: t})
		cur = start + n
	}
	return cols, nil
}
