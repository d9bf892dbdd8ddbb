package heap

import (
	"fmt"

	"github.com/tuannm99/rowstore/internal/alias/bx"
	"github.com/tuannm99/rowstore/internal/storage"
)

// Tuple kinds. A value either lives in the slot itself or in an overflow
// chain the slot points to.
const (
	tupleInline   byte = 0
	tupleOverflow byte = 1

	overflowRefSize = 1 + 4 + 4
)

// InlineLimit is the largest value stored directly in a slotted page.
var InlineLimit = storage.PageSize / 4

func inlineTuple(data []byte) []byte {
	tup := make([]byte, 1+len(data))
	tup[0] = tupleInline
	copy(tup[1:], data)
	return tup
}

func overflowTuple(ref storage.OverflowRef) []byte {
	tup := make([]byte, overflowRefSize)
	tup[0] = tupleOverflow
	bx.PutU32BE(tup[1:], ref.FirstPageID)
	bx.PutU32BE(tup[5:], ref.Length)
	return tup
}

// parseTuple returns either the inline payload or the overflow reference.
func parseTuple(tup []byte) (data []byte, ref *storage.OverflowRef, err error) {
	if len(tup) == 0 {
		return nil, nil, storage.ErrCorruption
	}
	switch tup[0] {
	case tupleInline:
		return tup[1:], nil, nil
	case tupleOverflow:
		if len(tup) != overflowRefSize {
			return nil, nil, fmt.Errorf("heap: overflow tuple of %d bytes: %w", len(tup), storage.ErrCorruption)
		}
		return nil, &storage.OverflowRef{
			FirstPageID: bx.U32BE(tup[1:]),
			Length:      bx.U32BE(tup[5:]),
		}, nil
	default:
		return nil, nil, fmt.Errorf("heap: tuple kind %d: %w", tup[0], storage.ErrCorruption)
	}
}
