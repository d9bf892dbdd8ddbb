package heap

import (
	"fmt"

	"github.com/tuannm99/rowstore/internal/alias/bx"
)

// TIDSize is the encoded length of a TID: [pageID:4 BE][slot:2 BE].
const TIDSize = 6

// TID (Tuple ID) row identity inside of heap file:
// PageID: page logic ID
// Slot  : slot index of page
type TID struct {
	PageID uint32
	Slot   uint16
}

func (id TID) Bytes() []byte {
	b := make([]byte, TIDSize)
	bx.PutU32BE(b, id.PageID)
	bx.PutU16BE(b[4:], id.Slot)
	return b
}

func (id TID) String() string {
	return fmt.Sprintf("(%d,%d)", id.PageID, id.Slot)
}

func ParseTID(b []byte) (TID, error) {
	if len(b) != TIDSize {
		return TID{}, fmt.Errorf("heap: tid of %d bytes", len(b))
	}
	return TID{PageID: bx.U32BE(b), Slot: bx.U16BE(b[4:])}, nil
}
