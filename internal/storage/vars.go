package storage

import (
	"errors"
)

const (
	OneKB = 1 << 10 // 1,024
	OneGB = 1 << 30 // 1,073,741,824

	SegmentSize       = OneGB                  // 1 GiB per segment file
	PageSize          = 8 * OneKB              // 8,192 (8 KiB)
	MaxPagePerSegment = SegmentSize / PageSize // 131,072 pages/segment
	HeaderSize        = 12                     // flags, kind, pageID, lower, upper, reserved
	SlotSize          = 6                      // 3 * uint16: offset, length, flags

	// MaxInlineTuple is the largest tuple a fresh page can hold.
	MaxInlineTuple = PageSize - HeaderSize - SlotSize
)

const (
	FileMode0644 = 0o644
	FileMode0755 = 0o755
)

// PageKind is stored in every page header so a reader can tell heap
// pages from overflow pages that share the same block file.
type PageKind uint8

const (
	KindFree PageKind = iota
	KindSlotted
	KindOverflow
)

func (k PageKind) String() string {
	switch k {
	case KindFree:
		return "free"
	case KindSlotted:
		return "slotted"
	case KindOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

var (
	ErrTupleTooLarge = errors.New("page: tuple too large for inline")
	ErrNoSpace       = errors.New("page: not enough free space")
	ErrBadSlot       = errors.New("page: invalid slot")
	ErrCorruption    = errors.New("page: corrupt slot or tuple bounds")
	ErrWrongSize     = errors.New("page: buffer size != PageSize")
	ErrWrongKind     = errors.New("page: unexpected page kind")
)
