package storage

import (
	"github.com/tuannm99/rowstore/internal/alias/bx"
)

// Header offsets
const (
	offFlags  = 0
	offKind   = 2
	offPageID = 4
	offLower  = 8
	offUpper  = 10
)

// Slot flags
const (
	SlotFlagNormal  uint16 = 0
	SlotFlagDeleted uint16 = 1 << 0
)

type Slot struct {
	Offset uint16
	Length uint16
	Flags  uint16
}

// +------------------+ 0
// | Header (12)      |
// | Slots[] ->       | <-- lower
// +------------------+
// |   Free space     |
// +------------------+ <-- upper
// |  <- Tuple data   |
// +------------------+ PageSize (8192)
//
// Overflow pages reuse the header for kind/pageID only; their body is
// managed by OverflowManager.
type Page struct {
	Buf []byte // fixed-size 8KB
}

func NewPage(buf []byte, pageID uint32) (*Page, error) {
	if len(buf) != PageSize {
		return nil, ErrWrongSize
	}
	p := &Page{Buf: buf}
	p.Reset(pageID)
	return p, nil
}

func (p *Page) PageID() uint32     { return bx.U32(p.Buf[offPageID:]) }
func (p *Page) Kind() PageKind     { return PageKind(p.Buf[offKind]) }
func (p *Page) lower() uint16      { return bx.U16(p.Buf[offLower:]) }
func (p *Page) upper() uint16      { return bx.U16(p.Buf[offUpper:]) }
func (p *Page) setLower(v uint16)  { bx.PutU16(p.Buf[offLower:], v) }
func (p *Page) setUpper(v uint16)  { bx.PutU16(p.Buf[offUpper:], v) }
func (p *Page) setKind(k PageKind) { p.Buf[offKind] = byte(k) }

// Reset turns the buffer into an empty slotted page.
func (p *Page) Reset(pageID uint32) {
	clear(p.Buf)
	p.setKind(KindSlotted)
	bx.PutU32(p.Buf[offPageID:], pageID)
	p.setLower(HeaderSize)
	p.setUpper(PageSize)
}

// IsUninitialized reports a zeroed page (never written, or past EOF).
func (p *Page) IsUninitialized() bool {
	return p.Kind() == KindFree && p.lower() == 0
}

func (p *Page) FreeSpace() int {
	return int(p.upper()) - int(p.lower())
}

func (p *Page) NumSlots() int {
	return (int(p.lower()) - HeaderSize) / SlotSize
}

// ---- slots ----
func (p *Page) slotOff(idx int) int {
	return HeaderSize + idx*SlotSize
}

func (p *Page) getSlot(i int) (Slot, error) {
	if i < 0 || i >= p.NumSlots() {
		return Slot{}, ErrBadSlot
	}
	o := p.slotOff(i)
	if o+SlotSize > int(p.lower()) {
		return Slot{}, ErrCorruption
	}
	return Slot{
		Offset: bx.U16(p.Buf[o+0:]),
		Length: bx.U16(p.Buf[o+2:]),
		Flags:  bx.U16(p.Buf[o+4:]),
	}, nil
}

func (p *Page) putSlot(idx int, s Slot) {
	off := p.slotOff(idx)
	bx.PutU16(p.Buf[off+0:], s.Offset)
	bx.PutU16(p.Buf[off+2:], s.Length)
	bx.PutU16(p.Buf[off+4:], s.Flags)
}

// ---- tuples (payload) ----
func (p *Page) InsertTuple(tup []byte) (int, error) {
	if p.Kind() != KindSlotted {
		return -1, ErrWrongKind
	}
	if len(tup) == 0 || len(tup) > MaxInlineTuple {
		return -1, ErrTupleTooLarge
	}
	if p.FreeSpace() < len(tup)+SlotSize {
		return -1, ErrNoSpace
	}

	u := int(p.upper()) - len(tup)
	copy(p.Buf[u:], tup)
	p.setUpper(uint16(u))

	slot := p.NumSlots()
	p.putSlot(slot, Slot{Offset: uint16(u), Length: uint16(len(tup)), Flags: SlotFlagNormal})
	p.setLower(p.lower() + SlotSize)
	return slot, nil
}

// ReadTuple returns a view into the page buffer; copy it before the page
// is unpinned.
func (p *Page) ReadTuple(slot int) ([]byte, error) {
	s, err := p.getSlot(slot)
	if err != nil {
		return nil, err
	}
	switch s.Flags {
	case SlotFlagNormal:
		start, end := int(s.Offset), int(s.Offset)+int(s.Length)
		if s.Length == 0 || start < int(p.upper()) || end > PageSize {
			return nil, ErrCorruption
		}
		return p.Buf[start:end], nil
	case SlotFlagDeleted:
		return nil, ErrBadSlot
	default:
		return nil, ErrCorruption
	}
}

func (p *Page) IsLiveSlot(slot int) (bool, error) {
	s, err := p.getSlot(slot)
	if err != nil {
		return false, err
	}
	return s.Flags == SlotFlagNormal, nil
}

// DeleteTuple marks the slot deleted; the bytes stay until the page is
// rewritten.
func (p *Page) DeleteTuple(slot int) error {
	if _, err := p.getSlot(slot); err != nil {
		return err
	}
	p.putSlot(slot, Slot{Flags: SlotFlagDeleted})
	return nil
}
